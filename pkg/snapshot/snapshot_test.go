package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Valid(t *testing.T) {
	payload := `{
		"_meta": {"lastupdated": "2024-03-01T10:15:00.000Z", "sitecount": 10, "sitesup": 9},
		"issues": [
			{"sitecode": 7, "sitename": "Harbour", "category": "Critical",
			 "service": "DNS", "target": "10.0.0.7", "datetime": "2024-03-01T10:00:00Z"},
			{"sitecode": "12", "sitename": "Quarry", "category": "minor",
			 "service": "NTP", "target": "10.0.0.12", "datetime": "2024-03-01 09:00:00"}
		]
	}`

	snap, err := Decode([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC), snap.Meta.LastUpdated)
	assert.Equal(t, 10, snap.Meta.SiteCount)
	assert.Equal(t, 9, snap.Meta.SitesUp)
	require.Len(t, snap.Issues, 2)

	assert.Equal(t, models.IssueRecord{
		SiteCode:   7,
		SiteName:   "Harbour",
		Category:   models.CategoryCritical,
		Service:    "DNS",
		Target:     "10.0.0.7",
		ReportedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}, snap.Issues[0])

	assert.Equal(t, 12, snap.Issues[1].SiteCode)
	assert.Equal(t, models.CategoryMinor, snap.Issues[1].Category)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), snap.Issues[1].ReportedAt)
}

func TestDecode_EpochLastUpdated(t *testing.T) {
	snap, err := Decode([]byte(`{"_meta":{"lastupdated":1709288100000,"sitecount":3,"sitesup":3},"issues":[]}`))
	require.NoError(t, err)

	assert.Equal(t, time.UnixMilli(1709288100000).UTC(), snap.Meta.LastUpdated)
	assert.Empty(t, snap.Issues)
}

func TestDecode_FloatEpochFromStruct(t *testing.T) {
	doc := map[string]interface{}{
		"_meta": map[string]interface{}{
			"lastupdated": float64(1709288100000),
			"sitecount":   float64(4),
			"sitesup":     float64(2),
		},
		"issues": []interface{}{},
	}

	snap, err := FromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Meta.SiteCount)
	assert.Equal(t, int64(1709288100000), snap.Meta.LastUpdated.UnixMilli())
}

func TestDecode_Malformed(t *testing.T) {
	for _, payload := range []string{``, `not json`, `[1,2]`, `null`} {
		_, err := Decode([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformed, payload)
	}
}

func TestDecode_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		params []string
	}{
		{
			name:   "missing everything",
			body:   `{}`,
			params: []string{"_meta", "_meta.lastupdated", "_meta.sitecount", "_meta.sitesup", "issues"},
		},
		{
			name:   "bad meta types",
			body:   `{"_meta":{"lastupdated":"yesterday","sitecount":1.5,"sitesup":"x"},"issues":[]}`,
			params: []string{"_meta.lastupdated", "_meta.sitecount", "_meta.sitesup"},
		},
		{
			name: "bad issue fields",
			body: `{"_meta":{"lastupdated":"2024-03-01T10:15:00Z","sitecount":1,"sitesup":1},
				"issues":[{"sitecode":"seven","sitename":3,"category":"warning","service":"DNS","datetime":"soon"}, 4]}`,
			params: []string{
				"issues[0].sitecode", "issues[0].sitename", "issues[0].target",
				"issues[0].category", "issues[0].datetime", "issues[1]",
			},
		},
		{
			name:   "issues not an array",
			body:   `{"_meta":{"lastupdated":"2024-03-01T10:15:00Z","sitecount":1,"sitesup":1},"issues":{}}`,
			params: []string{"issues"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))

			got := make([]string, 0, len(verr.Errors))
			for _, fe := range verr.Errors {
				got = append(got, fe.Param)
				assert.NotEmpty(t, fe.Msg)
			}

			assert.ElementsMatch(t, tt.params, got)
		})
	}
}

func TestDecode_OutOfRangeIntegers(t *testing.T) {
	for _, code := range []string{`1e20`, `-1e20`, `9223372036854775808`} {
		body := `{"_meta":{"lastupdated":"2024-03-01T10:15:00Z","sitecount":1,"sitesup":1},
			"issues":[{"sitecode":` + code + `,"sitename":"Depot","category":"critical","service":"DNS","target":"10.0.0.1","datetime":"2024-03-01T10:14:00Z"}]}`

		_, err := Decode([]byte(body))
		require.ErrorIs(t, err, ErrInvalid, code)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		require.Len(t, verr.Errors, 1, code)
		assert.Equal(t, "issues[0].sitecode", verr.Errors[0].Param)
		assert.Equal(t, msgNotInt, verr.Errors[0].Msg)
	}
}
