package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{in: "critical", want: CategoryCritical},
		{in: "Critical", want: CategoryCritical},
		{in: " MAJOR ", want: CategoryMajor},
		{in: "minor", want: CategoryMinor},
		{in: "resolved", wantErr: true},
		{in: "warning", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownCategory)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategorySeverityOrder(t *testing.T) {
	assert.Less(t, CategoryCritical.Severity(), CategoryMajor.Severity())
	assert.Less(t, CategoryMajor.Severity(), CategoryMinor.Severity())
	assert.Less(t, CategoryMinor.Severity(), CategoryResolved.Severity())
}

func TestEventBuilders(t *testing.T) {
	reported := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	resolvedAt := reported.Add(time.Hour)

	issue := &Issue{
		SiteCode:   7,
		SiteName:   "Harbour",
		Category:   CategoryCritical,
		Service:    "DNS",
		Target:     "10.0.0.7",
		ReportedAt: reported,
	}

	opened := OpenedEvent(issue)
	assert.Equal(t, CategoryCritical, opened.Category)
	assert.Equal(t, reported, opened.Datetime)
	assert.Equal(t, "DNS", opened.Service)

	resolved := ResolvedEvent(issue, resolvedAt)
	assert.Equal(t, CategoryResolved, resolved.Category)
	assert.Equal(t, resolvedAt, resolved.Datetime)
	assert.Equal(t, "10.0.0.7", resolved.Target)
}

func TestDuration(t *testing.T) {
	var cfg struct {
		A Duration `json:"a" yaml:"a"`
		B Duration `json:"b" yaml:"b"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"a":"90s","b":1000000000}`), &cfg))
	assert.Equal(t, 90*time.Second, time.Duration(cfg.A))
	assert.Equal(t, time.Second, time.Duration(cfg.B))

	require.NoError(t, yaml.Unmarshal([]byte("a: 2m\nb: 5000000000\n"), &cfg))
	assert.Equal(t, 2*time.Minute, time.Duration(cfg.A))
	assert.Equal(t, 5*time.Second, time.Duration(cfg.B))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &cfg))
	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &cfg))
}
