package condense

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/carverauto/siteradar/pkg/db"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const homeSite = 1

var now = time.Date(2024, 3, 3, 12, 30, 0, 0, time.UTC)

func at(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}

	return ts
}

func issue(id int64, site int, name string, category models.Category, service, reported string) models.Issue {
	return models.Issue{
		ID:         id,
		SiteCode:   site,
		SiteName:   name,
		Category:   category,
		Service:    service,
		Target:     "10.0.0." + strconv.Itoa(site),
		ReportedAt: at(reported),
	}
}

func event(site int, name string, category models.Category, service, datetime string) models.Event {
	return models.Event{
		SiteCode: site,
		SiteName: name,
		Category: category,
		Service:  service,
		Target:   "10.0.0." + strconv.Itoa(site),
		Datetime: at(datetime),
	}
}

// jsonEqual compares golden fixtures by value so formatting is irrelevant.
func jsonEqual(actual, expected []byte) bool {
	var a, e interface{}
	if json.Unmarshal(actual, &a) != nil || json.Unmarshal(expected, &e) != nil {
		return false
	}

	return reflect.DeepEqual(a, e)
}

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()

	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden.json"),
		goldie.WithEqualFn(jsonEqual),
	)
}

func newService(store db.Service) *Service {
	svc := New(store, homeSite, 0)
	svc.now = func() time.Time { return now }

	return svc
}

func TestCondensed_Golden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetMeta(gomock.Any()).Return(&models.Meta{
		LastUpdated: at("2024-03-03T12:28:00Z"),
		SiteCount:   10,
		SitesUp:     7,
	}, nil)
	store.EXPECT().ListIssues(gomock.Any()).Return([]models.Issue{
		issue(1, 9, "Quarry", models.CategoryMinor, "NTP", "2024-03-03T11:00:00Z"),
		issue(2, 7, "Harbour", models.CategoryCritical, "DNS", "2024-03-03T12:00:00Z"),
		issue(3, 4, "Mill", models.CategoryMajor, "HTTP", "2024-03-02T09:15:00Z"),
		issue(4, 3, "Ridge", models.CategoryCritical, "WAN", "2024-03-03T12:00:00Z"),
	}, nil)
	store.EXPECT().ListEvents(gomock.Any(), DefaultEventLimit).Return([]models.Event{
		event(5, "Fen", models.CategoryResolved, "SMTP", "2024-03-03T12:28:00Z"),
		event(7, "Harbour", models.CategoryCritical, "DNS", "2024-03-03T12:00:00Z"),
		event(4, "Mill", models.CategoryMajor, "HTTP", "2024-03-02T09:15:00Z"),
		event(2, "Vale", models.CategoryMinor, "FTP", "2024-02-28T12:30:00Z"),
	}, nil)

	view, err := newService(store).Condensed(context.Background())
	require.NoError(t, err)

	newGoldie(t).AssertJson(t, "condensed", view)
}

func TestCondensed_HomeSiteDownGolden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetMeta(gomock.Any()).Return(&models.Meta{
		LastUpdated:  at("2024-03-03T12:28:00Z"),
		SiteCount:    10,
		SitesUp:      6,
		HomeSiteDown: true,
	}, nil)
	store.EXPECT().ListIssues(gomock.Any()).Return([]models.Issue{
		issue(1, 7, "Harbour", models.CategoryCritical, "DNS", "2024-03-03T12:00:00Z"),
		issue(2, homeSite, "Headquarters", models.CategoryMinor, "NTP", "2024-03-03T11:00:00Z"),
		issue(3, homeSite, "Headquarters", models.CategoryCritical, "WAN", "2024-03-03T12:20:00Z"),
	}, nil)
	store.EXPECT().ListEvents(gomock.Any(), DefaultEventLimit).Return([]models.Event{
		event(homeSite, "Headquarters", models.CategoryCritical, "WAN", "2024-03-03T12:20:00Z"),
	}, nil)

	view, err := newService(store).Condensed(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Issues, 1)

	newGoldie(t).AssertJson(t, "condensed_home_site_down", view)
}

func TestCondensed_HomeSiteDownWithoutIssue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetMeta(gomock.Any()).Return(&models.Meta{HomeSiteDown: true}, nil)
	store.EXPECT().ListIssues(gomock.Any()).Return([]models.Issue{
		issue(1, 7, "Harbour", models.CategoryCritical, "DNS", "2024-03-03T12:00:00Z"),
	}, nil)
	store.EXPECT().ListEvents(gomock.Any(), gomock.Any()).Return(nil, nil)

	view, err := newService(store).Condensed(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, view.Issues)
	assert.Empty(t, view.Issues)
	assert.NotNil(t, view.Events)
	assert.Equal(t, Counts{}, view.Counts)
}

func TestCondensed_NoData(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetMeta(gomock.Any()).Return(nil, db.ErrNotFound)

	_, err := newService(store).Condensed(context.Background())
	require.ErrorIs(t, err, ErrNoData)
}

func TestCondensed_ReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetMeta(gomock.Any()).Return(&models.Meta{}, nil)
	store.EXPECT().ListIssues(gomock.Any()).Return(nil, db.ErrNotConnected)

	_, err := newService(store).Condensed(context.Background())
	require.ErrorIs(t, err, ErrStoreRead)
	assert.ErrorIs(t, err, db.ErrNotConnected)
	assert.False(t, errors.Is(err, ErrNoData))
}

func TestRaw(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetMeta(gomock.Any()).Return(nil, db.ErrNotFound)
	store.EXPECT().ListIssues(gomock.Any()).Return(nil, nil)
	store.EXPECT().ListEvents(gomock.Any(), 5).Return(nil, nil)

	svc := New(store, homeSite, 5)

	raw, err := svc.Raw(context.Background())
	require.NoError(t, err)

	out, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_meta":null,"issues":[],"events":[]}`, string(out))
}

func TestEventsBefore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cursor := at("2024-03-03T00:00:00Z")
	page := []models.Event{event(7, "Harbour", models.CategoryMinor, "DNS", "2024-03-02T23:00:00Z")}

	store := db.NewMockService(ctrl)
	store.EXPECT().ListEventsBefore(gomock.Any(), cursor, PageSize).Return(page, nil)
	store.EXPECT().ListEventsBefore(gomock.Any(), page[0].Datetime, PageSize).Return(nil, nil)

	svc := newService(store)

	got, err := svc.EventsBefore(context.Background(), cursor)
	require.NoError(t, err)
	assert.Equal(t, page, got)

	_, err = svc.EventsBefore(context.Background(), got[len(got)-1].Datetime)
	require.ErrorIs(t, err, ErrNoMoreEvents)
}

func TestEventsBefore_WithSQLite(t *testing.T) {
	ctx := context.Background()

	store, err := db.New(ctx, ":memory:")
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	base := at("2024-03-01T00:00:00Z")
	for i := 0; i < 75; i++ {
		require.NoError(t, store.CreateEvent(ctx, &models.Event{
			SiteCode: i,
			Category: models.CategoryMinor,
			Service:  "HTTP",
			Datetime: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	svc := New(store, homeSite, 0)
	cursor := base.Add(75 * time.Minute)
	seen := 0

	for {
		page, err := svc.EventsBefore(ctx, cursor)
		if errors.Is(err, ErrNoMoreEvents) {
			break
		}

		require.NoError(t, err)
		require.LessOrEqual(t, len(page), PageSize)

		for _, ev := range page {
			require.True(t, ev.Datetime.Before(cursor))
		}

		seen += len(page)
		cursor = page[len(page)-1].Datetime
	}

	assert.Equal(t, 75, seen)
}
