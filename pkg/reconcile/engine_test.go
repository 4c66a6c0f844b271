package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carverauto/siteradar/pkg/alerts"
	"github.com/carverauto/siteradar/pkg/db"
	"github.com/carverauto/siteradar/pkg/metrics"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/notify"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var errDisk = errors.New("disk full")

func newStore(t *testing.T) *db.DB {
	t.Helper()

	store, err := db.New(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newEngine(t *testing.T, store db.Service, opts ...Option) *Engine {
	t.Helper()

	engine, err := New(store, Config{HomeSiteCode: homeSite}, opts...)
	require.NoError(t, err)

	return engine
}

func TestNew_RejectsHomeSite(t *testing.T) {
	_, err := New(nil, Config{})
	require.ErrorIs(t, err, ErrInvalidHomeSite)
}

func TestReconcile_ResolveExample(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	var notified []bool

	engine := newEngine(t, store, WithNotifier(notify.Func(func(_ context.Context, updated bool) {
		notified = append(notified, updated)
	})))

	snapA := snapshot(9, record(7, "DNS", models.CategoryCritical, t0.Add(-time.Minute)))

	outcome, err := engine.Reconcile(ctx, snapA)
	require.NoError(t, err)
	assert.True(t, outcome.MetaCreated)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 1, outcome.Events)
	assert.NotEmpty(t, outcome.PassID)

	snapB := snapshot(10)
	snapB.Meta.LastUpdated = t0.Add(2 * time.Minute)

	outcome, err = engine.Reconcile(ctx, snapB)
	require.NoError(t, err)
	assert.False(t, outcome.MetaCreated)
	assert.Equal(t, 1, outcome.Resolved)
	assert.Equal(t, 0, outcome.WriteFailures)

	issues, err := store.ListIssues(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)

	events, err := store.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.CategoryResolved, events[0].Category)
	assert.Equal(t, snapB.Meta.LastUpdated, events[0].Datetime)
	assert.Equal(t, 7, events[0].SiteCode)
	assert.Equal(t, "DNS", events[0].Service)

	meta, err := store.GetMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, meta.SitesUp)
	assert.False(t, meta.HomeSiteDown)

	assert.Equal(t, []bool{true, true}, notified)
}

func TestReconcile_UnchangedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	engine := newEngine(t, store)

	snap := snapshot(8,
		record(7, "DNS", models.CategoryCritical, t0),
		record(9, "NTP", models.CategoryMinor, t0),
	)

	for i := 0; i < 3; i++ {
		_, err := engine.Reconcile(ctx, snap)
		require.NoError(t, err)
	}

	issues, err := store.ListIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 2)

	events, err := store.ListEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	for _, ev := range events {
		issue := issueFor(issues, ev.SiteCode, ev.Service)
		require.NotNil(t, issue)
		assert.Equal(t, issue.Category, ev.Category)
		assert.Equal(t, issue.Target, ev.Target)
	}
}

func issueFor(issues []models.Issue, site int, service string) *models.Issue {
	for i := range issues {
		if issues[i].SiteCode == site && issues[i].Service == service {
			return &issues[i]
		}
	}

	return nil
}

func TestReconcile_HomeSitePrecedence(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	engine := newEngine(t, store)

	_, err := engine.Reconcile(ctx, snapshot(9, record(7, "DNS", models.CategoryMajor, t0.Add(-time.Hour))))
	require.NoError(t, err)

	down := snapshot(5,
		record(homeSite, "WAN", models.CategoryCritical, t0),
		record(12, "HTTP", models.CategoryCritical, t0),
	)
	down.Meta.LastUpdated = t0.Add(time.Minute)

	for i := 0; i < 2; i++ {
		outcome, err := engine.Reconcile(ctx, down)
		require.NoError(t, err)
		assert.True(t, outcome.HomeSiteDown)
	}

	issues, err := store.ListIssues(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.IssueKey{
		{SiteCode: 7, Service: "DNS"},
		{SiteCode: homeSite, Service: "WAN"},
	}, keys(issues), "site 7 is neither resolved nor site 12 created")

	events, err := store.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2, "redelivery must not add a second home site event")
	assert.Equal(t, homeSite, events[0].SiteCode)

	meta, err := store.GetMeta(ctx)
	require.NoError(t, err)
	assert.True(t, meta.HomeSiteDown)
	assert.Equal(t, 5, meta.SitesUp)
}

func TestReconcile_HomeSiteEscalation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	engine := newEngine(t, store)

	outcome, err := engine.Reconcile(ctx, snapshot(9, record(homeSite, "WAN", models.CategoryMajor, t0.Add(-time.Hour))))
	require.NoError(t, err)
	assert.False(t, outcome.HomeSiteDown)
	assert.Equal(t, 1, outcome.Created)

	down := snapshot(5, record(homeSite, "WAN", models.CategoryCritical, t0))
	down.Meta.LastUpdated = t0.Add(time.Minute)

	outcome, err = engine.Reconcile(ctx, down)
	require.NoError(t, err)
	assert.True(t, outcome.HomeSiteDown)
	assert.Equal(t, 1, outcome.Resolved)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 2, outcome.Events)
	assert.Zero(t, outcome.WriteFailures)

	for i := 0; i < 2; i++ {
		outcome, err = engine.Reconcile(ctx, down)
		require.NoError(t, err)
		assert.Zero(t, outcome.Created)
		assert.Zero(t, outcome.Resolved)
		assert.Equal(t, 1, outcome.Unchanged)
		assert.Zero(t, outcome.WriteFailures)
	}

	issues, err := store.ListIssues(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, models.CategoryCritical, issues[0].Category)

	events, err := store.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	categories := make([]models.Category, 0, len(events))
	for _, ev := range events {
		categories = append(categories, ev.Category)
	}

	assert.ElementsMatch(t, []models.Category{
		models.CategoryMajor, models.CategoryResolved, models.CategoryCritical,
	}, categories)

	meta, err := store.GetMeta(ctx)
	require.NoError(t, err)
	assert.True(t, meta.HomeSiteDown)
}

func TestReconcile_StoreReadFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *db.MockService)
	}{
		{
			name: "meta",
			setup: func(m *db.MockService) {
				m.EXPECT().GetMeta(gomock.Any()).Return(nil, db.ErrNotConnected)
			},
		},
		{
			name: "issues",
			setup: func(m *db.MockService) {
				m.EXPECT().GetMeta(gomock.Any()).Return(nil, db.ErrNotFound)
				m.EXPECT().ListIssues(gomock.Any()).Return(nil, errDisk)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockStore := db.NewMockService(ctrl)
			mockNotifier := notify.NewMockNotifier(ctrl)

			tt.setup(mockStore)

			engine := newEngine(t, mockStore, WithNotifier(mockNotifier))

			outcome, err := engine.Reconcile(context.Background(), snapshot(10))
			require.ErrorIs(t, err, ErrStoreRead)
			assert.Nil(t, outcome)
		})
	}
}

func TestReconcile_WriteFailuresDoNotAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := db.NewMockService(ctrl)
	mockNotifier := notify.NewMockNotifier(ctrl)
	recorder := metrics.NewPrometheus()

	open := []models.Issue{
		persisted(1, 4, "SMTP", models.CategoryMinor),
		persisted(2, 5, "IMAP", models.CategoryMinor),
	}

	mockStore.EXPECT().GetMeta(gomock.Any()).Return(&models.Meta{SitesUp: 8}, nil)
	mockStore.EXPECT().ListIssues(gomock.Any()).Return(open, nil)
	mockStore.EXPECT().UpdateMeta(gomock.Any(), gomock.Any()).Return(errDisk)
	mockStore.EXPECT().DeleteIssue(gomock.Any(), int64(1)).Return(errDisk)
	mockStore.EXPECT().DeleteIssue(gomock.Any(), int64(2)).Return(nil)
	mockStore.EXPECT().CreateIssue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, issue *models.Issue) error {
			if issue.Service == "DNS" {
				return errDisk
			}

			issue.ID = 10

			return nil
		}).Times(2)

	var written []models.Event

	mockStore.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event *models.Event) error {
			written = append(written, *event)
			return nil
		}).Times(2)

	mockNotifier.EXPECT().Notify(gomock.Any(), true).Times(1)

	engine := newEngine(t, mockStore, WithNotifier(mockNotifier), WithMetrics(recorder))

	outcome, err := engine.Reconcile(context.Background(), snapshot(9,
		record(7, "DNS", models.CategoryCritical, t0.Add(-time.Minute)),
		record(8, "HTTP", models.CategoryMinor, t0.Add(-2*time.Minute)),
	))
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.WriteFailures)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 1, outcome.Resolved)
	assert.Equal(t, 2, outcome.Events)

	// only mutations that succeeded get events, newest first
	require.Len(t, written, 2)
	assert.Equal(t, models.CategoryResolved, written[0].Category)
	assert.Equal(t, "IMAP", written[0].Service)
	assert.Equal(t, "HTTP", written[1].Service)

	reg := recorder.Registry()
	count, err := testutil.GatherAndCount(reg, "siteradar_write_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per failed record kind")
}

func TestReconcile_Alerts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newStore(t)
	alerter := alerts.NewMockAlertService(ctrl)
	alerter.EXPECT().IsEnabled().Return(true).AnyTimes()

	var titles []string

	alerter.EXPECT().Alert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, alert *alerts.WebhookAlert) error {
			titles = append(titles, alert.Title)

			if alert.Title == TitleCriticalIssue {
				return alerts.ErrWebhookCooldown
			}

			return nil
		}).AnyTimes()

	engine := newEngine(t, store, WithAlerters(alerter))
	ctx := context.Background()

	_, err := engine.Reconcile(ctx, snapshot(9,
		record(7, "DNS", models.CategoryCritical, t0),
		record(8, "NTP", models.CategoryMinor, t0),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{TitleCriticalIssue}, titles)

	titles = nil
	_, err = engine.Reconcile(ctx, snapshot(5, record(homeSite, "WAN", models.CategoryCritical, t0)))
	require.NoError(t, err)
	assert.Equal(t, []string{TitleHomeSiteDown}, titles)

	titles = nil
	_, err = engine.Reconcile(ctx, snapshot(5, record(homeSite, "WAN", models.CategoryCritical, t0)))
	require.NoError(t, err)
	assert.Empty(t, titles, "no alert while the home site stays down")

	titles = nil
	_, err = engine.Reconcile(ctx, snapshot(10))
	require.NoError(t, err)
	assert.Equal(t, []string{TitleHomeSiteRecovered}, titles)
}

func TestReconcile_SerialisesConcurrentPasses(t *testing.T) {
	store := newStore(t)
	engine := newEngine(t, store)

	snap := snapshot(9, record(7, "DNS", models.CategoryCritical, t0))

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := engine.Reconcile(context.Background(), snap)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	issues, err := store.ListIssues(context.Background())
	require.NoError(t, err)
	assert.Len(t, issues, 1)

	events, err := store.ListEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestReconcile_NilSnapshot(t *testing.T) {
	engine := newEngine(t, newStore(t))

	_, err := engine.Reconcile(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilSnapshot)
}

func TestReconcile_CancelledContext(t *testing.T) {
	engine := newEngine(t, newStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Reconcile(ctx, snapshot(9))
	require.ErrorIs(t, err, ErrStoreRead)
	assert.ErrorIs(t, err, context.Canceled)
}
