package reconcile

import (
	"testing"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homeSite = 1

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func record(site int, service string, category models.Category, reported time.Time) models.IssueRecord {
	return models.IssueRecord{
		SiteCode:   site,
		SiteName:   "site-" + service,
		Category:   category,
		Service:    service,
		Target:     "10.0.0.1",
		ReportedAt: reported,
	}
}

func persisted(id int64, site int, service string, category models.Category) models.Issue {
	return models.Issue{
		ID:         id,
		SiteCode:   site,
		SiteName:   "site-" + service,
		Category:   category,
		Service:    service,
		Target:     "10.0.0.1",
		ReportedAt: t0.Add(-time.Hour),
		CreatedAt:  t0.Add(-time.Hour),
	}
}

func snapshot(sitesUp int, issues ...models.IssueRecord) *models.Snapshot {
	return &models.Snapshot{
		Meta:   models.SnapshotMeta{LastUpdated: t0, SiteCount: 10, SitesUp: sitesUp},
		Issues: issues,
	}
}

func keys(issues []models.Issue) []models.IssueKey {
	out := make([]models.IssueKey, 0, len(issues))
	for i := range issues {
		out = append(out, issues[i].Key())
	}

	return out
}

func TestDiff(t *testing.T) {
	existingMeta := &models.Meta{LastUpdated: t0.Add(-2 * time.Minute), SiteCount: 10, SitesUp: 9, CreatedAt: t0.Add(-24 * time.Hour)}

	tests := []struct {
		name      string
		snap      *models.Snapshot
		meta      *models.Meta
		open      []models.Issue
		create    []models.IssueKey
		resolve   []models.IssueKey
		unchanged []models.IssueKey
		preserved []models.IssueKey
		homeDown  bool
		events    int
	}{
		{
			name:   "first pass creates meta and issues",
			snap:   snapshot(9, record(7, "DNS", models.CategoryCritical, t0.Add(-time.Minute))),
			create: []models.IssueKey{{SiteCode: 7, Service: "DNS"}},
			events: 1,
		},
		{
			name:      "unchanged issue is idempotent",
			snap:      snapshot(9, record(7, "DNS", models.CategoryCritical, t0)),
			meta:      existingMeta,
			open:      []models.Issue{persisted(1, 7, "DNS", models.CategoryCritical)},
			unchanged: []models.IssueKey{{SiteCode: 7, Service: "DNS"}},
		},
		{
			name:    "absent issue is resolved",
			snap:    snapshot(10),
			meta:    existingMeta,
			open:    []models.Issue{persisted(1, 7, "DNS", models.CategoryCritical)},
			resolve: []models.IssueKey{{SiteCode: 7, Service: "DNS"}},
			events:  1,
		},
		{
			name:      "sibling critical preserves unreported issue",
			snap:      snapshot(9, record(7, "HTTP", models.CategoryCritical, t0)),
			meta:      existingMeta,
			open:      []models.Issue{persisted(1, 7, "DNS", models.CategoryMinor)},
			create:    []models.IssueKey{{SiteCode: 7, Service: "HTTP"}},
			preserved: []models.IssueKey{{SiteCode: 7, Service: "DNS"}},
			events:    1,
		},
		{
			name:    "non critical sibling does not preserve",
			snap:    snapshot(9, record(7, "HTTP", models.CategoryMajor, t0)),
			meta:    existingMeta,
			open:    []models.Issue{persisted(1, 7, "DNS", models.CategoryMinor)},
			create:  []models.IssueKey{{SiteCode: 7, Service: "HTTP"}},
			resolve: []models.IssueKey{{SiteCode: 7, Service: "DNS"}},
			events:  2,
		},
		{
			name: "home site down suppresses other sites",
			snap: snapshot(8,
				record(9, "NTP", models.CategoryMinor, t0),
				record(homeSite, "WAN", models.CategoryCritical, t0),
			),
			meta:     existingMeta,
			open:     []models.Issue{persisted(1, 7, "DNS", models.CategoryCritical)},
			create:   []models.IssueKey{{SiteCode: homeSite, Service: "WAN"}},
			homeDown: true,
			events:   1,
		},
		{
			name:      "home site down redelivery is idempotent",
			snap:      snapshot(8, record(homeSite, "WAN", models.CategoryCritical, t0)),
			meta:      &models.Meta{HomeSiteDown: true},
			open:      []models.Issue{persisted(3, homeSite, "WAN", models.CategoryCritical), persisted(4, 7, "DNS", models.CategoryMinor)},
			unchanged: []models.IssueKey{{SiteCode: homeSite, Service: "WAN"}},
			homeDown:  true,
		},
		{
			name:     "home site escalation replaces the open major issue",
			snap:     snapshot(8, record(homeSite, "WAN", models.CategoryCritical, t0)),
			meta:     existingMeta,
			open:     []models.Issue{persisted(3, homeSite, "WAN", models.CategoryMajor), persisted(4, 7, "DNS", models.CategoryMinor)},
			create:   []models.IssueKey{{SiteCode: homeSite, Service: "WAN"}},
			resolve:  []models.IssueKey{{SiteCode: homeSite, Service: "WAN"}},
			homeDown: true,
			events:   2,
		},
		{
			name:     "home site major issue does not trigger precedence",
			snap:     snapshot(9, record(homeSite, "WAN", models.CategoryMajor, t0)),
			meta:     existingMeta,
			create:   []models.IssueKey{{SiteCode: homeSite, Service: "WAN"}},
			homeDown: false,
			events:   1,
		},
		{
			name: "duplicate keys collapse to the first occurrence",
			snap: snapshot(9,
				record(7, "DNS", models.CategoryMinor, t0),
				record(7, "DNS", models.CategoryCritical, t0),
			),
			create: []models.IssueKey{{SiteCode: 7, Service: "DNS"}},
			events: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Diff(homeSite, tt.snap, tt.meta, tt.open)

			assert.Equal(t, tt.meta == nil, plan.CreateMeta)
			assert.Equal(t, tt.homeDown, plan.HomeSiteDown())
			assert.Equal(t, tt.homeDown, plan.Meta.HomeSiteDown)
			assert.Equal(t, tt.snap.Meta.SitesUp, plan.Meta.SitesUp)
			assert.Equal(t, tt.snap.Meta.LastUpdated, plan.Meta.LastUpdated)

			assert.ElementsMatch(t, tt.create, keys(plan.Create), "create")
			assert.ElementsMatch(t, tt.resolve, keys(plan.Resolve), "resolve")
			assert.ElementsMatch(t, tt.unchanged, keys(plan.Unchanged), "unchanged")
			assert.ElementsMatch(t, tt.preserved, keys(plan.Preserved), "preserved")
			assert.Len(t, plan.Events(), tt.events)
		})
	}
}

func TestDiff_PreservationIgnoresSnapshotOrder(t *testing.T) {
	major := record(7, "HTTP", models.CategoryMajor, t0)
	critical := record(7, "SMTP", models.CategoryCritical, t0)
	open := []models.Issue{persisted(1, 7, "DNS", models.CategoryMinor)}

	for _, snap := range []*models.Snapshot{
		snapshot(9, major, critical),
		snapshot(9, critical, major),
	} {
		plan := Diff(homeSite, snap, &models.Meta{}, open)

		assert.Empty(t, plan.Resolve)
		assert.ElementsMatch(t, []models.IssueKey{{SiteCode: 7, Service: "DNS"}}, keys(plan.Preserved))
		assert.Len(t, plan.Create, 2)
	}
}

func TestDiff_KeepsCreatedAt(t *testing.T) {
	created := t0.Add(-48 * time.Hour)
	plan := Diff(homeSite, snapshot(10), &models.Meta{CreatedAt: created}, nil)

	assert.False(t, plan.CreateMeta)
	assert.Equal(t, created, plan.Meta.CreatedAt)
}

func TestDiff_CategoryChangeIsFlaggedNotApplied(t *testing.T) {
	open := []models.Issue{persisted(1, 7, "DNS", models.CategoryMinor)}
	plan := Diff(homeSite, snapshot(9, record(7, "DNS", models.CategoryCritical, t0)), &models.Meta{}, open)

	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Resolve)
	require.Len(t, plan.CategoryChanges, 1)
	assert.Equal(t, models.CategoryMinor, plan.CategoryChanges[0].Issue.Category)
	assert.Equal(t, models.CategoryCritical, plan.CategoryChanges[0].Reported)
}

func TestDiff_DuplicatesRecorded(t *testing.T) {
	plan := Diff(homeSite, snapshot(9,
		record(7, "DNS", models.CategoryMinor, t0),
		record(7, "DNS", models.CategoryMajor, t0),
	), nil, nil)

	require.Len(t, plan.Create, 1)
	assert.Equal(t, models.CategoryMinor, plan.Create[0].Category)
	require.Len(t, plan.Duplicates, 1)
	assert.Equal(t, models.CategoryMajor, plan.Duplicates[0].Category)
}

func TestPlan_EventsNewestFirst(t *testing.T) {
	open := []models.Issue{persisted(1, 4, "SMTP", models.CategoryMinor)}
	snap := snapshot(7,
		record(7, "DNS", models.CategoryMajor, t0.Add(-30*time.Minute)),
		record(8, "HTTP", models.CategoryMinor, t0.Add(-5*time.Minute)),
		record(9, "NTP", models.CategoryMinor, t0.Add(-90*time.Minute)),
	)

	events := Diff(homeSite, snap, &models.Meta{}, open).Events()
	require.Len(t, events, 4)

	// the resolution is stamped with the snapshot time, which is the newest
	assert.Equal(t, models.CategoryResolved, events[0].Category)
	assert.Equal(t, t0, events[0].Datetime)
	assert.Equal(t, "HTTP", events[1].Service)
	assert.Equal(t, "DNS", events[2].Service)
	assert.Equal(t, "NTP", events[3].Service)

	for _, ev := range events[1:] {
		assert.Equal(t, ev.Datetime, findRecord(snap, ev.Service).ReportedAt)
	}
}

func findRecord(snap *models.Snapshot, service string) models.IssueRecord {
	for _, rec := range snap.Issues {
		if rec.Service == service {
			return rec
		}
	}

	return models.IssueRecord{}
}
