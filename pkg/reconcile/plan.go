/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package reconcile pkg/reconcile/plan.go computes the mutations one
// snapshot implies for the persisted state.
package reconcile

import (
	"sort"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

// CategoryChange is a matched issue whose reported category differs from
// the persisted one. The persisted category is kept.
type CategoryChange struct {
	Issue    models.Issue
	Reported models.Category
}

// Plan is the full set of writes for one pass.
type Plan struct {
	// Meta is the aggregate record to persist. CreatedAt is carried over
	// from the current record when there is one.
	Meta       models.Meta
	CreateMeta bool

	// HomeSiteIssue is the snapshot issue that put the home site down.
	HomeSiteIssue *models.IssueRecord

	Create    []models.Issue
	Resolve   []models.Issue
	Unchanged []models.Issue

	// Preserved issues were not re-reported but survive because another
	// critical issue is open at the same site.
	Preserved []models.Issue

	CategoryChanges []CategoryChange
	Duplicates      []models.IssueRecord
}

// HomeSiteDown reports whether the plan follows the home site precedence rule.
func (p *Plan) HomeSiteDown() bool {
	return p.HomeSiteIssue != nil
}

// Events returns the events the plan emits, newest first: one per created
// issue at its report time and one resolution per resolved issue at the
// snapshot time.
func (p *Plan) Events() []models.Event {
	return buildEvents(p.Create, p.Resolve, p.Meta.LastUpdated)
}

func buildEvents(created, resolved []models.Issue, resolvedAt time.Time) []models.Event {
	events := make([]models.Event, 0, len(created)+len(resolved))

	for i := range created {
		events = append(events, models.OpenedEvent(&created[i]))
	}

	for i := range resolved {
		events = append(events, models.ResolvedEvent(&resolved[i], resolvedAt))
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Datetime.After(events[j].Datetime)
	})

	return events
}

// Diff compares a snapshot with the persisted state. current is nil when
// no Meta exists yet. Diff does not touch the store.
func Diff(homeSiteCode int, snap *models.Snapshot, current *models.Meta, open []models.Issue) *Plan {
	plan := &Plan{
		Meta: models.Meta{
			LastUpdated: snap.Meta.LastUpdated,
			SiteCount:   snap.Meta.SiteCount,
			SitesUp:     snap.Meta.SitesUp,
		},
		CreateMeta: current == nil,
	}

	if current != nil {
		plan.Meta.CreatedAt = current.CreatedAt
	}

	for i := range snap.Issues {
		rec := &snap.Issues[i]
		if rec.SiteCode == homeSiteCode && rec.Category == models.CategoryCritical {
			plan.HomeSiteIssue = rec
			break
		}
	}

	plan.Meta.HomeSiteDown = plan.HomeSiteDown()

	if plan.HomeSiteDown() {
		diffHomeSiteDown(plan, homeSiteCode, open)
	} else {
		diffSites(plan, snap.Issues, open)
	}

	return plan
}

// diffHomeSiteDown opens the home site issue once and leaves every other
// site alone. An open issue holding the same key at a lower category is
// resolved and replaced, since the store allows one issue per key.
func diffHomeSiteDown(plan *Plan, homeSiteCode int, open []models.Issue) {
	for i := range open {
		if open[i].SiteCode == homeSiteCode && open[i].Category == models.CategoryCritical {
			plan.Unchanged = append(plan.Unchanged, open[i])
			return
		}
	}

	key := plan.HomeSiteIssue.Key()

	for i := range open {
		if open[i].Key() == key {
			plan.Resolve = append(plan.Resolve, open[i])
			break
		}
	}

	plan.Create = append(plan.Create, plan.HomeSiteIssue.ToIssue())
}

func diffSites(plan *Plan, records []models.IssueRecord, open []models.Issue) {
	var (
		working       = make(map[models.IssueKey]*models.IssueRecord, len(records))
		order         = make([]models.IssueKey, 0, len(records))
		criticalSites = make(map[int]struct{})
	)

	for i := range records {
		rec := &records[i]

		if rec.Category == models.CategoryCritical {
			criticalSites[rec.SiteCode] = struct{}{}
		}

		key := rec.Key()
		if _, dup := working[key]; dup {
			plan.Duplicates = append(plan.Duplicates, *rec)
			continue
		}

		working[key] = rec
		order = append(order, key)
	}

	for i := range open {
		persisted := open[i]
		key := persisted.Key()

		if match, ok := working[key]; ok {
			plan.Unchanged = append(plan.Unchanged, persisted)

			if match.Category != persisted.Category {
				plan.CategoryChanges = append(plan.CategoryChanges, CategoryChange{
					Issue:    persisted,
					Reported: match.Category,
				})
			}

			delete(working, key)

			continue
		}

		if _, sibling := criticalSites[persisted.SiteCode]; sibling {
			plan.Preserved = append(plan.Preserved, persisted)
			continue
		}

		plan.Resolve = append(plan.Resolve, persisted)
	}

	for _, key := range order {
		if rec, ok := working[key]; ok {
			plan.Create = append(plan.Create, rec.ToIssue())
		}
	}
}
