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

// Package condense pkg/condense/service.go turns persisted state into the
// views served to dashboards. It only reads from the store.
package condense

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/carverauto/siteradar/pkg/db"
	"github.com/carverauto/siteradar/pkg/models"
)

const (
	DefaultEventLimit = 50
	PageSize          = 30
)

type Service struct {
	store        db.Service
	homeSiteCode int
	eventLimit   int
	now          func() time.Time
}

func New(store db.Service, homeSiteCode, eventLimit int) *Service {
	if eventLimit <= 0 {
		eventLimit = DefaultEventLimit
	}

	return &Service{
		store:        store,
		homeSiteCode: homeSiteCode,
		eventLimit:   eventLimit,
		now:          time.Now,
	}
}

// Condensed builds the dashboard view. It returns ErrNoData before the
// first reconciliation.
func (s *Service) Condensed(ctx context.Context) (*View, error) {
	meta, err := s.store.GetMeta(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNoData
	}

	if err != nil {
		return nil, fmt.Errorf("%w: meta: %w", ErrStoreRead, err)
	}

	issues, err := s.store.ListIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: issues: %w", ErrStoreRead, err)
	}

	events, err := s.store.ListEvents(ctx, s.eventLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: events: %w", ErrStoreRead, err)
	}

	now := s.now()

	view := &View{
		Meta: MetaView{
			LastPost:     meta.LastUpdated,
			LastUpdated:  meta.LastUpdated,
			SitesUp:      meta.SitesUp,
			SiteCount:    meta.SiteCount,
			HomeSiteDown: meta.HomeSiteDown,
		},
		Issues: s.visibleIssues(meta, issues, now),
		Events: make([]Entry, 0, len(events)),
	}

	for i := range events {
		ev := &events[i]
		view.Events = append(view.Events, Entry{
			SiteName:      ev.SiteName,
			SiteCode:      ev.SiteCode,
			Category:      ev.Category,
			Service:       ev.Service,
			Target:        ev.Target,
			Datetime:      ev.Datetime,
			LastContacted: FormatSince(now.Sub(ev.Datetime), true),
		})
	}

	view.Counts = count(view.Issues)

	return view, nil
}

// visibleIssues applies the home site rule: while it is down only its own
// critical issue is shown.
func (s *Service) visibleIssues(meta *models.Meta, issues []models.Issue, now time.Time) []Entry {
	if meta.HomeSiteDown {
		for i := range issues {
			if issues[i].SiteCode == s.homeSiteCode && issues[i].Category == models.CategoryCritical {
				return []Entry{issueEntry(&issues[i], now)}
			}
		}

		return []Entry{}
	}

	sorted := make([]models.Issue, len(issues))
	copy(sorted, issues)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]

		if a.Category.Severity() != b.Category.Severity() {
			return a.Category.Severity() < b.Category.Severity()
		}

		if !a.ReportedAt.Equal(b.ReportedAt) {
			return a.ReportedAt.Before(b.ReportedAt)
		}

		return a.SiteCode < b.SiteCode
	})

	entries := make([]Entry, 0, len(sorted))
	for i := range sorted {
		entries = append(entries, issueEntry(&sorted[i], now))
	}

	return entries
}

func issueEntry(issue *models.Issue, now time.Time) Entry {
	return Entry{
		SiteName:      issue.SiteName,
		SiteCode:      issue.SiteCode,
		Category:      issue.Category,
		Service:       issue.Service,
		Target:        issue.Target,
		Datetime:      issue.ReportedAt,
		LastContacted: FormatSince(now.Sub(issue.ReportedAt), false),
	}
}

func count(entries []Entry) Counts {
	var c Counts

	for i := range entries {
		switch entries[i].Category {
		case models.CategoryCritical:
			c.Critical++
		case models.CategoryMajor:
			c.Major++
		case models.CategoryMinor:
			c.Minor++
		case models.CategoryResolved:
		}

		c.Total++
	}

	return c
}

// Raw returns the persisted records unmodified. Meta is nil before the
// first reconciliation.
func (s *Service) Raw(ctx context.Context) (*RawView, error) {
	meta, err := s.store.GetMeta(ctx)
	if errors.Is(err, db.ErrNotFound) {
		meta, err = nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: meta: %w", ErrStoreRead, err)
	}

	issues, err := s.store.ListIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: issues: %w", ErrStoreRead, err)
	}

	events, err := s.store.ListEvents(ctx, s.eventLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: events: %w", ErrStoreRead, err)
	}

	if issues == nil {
		issues = []models.Issue{}
	}

	if events == nil {
		events = []models.Event{}
	}

	return &RawView{Meta: meta, Issues: issues, Events: events}, nil
}

// EventsBefore returns the page of up to PageSize events strictly older
// than since, newest first, or ErrNoMoreEvents.
func (s *Service) EventsBefore(ctx context.Context, since time.Time) ([]models.Event, error) {
	events, err := s.store.ListEventsBefore(ctx, since, PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: events: %w", ErrStoreRead, err)
	}

	if len(events) == 0 {
		return nil, ErrNoMoreEvents
	}

	return events, nil
}
