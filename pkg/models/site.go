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

// Package models pkg/models/site.go holds the persisted site-health records.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownCategory = errors.New("unknown category")

// Category is the severity of an issue. Events may also carry CategoryResolved.
type Category string

const (
	CategoryCritical Category = "critical"
	CategoryMajor    Category = "major"
	CategoryMinor    Category = "minor"
	CategoryResolved Category = "resolved"
)

// ParseCategory parses an issue category case-insensitively. Resolved is
// not a valid issue category, only an event category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryCritical, CategoryMajor, CategoryMinor:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// Severity orders categories for display, lower is more severe.
func (c Category) Severity() int {
	switch c {
	case CategoryCritical:
		return 0
	case CategoryMajor:
		return 1
	case CategoryMinor:
		return 2
	case CategoryResolved:
		return 4
	default:
		return 3
	}
}

// IssueKey identifies an issue across snapshots.
type IssueKey struct {
	SiteCode int
	Service  string
}

func (k IssueKey) String() string {
	return fmt.Sprintf("%d/%s", k.SiteCode, k.Service)
}

// Meta is the singleton aggregate status record.
type Meta struct {
	LastUpdated  time.Time `json:"lastupdated"`
	SiteCount    int       `json:"sitecount"`
	SitesUp      int       `json:"sitesup"`
	HomeSiteDown bool      `json:"homesitedown"`
	CreatedAt    time.Time `json:"created"`
}

// Issue is a currently open problem at a site/service.
type Issue struct {
	ID         int64     `json:"id"`
	SiteCode   int       `json:"sitecode"`
	SiteName   string    `json:"sitename"`
	Category   Category  `json:"category"`
	Service    string    `json:"service"`
	Target     string    `json:"target"`
	ReportedAt time.Time `json:"datetime"`
	CreatedAt  time.Time `json:"created"`
}

func (i *Issue) Key() IssueKey {
	return IssueKey{SiteCode: i.SiteCode, Service: i.Service}
}

// Event is an immutable history record of an issue being opened or resolved.
type Event struct {
	ID        int64     `json:"id"`
	SiteCode  int       `json:"sitecode"`
	SiteName  string    `json:"sitename"`
	Category  Category  `json:"category"`
	Service   string    `json:"service"`
	Target    string    `json:"target"`
	Datetime  time.Time `json:"datetime"`
	CreatedAt time.Time `json:"created"`
}

// ResolvedEvent builds the resolution event for an issue closed at the given time.
func ResolvedEvent(issue *Issue, at time.Time) Event {
	return Event{
		SiteCode: issue.SiteCode,
		SiteName: issue.SiteName,
		Category: CategoryResolved,
		Service:  issue.Service,
		Target:   issue.Target,
		Datetime: at,
	}
}

// OpenedEvent builds the event recording a newly opened issue.
func OpenedEvent(issue *Issue) Event {
	return Event{
		SiteCode: issue.SiteCode,
		SiteName: issue.SiteName,
		Category: issue.Category,
		Service:  issue.Service,
		Target:   issue.Target,
		Datetime: issue.ReportedAt,
	}
}
