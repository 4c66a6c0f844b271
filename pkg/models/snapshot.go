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

package models

import "time"

// SnapshotMeta is the aggregate block of a probe snapshot.
type SnapshotMeta struct {
	LastUpdated time.Time
	SiteCount   int
	SitesUp     int
}

// IssueRecord is one issue as reported by the probe.
type IssueRecord struct {
	SiteCode   int
	SiteName   string
	Category   Category
	Service    string
	Target     string
	ReportedAt time.Time
}

func (r *IssueRecord) Key() IssueKey {
	return IssueKey{SiteCode: r.SiteCode, Service: r.Service}
}

// ToIssue converts the record into an issue ready to be persisted.
func (r *IssueRecord) ToIssue() Issue {
	return Issue{
		SiteCode:   r.SiteCode,
		SiteName:   r.SiteName,
		Category:   r.Category,
		Service:    r.Service,
		Target:     r.Target,
		ReportedAt: r.ReportedAt,
	}
}

// Snapshot is a validated probe delivery describing every open issue.
type Snapshot struct {
	Meta   SnapshotMeta
	Issues []IssueRecord
}
