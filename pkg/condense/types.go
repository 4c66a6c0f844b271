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

package condense

import (
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

// MetaView is the aggregate block of the condensed view.
type MetaView struct {
	LastPost     time.Time `json:"lastpost"`
	LastUpdated  time.Time `json:"lastupdated"`
	SitesUp      int       `json:"sitesup"`
	SiteCount    int       `json:"sitecount"`
	HomeSiteDown bool      `json:"homesitedown"`
}

// Entry is an issue or event annotated for display.
type Entry struct {
	SiteName      string          `json:"sitename"`
	SiteCode      int             `json:"sitecode"`
	Category      models.Category `json:"category"`
	Service       string          `json:"service"`
	Target        string          `json:"target"`
	Datetime      time.Time       `json:"datetime"`
	LastContacted string          `json:"lastcontacted"`
}

type Counts struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Total    int `json:"total"`
}

// View is the dashboard-facing condensed state.
type View struct {
	Meta   MetaView `json:"_meta"`
	Issues []Entry  `json:"issues"`
	Events []Entry  `json:"events"`
	Counts Counts   `json:"counts"`
}

// RawView is the persisted state with events capped to the newest N.
type RawView struct {
	Meta   *models.Meta   `json:"_meta"`
	Issues []models.Issue `json:"issues"`
	Events []models.Event `json:"events"`
}
