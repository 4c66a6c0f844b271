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

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/carverauto/siteradar/pkg/condense"
	"github.com/carverauto/siteradar/pkg/models"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func writeView(w io.Writer, view *condense.View) error {
	m := view.Meta

	_, err := fmt.Fprintf(w, "last updated %s  sites up %d/%d  home site down %t\n\n",
		m.LastUpdated.Format(time.RFC3339), m.SitesUp, m.SiteCount, m.HomeSiteDown)
	if err != nil {
		return err
	}

	if err := writeEntries(w, "ISSUES", view.Issues); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	return writeEntries(w, "EVENTS", view.Events)
}

func writeEntries(w io.Writer, title string, entries []condense.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "%s (%d)\n", title, len(entries))
	_, _ = fmt.Fprintln(tw, "SITE\tNAME\tCATEGORY\tSERVICE\tTARGET\tAGE")

	for i := range entries {
		e := &entries[i]
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.SiteCode, e.SiteName, e.Category, e.Service, e.Target, e.LastContacted)
	}

	return tw.Flush()
}

func writeEvents(w io.Writer, events []models.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "DATETIME\tSITE\tNAME\tCATEGORY\tSERVICE\tTARGET")

	for i := range events {
		e := &events[i]
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			e.Datetime.Format(time.RFC3339), e.SiteCode, e.SiteName, e.Category, e.Service, e.Target)
	}

	return tw.Flush()
}
