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
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/siteradar/pkg/condense"
	"github.com/spf13/cobra"
)

func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var since int64

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print one page of events older than --since",
		Example: `  siteradar events --db state.db --home-site 99
  siteradar events --db state.db --home-site 99 --since 1709287200000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			srv, closeFn, err := rootOpts.openOffline(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			before := time.Now().UTC()
			if since > 0 {
				before = time.UnixMilli(since).UTC()
			}

			out := cmd.OutOrStdout()

			events, err := srv.Views().EventsBefore(ctx, before)
			if errors.Is(err, condense.ErrNoMoreEvents) {
				_, err = fmt.Fprintln(out, "no more events")
				return err
			}

			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(out, events)
			}

			return writeEvents(out, events)
		},
	}

	cmd.Flags().Int64Var(&since, "since", 0, "millisecond timestamp; only older events are listed (default now)")

	return cmd
}
