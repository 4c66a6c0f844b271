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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return data, nil
}

func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply FILE",
		Short: "Reconcile a snapshot file into the database",
		Long: `Run one reconciliation pass for the snapshot in FILE ("-" reads stdin)
directly against the database, without going through the API.`,
		Example: "  siteradar apply --db state.db --home-site 99 snapshot.json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			srv, closeFn, err := rootOpts.openOffline(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			outcome, err := srv.Ingest().SubmitJSON(ctx, "cli:"+args[0], data)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), outcome)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"pass %s: created %d, resolved %d, unchanged %d, preserved %d, events %d, write failures %d, home site down %t\n",
				outcome.PassID, outcome.Created, outcome.Resolved, outcome.Unchanged, outcome.Preserved,
				outcome.Events, outcome.WriteFailures, outcome.HomeSiteDown)

			return err
		},
	}
}
