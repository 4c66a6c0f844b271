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

	"github.com/carverauto/siteradar/pkg/condense"
	"github.com/spf13/cobra"
)

func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:     "view",
		Short:   "Print the condensed view the dashboard receives",
		Example: "  siteradar view --db state.db --home-site 99 --format json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			srv, closeFn, err := rootOpts.openOffline(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()

			if raw {
				view, err := srv.Views().Raw(ctx)
				if err != nil {
					return err
				}

				return writeJSON(out, view)
			}

			view, err := srv.Views().Condensed(ctx)
			if errors.Is(err, condense.ErrNoData) {
				_, err = fmt.Fprintln(out, "no reconciliation has run yet")
				return err
			}

			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(out, view)
			}

			return writeView(out, view)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the unmodified records as JSON")

	return cmd
}
