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
	"context"
	"fmt"
	"time"

	"github.com/carverauto/siteradar/pkg/grpc"
	"github.com/carverauto/siteradar/pkg/ingest"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/spf13/cobra"
)

const (
	defaultPushAddr    = "localhost:50051"
	defaultPushTimeout = 30 * time.Second
	defaultPushRetries = 3
)

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	Addr     string
	Timeout  time.Duration
	Retries  int
	Security models.SecurityConfig
}

func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push FILE",
		Short: "Submit a snapshot to a running server over gRPC",
		Example: `  siteradar push --addr radar.example.com:50051 snapshot.json
  probe.sh | siteradar push --security-mode mtls --cert-dir /etc/siteradar/certs -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			return runPush(commandContext(cmd), cmd, opts, data)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Addr, "addr", defaultPushAddr, "gRPC address of the siteradar server")
	flags.DurationVar(&opts.Timeout, "timeout", defaultPushTimeout, "deadline for the submission")
	flags.IntVar(&opts.Retries, "retries", defaultPushRetries, "retries while the server is unavailable")
	flags.StringVar((*string)(&opts.Security.Mode), "security-mode", "none", "transport security (none|mtls|spiffe)")
	flags.StringVar(&opts.Security.CertDir, "cert-dir", "", "directory holding root.pem, client.pem and client-key.pem")
	flags.StringVar(&opts.Security.ServerName, "server-name", "", "expected server name or SPIFFE ID")
	flags.StringVar(&opts.Security.TrustDomain, "trust-domain", "", "SPIFFE trust domain")
	flags.StringVar(&opts.Security.WorkloadSocket, "workload-socket", "", "SPIFFE workload API socket")

	return cmd
}

func runPush(ctx context.Context, cmd *cobra.Command, opts *PushOptions, data []byte) error {
	security := opts.Security
	security.Role = models.RolePusher

	client, err := grpc.NewClient(ctx, &grpc.ConnectionConfig{
		Address:  opts.Addr,
		Security: security,
	}, grpc.WithMaxRetries(opts.Retries))
	if err != nil {
		return err
	}

	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	out, err := ingest.NewSnapshotClient(client.GetConnection()).SubmitJSON(ctx, data)
	if err != nil {
		return fmt.Errorf("submit to %s failed: %w", opts.Addr, err)
	}

	outcome := out.AsMap()

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), outcome)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "pass %v: created %v, resolved %v, unchanged %v, events %v\n",
		outcome["passId"], outcome["created"], outcome["resolved"], outcome["unchanged"], outcome["events"])

	return err
}
