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
	"errors"
	"os"

	"github.com/carverauto/siteradar/pkg/config"
	"github.com/carverauto/siteradar/pkg/core"
	"github.com/carverauto/siteradar/pkg/lifecycle"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/spf13/cobra"
)

const serviceName = "siteradar"

var errNoConfig = errors.New("serve requires --config")

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket notifier, optional gRPC ingest and probe",
		Example: `  siteradar serve --config /etc/siteradar/siteradar.yaml
  API_TOKEN=s3cret HOME_SITE_CODE=99 siteradar serve -c siteradar.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(commandContext(cmd), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	if opts.ConfigPath == "" {
		return errNoConfig
	}

	var cfg config.CoreConfig
	if err := config.LoadAndValidate(opts.ConfigPath, &cfg); err != nil {
		return err
	}

	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}

	if opts.HomeSiteCode != 0 {
		cfg.HomeSiteCode = opts.HomeSiteCode
	}

	if err := logger.Setup(cfg.Logging, os.Stderr); err != nil {
		return err
	}

	srv, err := core.NewServer(&cfg, nil)
	if err != nil {
		return err
	}

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName:          serviceName,
		Service:              srv,
		GRPCAddr:             cfg.GrpcAddr,
		RegisterGRPCServices: []lifecycle.GRPCServiceRegistrar{srv.RegisterGRPC},
		Security:             cfg.Security,
	})
}
