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

// Package cli pkg/cli/root.go builds the siteradar command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/carverauto/siteradar/pkg/config"
	"github.com/carverauto/siteradar/pkg/core"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultConnectTimeout = 10 * time.Second

var (
	errInvalidFormat = errors.New("invalid output format")
	errNoDBPath      = errors.New("no database path: pass --db or set db_path in the config")
	errNoHomeSite    = errors.New("no home site code: pass --home-site or set home_site_code in the config")
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath     string
	DBPath         string
	HomeSiteCode   int
	Format         string // text or json
	LogLevel       string
	ConnectTimeout time.Duration
}

var validFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "siteradar",
		Short: "Site health reconciliation service",
		Long: `siteradar ingests site-health snapshots, keeps the history of open issues
and status change events, and serves a condensed view to dashboards.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("%w %q: must be one of %v", errInvalidFormat, opts.Format, validFormats)
			}

			return logger.Setup(logger.Config{Level: opts.LogLevel}, cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a JSON or YAML config file")
	flags.StringVar(&opts.DBPath, "db", "", "path to the SQLite database (overrides config)")
	flags.IntVar(&opts.HomeSiteCode, "home-site", 0, "home site code (overrides config)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "log level for offline commands")
	flags.DurationVar(&opts.ConnectTimeout, "connect-timeout", defaultConnectTimeout, "how long to wait for the database")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}

	return false
}

// offlineConfig loads the config, if any, and applies the flag overrides.
// Offline commands never need the API token, so it is not validated.
func (o *RootOptions) offlineConfig() (*config.CoreConfig, error) {
	cfg := &config.CoreConfig{}

	if o.ConfigPath != "" {
		if err := config.LoadFile(o.ConfigPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}

	if o.HomeSiteCode != 0 {
		cfg.HomeSiteCode = o.HomeSiteCode
	}

	cfg.ApplyDefaults()

	// offline commands run one pass and exit
	cfg.Probe.Enabled = false
	cfg.Webhooks = nil

	if cfg.DBPath == "" {
		return nil, errNoDBPath
	}

	if cfg.HomeSiteCode <= 0 {
		return nil, errNoHomeSite
	}

	return cfg, nil
}

// openOffline builds a server around the configured store without serving.
func (o *RootOptions) openOffline(ctx context.Context) (*core.Server, func(), error) {
	cfg, err := o.offlineConfig()
	if err != nil {
		return nil, nil, err
	}

	srv, err := core.NewServer(cfg, nil)
	if err != nil {
		return nil, nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	if err := srv.Connect(connectCtx); err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", cfg.DBPath, err)
	}

	closeFn := func() {
		stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()

		_ = srv.Stop(stopCtx)
	}

	return srv, closeFn, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
