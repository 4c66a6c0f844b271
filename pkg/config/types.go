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

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/siteradar/pkg/alerts"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
)

const (
	EnvHomeSiteCode = "HOME_SITE_CODE"
	EnvAPIToken     = "API_TOKEN"
	EnvDBPath       = "DB_PATH"

	DefaultListenAddr       = ":3000"
	DefaultEventLimit       = 50
	DefaultReconcileTimeout = 30 * time.Second
	DefaultHealthInterval   = 30 * time.Second
	DefaultReconnectInitial = time.Second
	DefaultReconnectMax     = 15 * time.Second
	DefaultProbeInterval    = 2 * time.Minute
	DefaultProbeMaxRuntime  = 10 * time.Minute
	DefaultMaxBodyBytes     = 1 << 20
	DefaultMaxConnections   = 256
	DefaultReadTimeout      = 15 * time.Second
	DefaultWriteTimeout     = 60 * time.Second

	bearerPrefix = "Bearer "
)

// StoreConfig controls the state store connection.
type StoreConfig struct {
	HealthInterval   models.Duration `json:"health_interval,omitempty" yaml:"health_interval,omitempty"`
	ReconnectInitial models.Duration `json:"reconnect_initial,omitempty" yaml:"reconnect_initial,omitempty"`
	ReconnectMax     models.Duration `json:"reconnect_max,omitempty" yaml:"reconnect_max,omitempty"`
}

// ProbeConfig configures the supervised probe command.
type ProbeConfig struct {
	Enabled      bool            `json:"enabled" yaml:"enabled"`
	Command      string          `json:"command" yaml:"command"`
	Args         []string        `json:"args,omitempty" yaml:"args,omitempty"`
	Dir          string          `json:"dir,omitempty" yaml:"dir,omitempty"`
	Env          []string        `json:"env,omitempty" yaml:"env,omitempty"`
	Interval     models.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	MaxRuntime   models.Duration `json:"max_runtime,omitempty" yaml:"max_runtime,omitempty"`
	IngestStdout bool            `json:"ingest_stdout" yaml:"ingest_stdout"`
	RunOnStart   bool            `json:"run_on_start" yaml:"run_on_start"`
}

// HTTPConfig holds the HTTP server limits.
type HTTPConfig struct {
	MaxBodyBytes   int64           `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`
	MaxConnections int             `json:"max_connections,omitempty" yaml:"max_connections,omitempty"`
	UpdateRate     float64         `json:"update_rate,omitempty" yaml:"update_rate,omitempty"` // requests/s, 0 disables
	UpdateBurst    int             `json:"update_burst,omitempty" yaml:"update_burst,omitempty"`
	ReadTimeout    models.Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	WriteTimeout   models.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
}

// CoreConfig represents the configuration for the siteradar server.
type CoreConfig struct {
	ListenAddr       string                 `json:"listen_addr" yaml:"listen_addr"`
	GrpcAddr         string                 `json:"grpc_addr,omitempty" yaml:"grpc_addr,omitempty"`
	DBPath           string                 `json:"db_path" yaml:"db_path"`
	APIToken         string                 `json:"api_token" yaml:"api_token"`
	HomeSiteCode     int                    `json:"home_site_code" yaml:"home_site_code"`
	EventLimit       int                    `json:"event_limit,omitempty" yaml:"event_limit,omitempty"`
	ReconcileTimeout models.Duration        `json:"reconcile_timeout,omitempty" yaml:"reconcile_timeout,omitempty"`
	AllowedOrigins   []string               `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	StaticDir        string                 `json:"static_dir,omitempty" yaml:"static_dir,omitempty"`
	Metrics          bool                   `json:"metrics" yaml:"metrics"`
	HTTP             HTTPConfig             `json:"http" yaml:"http"`
	Store            StoreConfig            `json:"store" yaml:"store"`
	Logging          logger.Config          `json:"logging" yaml:"logging"`
	Webhooks         []alerts.WebhookConfig `json:"webhooks,omitempty" yaml:"webhooks,omitempty"`
	Probe            ProbeConfig            `json:"probe" yaml:"probe"`
	Security         *models.SecurityConfig `json:"security,omitempty" yaml:"security,omitempty"`
}

var (
	_ Validator    = (*CoreConfig)(nil)
	_ EnvOverrider = (*CoreConfig)(nil)
	_ Defaulter    = (*CoreConfig)(nil)
)

// ApplyEnv overrides file values with HOME_SITE_CODE, API_TOKEN and DB_PATH.
func (c *CoreConfig) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup(EnvHomeSiteCode); ok && v != "" {
		code, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", errInvalidEnv, EnvHomeSiteCode, v)
		}

		c.HomeSiteCode = code
	}

	if v, ok := lookup(EnvAPIToken); ok && v != "" {
		c.APIToken = v
	}

	if v, ok := lookup(EnvDBPath); ok && v != "" {
		c.DBPath = v
	}

	return nil
}

func (c *CoreConfig) ApplyDefaults() {
	c.APIToken = NormalizeToken(c.APIToken)

	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.EventLimit == 0 {
		c.EventLimit = DefaultEventLimit
	}

	setDuration(&c.ReconcileTimeout, DefaultReconcileTimeout)
	setDuration(&c.Store.HealthInterval, DefaultHealthInterval)
	setDuration(&c.Store.ReconnectInitial, DefaultReconnectInitial)
	setDuration(&c.Store.ReconnectMax, DefaultReconnectMax)
	setDuration(&c.Probe.Interval, DefaultProbeInterval)
	setDuration(&c.Probe.MaxRuntime, DefaultProbeMaxRuntime)
	setDuration(&c.HTTP.ReadTimeout, DefaultReadTimeout)
	setDuration(&c.HTTP.WriteTimeout, DefaultWriteTimeout)

	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if c.HTTP.MaxConnections <= 0 {
		c.HTTP.MaxConnections = DefaultMaxConnections
	}
}

func setDuration(d *models.Duration, def time.Duration) {
	if *d <= 0 {
		*d = models.Duration(def)
	}
}

// Validate checks the settings the server cannot start without.
func (c *CoreConfig) Validate() error {
	if c.ListenAddr == "" {
		return errMissingListenAddr
	}

	if c.DBPath == "" {
		return errMissingDBPath
	}

	if c.APIToken == "" {
		return errMissingAPIToken
	}

	if c.HomeSiteCode <= 0 {
		return fmt.Errorf("%w: got %d", errInvalidHomeSite, c.HomeSiteCode)
	}

	if c.EventLimit < 0 {
		return fmt.Errorf("%w: got %d", errInvalidEventLimit, c.EventLimit)
	}

	if c.Probe.Enabled && strings.TrimSpace(c.Probe.Command) == "" {
		return errProbeCommand
	}

	if c.Security != nil && c.GrpcAddr != "" {
		if err := validateSecurity(c.Security); err != nil {
			return err
		}
	}

	return nil
}

func validateSecurity(sec *models.SecurityConfig) error {
	switch sec.Mode {
	case "", "none":
		return nil
	case "mtls":
		if sec.CertDir == "" {
			return fmt.Errorf("%w: mtls requires cert_dir", errInvalidSecurity)
		}
	case "spiffe":
		if sec.TrustDomain == "" {
			return fmt.Errorf("%w: spiffe requires trust_domain", errInvalidSecurity)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", errInvalidSecurity, sec.Mode)
	}

	return nil
}

// NormalizeToken strips an optional "Bearer " prefix.
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)

	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(token[len(bearerPrefix):])
	}

	return token
}
