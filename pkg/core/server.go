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

// Package core pkg/core/server.go wires the store, reconciliation engine,
// views and transports into one service.
package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/carverauto/siteradar/pkg/alerts"
	"github.com/carverauto/siteradar/pkg/api"
	"github.com/carverauto/siteradar/pkg/condense"
	"github.com/carverauto/siteradar/pkg/config"
	"github.com/carverauto/siteradar/pkg/db"
	"github.com/carverauto/siteradar/pkg/grpc"
	"github.com/carverauto/siteradar/pkg/ingest"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/metrics"
	"github.com/carverauto/siteradar/pkg/notify"
	"github.com/carverauto/siteradar/pkg/probe"
	"github.com/carverauto/siteradar/pkg/reconcile"
)

// NewServer builds the service from cfg. The store is not opened until
// Connect or Start.
func NewServer(cfg *config.CoreConfig, open db.Opener) (*Server, error) {
	prom := metrics.NewPrometheus()

	store := db.NewManager(db.ManagerConfig{
		Path:             cfg.DBPath,
		HealthInterval:   time.Duration(cfg.Store.HealthInterval),
		ReconnectInitial: time.Duration(cfg.Store.ReconnectInitial),
		ReconnectMax:     time.Duration(cfg.Store.ReconnectMax),
	}, open)
	store.OnStateChange = prom.SetStoreConnected

	hub := notify.NewHub(cfg.AllowedOrigins)
	hub.OnClientsChange = prom.SetNotifierClients

	engine, err := reconcile.New(store, reconcile.Config{
		HomeSiteCode: cfg.HomeSiteCode,
		Timeout:      time.Duration(cfg.ReconcileTimeout),
	},
		reconcile.WithNotifier(hub),
		reconcile.WithAlerters(alerts.FromConfigs(cfg.Webhooks)...),
		reconcile.WithMetrics(prom),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciliation engine: %w", err)
	}

	s := &Server{
		config:  cfg,
		store:   store,
		engine:  engine,
		views:   condense.New(store, cfg.HomeSiteCode, cfg.EventLimit),
		ingest:  ingest.New(engine),
		hub:     hub,
		metrics: prom,
		log:     logger.For("core"),
	}

	options := []func(*api.APIServer){
		api.WithIngester(s.ingest),
		api.WithViewer(s.views),
		api.WithHealth(store),
		api.WithWebsocket(hub),
	}

	if cfg.Metrics {
		options = append(options, api.WithMetricsHandler(prom.Handler()))
	}

	s.apiServer = api.NewAPIServer(api.Config{
		APIToken:       cfg.APIToken,
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		MaxConnections: cfg.HTTP.MaxConnections,
		UpdateRate:     cfg.HTTP.UpdateRate,
		UpdateBurst:    cfg.HTTP.UpdateBurst,
		ReadTimeout:    time.Duration(cfg.HTTP.ReadTimeout),
		WriteTimeout:   time.Duration(cfg.HTTP.WriteTimeout),
	}, options...)

	if cfg.Probe.Enabled {
		s.probe, err = probe.New(probe.Config{
			Command:      cfg.Probe.Command,
			Args:         cfg.Probe.Args,
			Dir:          cfg.Probe.Dir,
			Env:          cfg.Probe.Env,
			Interval:     time.Duration(cfg.Probe.Interval),
			MaxRuntime:   time.Duration(cfg.Probe.MaxRuntime),
			IngestStdout: cfg.Probe.IngestStdout,
			RunOnStart:   cfg.Probe.RunOnStart,
		}, s.ingest)
		if err != nil {
			return nil, fmt.Errorf("failed to create probe supervisor: %w", err)
		}
	}

	return s, nil
}

// Connect opens the store, retrying with backoff until ctx ends.
func (s *Server) Connect(ctx context.Context) error {
	return s.store.Connect(ctx)
}

// Ingest is the shared decode, validate and reconcile path.
func (s *Server) Ingest() *ingest.Service {
	return s.ingest
}

// Views serves the condensed and raw views and event pages.
func (s *Server) Views() *condense.Service {
	return s.views
}

// Start connects the store in the background, schedules the probe and
// serves HTTP on the configured address until Stop.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}

	return s.Serve(ctx, lis)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.log.WithField("home_site_code", s.config.HomeSiteCode).Info("starting siteradar")

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.runStore(ctx)
	}()

	if s.probe != nil {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			if err := s.probe.Start(ctx); err != nil {
				s.log.WithError(err).Error("probe supervisor stopped")
			}
		}()
	}

	return s.apiServer.Serve(lis)
}

func (s *Server) runStore(ctx context.Context) {
	if err := s.store.Connect(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Error("store connection abandoned")
		}

		return
	}

	s.store.Run(ctx)
}

// Stop drains HTTP, stops the probe, disconnects websocket clients and
// closes the store.
func (s *Server) Stop(ctx context.Context) error {
	var err error

	s.stopOnce.Do(func() {
		if shutdownErr := s.apiServer.Shutdown(ctx); shutdownErr != nil {
			err = errors.Join(err, fmt.Errorf("http shutdown: %w", shutdownErr))
		}

		if s.probe != nil {
			_ = s.probe.Stop(ctx)
		}

		s.hub.Close()

		done := make(chan struct{})

		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.log.Warn("background tasks still running at shutdown deadline")
		}

		if closeErr := s.store.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("store close: %w", closeErr))
		}
	})

	return err
}

// RegisterGRPC exposes the snapshot service on server.
func (s *Server) RegisterGRPC(server *grpc.Server) error {
	server.RegisterService(&ingest.SnapshotServiceDesc, ingest.NewGRPCServer(s.ingest))

	return nil
}
