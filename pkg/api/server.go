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

// Package api pkg/api/server.go serves the dashboard API.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/carverauto/siteradar/pkg/condense"
	httpx "github.com/carverauto/siteradar/pkg/http"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/reconcile"
	"github.com/carverauto/siteradar/pkg/snapshot"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

const healthTimeout = 3 * time.Second

func NewAPIServer(cfg Config, options ...func(server *APIServer)) *APIServer {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	s := &APIServer{
		cfg:    cfg,
		router: mux.NewRouter(),
		log:    logger.For("api"),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

func WithIngester(i Ingester) func(server *APIServer) {
	return func(server *APIServer) {
		server.ingest = i
	}
}

func WithViewer(v Viewer) func(server *APIServer) {
	return func(server *APIServer) {
		server.views = v
	}
}

func WithHealth(p Pinger) func(server *APIServer) {
	return func(server *APIServer) {
		server.health = p
	}
}

// WithWebsocket mounts the change notifier at /ws.
func WithWebsocket(h http.Handler) func(server *APIServer) {
	return func(server *APIServer) {
		server.ws = h
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) func(server *APIServer) {
	return func(server *APIServer) {
		server.metrics = h
	}
}

func (s *APIServer) setupRoutes() {
	s.router.Use(httpx.LoggingMiddleware)
	s.router.Use(httpx.CommonMiddleware(s.cfg.AllowedOrigins))

	apiRouter := s.router.PathPrefix("/_api").Subrouter()

	var limiter *rate.Limiter
	if s.cfg.UpdateRate > 0 {
		burst := s.cfg.UpdateBurst
		if burst <= 0 {
			burst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(s.cfg.UpdateRate), burst)
	}

	update := httpx.RateLimit(limiter)(
		httpx.BearerAuth(s.cfg.APIToken)(
			httpx.MaxBody(s.cfg.MaxBodyBytes)(
				http.HandlerFunc(s.updateData))))

	apiRouter.Handle("/data/update", update).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/data/all", s.getAllData).Methods(http.MethodGet)
	apiRouter.HandleFunc("/data/min", s.getCondensedData).Methods(http.MethodGet)
	apiRouter.HandleFunc("/data/events/{since}", s.getEventsSince).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", s.getHealth).Methods(http.MethodGet)

	if s.ws != nil {
		s.router.Handle("/ws", s.ws)
	}

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	if s.cfg.StaticDir != "" {
		s.router.PathPrefix("/").Handler(newSPAHandler(s.cfg.StaticDir))
	}
}

// Router returns the fully wired handler.
func (s *APIServer) Router() http.Handler {
	return s.router
}

func (s *APIServer) updateData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteJSON(w, http.StatusRequestEntityTooLarge,
				httpx.ErrorBody{Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})

			return
		}

		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "failed to read request body"})

		return
	}

	outcome, err := s.ingest.SubmitJSON(r.Context(), "http:"+r.RemoteAddr, body)
	if err != nil {
		s.writeUpdateError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, outcome)
}

func (s *APIServer) writeUpdateError(w http.ResponseWriter, err error) {
	var invalid *snapshot.ValidationError

	switch {
	case errors.As(err, &invalid):
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, invalid)
	case errors.Is(err, snapshot.ErrMalformed):
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: err.Error()})
	case errors.Is(err, reconcile.ErrStoreRead):
		httpx.WriteJSON(w, http.StatusServiceUnavailable, httpx.ErrorBody{Error: "state store unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteJSON(w, http.StatusGatewayTimeout, httpx.ErrorBody{Error: "reconciliation timed out"})
	default:
		s.log.WithError(err).Error("update failed")
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Error: "internal server error"})
	}
}

func (s *APIServer) getAllData(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Raw(r.Context())
	if err != nil {
		s.writeReadError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, view)
}

func (s *APIServer) getCondensedData(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Condensed(r.Context())
	if errors.Is(err, condense.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err != nil {
		s.writeReadError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, view)
}

func (s *APIServer) getEventsSince(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["since"]

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest,
			httpx.ErrorBody{Error: fmt.Sprintf("since must be a millisecond timestamp, got %q", raw)})

		return
	}

	events, err := s.views.EventsBefore(r.Context(), time.UnixMilli(ms).UTC())
	if errors.Is(err, condense.ErrNoMoreEvents) {
		s.log.WithField("since", ms).Debug("no more events to send")
		w.WriteHeader(http.StatusNoContent)

		return
	}

	if err != nil {
		s.writeReadError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, events)
}

func (s *APIServer) writeReadError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("failed to read state")

	if errors.Is(err, condense.ErrStoreRead) {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, httpx.ErrorBody{Error: "state store unavailable"})
		return
	}

	httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Error: "internal server error"})
}

func (s *APIServer) getHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		httpx.WriteJSON(w, http.StatusOK, HealthStatus{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, HealthStatus{Status: "unavailable", Error: err.Error()})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, HealthStatus{Status: "ok"})
}

// Start listens on addr and serves until Shutdown.
func (s *APIServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.Serve(lis)
}

// Serve serves on lis, capped at MaxConnections concurrent connections.
func (s *APIServer) Serve(lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return lis.Close()
	}

	s.srv = srv
	s.mu.Unlock()

	s.log.WithField("addr", lis.Addr().String()).Info("HTTP server listening")

	err := srv.Serve(netutil.LimitListener(lis, s.cfg.MaxConnections))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.closed = true
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}
