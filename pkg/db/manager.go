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

// Package db pkg/db/manager.go owns the store connection lifecycle.
package db

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

const (
	defaultHealthInterval   = 30 * time.Second
	defaultReconnectInitial = time.Second
	defaultReconnectMax     = 15 * time.Second
	pingTimeout             = 5 * time.Second
)

// Opener opens a store at path.
type Opener func(ctx context.Context, path string) (Service, error)

// OpenSQLite is the default Opener.
func OpenSQLite(ctx context.Context, path string) (Service, error) {
	return New(ctx, path)
}

type ManagerConfig struct {
	Path             string
	HealthInterval   time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// Manager implements Service on top of a connection that it health-checks
// and reopens with exponential backoff. While disconnected every operation
// fails with ErrNotConnected.
type Manager struct {
	cfg  ManagerConfig
	open Opener
	log  *logrus.Entry

	mu  sync.RWMutex
	svc Service

	// OnStateChange, if set, is called whenever the connection is gained or lost.
	OnStateChange func(connected bool)
}

var _ Service = (*Manager)(nil)

func NewManager(cfg ManagerConfig, open Opener) *Manager {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthInterval
	}

	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = defaultReconnectInitial
	}

	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = defaultReconnectMax
		if cfg.ReconnectMax < cfg.ReconnectInitial {
			cfg.ReconnectMax = cfg.ReconnectInitial
		}
	}

	if open == nil {
		open = OpenSQLite
	}

	return &Manager{
		cfg:  cfg,
		open: open,
		log:  logger.For("db").WithField("path", cfg.Path),
	}
}

// Connect opens the store, retrying with backoff until it succeeds or ctx ends.
func (m *Manager) Connect(ctx context.Context) error {
	return m.reconnect(ctx)
}

// Connected reports whether a healthy connection is held.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.svc != nil
}

// Run health-checks the connection every HealthInterval and reconnects when
// it is lost. It returns when ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Manager) check(ctx context.Context) {
	svc, err := m.current()
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = svc.Ping(pingCtx)

		cancel()

		if err == nil {
			return
		}

		m.log.WithError(err).Warn("store health check failed, reconnecting")
		m.drop(svc)
	}

	if err := m.reconnect(ctx); err != nil && ctx.Err() == nil {
		m.log.WithError(err).Error("store reconnect aborted")
	}
}

// retryPolicy doubles the delay from ReconnectInitial up to ReconnectMax
// without jitter.
func (m *Manager) retryPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.cfg.ReconnectInitial
	policy.MaxInterval = m.cfg.ReconnectMax
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.Reset()

	return policy
}

func (m *Manager) reconnect(ctx context.Context) error {
	attempt := 0

	connect := func() (struct{}, error) {
		attempt++

		svc, err := m.open(ctx, m.cfg.Path)
		if err != nil {
			return struct{}{}, err
		}

		m.set(svc)
		m.log.WithField("attempt", attempt).Info("store connected")

		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(m.retryPolicy()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"retry":   next,
			}).Warn("store connection failed")
		}),
	)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

func (m *Manager) set(svc Service) {
	m.mu.Lock()
	m.svc = svc
	m.mu.Unlock()

	if m.OnStateChange != nil {
		m.OnStateChange(true)
	}
}

// drop forgets svc if it is still the current connection.
func (m *Manager) drop(svc Service) {
	m.mu.Lock()
	if m.svc != svc {
		m.mu.Unlock()
		return
	}

	m.svc = nil
	m.mu.Unlock()

	if err := svc.Close(); err != nil {
		m.log.WithError(err).Debug("closing stale store connection")
	}

	if m.OnStateChange != nil {
		m.OnStateChange(false)
	}
}

func (m *Manager) current() (Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.svc == nil {
		return nil, ErrNotConnected
	}

	return m.svc, nil
}

func (m *Manager) Ping(ctx context.Context) error {
	svc, err := m.current()
	if err != nil {
		return err
	}

	return svc.Ping(ctx)
}

// Close closes the held connection. The manager can be reconnected afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	svc := m.svc
	m.svc = nil
	m.mu.Unlock()

	if svc == nil {
		return nil
	}

	return svc.Close()
}

func (m *Manager) GetMeta(ctx context.Context) (*models.Meta, error) {
	svc, err := m.current()
	if err != nil {
		return nil, err
	}

	return svc.GetMeta(ctx)
}

func (m *Manager) CreateMeta(ctx context.Context, meta *models.Meta) error {
	svc, err := m.current()
	if err != nil {
		return err
	}

	return svc.CreateMeta(ctx, meta)
}

func (m *Manager) UpdateMeta(ctx context.Context, meta *models.Meta) error {
	svc, err := m.current()
	if err != nil {
		return err
	}

	return svc.UpdateMeta(ctx, meta)
}

func (m *Manager) ListIssues(ctx context.Context) ([]models.Issue, error) {
	svc, err := m.current()
	if err != nil {
		return nil, err
	}

	return svc.ListIssues(ctx)
}

func (m *Manager) CreateIssue(ctx context.Context, issue *models.Issue) error {
	svc, err := m.current()
	if err != nil {
		return err
	}

	return svc.CreateIssue(ctx, issue)
}

func (m *Manager) DeleteIssue(ctx context.Context, id int64) error {
	svc, err := m.current()
	if err != nil {
		return err
	}

	return svc.DeleteIssue(ctx, id)
}

func (m *Manager) CreateEvent(ctx context.Context, event *models.Event) error {
	svc, err := m.current()
	if err != nil {
		return err
	}

	return svc.CreateEvent(ctx, event)
}

func (m *Manager) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	svc, err := m.current()
	if err != nil {
		return nil, err
	}

	return svc.ListEvents(ctx, limit)
}

func (m *Manager) ListEventsBefore(ctx context.Context, before time.Time, limit int) ([]models.Event, error) {
	svc, err := m.current()
	if err != nil {
		return nil, err
	}

	return svc.ListEventsBefore(ctx, before, limit)
}
