/*
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

// Package probe pkg/probe/monitor.go
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MonitorConfig holds configuration for monitoring.
type MonitorConfig struct {
	Interval     time.Duration
	CheckOnStart bool
}

// Monitor calls a check function on a fixed cadence.
type Monitor struct {
	config   MonitorConfig
	log      *logrus.Entry
	done     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a new monitoring system.
func NewMonitor(cfg MonitorConfig, log *logrus.Entry) *Monitor {
	return &Monitor{
		config: cfg,
		log:    log,
		done:   make(chan struct{}),
	}
}

// StartMonitoring blocks, calling check every Interval until ctx ends or
// Stop is called.
func (m *Monitor) StartMonitoring(ctx context.Context, check func(context.Context) error) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	if m.config.CheckOnStart {
		if err := check(ctx); err != nil {
			m.log.WithError(err).Warn("initial check failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			if err := check(ctx); err != nil {
				m.log.WithError(err).Warn("check failed")
			}
		}
	}
}

// Stop stops the monitoring.
func (m *Monitor) Stop(_ context.Context) {
	m.stopOnce.Do(func() { close(m.done) })
}
