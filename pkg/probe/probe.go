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

// Package probe pkg/probe/probe.go supervises the external command that
// produces site-health snapshots.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/reconcile"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval   = 2 * time.Minute
	DefaultMaxRuntime = 10 * time.Minute

	killGrace     = 5 * time.Second
	stderrLogTail = 2048
)

var (
	ErrNoCommand    = errors.New("probe command not configured")
	ErrInFlight     = errors.New("previous probe run still in progress")
	ErrRuntimeLimit = errors.New("probe exceeded its maximum runtime")
)

//go:generate mockgen -destination=mock_probe.go -package=probe github.com/carverauto/siteradar/pkg/probe Submitter

// Submitter takes the snapshot a probe printed on stdout.
type Submitter interface {
	SubmitJSON(ctx context.Context, source string, data []byte) (*reconcile.Outcome, error)
}

type Config struct {
	Command      string
	Args         []string
	Dir          string
	Env          []string
	Interval     time.Duration
	MaxRuntime   time.Duration
	IngestStdout bool
	RunOnStart   bool
}

// Result describes one finished probe run.
type Result struct {
	Started   time.Time
	Duration  time.Duration
	Err       error
	Submitted bool
	Outcome   *reconcile.Outcome
}

// Supervisor runs the probe on a cadence. At most one run is in flight;
// ticks that land while a run is active are skipped.
type Supervisor struct {
	cfg       Config
	submitter Submitter
	log       *logrus.Entry
	monitor   *Monitor

	mu      sync.Mutex
	running bool
	started time.Time
	last    *Result
	wg      sync.WaitGroup

	// OnResult, if set, is called after every completed run.
	OnResult func(Result)
}

func New(cfg Config, submitter Submitter) (*Supervisor, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, ErrNoCommand
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	if cfg.MaxRuntime <= 0 {
		cfg.MaxRuntime = DefaultMaxRuntime
	}

	log := logger.For("probe").WithField("command", cfg.Command)

	return &Supervisor{
		cfg:       cfg,
		submitter: submitter,
		log:       log,
		monitor: NewMonitor(MonitorConfig{
			Interval:     cfg.Interval,
			CheckOnStart: cfg.RunOnStart,
		}, log),
	}, nil
}

// Start schedules runs until ctx ends or Stop is called. It returns once
// the in-flight run, if any, has been reaped.
func (s *Supervisor) Start(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"interval":    s.cfg.Interval,
		"max_runtime": s.cfg.MaxRuntime,
	}).Info("scheduling probe")

	s.monitor.StartMonitoring(ctx, s.Trigger)
	s.wg.Wait()

	return nil
}

func (s *Supervisor) Stop(ctx context.Context) error {
	s.monitor.Stop(ctx)

	return nil
}

// Running reports whether a run is in flight and for how long.
func (s *Supervisor) Running() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false, 0
	}

	return true, time.Since(s.started)
}

// LastResult returns the most recent completed run.
func (s *Supervisor) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return nil
	}

	r := *s.last

	return &r
}

// Trigger starts a run in the background. A tick that lands while a run is
// in flight is logged with the elapsed runtime and skipped.
func (s *Supervisor) Trigger(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		elapsed := time.Since(s.started)
		s.mu.Unlock()

		s.log.WithField("elapsed", elapsed.Round(time.Second)).Info("last probe run still in progress, skipping")

		return nil
	}

	s.running = true
	s.started = time.Now()
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		result := s.run(ctx)

		s.mu.Lock()
		s.running = false
		s.last = &result
		s.mu.Unlock()

		if s.OnResult != nil {
			s.OnResult(result)
		}
	}()

	return nil
}

// RunOnce runs the probe synchronously.
func (s *Supervisor) RunOnce(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result{}, ErrInFlight
	}

	s.running = true
	s.started = time.Now()
	s.mu.Unlock()

	result := s.run(ctx)

	s.mu.Lock()
	s.running = false
	s.last = &result
	s.mu.Unlock()

	return result, result.Err
}

func (s *Supervisor) run(parent context.Context) Result {
	result := Result{Started: time.Now()}

	ctx, cancel := context.WithTimeout(parent, s.cfg.MaxRuntime)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, s.cfg.Command, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGrace

	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}

	s.log.Info("executing probe")

	err := cmd.Run()
	result.Duration = time.Since(result.Started)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Err = fmt.Errorf("%w: killed after %s", ErrRuntimeLimit, s.cfg.MaxRuntime)
		s.log.WithField("runtime", result.Duration.Round(time.Second)).Warn("probe exceeded maximum runtime, terminated")

		return result
	case err != nil:
		result.Err = fmt.Errorf("probe failed: %w", err)
		s.log.WithError(err).WithField("stderr", tail(stderr.String(), stderrLogTail)).Error("probe completed with errors")

		return result
	}

	s.log.WithField("runtime", result.Duration.Round(time.Millisecond)).Info("probe completed")

	if !s.cfg.IngestStdout || s.submitter == nil {
		return result
	}

	outcome, err := s.submitter.SubmitJSON(parent, "probe", stdout.Bytes())
	if err != nil {
		result.Err = fmt.Errorf("probe output rejected: %w", err)
		s.log.WithError(err).Error("failed to ingest probe output")

		return result
	}

	result.Submitted = true
	result.Outcome = outcome

	return result
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}
