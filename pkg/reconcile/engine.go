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

// Package reconcile pkg/reconcile/engine.go applies probe snapshots to the
// state store, one pass at a time.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/siteradar/pkg/alerts"
	"github.com/carverauto/siteradar/pkg/db"
	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/metrics"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/notify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	HomeSiteCode int
	Timeout      time.Duration
}

// Outcome summarises one reconciliation pass.
type Outcome struct {
	PassID        string `json:"passId"`
	HomeSiteDown  bool   `json:"homeSiteDown"`
	MetaCreated   bool   `json:"metaCreated"`
	Created       int    `json:"created"`
	Resolved      int    `json:"resolved"`
	Unchanged     int    `json:"unchanged"`
	Preserved     int    `json:"preserved"`
	Events        int    `json:"events"`
	WriteFailures int    `json:"writeFailures"`

	opened []models.Issue
}

// Engine reconciles snapshots against the store. Passes are serialised;
// readers of the store are not coordinated with it.
type Engine struct {
	cfg      Config
	store    db.Service
	notifier notify.Notifier
	alerters []alerts.AlertService
	metrics  metrics.Recorder
	log      *logrus.Entry
	now      func() time.Time

	mu sync.Mutex
}

type Option func(*Engine)

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

func WithAlerters(a ...alerts.AlertService) Option {
	return func(e *Engine) {
		e.alerters = append(e.alerters, a...)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = r
	}
}

func New(store db.Service, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.HomeSiteCode <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHomeSite, cfg.HomeSiteCode)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	e := &Engine{
		cfg:      cfg,
		store:    store,
		notifier: notify.Nop{},
		metrics:  metrics.Nop{},
		log:      logger.For("reconcile"),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Reconcile runs one pass for snap. A store read failure aborts the pass
// with ErrStoreRead; write failures are logged and counted in the outcome.
func (e *Engine) Reconcile(ctx context.Context, snap *models.Snapshot) (*Outcome, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := e.now()
	passID := uuid.NewString()
	log := e.log.WithField("pass_id", passID)

	current, open, err := e.load(ctx)
	if err != nil {
		e.metrics.PassCompleted(metrics.ResultReadError, e.now().Sub(start))
		log.WithError(err).Error("reconciliation aborted")

		return nil, err
	}

	plan := Diff(e.cfg.HomeSiteCode, snap, current, open)
	e.logFlags(log, plan)

	outcome := e.Apply(ctx, log, plan)
	outcome.PassID = passID

	e.sendAlerts(ctx, log, current, plan, outcome)
	e.notifier.Notify(ctx, true)

	result := metrics.ResultOK
	if outcome.WriteFailures > 0 {
		result = metrics.ResultPartial
	}

	openAfter := len(open) - outcome.Resolved + outcome.Created
	e.metrics.ObserveStatus(&plan.Meta, openAfter)
	e.metrics.PassCompleted(result, e.now().Sub(start))

	log.WithFields(logrus.Fields{
		"home_site_down": outcome.HomeSiteDown,
		"meta_created":   outcome.MetaCreated,
		"created":        outcome.Created,
		"resolved":       outcome.Resolved,
		"unchanged":      outcome.Unchanged,
		"preserved":      outcome.Preserved,
		"events":         outcome.Events,
		"write_failures": outcome.WriteFailures,
		"elapsed":        e.now().Sub(start),
	}).Info("reconciliation complete")

	return outcome, nil
}

func (e *Engine) load(ctx context.Context) (*models.Meta, []models.Issue, error) {
	current, err := e.store.GetMeta(ctx)
	if errors.Is(err, db.ErrNotFound) {
		current, err = nil, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("%w: meta: %w", ErrStoreRead, err)
	}

	open, err := e.store.ListIssues(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: issues: %w", ErrStoreRead, err)
	}

	return current, open, nil
}

func (*Engine) logFlags(log *logrus.Entry, plan *Plan) {
	for _, change := range plan.CategoryChanges {
		log.WithFields(logrus.Fields{
			"issue":     change.Issue.Key().String(),
			"persisted": change.Issue.Category,
			"reported":  change.Reported,
		}).Warn("category change on open issue not applied")
	}

	for _, dup := range plan.Duplicates {
		log.WithFields(logrus.Fields{
			"issue":    dup.Key().String(),
			"category": dup.Category,
		}).Warn("duplicate issue in snapshot ignored")
	}
}

// Apply executes plan against the store. Writes are sequential and
// independent. An event is written only when the issue mutation it records
// succeeded, so a failed mutation is retried with its event on the next pass.
func (e *Engine) Apply(ctx context.Context, log *logrus.Entry, plan *Plan) *Outcome {
	outcome := &Outcome{
		HomeSiteDown: plan.HomeSiteDown(),
		Unchanged:    len(plan.Unchanged),
		Preserved:    len(plan.Preserved),
	}

	e.applyMeta(ctx, log, plan, outcome)

	resolved := make([]models.Issue, 0, len(plan.Resolve))

	for i := range plan.Resolve {
		issue := plan.Resolve[i]

		if err := e.store.DeleteIssue(ctx, issue.ID); err != nil {
			e.writeFailed(log, outcome, metrics.KindIssue, err, issue.Key())
			continue
		}

		resolved = append(resolved, issue)
	}

	created := make([]models.Issue, 0, len(plan.Create))

	for i := range plan.Create {
		issue := plan.Create[i]

		if err := e.store.CreateIssue(ctx, &issue); err != nil {
			e.writeFailed(log, outcome, metrics.KindIssue, err, issue.Key())
			continue
		}

		created = append(created, issue)
	}

	outcome.Resolved = len(resolved)
	outcome.Created = len(created)
	outcome.opened = created

	for _, event := range buildEvents(created, resolved, plan.Meta.LastUpdated) {
		if err := e.store.CreateEvent(ctx, &event); err != nil {
			e.writeFailed(log, outcome, metrics.KindEvent, err, models.IssueKey{
				SiteCode: event.SiteCode,
				Service:  event.Service,
			})

			continue
		}

		outcome.Events++
	}

	e.metrics.IssuesCreated(outcome.Created)
	e.metrics.IssuesResolved(outcome.Resolved)
	e.metrics.EventsWritten(outcome.Events)

	return outcome
}

func (e *Engine) applyMeta(ctx context.Context, log *logrus.Entry, plan *Plan, outcome *Outcome) {
	meta := plan.Meta

	if plan.CreateMeta {
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = e.now().UTC()
		}

		if err := e.store.CreateMeta(ctx, &meta); err != nil {
			e.writeFailed(log, outcome, metrics.KindMeta, err, models.IssueKey{})
			return
		}

		outcome.MetaCreated = true

		return
	}

	if err := e.store.UpdateMeta(ctx, &meta); err != nil {
		e.writeFailed(log, outcome, metrics.KindMeta, err, models.IssueKey{})
	}
}

func (e *Engine) writeFailed(log *logrus.Entry, outcome *Outcome, kind string, err error, key models.IssueKey) {
	outcome.WriteFailures++
	e.metrics.WriteFailed(kind)

	entry := log.WithError(err).WithField("kind", kind)
	if key != (models.IssueKey{}) {
		entry = entry.WithField("issue", key.String())
	}

	entry.Error("store write failed")
}
