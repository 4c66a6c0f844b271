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

// Package ingest pkg/ingest/ingest.go is the single path every snapshot
// takes from the wire to the reconciliation engine.
package ingest

import (
	"context"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/reconcile"
	"github.com/carverauto/siteradar/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=mock_ingest.go -package=ingest github.com/carverauto/siteradar/pkg/ingest Reconciler

// Reconciler applies a validated snapshot.
type Reconciler interface {
	Reconcile(ctx context.Context, snap *models.Snapshot) (*reconcile.Outcome, error)
}

type Service struct {
	engine Reconciler
	log    *logrus.Entry
}

func New(engine Reconciler) *Service {
	return &Service{
		engine: engine,
		log:    logger.For("ingest"),
	}
}

// SubmitJSON decodes, validates and reconciles a raw snapshot document.
func (s *Service) SubmitJSON(ctx context.Context, source string, data []byte) (*reconcile.Outcome, error) {
	snap, err := snapshot.Decode(data)
	if err != nil {
		s.rejected(source, err)
		return nil, err
	}

	return s.submit(ctx, source, snap)
}

// SubmitDocument validates and reconciles an already decoded document.
func (s *Service) SubmitDocument(ctx context.Context, source string, doc map[string]interface{}) (*reconcile.Outcome, error) {
	snap, err := snapshot.FromDocument(doc)
	if err != nil {
		s.rejected(source, err)
		return nil, err
	}

	return s.submit(ctx, source, snap)
}

func (s *Service) submit(ctx context.Context, source string, snap *models.Snapshot) (*reconcile.Outcome, error) {
	s.log.WithFields(logrus.Fields{
		"source":      source,
		"issues":      len(snap.Issues),
		"lastupdated": snap.Meta.LastUpdated,
	}).Debug("snapshot accepted")

	return s.engine.Reconcile(ctx, snap)
}

func (s *Service) rejected(source string, err error) {
	s.log.WithError(err).WithField("source", source).Warn("snapshot rejected")
}
