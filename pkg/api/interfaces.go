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

package api

import (
	"context"
	"time"

	"github.com/carverauto/siteradar/pkg/condense"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/carverauto/siteradar/pkg/reconcile"
)

//go:generate mockgen -destination=mock_api.go -package=api github.com/carverauto/siteradar/pkg/api Ingester,Viewer

// Ingester accepts raw snapshot documents.
type Ingester interface {
	SubmitJSON(ctx context.Context, source string, data []byte) (*reconcile.Outcome, error)
}

// Viewer serves the read side of the API.
type Viewer interface {
	Condensed(ctx context.Context) (*condense.View, error)
	Raw(ctx context.Context) (*condense.RawView, error)
	EventsBefore(ctx context.Context, since time.Time) ([]models.Event, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}
