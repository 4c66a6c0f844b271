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

package core

import (
	"sync"

	"github.com/carverauto/siteradar/pkg/api"
	"github.com/carverauto/siteradar/pkg/condense"
	"github.com/carverauto/siteradar/pkg/config"
	"github.com/carverauto/siteradar/pkg/db"
	"github.com/carverauto/siteradar/pkg/ingest"
	"github.com/carverauto/siteradar/pkg/metrics"
	"github.com/carverauto/siteradar/pkg/notify"
	"github.com/carverauto/siteradar/pkg/probe"
	"github.com/carverauto/siteradar/pkg/reconcile"
	"github.com/sirupsen/logrus"
)

type Server struct {
	config    *config.CoreConfig
	store     *db.Manager
	engine    *reconcile.Engine
	views     *condense.Service
	ingest    *ingest.Service
	hub       *notify.Hub
	metrics   *metrics.Prometheus
	apiServer *api.APIServer
	probe     *probe.Supervisor
	log       *logrus.Entry

	wg       sync.WaitGroup
	stopOnce sync.Once
}
