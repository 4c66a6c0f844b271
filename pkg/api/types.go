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
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxBodyBytes   = 1 << 20
	DefaultReadTimeout    = 15 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxConnections = 256
)

// Config controls the HTTP surface.
type Config struct {
	APIToken       string
	AllowedOrigins []string
	StaticDir      string
	MaxBodyBytes   int64
	MaxConnections int
	UpdateRate     float64 // requests per second on the update endpoint, 0 disables
	UpdateBurst    int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type HealthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type APIServer struct {
	cfg     Config
	router  *mux.Router
	ingest  Ingester
	views   Viewer
	health  Pinger
	ws      http.Handler
	metrics http.Handler
	log     *logrus.Entry

	mu     sync.Mutex
	srv    *http.Server
	closed bool
}
