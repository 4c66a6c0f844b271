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

// Package metrics pkg/metrics/prometheus.go exports siteradar metrics on a
// private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "siteradar"

// Prometheus is a Recorder backed by client_golang collectors.
type Prometheus struct {
	registry *prometheus.Registry

	passes         *prometheus.CounterVec
	passDuration   prometheus.Histogram
	issuesCreated  prometheus.Counter
	issuesResolved prometheus.Counter
	eventsWritten  prometheus.Counter
	writeFailures  *prometheus.CounterVec

	sitesUp        prometheus.Gauge
	siteCount      prometheus.Gauge
	homeSiteDown   prometheus.Gauge
	openIssues     prometheus.Gauge
	lastUpdated    prometheus.Gauge
	clients        prometheus.Gauge
	storeConnected prometheus.Gauge
}

var _ Recorder = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Reconciliation passes by result",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent in a reconciliation pass",
			Buckets:   prometheus.DefBuckets,
		}),
		issuesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_created_total",
			Help:      "Issues opened by reconciliation",
		}),
		issuesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_resolved_total",
			Help:      "Issues resolved by reconciliation",
		}),
		eventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_written_total",
			Help:      "Events appended to the history",
		}),
		writeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Store writes abandoned during reconciliation",
		}, []string{"kind"}),
		sitesUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sites_up",
			Help:      "Sites reported up by the last snapshot",
		}),
		siteCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sites",
			Help:      "Sites known to the probe",
		}),
		homeSiteDown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "home_site_down",
			Help:      "1 when the home site is critical",
		}),
		openIssues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_issues",
			Help:      "Issues open after the last pass",
		}),
		lastUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_updated_timestamp_seconds",
			Help:      "lastupdated of the last snapshot",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifier_clients",
			Help:      "Connected change notifier clients",
		}),
		storeConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_connected",
			Help:      "1 while the state store connection is healthy",
		}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.passes,
		p.passDuration,
		p.issuesCreated,
		p.issuesResolved,
		p.eventsWritten,
		p.writeFailures,
		p.sitesUp,
		p.siteCount,
		p.homeSiteDown,
		p.openIssues,
		p.lastUpdated,
		p.clients,
		p.storeConnected,
	)

	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) PassCompleted(result string, elapsed time.Duration) {
	p.passes.WithLabelValues(result).Inc()
	p.passDuration.Observe(elapsed.Seconds())
}

func (p *Prometheus) IssuesCreated(n int) {
	p.issuesCreated.Add(float64(n))
}

func (p *Prometheus) IssuesResolved(n int) {
	p.issuesResolved.Add(float64(n))
}

func (p *Prometheus) EventsWritten(n int) {
	p.eventsWritten.Add(float64(n))
}

func (p *Prometheus) WriteFailed(kind string) {
	p.writeFailures.WithLabelValues(kind).Inc()
}

func (p *Prometheus) ObserveStatus(meta *models.Meta, openIssues int) {
	if meta != nil {
		p.sitesUp.Set(float64(meta.SitesUp))
		p.siteCount.Set(float64(meta.SiteCount))
		p.homeSiteDown.Set(boolToFloat(meta.HomeSiteDown))
		p.lastUpdated.Set(float64(meta.LastUpdated.UnixMilli()) / 1000)
	}

	p.openIssues.Set(float64(openIssues))
}

func (p *Prometheus) SetNotifierClients(n int) {
	p.clients.Set(float64(n))
}

func (p *Prometheus) SetStoreConnected(connected bool) {
	p.storeConnected.Set(boolToFloat(connected))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
