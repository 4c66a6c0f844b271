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

// Package alerts pkg/alerts/webhook.go posts site alerts to HTTP webhooks.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/carverauto/siteradar/pkg/logger"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrWebhookDisabled   = errors.New("webhook alerter is disabled")
	ErrWebhookCooldown   = errors.New("alert is within cooldown period")
	errInvalidJSON       = errors.New("invalid JSON generated")
	errWebhookStatus     = errors.New("webhook returned non-2xx status")
	errTemplateParse     = errors.New("template parsing failed")
	errTemplateExecution = errors.New("template execution failed")
)

const (
	TypeWebhook = "webhook"
	TypeDiscord = "discord"

	requestTimeout = 10 * time.Second
)

type WebhookConfig struct {
	Enabled  bool            `json:"enabled" yaml:"enabled"`
	Type     string          `json:"type,omitempty" yaml:"type,omitempty"` // webhook (default) or discord
	URL      string          `json:"url" yaml:"url"`
	Headers  []Header        `json:"headers,omitempty" yaml:"headers,omitempty"`
	Template string          `json:"template,omitempty" yaml:"template,omitempty"` // optional JSON template
	Cooldown models.Duration `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
}

type Header struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

type AlertLevel string

const (
	Info    AlertLevel = "info"
	Warning AlertLevel = "warning"
	Error   AlertLevel = "error"
)

type WebhookAlert struct {
	Level     AlertLevel     `json:"level"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Site      string         `json:"site"`
	Details   map[string]any `json:"details,omitempty"`
}

// cooldownKey scopes the cooldown to one alert kind at one site.
func (a *WebhookAlert) cooldownKey() string {
	return a.Title + "|" + a.Site
}

type WebhookAlerter struct {
	config         WebhookConfig
	client         *http.Client
	lastAlertTimes map[string]time.Time
	mu             sync.Mutex
	bufferPool     *sync.Pool
	log            *logrus.Entry
	now            func() time.Time
}

var _ AlertService = (*WebhookAlerter)(nil)

func NewWebhookAlerter(config WebhookConfig) *WebhookAlerter {
	if config.Template == "" && strings.EqualFold(config.Type, TypeDiscord) {
		config.Template = DiscordTemplate
	}

	return &WebhookAlerter{
		config: config,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		lastAlertTimes: make(map[string]time.Time),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
		log: logger.For("alerts").WithField("url", redactURL(config.URL)),
		now: time.Now,
	}
}

// FromConfigs builds an alerter for every enabled webhook.
func FromConfigs(configs []WebhookConfig) []AlertService {
	services := make([]AlertService, 0, len(configs))

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		services = append(services, NewWebhookAlerter(cfg))
	}

	return services
}

func (w *WebhookAlerter) IsEnabled() bool {
	return w.config.Enabled
}

func (w *WebhookAlerter) getTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"json": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("JSON marshaling failed: %w", err)
			}

			return string(b), nil
		},
	}
}

func (w *WebhookAlerter) Alert(ctx context.Context, alert *WebhookAlert) error {
	if !w.IsEnabled() {
		w.log.WithField("title", alert.Title).Debug("webhook alerter disabled, skipping alert")
		return ErrWebhookDisabled
	}

	if err := w.checkCooldown(alert.cooldownKey()); err != nil {
		return err
	}

	w.ensureTimestamp(alert)

	payload, err := w.preparePayload(alert)
	if err != nil {
		return fmt.Errorf("failed to prepare payload: %w", err)
	}

	return w.sendRequest(ctx, payload)
}

func (w *WebhookAlerter) checkCooldown(key string) error {
	cooldown := time.Duration(w.config.Cooldown)
	if cooldown <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()

	lastAlertTime, exists := w.lastAlertTimes[key]
	if exists && now.Sub(lastAlertTime) < cooldown {
		w.log.WithField("alert", key).Debug("alert is within cooldown period, skipping")
		return ErrWebhookCooldown
	}

	w.lastAlertTimes[key] = now

	return nil
}

func (w *WebhookAlerter) ensureTimestamp(alert *WebhookAlert) {
	if alert.Timestamp == "" {
		alert.Timestamp = w.now().UTC().Format(time.RFC3339)
	}
}

func (w *WebhookAlerter) preparePayload(alert *WebhookAlert) ([]byte, error) {
	if w.config.Template == "" {
		payload, err := json.Marshal(alert)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal alert: %w", err)
		}

		return payload, nil
	}

	return w.executeTemplate(alert)
}

func (w *WebhookAlerter) executeTemplate(alert *WebhookAlert) ([]byte, error) {
	tmpl, err := template.New("webhook").
		Funcs(w.getTemplateFuncs()).
		Parse(w.config.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTemplateParse, err)
	}

	buf := w.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer w.bufferPool.Put(buf)

	if err := tmpl.Execute(buf, map[string]interface{}{
		"alert": alert,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", errTemplateExecution, err)
	}

	if !json.Valid(buf.Bytes()) {
		return nil, errInvalidJSON
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

func (w *WebhookAlerter) sendRequest(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	w.setHeaders(req)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			w.log.WithError(err).Debug("failed to close response body")
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("%w: status=%d body=%s", errWebhookStatus, resp.StatusCode, body)
	}

	return nil
}

func (w *WebhookAlerter) setHeaders(req *http.Request) {
	hasContentType := false

	for _, header := range w.config.Headers {
		if strings.EqualFold(header.Key, "content-type") {
			hasContentType = true
		}

		req.Header.Set(header.Key, header.Value)
	}

	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}
}

// redactURL drops the path, which for chat webhooks carries the token.
func redactURL(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		if j := strings.IndexByte(raw[i+3:], '/'); j >= 0 {
			return raw[:i+3+j] + "/..."
		}
	}

	return raw
}
