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

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/carverauto/siteradar/pkg/alerts"
	"github.com/carverauto/siteradar/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	TitleHomeSiteDown      = "Home Site Down"
	TitleHomeSiteRecovered = "Home Site Recovered"
	TitleCriticalIssue     = "Critical Issue"
)

// sendAlerts reports home site transitions and newly opened critical issues.
func (e *Engine) sendAlerts(ctx context.Context, log *logrus.Entry, previous *models.Meta, plan *Plan, outcome *Outcome) {
	if len(e.alerters) == 0 {
		return
	}

	wasDown := previous != nil && previous.HomeSiteDown
	ts := plan.Meta.LastUpdated.UTC().Format(time.RFC3339)
	home := strconv.Itoa(e.cfg.HomeSiteCode)

	switch {
	case plan.HomeSiteDown() && !wasDown:
		rec := plan.HomeSiteIssue
		e.alert(ctx, log, &alerts.WebhookAlert{
			Level:     alerts.Error,
			Title:     TitleHomeSiteDown,
			Message:   fmt.Sprintf("Home site %s (%s) is critical: %s", home, rec.SiteName, rec.Service),
			Timestamp: ts,
			Site:      home,
			Details: map[string]any{
				"service": rec.Service,
				"target":  rec.Target,
			},
		})
	case !plan.HomeSiteDown() && wasDown:
		e.alert(ctx, log, &alerts.WebhookAlert{
			Level:     alerts.Info,
			Title:     TitleHomeSiteRecovered,
			Message:   fmt.Sprintf("Home site %s is no longer critical", home),
			Timestamp: ts,
			Site:      home,
		})
	}

	if plan.HomeSiteDown() {
		return
	}

	for i := range outcome.opened {
		issue := &outcome.opened[i]
		if issue.Category != models.CategoryCritical {
			continue
		}

		e.alert(ctx, log, &alerts.WebhookAlert{
			Level:     alerts.Warning,
			Title:     TitleCriticalIssue,
			Message:   fmt.Sprintf("%s is critical at %s", issue.Service, issue.SiteName),
			Timestamp: issue.ReportedAt.UTC().Format(time.RFC3339),
			Site:      strconv.Itoa(issue.SiteCode),
			Details: map[string]any{
				"service": issue.Service,
				"target":  issue.Target,
			},
		})
	}
}

func (e *Engine) alert(ctx context.Context, log *logrus.Entry, alert *alerts.WebhookAlert) {
	for _, alerter := range e.alerters {
		if !alerter.IsEnabled() {
			continue
		}

		err := alerter.Alert(ctx, alert)

		switch {
		case err == nil:
		case errors.Is(err, alerts.ErrWebhookCooldown):
			log.WithField("title", alert.Title).Debug("alert suppressed by cooldown")
		default:
			log.WithError(err).WithField("title", alert.Title).Warn("failed to send alert")
		}
	}
}
