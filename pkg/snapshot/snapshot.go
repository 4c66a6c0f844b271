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

// Package snapshot pkg/snapshot/snapshot.go decodes and validates probe
// snapshots before they reach the reconciliation engine.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

const (
	msgMetaMissing        = "meta object not found in request body"
	msgLastUpdatedMissing = "meta.lastupdated property not found in request body"
	msgLastUpdatedInvalid = "meta.lastupdated is not a valid date or epoch milliseconds"
	msgSiteCountMissing   = "meta.sitecount property not found in request body"
	msgSitesUpMissing     = "meta.sitesup property not found in request body"
	msgIssuesMissing      = "issues object not found in request body or is not an array"
	msgIssueNotObject     = "issue is not an object"
	msgNotInt             = "property either not found or is not an int"
	msgNotString          = "property either not found or is not a string"
	msgNotDate            = "property is not a valid date"
	msgNotCategory        = "property is not one of critical, major, minor"
)

// layouts accepted for textual timestamps; zone-less forms are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// Decode parses a snapshot document and validates every field. It returns
// ErrMalformed for payloads that are not JSON objects and a *ValidationError
// listing all failed checks otherwise.
func Decode(data []byte) (*models.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	return FromDocument(doc)
}

// FromDocument validates an already decoded snapshot document. Numbers may be
// json.Number, float64 or int.
func FromDocument(doc map[string]interface{}) (*models.Snapshot, error) {
	v := &validator{}
	snap := &models.Snapshot{}

	v.meta(doc["_meta"], &snap.Meta)
	snap.Issues = v.issues(doc["issues"])

	if len(v.errs) > 0 {
		return nil, &ValidationError{Errors: v.errs}
	}

	return snap, nil
}

type validator struct {
	errs []FieldError
}

func (v *validator) fail(param, msg string) {
	v.errs = append(v.errs, FieldError{Param: param, Msg: msg})
}

func (v *validator) meta(raw interface{}, out *models.SnapshotMeta) {
	meta, ok := raw.(map[string]interface{})
	if !ok {
		v.fail("_meta", msgMetaMissing)
		v.fail("_meta.lastupdated", msgLastUpdatedMissing)
		v.fail("_meta.sitecount", msgSiteCountMissing)
		v.fail("_meta.sitesup", msgSitesUpMissing)

		return
	}

	if lu, exists := meta["lastupdated"]; !exists || lu == nil {
		v.fail("_meta.lastupdated", msgLastUpdatedMissing)
	} else if ts, ok := parseTimestamp(lu); ok {
		out.LastUpdated = ts
	} else {
		v.fail("_meta.lastupdated", msgLastUpdatedInvalid)
	}

	if n, ok := asInt(meta["sitecount"]); ok {
		out.SiteCount = n
	} else {
		v.fail("_meta.sitecount", msgSiteCountMissing)
	}

	if n, ok := asInt(meta["sitesup"]); ok {
		out.SitesUp = n
	} else {
		v.fail("_meta.sitesup", msgSitesUpMissing)
	}
}

func (v *validator) issues(raw interface{}) []models.IssueRecord {
	list, ok := raw.([]interface{})
	if !ok {
		v.fail("issues", msgIssuesMissing)
		return nil
	}

	records := make([]models.IssueRecord, 0, len(list))

	for i, item := range list {
		prefix := fmt.Sprintf("issues[%d]", i)

		obj, ok := item.(map[string]interface{})
		if !ok {
			v.fail(prefix, msgIssueNotObject)
			continue
		}

		before := len(v.errs)
		rec := models.IssueRecord{}

		if n, ok := asInt(obj["sitecode"]); ok {
			rec.SiteCode = n
		} else {
			v.fail(prefix+".sitecode", msgNotInt)
		}

		rec.SiteName = v.str(obj, prefix, "sitename")
		rec.Service = v.str(obj, prefix, "service")
		rec.Target = v.str(obj, prefix, "target")

		if c, ok := obj["category"].(string); !ok {
			v.fail(prefix+".category", msgNotString)
		} else if cat, err := models.ParseCategory(c); err != nil {
			v.fail(prefix+".category", msgNotCategory)
		} else {
			rec.Category = cat
		}

		if s, ok := obj["datetime"].(string); !ok {
			v.fail(prefix+".datetime", msgNotString)
		} else if ts, ok := parseTimestamp(s); ok {
			rec.ReportedAt = ts
		} else {
			v.fail(prefix+".datetime", msgNotDate)
		}

		if len(v.errs) == before {
			records = append(records, rec)
		}
	}

	return records
}

func (v *validator) str(obj map[string]interface{}, prefix, field string) string {
	s, ok := obj[field].(string)
	if !ok {
		v.fail(prefix+"."+field, msgNotString)
	}

	return s
}

func asInt(raw interface{}) (int, bool) {
	switch n := raw.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}

		f, err := n.Float64()
		if err != nil {
			return 0, false
		}

		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}

		return i, true
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}

	if f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}

	return int(f), true
}

// parseTimestamp accepts ISO-8601 text or epoch milliseconds (as a number or
// numeric string). Results are UTC, truncated to the millisecond stored.
func parseTimestamp(raw interface{}) (time.Time, bool) {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return normalize(ts), true
			}
		}
	}

	if ms, ok := asInt(raw); ok {
		return normalize(time.UnixMilli(int64(ms))), true
	}

	return time.Time{}, false
}

func normalize(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Millisecond)
}
