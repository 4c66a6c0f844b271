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

package condense

import (
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// FormatSince renders an elapsed duration as "{h}h {m}m", or with withDays
// as "{d}d {h}h {m}m". Leading zero units are left out and minutes are
// always present. Partial minutes round down; negative durations read as 0m.
func FormatSince(elapsed time.Duration, withDays bool) string {
	if elapsed < 0 {
		elapsed = 0
	}

	var days int64
	if withDays {
		days = int64(elapsed / day)
		elapsed -= time.Duration(days) * day
	}

	hours := int64(elapsed / time.Hour)
	minutes := int64((elapsed - time.Duration(hours)*time.Hour) / time.Minute)

	var b strings.Builder

	if days > 0 {
		b.WriteString(strconv.FormatInt(days, 10))
		b.WriteString("d ")
	}

	if days > 0 || hours > 0 {
		b.WriteString(strconv.FormatInt(hours, 10))
		b.WriteString("h ")
	}

	b.WriteString(strconv.FormatInt(minutes, 10))
	b.WriteString("m")

	return b.String()
}
