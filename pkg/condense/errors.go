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

// Package condense pkg/condense/errors.go
package condense

import "errors"

var (
	// ErrNoData means no reconciliation has happened yet.
	ErrNoData = errors.New("no data yet")

	// ErrNoMoreEvents ends event pagination.
	ErrNoMoreEvents = errors.New("no more events")

	ErrStoreRead = errors.New("failed to read state")
)
