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

// Package reconcile pkg/reconcile/errors.go
package reconcile

import "errors"

var (
	// ErrStoreRead aborts a pass: the current state could not be loaded.
	ErrStoreRead = errors.New("failed to read current state")

	ErrNilSnapshot     = errors.New("snapshot is nil")
	ErrInvalidHomeSite = errors.New("home site code must be positive")
)
