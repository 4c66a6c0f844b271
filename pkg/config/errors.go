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

package config

import "errors"

var (
	errMissingListenAddr = errors.New("listen_addr is required")
	errMissingDBPath     = errors.New("db_path is required")
	errMissingAPIToken   = errors.New("api_token is required")
	errInvalidHomeSite   = errors.New("home_site_code must be a positive integer")
	errInvalidEventLimit = errors.New("event_limit must be positive")
	errInvalidEnv        = errors.New("invalid environment override")
	errProbeCommand      = errors.New("probe.command is required when the probe is enabled")
	errInvalidSecurity   = errors.New("invalid security configuration")
)
