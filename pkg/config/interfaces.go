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

// Validator interface for configurations that need validation.
type Validator interface {
	Validate() error
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvOverrider is implemented by configurations that take overrides from
// the environment.
type EnvOverrider interface {
	ApplyEnv(lookup LookupFunc) error
}

// Defaulter fills unset fields.
type Defaulter interface {
	ApplyDefaults()
}
