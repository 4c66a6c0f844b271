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

package snapshot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformed is returned when the payload is not a JSON object at all.
	ErrMalformed = errors.New("malformed snapshot")

	// ErrInvalid is matched by every *ValidationError.
	ErrInvalid = errors.New("invalid snapshot")
)

// FieldError describes one failed field check.
type FieldError struct {
	Param string `json:"param"`
	Msg   string `json:"msg"`
}

// ValidationError carries every field error found in a snapshot.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Param, fe.Msg))
	}

	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(parts, "; "))
}

func (*ValidationError) Is(target error) bool {
	return target == ErrInvalid
}
