// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package id generates and validates the opaque UUIDs used as entity
// identifiers throughout the authorization service.
package id

import (
	"github.com/google/uuid"
)

// New generates a UUIDv7 (RFC 9562), time-ordered so primary keys stay
// roughly sequential in the store's indices.
func New() string {
	u, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock/rand source is broken;
		// fall back to a random v4 rather than panic on the hot path.
		return uuid.NewString()
	}
	return u.String()
}

// Valid reports whether s parses as a UUID of any version.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
