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

// Package authz holds the request/response shapes of the decision
// pipeline (spec.md §4.1), shared between the engine that produces
// them and the decision cache that stores them.
package authz

import (
	"sort"
	"time"
)

// Request is the input to a single authorization decision.
//
// Purpose: Everything the decision engine needs to evaluate one check.
// Domain: Authz
type Request struct {
	UserID         string
	TenantID       string
	Resource       string // resource_type
	Action         string
	ResourceID     *string
	TargetTenantID *string // cross-tenant access target
	Attributes     map[string]any
	IPAddress      string
	UserAgent      string
}

// Response is the outcome of a single authorization decision.
//
// Purpose: ALLOW/DENY verdict plus the reason and permissions that
// justified it.
// Domain: Authz
type Response struct {
	Allowed            bool
	Reason             string
	GrantedPermissions []string
	Timestamp          time.Time
}

// Allowed builds an ALLOW response, sorting and de-duplicating the
// justifying permission names so responses are deterministic
// (spec.md §8).
func Allowed(reason string, perms []string) Response {
	return Response{
		Allowed:            true,
		Reason:             reason,
		GrantedPermissions: sortedUnique(perms),
		Timestamp:          time.Now(),
	}
}

// Denied builds a DENY response.
func Denied(reason string) Response {
	return Response{
		Allowed:   false,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func sortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
