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

// Package cache defines the decision-cache contract (spec.md §4.1,
// §9): read-through, explicit invalidation on every mutation that
// could affect a user's permissions. Kept abstract behind an
// interface so production code can run against Redis while unit tests
// use the in-memory implementation.
package cache

import (
	"context"
	"time"

	"github.com/authzcore/authzcore/authz"
)

// DefaultTTL is the recommended decision-cache lifetime (spec.md §4.1:
// "TTL is implementation-defined (recommended 1-5 min)").
const DefaultTTL = 2 * time.Minute

// Key identifies a cached decision by its four-tuple.
type Key struct {
	UserID   string
	TenantID string
	Resource string
	Action   string
}

// DecisionCache stores AuthzResponse results keyed by (user, tenant,
// resource, action).
//
// Purpose: Read-through cache for the decision engine's hot path.
// Domain: Authz
type DecisionCache interface {
	Get(ctx context.Context, key Key) (*authz.Response, bool, error)
	Set(ctx context.Context, key Key, resp authz.Response, ttl time.Duration) error

	// InvalidateUser evicts every cached decision for a user within a
	// tenant. Administrative mutations invalidate coarsely at this
	// granularity rather than tracking individual (resource, action)
	// keys (spec.md §4.1).
	InvalidateUser(ctx context.Context, userID, tenantID string) error

	// InvalidateAll evicts every cached decision, used by the
	// maintenance sweep (spec.md §4.6) which can affect any user.
	InvalidateAll(ctx context.Context) error
}
