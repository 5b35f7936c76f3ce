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

package role

import (
	"context"
	"time"
)

// UserRole is a (UserID, RoleID, TenantID) assignment.
//
// Purpose: Grants a role's permissions to a user within a tenant.
// Domain: Authz
// Invariants: (UserID, RoleID, TenantID) unique while active. Active
// count for a role <= role.MaxUsers when set.
type UserRole struct {
	ID         string
	UserID     string
	RoleID     string
	TenantID   string
	AssignedBy string
	AssignedAt time.Time
	ExpiresAt  *time.Time
	IsActive   bool
}

// Active reports whether the assignment is usable as of now: flagged
// active and not expired (spec.md §4.1 step 1).
func (ur *UserRole) Active(now time.Time) bool {
	return ur.IsActive && (ur.ExpiresAt == nil || ur.ExpiresAt.After(now))
}

// Grant is a user's active role assignment with its role and valid
// permissions eagerly joined, matching spec.md §4.1 step 1's "eagerly
// joining role and its role-permissions and permission".
type Grant struct {
	Assignment  *UserRole
	Role        *Role
	Permissions []*GrantedPermission
}

// UserRoleRepository defines persistence for UserRole assignments.
//
// Purpose: Abstraction over user->role assignment storage, including
// the eager-joined view the decision engine's hot path needs.
// Domain: Authz
type UserRoleRepository interface {
	Create(ctx context.Context, ur *UserRole) error
	Deactivate(ctx context.Context, userID, roleID, tenantID string) error
	ExistsActive(ctx context.Context, userID, roleID, tenantID string) (bool, error)
	CountActiveForRole(ctx context.Context, roleID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]*UserRole, error)
	ListByRole(ctx context.Context, roleID string) ([]*UserRole, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*UserRole, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// ListActiveGrants loads every active, unexpired UserRole for
	// (userID, tenantID) together with its Role and that role's granted
	// permissions, for the engine's steps 1-2.
	ListActiveGrants(ctx context.Context, userID, tenantID string, now time.Time) ([]*Grant, error)
}
