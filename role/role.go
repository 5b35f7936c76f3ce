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

// Package role holds the Role, RolePermission and UserRole entities,
// their repository contracts, the hierarchy walk, and the
// administrative RoleService/UserRoleService of spec.md §3/§4.3.
package role

import (
	"context"
	"time"

	"github.com/authzcore/authzcore/errkind"
	"github.com/authzcore/authzcore/permission"
)

// Domain errors, each classified per spec.md §7.
var (
	ErrNotFound             = errkind.New(errkind.KindNotFound, "role not found")
	ErrAlreadyExists        = errkind.New(errkind.KindDuplicate, "role already exists")
	ErrSystemRole           = errkind.New(errkind.KindBusinessRule, "system roles cannot be mutated or deleted")
	ErrHierarchyTooDeep     = errkind.New(errkind.KindBusinessRule, "role hierarchy exceeds maximum depth")
	ErrHierarchyCycle       = errkind.New(errkind.KindBusinessRule, "role hierarchy would introduce a cycle")
	ErrCrossTenantParent    = errkind.New(errkind.KindTenantIsolation, "parent role must share the child's tenant, or both be global")
	ErrTooManyPermissions   = errkind.New(errkind.KindBusinessRule, "role permission count exceeds the per-role cap")
	ErrInUse                = errkind.New(errkind.KindBusinessRule, "role has active assignments or child roles and cannot be deleted")
	ErrMaxUsersExceeded     = errkind.New(errkind.KindBusinessRule, "role max_users exceeded")
	ErrMaxUsersBelowCurrent = errkind.New(errkind.KindBusinessRule, "max_users cannot be set below the current active user count")
	ErrInvalid              = errkind.New(errkind.KindValidation, "invalid role")

	ErrAssignmentNotFound      = errkind.New(errkind.KindNotFound, "role assignment not found")
	ErrAssignmentAlreadyExists = errkind.New(errkind.KindDuplicate, "role assignment already exists")
	ErrExpirationInPast        = errkind.New(errkind.KindValidation, "expiration must be in the future")
)

// SuperAdmin is the role name that triggers the engine's super-admin
// shortcut (spec.md §4.1 step 3).
const SuperAdmin = "SUPER_ADMIN"

// Limits, overridable via config (authz.role.max-hierarchy-depth,
// authz.role.max-permissions-per-role).
const (
	MaxHierarchyDepth     = 10
	MaxPermissionsPerRole = 100
)

// Role is owned by a tenant, or global/system when TenantID is nil.
//
// Purpose: A named bundle of permissions assignable to users.
// Domain: Authz
// Invariants: (Name, TenantID) unique. Hierarchy acyclic, depth <= 10.
// Parent must share the child's tenant (or both global). System roles
// are immutable through normal operations.
type Role struct {
	ID           string
	TenantID     *string
	Name         string
	Description  string
	Priority     int
	MaxUsers     *int
	IsSystem     bool
	IsActive     bool
	ParentRoleID *string
	CreatedBy    string
	UpdatedBy    string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsGlobal reports whether the role is tenant-independent (e.g.
// SUPER_ADMIN).
func (r *Role) IsGlobal() bool { return r.TenantID == nil }

// SameTenant reports whether r and other belong to the same tenant
// scope (both global, or both the same tenant id).
func (r *Role) SameTenant(other *Role) bool {
	if r.IsGlobal() != other.IsGlobal() {
		return false
	}
	if r.IsGlobal() {
		return true
	}
	return *r.TenantID == *other.TenantID
}

// RolePermission assigns a Permission to a Role, optionally scoped by
// constraints and an expiration.
//
// Purpose: Join entity between Role and Permission.
// Domain: Authz
// Invariants: (RoleID, PermissionID) unique per role; <= MaxPermissionsPerRole per role.
type RolePermission struct {
	ID           string
	RoleID       string
	PermissionID string
	Constraints  map[string]any
	ExpiresAt    *time.Time
	GrantedBy    string
	GrantedAt    time.Time
}

// Expired reports whether the grant has lapsed as of now.
func (rp *RolePermission) Expired(now time.Time) bool {
	return rp.ExpiresAt != nil && !rp.ExpiresAt.After(now)
}

// GrantedPermission pairs a permission with the role-permission grant
// that attached it, as loaded by UserRoleRepository.ListActiveGrants.
type GrantedPermission struct {
	Permission     *permission.Permission
	RolePermission *RolePermission
}

// Valid reports whether the grant contributes to the engine's
// permission set P: the role-permission must not be expired and the
// permission itself must be active (spec.md §4.1 step 2).
func (g *GrantedPermission) Valid(now time.Time) bool {
	if g.Permission == nil || !g.Permission.IsActive {
		return false
	}
	if g.RolePermission != nil && g.RolePermission.Expired(now) {
		return false
	}
	return true
}

// Repository defines persistence for Role entities.
//
// Purpose: Abstraction over role storage.
// Domain: Authz
type Repository interface {
	Create(ctx context.Context, r *Role) error
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string, tenantID *string) (*Role, error)
	List(ctx context.Context, tenantID *string) ([]*Role, error)
	ListChildren(ctx context.Context, parentID string) ([]*Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
}

// RolePermissionRepository defines persistence for RolePermission
// join rows.
//
// Purpose: Abstraction over role->permission grant storage.
// Domain: Authz
type RolePermissionRepository interface {
	Create(ctx context.Context, rp *RolePermission) error
	ListByRole(ctx context.Context, roleID string) ([]*RolePermission, error)
	CountByRole(ctx context.Context, roleID string) (int, error)
	Get(ctx context.Context, roleID, permissionID string) (*RolePermission, error)
	Delete(ctx context.Context, roleID, permissionID string) error
	SetExpiration(ctx context.Context, roleID, permissionID string, expiresAt time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
