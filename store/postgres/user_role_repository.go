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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/authzcore/authzcore/permission"
	"github.com/authzcore/authzcore/role"
)

// UserRoleRepository implements role.UserRoleRepository against the
// user_roles table, including the eager join the engine's hot path
// (spec.md §4.1 steps 1-2) reads through ListActiveGrants.
type UserRoleRepository struct {
	db *DB
}

// NewUserRoleRepository creates a new user-role repository.
func NewUserRoleRepository(db *DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

func (r *UserRoleRepository) Create(ctx context.Context, ur *role.UserRole) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_roles (
			id, user_id, role_id, tenant_id, assigned_by, assigned_at, expires_at, is_active
		) VALUES ($1, $2, $3, $4, $5, NOW(), $6, $7)
	`, ur.ID, ur.UserID, ur.RoleID, ur.TenantID, ur.AssignedBy, ur.ExpiresAt, ur.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrAssignmentAlreadyExists
		}
		return fmt.Errorf("failed to create user role: %w", err)
	}
	return nil
}

func (r *UserRoleRepository) Deactivate(ctx context.Context, userID, roleID, tenantID string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE user_roles SET is_active = FALSE
		WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3 AND is_active
	`, userID, roleID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return role.ErrAssignmentNotFound
	}
	return nil
}

func (r *UserRoleRepository) ExistsActive(ctx context.Context, userID, roleID, tenantID string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_roles
			WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3 AND is_active
			  AND (expires_at IS NULL OR expires_at > NOW())
		)
	`, userID, roleID, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user role existence: %w", err)
	}
	return exists, nil
}

func (r *UserRoleRepository) CountActiveForRole(ctx context.Context, roleID string) (int, error) {
	var n int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_roles
		WHERE role_id = $1 AND is_active AND (expires_at IS NULL OR expires_at > NOW())
	`, roleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active user roles: %w", err)
	}
	return n, nil
}

const userRoleColumns = `id, user_id, role_id, tenant_id, assigned_by, assigned_at, expires_at, is_active`

func scanUserRole(row pgx.Row) (*role.UserRole, error) {
	var ur role.UserRole
	err := row.Scan(&ur.ID, &ur.UserID, &ur.RoleID, &ur.TenantID, &ur.AssignedBy, &ur.AssignedAt, &ur.ExpiresAt, &ur.IsActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, role.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to scan user role: %w", err)
	}
	return &ur, nil
}

func (r *UserRoleRepository) ListByUser(ctx context.Context, userID string) ([]*role.UserRole, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+userRoleColumns+` FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles by user: %w", err)
	}
	defer rows.Close()
	return collectUserRoles(rows)
}

func (r *UserRoleRepository) ListByRole(ctx context.Context, roleID string) ([]*role.UserRole, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+userRoleColumns+` FROM user_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles by role: %w", err)
	}
	defer rows.Close()
	return collectUserRoles(rows)
}

func (r *UserRoleRepository) ListByTenant(ctx context.Context, tenantID string) ([]*role.UserRole, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+userRoleColumns+` FROM user_roles WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles by tenant: %w", err)
	}
	defer rows.Close()
	return collectUserRoles(rows)
}

func collectUserRoles(rows pgx.Rows) ([]*role.UserRole, error) {
	var out []*role.UserRole
	for rows.Next() {
		ur, err := scanUserRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ur)
	}
	return out, rows.Err()
}

func (r *UserRoleRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM user_roles WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired user roles: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// ListActiveGrants eagerly joins every active, unexpired user_roles row
// for (userID, tenantID) with its role and that role's granted
// permissions in one round trip, matching spec.md §4.1 steps 1-2.
func (r *UserRoleRepository) ListActiveGrants(ctx context.Context, userID, tenantID string, now time.Time) ([]*role.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT
			ur.id, ur.user_id, ur.role_id, ur.tenant_id, ur.assigned_by, ur.assigned_at, ur.expires_at, ur.is_active,
			`+roleColumnsPrefixed("ro")+`,
			rp.id, rp.role_id, rp.permission_id, rp.constraints, rp.expires_at, rp.granted_by, rp.granted_at,
			p.id, p.resource_type, p.action, p.risk_level, p.requires_mfa, p.requires_approval, p.is_system, p.is_active
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = ro.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1 AND ur.tenant_id = $2 AND ur.is_active
		  AND (ur.expires_at IS NULL OR ur.expires_at > $3)
		ORDER BY ur.id
	`, userID, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active grants: %w", err)
	}
	defer rows.Close()

	grantsByAssignment := map[string]*role.Grant{}
	var order []string

	for rows.Next() {
		var ur role.UserRole
		var ro role.Role
		var rp role.RolePermission
		var perm permission.Permission

		var rpID, rpRoleID, rpPermID *string
		var rpConstraints map[string]any
		var rpExpiresAt *time.Time
		var rpGrantedBy *string
		var rpGrantedAt *time.Time
		var permID, permResourceType, permAction, permRisk *string
		var permRequiresMFA, permRequiresApproval, permIsSystem, permIsActive *bool

		err := rows.Scan(
			&ur.ID, &ur.UserID, &ur.RoleID, &ur.TenantID, &ur.AssignedBy, &ur.AssignedAt, &ur.ExpiresAt, &ur.IsActive,
			&ro.ID, &ro.TenantID, &ro.Name, &ro.Description, &ro.Priority, &ro.MaxUsers,
			&ro.IsSystem, &ro.IsActive, &ro.ParentRoleID, &ro.CreatedBy, &ro.UpdatedBy, &ro.Version,
			&ro.CreatedAt, &ro.UpdatedAt,
			&rpID, &rpRoleID, &rpPermID, &rpConstraints, &rpExpiresAt, &rpGrantedBy, &rpGrantedAt,
			&permID, &permResourceType, &permAction, &permRisk, &permRequiresMFA, &permRequiresApproval, &permIsSystem, &permIsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active grant row: %w", err)
		}

		g, ok := grantsByAssignment[ur.ID]
		if !ok {
			urCopy := ur
			roCopy := ro
			g = &role.Grant{Assignment: &urCopy, Role: &roCopy}
			grantsByAssignment[ur.ID] = g
			order = append(order, ur.ID)
		}

		if permID == nil {
			continue
		}
		rp.ID = *rpID
		rp.RoleID = *rpRoleID
		rp.PermissionID = *rpPermID
		rp.Constraints = rpConstraints
		rp.ExpiresAt = rpExpiresAt
		if rpGrantedBy != nil {
			rp.GrantedBy = *rpGrantedBy
		}
		if rpGrantedAt != nil {
			rp.GrantedAt = *rpGrantedAt
		}

		perm.ID = *permID
		perm.ResourceType = *permResourceType
		perm.Action = *permAction
		perm.RiskLevel = permission.RiskLevel(*permRisk)
		perm.RequiresMFA = *permRequiresMFA
		perm.RequiresApproval = *permRequiresApproval
		perm.IsSystem = *permIsSystem
		perm.IsActive = *permIsActive

		permCopy := perm
		rpCopy := rp
		g.Permissions = append(g.Permissions, &role.GrantedPermission{Permission: &permCopy, RolePermission: &rpCopy})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grants := make([]*role.Grant, 0, len(order))
	for _, id := range order {
		grants = append(grants, grantsByAssignment[id])
	}
	return grants, nil
}

// roleColumnsPrefixed returns the roles column list qualified by alias,
// in the same positional order as roleColumns.
func roleColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.tenant_id, ` + alias + `.name, ` + alias + `.description, ` +
		alias + `.priority, ` + alias + `.max_users, ` + alias + `.is_system, ` + alias + `.is_active, ` +
		alias + `.parent_role_id, ` + alias + `.created_by, ` + alias + `.updated_by, ` + alias + `.version, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
