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
	"github.com/authzcore/authzcore/role"
)

// RolePermissionRepository implements role.RolePermissionRepository
// against the role_permissions join table.
type RolePermissionRepository struct {
	db *DB
}

// NewRolePermissionRepository creates a new role-permission repository.
func NewRolePermissionRepository(db *DB) *RolePermissionRepository {
	return &RolePermissionRepository{db: db}
}

func (r *RolePermissionRepository) Create(ctx context.Context, rp *role.RolePermission) error {
	constraints := rp.Constraints
	if constraints == nil {
		constraints = map[string]any{}
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_permissions (
			id, role_id, permission_id, constraints, expires_at, granted_by, granted_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, rp.ID, rp.RoleID, rp.PermissionID, constraints, rp.ExpiresAt, rp.GrantedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role already has this permission: %w", err)
		}
		return fmt.Errorf("failed to create role permission: %w", err)
	}
	return nil
}

const rolePermissionColumns = `id, role_id, permission_id, constraints, expires_at, granted_by, granted_at`

func scanRolePermission(row pgx.Row) (*role.RolePermission, error) {
	var rp role.RolePermission
	err := row.Scan(&rp.ID, &rp.RoleID, &rp.PermissionID, &rp.Constraints, &rp.ExpiresAt, &rp.GrantedBy, &rp.GrantedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, role.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan role permission: %w", err)
	}
	return &rp, nil
}

func (r *RolePermissionRepository) ListByRole(ctx context.Context, roleID string) ([]*role.RolePermission, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+rolePermissionColumns+` FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var out []*role.RolePermission
	for rows.Next() {
		rp, err := scanRolePermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (r *RolePermissionRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	var n int
	err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions WHERE role_id = $1`, roleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count role permissions: %w", err)
	}
	return n, nil
}

func (r *RolePermissionRepository) Get(ctx context.Context, roleID, permissionID string) (*role.RolePermission, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+rolePermissionColumns+` FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return scanRolePermission(row)
}

func (r *RolePermissionRepository) Delete(ctx context.Context, roleID, permissionID string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to delete role permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return role.ErrNotFound
	}
	return nil
}

func (r *RolePermissionRepository) SetExpiration(ctx context.Context, roleID, permissionID string, expiresAt time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE role_permissions SET expires_at = $3 WHERE role_id = $1 AND permission_id = $2
	`, roleID, permissionID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to set role permission expiration: %w", err)
	}
	if result.RowsAffected() == 0 {
		return role.ErrNotFound
	}
	return nil
}

func (r *RolePermissionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM role_permissions WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired role permissions: %w", err)
	}
	return int(result.RowsAffected()), nil
}
