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

	"github.com/jackc/pgx/v5"
	"github.com/authzcore/authzcore/role"
)

// RoleRepository implements role.Repository against the roles table.
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository.
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(ctx context.Context, ro *role.Role) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO roles (
			id, tenant_id, name, description, priority, max_users, is_system,
			is_active, parent_role_id, created_by, updated_by, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`,
		ro.ID, ro.TenantID, ro.Name, ro.Description, ro.Priority, ro.MaxUsers,
		ro.IsSystem, ro.IsActive, ro.ParentRoleID, ro.CreatedBy, ro.UpdatedBy, ro.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

const roleColumns = `
	id, tenant_id, name, description, priority, max_users, is_system,
	is_active, parent_role_id, created_by, updated_by, version,
	created_at, updated_at
`

func scanRole(row pgx.Row) (*role.Role, error) {
	var ro role.Role
	err := row.Scan(
		&ro.ID, &ro.TenantID, &ro.Name, &ro.Description, &ro.Priority, &ro.MaxUsers,
		&ro.IsSystem, &ro.IsActive, &ro.ParentRoleID, &ro.CreatedBy, &ro.UpdatedBy, &ro.Version,
		&ro.CreatedAt, &ro.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, role.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	return &ro, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id string) (*role.Role, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

func (r *RoleRepository) GetByName(ctx context.Context, name string, tenantID *string) (*role.Role, error) {
	var row pgx.Row
	if tenantID == nil {
		row = r.db.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1 AND tenant_id IS NULL`, name)
	} else {
		row = r.db.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1 AND tenant_id = $2`, name, *tenantID)
	}
	return scanRole(row)
}

func (r *RoleRepository) List(ctx context.Context, tenantID *string) ([]*role.Role, error) {
	var rows pgx.Rows
	var err error
	if tenantID == nil {
		rows, err = r.db.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE tenant_id IS NULL ORDER BY name ASC`)
	} else {
		rows, err = r.db.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 ORDER BY name ASC`, *tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func (r *RoleRepository) ListChildren(ctx context.Context, parentID string) ([]*role.Role, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE parent_role_id = $1 ORDER BY name ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child roles: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows pgx.Rows) ([]*role.Role, error) {
	var roles []*role.Role
	for rows.Next() {
		ro, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, ro)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) Update(ctx context.Context, ro *role.Role) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE roles SET
			name = $2, description = $3, priority = $4, max_users = $5,
			is_active = $6, parent_role_id = $7, updated_by = $8,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $9
	`, ro.ID, ro.Name, ro.Description, ro.Priority, ro.MaxUsers,
		ro.IsActive, ro.ParentRoleID, ro.UpdatedBy, ro.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return role.ErrNotFound
	}
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return role.ErrNotFound
	}
	return nil
}
