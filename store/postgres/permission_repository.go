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
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/authzcore/authzcore/permission"
)

// PermissionRepository implements permission.Repository against the
// permissions table.
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository.
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) Create(ctx context.Context, p *permission.Permission) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO permissions (
			id, resource_type, action, risk_level, requires_mfa, requires_approval,
			is_system, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, p.ID, p.ResourceType, p.Action, p.RiskLevel, p.RequiresMFA, p.RequiresApproval, p.IsSystem, p.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return permission.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create permission: %w", err)
	}
	return nil
}

const permissionColumns = `id, resource_type, action, risk_level, requires_mfa, requires_approval, is_system, is_active`

func scanPermission(row pgx.Row) (*permission.Permission, error) {
	var p permission.Permission
	err := row.Scan(&p.ID, &p.ResourceType, &p.Action, &p.RiskLevel, &p.RequiresMFA, &p.RequiresApproval, &p.IsSystem, &p.IsActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, permission.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan permission: %w", err)
	}
	return &p, nil
}

func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*permission.Permission, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	return scanPermission(row)
}

func (r *PermissionRepository) GetByResourceAction(ctx context.Context, resourceType, action string) (*permission.Permission, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE resource_type = $1 AND action = $2`, resourceType, action)
	return scanPermission(row)
}

func (r *PermissionRepository) List(ctx context.Context, filter permission.Filter) ([]*permission.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions`
	var clauses []string
	var args []any
	argIdx := 1

	if filter.ResourceType != nil {
		clauses = append(clauses, fmt.Sprintf("resource_type = $%d", argIdx))
		args = append(args, *filter.ResourceType)
		argIdx++
	}
	if filter.IsActive != nil {
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *filter.IsActive)
		argIdx++
	}
	if filter.RiskLevel != nil {
		clauses = append(clauses, fmt.Sprintf("risk_level = $%d", argIdx))
		args = append(args, string(*filter.RiskLevel))
		argIdx++
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY resource_type ASC, action ASC"

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var out []*permission.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PermissionRepository) Update(ctx context.Context, p *permission.Permission) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE permissions SET
			risk_level = $2, requires_mfa = $3, requires_approval = $4, is_active = $5,
			updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.RiskLevel, p.RequiresMFA, p.RequiresApproval, p.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return permission.ErrNotFound
	}
	return nil
}

func (r *PermissionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return permission.ErrNotFound
	}
	return nil
}

func (r *PermissionRepository) DistinctResourceTypes(ctx context.Context) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT DISTINCT resource_type FROM permissions ORDER BY resource_type ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct resource types: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (r *PermissionRepository) DistinctActions(ctx context.Context) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT DISTINCT action FROM permissions ORDER BY action ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct actions: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan string: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
