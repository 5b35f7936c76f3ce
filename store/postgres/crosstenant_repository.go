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
	"github.com/authzcore/authzcore/crosstenant"
)

// CrossTenantRepository implements crosstenant.Repository against the
// cross_tenant_access table (spec.md §4.5).
type CrossTenantRepository struct {
	db *DB
}

// NewCrossTenantRepository creates a new cross-tenant grant repository.
func NewCrossTenantRepository(db *DB) *CrossTenantRepository {
	return &CrossTenantRepository{db: db}
}

func (r *CrossTenantRepository) Create(ctx context.Context, a *crosstenant.Access) error {
	conditions := a.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO cross_tenant_access (
			id, source_tenant, target_tenant, resource_type, resource_id, permissions,
			conditions, granted_by, granted_at, expires_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9, $10)
	`, a.ID, a.SourceTenant, a.TargetTenant, a.ResourceType, a.ResourceID, a.Permissions,
		conditions, a.GrantedBy, a.ExpiresAt, a.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return crosstenant.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create cross-tenant grant: %w", err)
	}
	return nil
}

const crossTenantColumns = `
	id, source_tenant, target_tenant, resource_type, resource_id, permissions,
	conditions, granted_by, granted_at, revoked_by, revoked_at, expires_at, is_active
`

func scanCrossTenant(row pgx.Row) (*crosstenant.Access, error) {
	var a crosstenant.Access
	err := row.Scan(
		&a.ID, &a.SourceTenant, &a.TargetTenant, &a.ResourceType, &a.ResourceID, &a.Permissions,
		&a.Conditions, &a.GrantedBy, &a.GrantedAt, &a.RevokedBy, &a.RevokedAt, &a.ExpiresAt, &a.IsActive,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, crosstenant.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan cross-tenant grant: %w", err)
	}
	return &a, nil
}

func (r *CrossTenantRepository) GetByID(ctx context.Context, id string) (*crosstenant.Access, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+crossTenantColumns+` FROM cross_tenant_access WHERE id = $1`, id)
	return scanCrossTenant(row)
}

func (r *CrossTenantRepository) FindActive(ctx context.Context, sourceTenant, targetTenant, resourceType string) (*crosstenant.Access, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+crossTenantColumns+` FROM cross_tenant_access
		WHERE source_tenant = $1 AND target_tenant = $2 AND resource_type = $3
		  AND is_active AND (expires_at IS NULL OR expires_at > NOW())
	`, sourceTenant, targetTenant, resourceType)
	return scanCrossTenant(row)
}

func (r *CrossTenantRepository) ListBySource(ctx context.Context, sourceTenant string) ([]*crosstenant.Access, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+crossTenantColumns+` FROM cross_tenant_access WHERE source_tenant = $1`, sourceTenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants by source: %w", err)
	}
	defer rows.Close()
	return collectCrossTenant(rows)
}

func (r *CrossTenantRepository) ListByTarget(ctx context.Context, targetTenant string) ([]*crosstenant.Access, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+crossTenantColumns+` FROM cross_tenant_access WHERE target_tenant = $1`, targetTenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants by target: %w", err)
	}
	defer rows.Close()
	return collectCrossTenant(rows)
}

func collectCrossTenant(rows pgx.Rows) ([]*crosstenant.Access, error) {
	var out []*crosstenant.Access
	for rows.Next() {
		a, err := scanCrossTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *CrossTenantRepository) Update(ctx context.Context, a *crosstenant.Access) error {
	conditions := a.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}
	result, err := r.db.pool.Exec(ctx, `
		UPDATE cross_tenant_access SET
			permissions = $2, conditions = $3, revoked_by = $4, revoked_at = $5,
			expires_at = $6, is_active = $7
		WHERE id = $1
	`, a.ID, a.Permissions, conditions, a.RevokedBy, a.RevokedAt, a.ExpiresAt, a.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update cross-tenant grant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return crosstenant.ErrNotFound
	}
	return nil
}
