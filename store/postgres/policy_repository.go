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
	"github.com/authzcore/authzcore/policy"
)

// PolicyRepository implements policy.Repository against the policies
// table, eagerly loading each policy's permission and resource
// attachments from their join tables.
type PolicyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(db *DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) Create(ctx context.Context, p *policy.Policy) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	conditions := p.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO policies (
			id, name, tenant_id, type, effect, priority, conditions,
			start_date, end_date, is_active, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`, p.ID, p.Name, p.TenantID, p.Type, p.Effect, p.Priority, conditions,
		p.StartDate, p.EndDate, p.IsActive, p.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return policy.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert policy: %w", err)
	}

	if err := linkPolicyPermissions(ctx, tx, p.ID, p.PermissionIDs); err != nil {
		return err
	}
	if err := linkPolicyResources(ctx, tx, p.ID, p.ResourceIDs); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func linkPolicyPermissions(ctx context.Context, tx pgx.Tx, policyID string, permissionIDs []string) error {
	for _, permID := range permissionIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO policy_permissions (policy_id, permission_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, policyID, permID)
		if err != nil {
			return fmt.Errorf("failed to link policy permission: %w", err)
		}
	}
	return nil
}

func linkPolicyResources(ctx context.Context, tx pgx.Tx, policyID string, resourceIDs []string) error {
	for _, resID := range resourceIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO resource_policy_links (resource_id, policy_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, resID, policyID)
		if err != nil {
			return fmt.Errorf("failed to link policy resource: %w", err)
		}
	}
	return nil
}

const policyColumns = `
	p.id, p.name, p.tenant_id, p.type, p.effect, p.priority, p.conditions,
	p.start_date, p.end_date, p.is_active, p.version,
	COALESCE(array_agg(DISTINCT pp.permission_id) FILTER (WHERE pp.permission_id IS NOT NULL), '{}'),
	COALESCE(array_agg(DISTINCT rpl.resource_id) FILTER (WHERE rpl.resource_id IS NOT NULL), '{}')
`

const policyFromJoins = `
	FROM policies p
	LEFT JOIN policy_permissions pp ON pp.policy_id = p.id
	LEFT JOIN resource_policy_links rpl ON rpl.policy_id = p.id
`

const policyGroupBy = `
	GROUP BY p.id, p.name, p.tenant_id, p.type, p.effect, p.priority, p.conditions,
	         p.start_date, p.end_date, p.is_active, p.version
`

func scanPolicy(row pgx.Row) (*policy.Policy, error) {
	var p policy.Policy
	err := row.Scan(
		&p.ID, &p.Name, &p.TenantID, &p.Type, &p.Effect, &p.Priority, &p.Conditions,
		&p.StartDate, &p.EndDate, &p.IsActive, &p.Version, &p.PermissionIDs, &p.ResourceIDs,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, policy.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}
	return &p, nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*policy.Policy, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+policyColumns+` `+policyFromJoins+` WHERE p.id = $1 `+policyGroupBy, id)
	return scanPolicy(row)
}

func (r *PolicyRepository) GetByName(ctx context.Context, name, tenantID string) (*policy.Policy, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+policyColumns+` `+policyFromJoins+` WHERE p.name = $1 AND p.tenant_id = $2 `+policyGroupBy, name, tenantID)
	return scanPolicy(row)
}

func (r *PolicyRepository) ListByResource(ctx context.Context, resourceID string) ([]*policy.Policy, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+policyColumns+` `+policyFromJoins+`
		WHERE p.id IN (SELECT policy_id FROM resource_policy_links WHERE resource_id = $1)
		`+policyGroupBy, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies by resource: %w", err)
	}
	defer rows.Close()
	return collectPolicies(rows)
}

func (r *PolicyRepository) ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*policy.Policy, error) {
	query := `SELECT ` + policyColumns + ` ` + policyFromJoins + ` WHERE p.tenant_id = $1`
	if activeOnly {
		query += ` AND p.is_active`
	}
	query += policyGroupBy

	rows, err := r.db.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies by tenant: %w", err)
	}
	defer rows.Close()
	return collectPolicies(rows)
}

func (r *PolicyRepository) ListExpired(ctx context.Context, now time.Time) ([]*policy.Policy, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+policyColumns+` `+policyFromJoins+`
		WHERE p.end_date IS NOT NULL AND p.end_date <= $1
		`+policyGroupBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired policies: %w", err)
	}
	defer rows.Close()
	return collectPolicies(rows)
}

func collectPolicies(rows pgx.Rows) ([]*policy.Policy, error) {
	var out []*policy.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PolicyRepository) Update(ctx context.Context, p *policy.Policy) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	conditions := p.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}

	result, err := tx.Exec(ctx, `
		UPDATE policies SET
			effect = $2, priority = $3, conditions = $4, start_date = $5, end_date = $6,
			is_active = $7, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $8
	`, p.ID, p.Effect, p.Priority, conditions, p.StartDate, p.EndDate, p.IsActive, p.Version)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return policy.ErrConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM policy_permissions WHERE policy_id = $1`, p.ID); err != nil {
		return fmt.Errorf("failed to clear policy permissions: %w", err)
	}
	if err := linkPolicyPermissions(ctx, tx, p.ID, p.PermissionIDs); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM resource_policy_links WHERE policy_id = $1`, p.ID); err != nil {
		return fmt.Errorf("failed to clear policy resource links: %w", err)
	}
	if err := linkPolicyResources(ctx, tx, p.ID, p.ResourceIDs); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PolicyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return policy.ErrNotFound
	}
	return nil
}
