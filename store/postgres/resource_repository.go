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
	"github.com/authzcore/authzcore/resource"
)

// ResourceRepository implements resource.Repository against the
// resources table.
type ResourceRepository struct {
	db *DB
}

// NewResourceRepository creates a new resource repository.
func NewResourceRepository(db *DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) Create(ctx context.Context, res *resource.Resource) error {
	attrs := res.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO resources (
			id, resource_identifier, resource_type, tenant_id, parent_resource_id,
			attributes, owner_id, is_public, is_active, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, res.ID, res.ResourceIdentifier, res.ResourceType, res.TenantID, res.ParentResourceID,
		attrs, res.OwnerID, res.IsPublic, res.IsActive, res.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return resource.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

const resourceColumns = `
	id, resource_identifier, resource_type, tenant_id, parent_resource_id,
	attributes, owner_id, is_public, is_active, version
`

func scanResource(row pgx.Row) (*resource.Resource, error) {
	var res resource.Resource
	err := row.Scan(
		&res.ID, &res.ResourceIdentifier, &res.ResourceType, &res.TenantID, &res.ParentResourceID,
		&res.Attributes, &res.OwnerID, &res.IsPublic, &res.IsActive, &res.Version,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, resource.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan resource: %w", err)
	}
	return &res, nil
}

func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*resource.Resource, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
	return scanResource(row)
}

func (r *ResourceRepository) GetByIdentifier(ctx context.Context, tenantID, identifier string) (*resource.Resource, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+resourceColumns+` FROM resources WHERE tenant_id = $1 AND resource_identifier = $2
	`, tenantID, identifier)
	return scanResource(row)
}

func (r *ResourceRepository) ListChildren(ctx context.Context, parentID string) ([]*resource.Resource, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+resourceColumns+` FROM resources WHERE parent_resource_id = $1`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child resources: %w", err)
	}
	defer rows.Close()

	var out []*resource.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *ResourceRepository) Update(ctx context.Context, res *resource.Resource) error {
	attrs := res.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	result, err := r.db.pool.Exec(ctx, `
		UPDATE resources SET
			attributes = $2, owner_id = $3, is_public = $4, is_active = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $6
	`, res.ID, attrs, res.OwnerID, res.IsPublic, res.IsActive, res.Version)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	if result.RowsAffected() == 0 {
		return resource.ErrConflict
	}
	return nil
}

func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	if result.RowsAffected() == 0 {
		return resource.ErrNotFound
	}
	return nil
}

// PolicyLinkRepository implements resource.PolicyLinkRepository
// against the resource_policy_links join table.
type PolicyLinkRepository struct {
	db *DB
}

// NewPolicyLinkRepository creates a new resource-policy link repository.
func NewPolicyLinkRepository(db *DB) *PolicyLinkRepository {
	return &PolicyLinkRepository{db: db}
}

func (r *PolicyLinkRepository) Attach(ctx context.Context, resourceID, policyID string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO resource_policy_links (resource_id, policy_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, resourceID, policyID)
	if err != nil {
		return fmt.Errorf("failed to attach policy to resource: %w", err)
	}
	return nil
}

func (r *PolicyLinkRepository) Detach(ctx context.Context, resourceID, policyID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM resource_policy_links WHERE resource_id = $1 AND policy_id = $2
	`, resourceID, policyID)
	if err != nil {
		return fmt.Errorf("failed to detach policy from resource: %w", err)
	}
	return nil
}

func (r *PolicyLinkRepository) ListPolicyIDs(ctx context.Context, resourceID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT policy_id FROM resource_policy_links WHERE resource_id = $1`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resource policy links: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}
