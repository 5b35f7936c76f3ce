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

package crosstenant

import (
	"context"
	"fmt"
	"time"

	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/events"
	"github.com/authzcore/authzcore/internal/id"
	"github.com/authzcore/authzcore/metrics"
)

// Service is the administrative surface over Access grants (spec.md
// §4.5).
//
// Purpose: Grant/Revoke/Check, the only path by which a decision may
// cross a tenant boundary.
// Domain: Authz
type Service struct {
	repo      Repository
	cache     cache.DecisionCache
	publisher events.Publisher
}

// NewService constructs a crosstenant Service.
func NewService(repo Repository, c cache.DecisionCache, pub events.Publisher) *Service {
	return &Service{repo: repo, cache: c, publisher: pub}
}

// GrantRequest describes a new cross-tenant grant.
type GrantRequest struct {
	SourceTenant string
	TargetTenant string
	ResourceType string
	ResourceID   *string
	Permissions  []string
	Conditions   map[string]any
	ExpiresAt    *time.Time
	GrantedBy    string
}

// Grant creates a new Access, rejecting source == target, an empty
// permission list, or a conflicting active grant for the same
// (source, target, resource_type) (spec.md §4.5).
func (s *Service) Grant(ctx context.Context, req GrantRequest) (*Access, error) {
	if req.SourceTenant == "" || req.TargetTenant == "" || req.ResourceType == "" {
		return nil, fmt.Errorf("%w: source_tenant, target_tenant and resource_type are required", ErrValidation)
	}
	if req.SourceTenant == req.TargetTenant {
		metrics.RecordCrossTenantGrant("grant", "rejected")
		return nil, ErrSameTenant
	}
	if len(req.Permissions) == 0 {
		metrics.RecordCrossTenantGrant("grant", "rejected")
		return nil, fmt.Errorf("%w: permissions must be non-empty", ErrValidation)
	}

	if existing, err := s.repo.FindActive(ctx, req.SourceTenant, req.TargetTenant, req.ResourceType); err == nil && existing != nil {
		metrics.RecordCrossTenantGrant("grant", "conflict")
		return nil, ErrAlreadyExists
	}

	conditions := req.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}

	a := &Access{
		ID:           id.New(),
		SourceTenant: req.SourceTenant,
		TargetTenant: req.TargetTenant,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Permissions:  req.Permissions,
		Conditions:   conditions,
		GrantedBy:    req.GrantedBy,
		GrantedAt:    time.Now(),
		ExpiresAt:    req.ExpiresAt,
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		metrics.RecordCrossTenantGrant("grant", "error")
		return nil, fmt.Errorf("failed to create cross-tenant grant: %w", err)
	}
	metrics.RecordCrossTenantGrant("grant", "ok")

	ev := events.NewEvent(id.New(), events.TypeCrossTenantAccessGranted, req.TargetTenant, req.GrantedBy)
	ev.Resource = req.ResourceType
	ev.TargetID = a.ID
	ev.Attrs["source_tenant"] = req.SourceTenant
	ev.Attrs["target_tenant"] = req.TargetTenant
	ev.Attrs["permissions"] = req.Permissions
	s.publisher.Publish(ctx, ev)

	_ = s.cache.InvalidateAll(ctx)
	return a, nil
}

// Revoke deactivates a grant, stamping RevokedBy/RevokedAt.
func (s *Service) Revoke(ctx context.Context, accessID, revokedBy string) error {
	a, err := s.repo.GetByID(ctx, accessID)
	if err != nil {
		metrics.RecordCrossTenantGrant("revoke", "error")
		return fmt.Errorf("failed to load cross-tenant grant: %w", err)
	}

	now := time.Now()
	a.IsActive = false
	a.RevokedBy = revokedBy
	a.RevokedAt = &now

	if err := s.repo.Update(ctx, a); err != nil {
		metrics.RecordCrossTenantGrant("revoke", "error")
		return fmt.Errorf("failed to revoke cross-tenant grant: %w", err)
	}
	metrics.RecordCrossTenantGrant("revoke", "ok")

	ev := events.NewEvent(id.New(), events.TypeCrossTenantAccessRevoked, a.TargetTenant, revokedBy)
	ev.Resource = a.ResourceType
	ev.TargetID = a.ID
	ev.Attrs["source_tenant"] = a.SourceTenant
	ev.Attrs["target_tenant"] = a.TargetTenant
	s.publisher.Publish(ctx, ev)

	_ = s.cache.InvalidateAll(ctx)
	return nil
}

// Check reports whether an active, unexpired grant from sourceTenant
// into targetTenant covers action against resourceType (spec.md §4.5's
// Check operation). Invoked by callers explicitly, as a separate
// contract from the engine's Authorize pipeline — spec.md §4.1's nine
// steps never branch on AuthzRequest.TargetTenantID.
func (s *Service) Check(ctx context.Context, sourceTenant, targetTenant, resourceType, action string) (bool, error) {
	a, err := s.repo.FindActive(ctx, sourceTenant, targetTenant, resourceType)
	if err != nil {
		return false, nil
	}
	if a == nil || !a.Active(time.Now()) {
		return false, nil
	}
	return a.Allows(action), nil
}
