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

package resource

import (
	"context"
	"fmt"

	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/events"
	"github.com/authzcore/authzcore/internal/id"
)

// Service is the administrative surface over Resource entities
// (spec.md §4.3 ResourceService).
//
// Purpose: CRUD with resource_identifier uniqueness, parent linkage,
// and policy attachment.
// Domain: Authz
type Service struct {
	repo      Repository
	links     PolicyLinkRepository
	cache     cache.DecisionCache
	publisher events.Publisher
}

// NewService constructs a resource Service.
func NewService(repo Repository, links PolicyLinkRepository, c cache.DecisionCache, pub events.Publisher) *Service {
	return &Service{repo: repo, links: links, cache: c, publisher: pub}
}

// CreateRequest describes a new resource.
type CreateRequest struct {
	ResourceIdentifier string
	ResourceType       string
	TenantID           string
	ParentResourceID   *string
	Attributes         map[string]any
	OwnerID            *string
	IsPublic           bool
}

// Create registers a new resource, enforcing resource_identifier
// uniqueness and, when a parent is given, that it resolves.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	if req.ResourceIdentifier == "" || req.ResourceType == "" {
		return nil, fmt.Errorf("%w: resource_identifier and resource_type are required", ErrValidation)
	}
	if len(req.ResourceIdentifier) > 255 {
		return nil, fmt.Errorf("%w: resource_identifier exceeds 255 characters", ErrValidation)
	}

	if existing, err := s.repo.GetByIdentifier(ctx, req.TenantID, req.ResourceIdentifier); err == nil && existing != nil {
		return nil, ErrAlreadyExists
	}

	if req.ParentResourceID != nil {
		if _, err := s.repo.GetByID(ctx, *req.ParentResourceID); err != nil {
			return nil, fmt.Errorf("parent resource not found: %w", err)
		}
	}

	attrs := req.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}

	r := &Resource{
		ID:                 id.New(),
		ResourceIdentifier: req.ResourceIdentifier,
		ResourceType:       req.ResourceType,
		TenantID:           req.TenantID,
		ParentResourceID:   req.ParentResourceID,
		Attributes:         attrs,
		OwnerID:            req.OwnerID,
		IsPublic:           req.IsPublic,
		IsActive:           true,
		Version:            1,
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return r, nil
}

// UpdateRequest describes a resource mutation. Nil fields are left
// unchanged.
type UpdateRequest struct {
	Attributes *map[string]any
	OwnerID    **string
	IsPublic   *bool
	IsActive   *bool
}

// Update mutates a resource under optimistic-lock control.
func (s *Service) Update(ctx context.Context, resourceID string, expectedVersion int, req UpdateRequest) (*Resource, error) {
	r, err := s.repo.GetByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource: %w", err)
	}
	if r.Version != expectedVersion {
		return nil, ErrConflict
	}

	if req.Attributes != nil {
		r.Attributes = *req.Attributes
	}
	if req.OwnerID != nil {
		r.OwnerID = *req.OwnerID
	}
	if req.IsPublic != nil {
		r.IsPublic = *req.IsPublic
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}
	r.Version++

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}

	_ = s.cache.InvalidateAll(ctx)
	return r, nil
}

// Delete removes a resource, forbidding it while child resources
// exist (spec.md §4.3).
func (s *Service) Delete(ctx context.Context, resourceID string) error {
	children, err := s.repo.ListChildren(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("failed to list child resources: %w", err)
	}
	if len(children) > 0 {
		return ErrHasChildren
	}
	if err := s.repo.Delete(ctx, resourceID); err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	_ = s.cache.InvalidateAll(ctx)
	return nil
}

// AttachPolicy links a policy to a resource (many-to-many, spec.md §3).
func (s *Service) AttachPolicy(ctx context.Context, resourceID, policyID string) error {
	if err := s.links.Attach(ctx, resourceID, policyID); err != nil {
		return fmt.Errorf("failed to attach policy: %w", err)
	}
	_ = s.cache.InvalidateAll(ctx)
	return nil
}

// DetachPolicy unlinks a policy from a resource.
func (s *Service) DetachPolicy(ctx context.Context, resourceID, policyID string) error {
	if err := s.links.Detach(ctx, resourceID, policyID); err != nil {
		return fmt.Errorf("failed to detach policy: %w", err)
	}
	_ = s.cache.InvalidateAll(ctx)
	return nil
}

// PolicyIDs returns the policies attached to a resource.
func (s *Service) PolicyIDs(ctx context.Context, resourceID string) ([]string, error) {
	ids, err := s.links.ListPolicyIDs(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attached policies: %w", err)
	}
	return ids, nil
}
