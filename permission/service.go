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

package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/authzcore/authzcore/errkind"
	"github.com/authzcore/authzcore/internal/id"
)

// enumCacheTTL bounds how stale the ResourceTypes/Actions enumeration
// caches may be before a Create forces a refresh anyway.
const enumCacheTTL = 5 * time.Minute

// Service is the administrative surface over the permission catalog
// (spec.md §4.3's sibling entity operations for Permission).
//
// Purpose: Create, list, and retire Permission entities.
// Domain: Authz
type Service struct {
	repo Repository

	enumMu          sync.Mutex
	resourceTypes   []string
	resourceTypesAt time.Time
	actions         []string
	actionsAt       time.Time
}

// NewService constructs a permission Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateRequest describes a new permission.
type CreateRequest struct {
	ResourceType     string
	Action           string
	RiskLevel        RiskLevel
	RequiresMFA      bool
	RequiresApproval bool
	IsSystem         bool
}

// Create registers a new (resource_type, action) permission, rejecting
// duplicates of that pair.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Permission, error) {
	if req.ResourceType == "" || req.Action == "" {
		return nil, fmt.Errorf("%w: resource_type and action are required", ErrValidation)
	}
	if len(req.ResourceType) > 100 {
		return nil, fmt.Errorf("%w: resource_type exceeds 100 characters", ErrValidation)
	}
	if len(req.Action) > 50 {
		return nil, fmt.Errorf("%w: action exceeds 50 characters", ErrValidation)
	}

	if existing, err := s.repo.GetByResourceAction(ctx, req.ResourceType, req.Action); err == nil && existing != nil {
		return nil, ErrAlreadyExists
	}

	risk := req.RiskLevel
	if risk == "" {
		risk = RiskLow
	}

	p := &Permission{
		ID:               id.New(),
		ResourceType:     req.ResourceType,
		Action:           req.Action,
		RiskLevel:        risk,
		RequiresMFA:      req.RequiresMFA,
		RequiresApproval: req.RequiresApproval,
		IsSystem:         req.IsSystem,
		IsActive:         true,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		slog.ErrorContext(ctx, "permission: failed to create", "kind", errkind.Classify(err), "error", err)
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	// A new permission may introduce a resource_type/action not yet
	// present in either enumeration cache.
	s.enumMu.Lock()
	s.resourceTypesAt = time.Time{}
	s.actionsAt = time.Time{}
	s.enumMu.Unlock()

	return p, nil
}

// Get loads a permission by ID.
func (s *Service) Get(ctx context.Context, id string) (*Permission, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission: %w", err)
	}
	return p, nil
}

// List returns permissions matching filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Permission, error) {
	perms, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	return perms, nil
}

// Retire deactivates a permission; system permissions cannot be
// retired.
func (s *Service) Retire(ctx context.Context, permID string) error {
	p, err := s.repo.GetByID(ctx, permID)
	if err != nil {
		return fmt.Errorf("failed to load permission: %w", err)
	}
	if p.IsSystem {
		return fmt.Errorf("%w: cannot retire a system permission", ErrValidation)
	}
	p.IsActive = false
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to retire permission: %w", err)
	}
	return nil
}

// ResourceTypes returns the distinct set of resource types known to
// the catalog, used to populate policy-authoring UIs. The enumeration
// is cached for enumCacheTTL since it changes only when a permission
// introducing a new resource_type is created (spec.md §4.3).
func (s *Service) ResourceTypes(ctx context.Context) ([]string, error) {
	s.enumMu.Lock()
	defer s.enumMu.Unlock()

	if time.Since(s.resourceTypesAt) < enumCacheTTL {
		return s.resourceTypes, nil
	}

	types, err := s.repo.DistinctResourceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resource types: %w", err)
	}
	s.resourceTypes = types
	s.resourceTypesAt = time.Now()
	return types, nil
}

// Actions returns the distinct set of actions known to the catalog,
// cached the same way as ResourceTypes.
func (s *Service) Actions(ctx context.Context) ([]string, error) {
	s.enumMu.Lock()
	defer s.enumMu.Unlock()

	if time.Since(s.actionsAt) < enumCacheTTL {
		return s.actions, nil
	}

	actions, err := s.repo.DistinctActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	s.actions = actions
	s.actionsAt = time.Now()
	return actions, nil
}
