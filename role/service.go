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

package role

import (
	"context"
	"fmt"
	"time"

	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/events"
	"github.com/authzcore/authzcore/internal/id"
	"github.com/authzcore/authzcore/metrics"
	"github.com/authzcore/authzcore/permission"
)


// Service implements the RoleService contract of spec.md §4.3.
//
// Purpose: Administrative CRUD and hierarchy management for roles.
// Domain: Authz
type Service struct {
	repo       Repository
	rpRepo     RolePermissionRepository
	urRepo     UserRoleRepository
	permRepo   permission.Repository
	cache      cache.DecisionCache
	publisher  events.Publisher
	maxDepth   int
	maxPerRole int
}

// NewService constructs a role Service.
func NewService(repo Repository, rpRepo RolePermissionRepository, urRepo UserRoleRepository, permRepo permission.Repository, c cache.DecisionCache, pub events.Publisher) *Service {
	return &Service{
		repo:       repo,
		rpRepo:     rpRepo,
		urRepo:     urRepo,
		permRepo:   permRepo,
		cache:      c,
		publisher:  pub,
		maxDepth:   MaxHierarchyDepth,
		maxPerRole: MaxPermissionsPerRole,
	}
}

// CreateRequest describes a new role.
type CreateRequest struct {
	TenantID       *string
	Name           string
	Description    string
	Priority       int
	MaxUsers       *int
	ParentRoleID   *string
	PermissionIDs  []string
	CreatedBy      string
}

// Create creates a role, optionally attaching an initial permission
// set and a parent for inheritance (spec.md §4.3).
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Role, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}

	if existing, err := s.repo.GetByName(ctx, req.Name, req.TenantID); err == nil && existing != nil {
		metrics.RecordRoleOperation("create", "conflict")
		return nil, ErrAlreadyExists
	}

	r := &Role{
		ID:           id.New(),
		TenantID:     req.TenantID,
		Name:         req.Name,
		Description:  req.Description,
		Priority:     req.Priority,
		MaxUsers:     req.MaxUsers,
		IsActive:     true,
		ParentRoleID: req.ParentRoleID,
		CreatedBy:    req.CreatedBy,
		UpdatedBy:    req.CreatedBy,
		Version:      1,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if req.ParentRoleID != nil {
		if err := ValidateParent(ctx, s.repo, req.TenantID, r.ID, *req.ParentRoleID, s.maxDepth); err != nil {
			return nil, err
		}
	}

	if len(req.PermissionIDs) > s.maxPerRole {
		return nil, ErrTooManyPermissions
	}

	if err := s.repo.Create(ctx, r); err != nil {
		metrics.RecordRoleOperation("create", "error")
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	for _, permID := range req.PermissionIDs {
		rp := &RolePermission{
			ID:           id.New(),
			RoleID:       r.ID,
			PermissionID: permID,
			GrantedBy:    req.CreatedBy,
			GrantedAt:    time.Now(),
		}
		if err := s.rpRepo.Create(ctx, rp); err != nil {
			metrics.RecordRoleOperation("create", "error")
			return nil, fmt.Errorf("failed to attach permission %s: %w", permID, err)
		}
	}

	s.publisher.Publish(ctx, events.NewEvent(id.New(), events.TypeRoleCreated, tenantOrEmpty(r.TenantID), req.CreatedBy))
	metrics.RecordRoleOperation("create", "ok")
	return r, nil
}

// UpdateRequest describes a role mutation. Nil fields are left
// unchanged.
type UpdateRequest struct {
	Name        *string
	Description *string
	Priority    *int
	MaxUsers    *int
	IsActive    *bool
	UpdatedBy   string
	Override    bool // required to mutate an is_system role
}

// Update mutates a role, forbidding changes to system roles unless
// Override is set, and refusing to drop MaxUsers below the current
// active assignment count (spec.md §4.3).
func (s *Service) Update(ctx context.Context, roleID string, req UpdateRequest) (*Role, error) {
	r, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role: %w", err)
	}

	if r.IsSystem && !req.Override {
		return nil, ErrSystemRole
	}

	changes := map[string]any{}

	if req.Name != nil && *req.Name != r.Name {
		if existing, err := s.repo.GetByName(ctx, *req.Name, r.TenantID); err == nil && existing != nil && existing.ID != r.ID {
			return nil, ErrAlreadyExists
		}
		changes["name"] = map[string]string{"from": r.Name, "to": *req.Name}
		r.Name = *req.Name
	}
	if req.Description != nil {
		r.Description = *req.Description
	}
	if req.Priority != nil {
		r.Priority = *req.Priority
	}
	if req.MaxUsers != nil {
		active, err := s.urRepo.CountActiveForRole(ctx, roleID)
		if err != nil {
			return nil, fmt.Errorf("failed to count active assignments: %w", err)
		}
		if *req.MaxUsers < active {
			return nil, ErrMaxUsersBelowCurrent
		}
		r.MaxUsers = req.MaxUsers
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}

	r.UpdatedBy = req.UpdatedBy
	r.UpdatedAt = time.Now()
	r.Version++

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	_ = s.cache.InvalidateAll(ctx) // coarse: role changes can affect any holder

	ev := events.NewEvent(id.New(), events.TypeRoleUpdated, tenantOrEmpty(r.TenantID), req.UpdatedBy)
	ev.Attrs["changes"] = changes
	s.publisher.Publish(ctx, ev)

	metrics.RecordRoleOperation("update", "ok")
	return r, nil
}

// Delete removes a role, forbidding it when the role is a system role,
// has active user assignments, or has child roles (spec.md §4.3).
func (s *Service) Delete(ctx context.Context, roleID string, actorID string) error {
	r, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to load role: %w", err)
	}
	if r.IsSystem {
		return ErrSystemRole
	}

	active, err := s.urRepo.CountActiveForRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to count active assignments: %w", err)
	}
	if active > 0 {
		return ErrInUse
	}

	children, err := s.repo.ListChildren(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to list child roles: %w", err)
	}
	if len(children) > 0 {
		return ErrInUse
	}

	if err := s.repo.Delete(ctx, roleID); err != nil {
		metrics.RecordRoleOperation("delete", "error")
		return fmt.Errorf("failed to delete role: %w", err)
	}

	_ = s.cache.InvalidateAll(ctx)
	s.publisher.Publish(ctx, events.NewEvent(id.New(), events.TypeRoleDeleted, tenantOrEmpty(r.TenantID), actorID))
	metrics.RecordRoleOperation("delete", "ok")
	return nil
}

// Clone deep-copies a role's permissions into a new, non-system role
// sharing the source's parent (spec.md §4.3).
func (s *Service) Clone(ctx context.Context, sourceID, newName string, tenantID *string, actorID string) (*Role, error) {
	src, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source role: %w", err)
	}

	perms, err := s.rpRepo.ListByRole(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list source permissions: %w", err)
	}

	permIDs := make([]string, 0, len(perms))
	for _, p := range perms {
		permIDs = append(permIDs, p.PermissionID)
	}

	return s.Create(ctx, CreateRequest{
		TenantID:      tenantID,
		Name:          newName,
		Description:   src.Description,
		Priority:      src.Priority,
		ParentRoleID:  src.ParentRoleID,
		PermissionIDs: permIDs,
		CreatedBy:     actorID,
	})
}

// AssignPermissions attaches permissions to a role, idempotently
// skipping pairs already present, and enforcing the per-role cap
// across existing plus new grants (spec.md §4.3).
func (s *Service) AssignPermissions(ctx context.Context, roleID string, permissionIDs []string, by string) error {
	existing, err := s.rpRepo.ListByRole(ctx, roleID)
	if err != nil {
		return fmt.Errorf("failed to list existing permissions: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, rp := range existing {
		have[rp.PermissionID] = true
	}

	var toAdd []string
	for _, pid := range permissionIDs {
		if !have[pid] {
			toAdd = append(toAdd, pid)
		}
	}

	if len(existing)+len(toAdd) > s.maxPerRole {
		return ErrTooManyPermissions
	}

	for _, pid := range toAdd {
		rp := &RolePermission{
			ID:           id.New(),
			RoleID:       roleID,
			PermissionID: pid,
			GrantedBy:    by,
			GrantedAt:    time.Now(),
		}
		if err := s.rpRepo.Create(ctx, rp); err != nil {
			return fmt.Errorf("failed to assign permission %s: %w", pid, err)
		}
		s.publisher.Publish(ctx, events.NewEvent(id.New(), events.TypePermissionGranted, "", by))
	}

	if len(toAdd) > 0 {
		_ = s.cache.InvalidateAll(ctx)
	}
	return nil
}

// RemovePermission revokes a single permission grant from a role,
// invalidating the decision cache and emitting PermissionRevoked the
// same way AssignPermissions emits PermissionGranted (spec.md §4.3).
func (s *Service) RemovePermission(ctx context.Context, roleID, permissionID string, by string) error {
	if _, err := s.rpRepo.Get(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("failed to load role permission grant: %w", err)
	}

	if err := s.rpRepo.Delete(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("failed to remove permission %s from role %s: %w", permissionID, roleID, err)
	}

	_ = s.cache.InvalidateAll(ctx)
	s.publisher.Publish(ctx, events.NewEvent(id.New(), events.TypePermissionRevoked, "", by))
	return nil
}

// SetPermissionExpiration sets an expiry on a role's permission grant;
// the expiry must be in the future (spec.md §4.3).
func (s *Service) SetPermissionExpiration(ctx context.Context, roleID, permissionID string, expiresAt time.Time) error {
	if !expiresAt.After(time.Now()) {
		return ErrExpirationInPast
	}
	if err := s.rpRepo.SetExpiration(ctx, roleID, permissionID, expiresAt); err != nil {
		return fmt.Errorf("failed to set permission expiration: %w", err)
	}
	return nil
}

// GetAllPermissionsIncludingInherited returns the role's own valid
// permissions plus every ancestor's, de-duplicated (spec.md §4.3).
func (s *Service) GetAllPermissionsIncludingInherited(ctx context.Context, roleID string) ([]*GrantedPermission, error) {
	r, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return InheritedPermissions(ctx, s.repo, s.rpRepo, s.permRepo, r, time.Now(), s.maxDepth)
}

// Hierarchy is the result of GetHierarchy: the role itself, its
// ancestor chain (root-ward), direct children, and the union of
// inherited permissions.
type Hierarchy struct {
	Role        *Role
	Ancestors   []*Role
	Children    []*Role
	Permissions []*GrantedPermission
}

// GetHierarchy returns the role, its parent chain, its direct
// children, and its inherited permission union (spec.md §4.3).
func (s *Service) GetHierarchy(ctx context.Context, roleID string) (*Hierarchy, error) {
	r, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role: %w", err)
	}

	ancestors, err := WalkAncestors(ctx, s.repo, r, s.maxDepth)
	if err != nil {
		return nil, err
	}

	children, err := s.repo.ListChildren(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}

	perms, err := InheritedPermissions(ctx, s.repo, s.rpRepo, s.permRepo, r, time.Now(), s.maxDepth)
	if err != nil {
		return nil, err
	}

	return &Hierarchy{Role: r, Ancestors: ancestors, Children: children, Permissions: perms}, nil
}

// SweepExpiredPermissions deletes RolePermission grants past their
// expires_at, used by the maintenance scheduler (spec.md §4.6).
func (s *Service) SweepExpiredPermissions(ctx context.Context) (int, error) {
	n, err := s.rpRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired role permissions: %w", err)
	}
	if n > 0 {
		_ = s.cache.InvalidateAll(ctx)
	}
	return n, nil
}

func tenantOrEmpty(tenantID *string) string {
	if tenantID == nil {
		return ""
	}
	return *tenantID
}
