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
	"log/slog"
	"time"

	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/errkind"
	"github.com/authzcore/authzcore/events"
	"github.com/authzcore/authzcore/internal/id"
)

// UserRoleService administers UserRole assignments (spec.md §4.3).
//
// Purpose: Assign/revoke roles to users, enforcing max_users and
// invalidating the decision cache on every change that could affect
// an authorization outcome.
// Domain: Authz
type UserRoleService struct {
	roles     Repository
	urRepo    UserRoleRepository
	cache     cache.DecisionCache
	publisher events.Publisher
}

// NewUserRoleService constructs a UserRoleService.
func NewUserRoleService(roles Repository, urRepo UserRoleRepository, c cache.DecisionCache, pub events.Publisher) *UserRoleService {
	return &UserRoleService{roles: roles, urRepo: urRepo, cache: c, publisher: pub}
}

// Assign grants roleID to userID within tenantID, refusing to exceed
// role.MaxUsers and refusing a duplicate active assignment.
func (s *UserRoleService) Assign(ctx context.Context, userID, roleID, tenantID string, expiresAt *time.Time, assignedBy string) (*UserRole, error) {
	r, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	if !r.IsActive {
		return nil, fmt.Errorf("%w: role is inactive", ErrInvalid)
	}

	exists, err := s.urRepo.ExistsActive(ctx, userID, roleID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing assignment: %w", err)
	}
	if exists {
		return nil, ErrAssignmentAlreadyExists
	}

	if r.MaxUsers != nil {
		active, err := s.urRepo.CountActiveForRole(ctx, roleID)
		if err != nil {
			return nil, fmt.Errorf("failed to count active assignments: %w", err)
		}
		if active >= *r.MaxUsers {
			return nil, ErrMaxUsersExceeded
		}
	}

	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, ErrExpirationInPast
	}

	ur := &UserRole{
		ID:         id.New(),
		UserID:     userID,
		RoleID:     roleID,
		TenantID:   tenantID,
		AssignedBy: assignedBy,
		AssignedAt: time.Now(),
		ExpiresAt:  expiresAt,
		IsActive:   true,
	}

	if err := s.urRepo.Create(ctx, ur); err != nil {
		slog.ErrorContext(ctx, "role: failed to create assignment", "kind", errkind.Classify(err), "error", err)
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	_ = s.cache.InvalidateUser(ctx, userID, tenantID)
	s.publisher.Publish(ctx, events.NewEvent(id.New(), events.TypeRoleAssigned, tenantID, assignedBy))
	return ur, nil
}

// Revoke deactivates a user's assignment of roleID within tenantID.
func (s *UserRoleService) Revoke(ctx context.Context, userID, roleID, tenantID, revokedBy string) error {
	exists, err := s.urRepo.ExistsActive(ctx, userID, roleID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to check assignment: %w", err)
	}
	if !exists {
		return ErrAssignmentNotFound
	}

	if err := s.urRepo.Deactivate(ctx, userID, roleID, tenantID); err != nil {
		return fmt.Errorf("failed to revoke assignment: %w", err)
	}

	_ = s.cache.InvalidateUser(ctx, userID, tenantID)
	s.publisher.Publish(ctx, events.NewEvent(id.New(), events.TypeRoleRevoked, tenantID, revokedBy))
	return nil
}

// ListForUser returns every assignment held by userID.
func (s *UserRoleService) ListForUser(ctx context.Context, userID string) ([]*UserRole, error) {
	urs, err := s.urRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return urs, nil
}

// ListForRole returns every assignment of roleID, across every tenant.
func (s *UserRoleService) ListForRole(ctx context.Context, roleID string) ([]*UserRole, error) {
	urs, err := s.urRepo.ListByRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return urs, nil
}

// ListForTenant returns every assignment within tenantID.
func (s *UserRoleService) ListForTenant(ctx context.Context, tenantID string) ([]*UserRole, error) {
	urs, err := s.urRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return urs, nil
}

// SweepExpired deletes assignments past their expires_at, used by the
// maintenance scheduler (spec.md §4.6).
func (s *UserRoleService) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.urRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired assignments: %w", err)
	}
	if n > 0 {
		_ = s.cache.InvalidateAll(ctx)
	}
	return n, nil
}
