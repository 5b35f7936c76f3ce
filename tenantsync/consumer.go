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

// Package tenantsync consumes the inbound tenant lifecycle events of
// spec.md §4.4 and keeps the authorization data model in sync: it
// idempotently materializes the default role set for a newly created
// tenant and deactivates a tenant's roles on deactivation. Errors are
// classified retryable/non-retryable for the broker's ack/nak policy
// (spec.md §5).
package tenantsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/authzcore/authzcore/broker"
	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/eventpb"
	"github.com/authzcore/authzcore/internal/id"
	"github.com/authzcore/authzcore/metrics"
	"github.com/authzcore/authzcore/permission"
	"github.com/authzcore/authzcore/role"
)

// Consumer handles TenantCreated/TenantDeactivated events.
//
// Purpose: Keeps roles/role-permissions/user-roles in sync with an
// upstream tenant lifecycle this service does not own.
// Domain: Events
type Consumer struct {
	roles     role.Repository
	rolePerms role.RolePermissionRepository
	perms     permission.Repository
	userRoles role.UserRoleRepository
	cache     cache.DecisionCache
}

// Deps bundles the Consumer's collaborators.
type Deps struct {
	Roles           role.Repository
	RolePermissions role.RolePermissionRepository
	Permissions     permission.Repository
	UserRoles       role.UserRoleRepository
	Cache           cache.DecisionCache
}

// New constructs a Consumer.
func New(d Deps) *Consumer {
	return &Consumer{
		roles:     d.Roles,
		rolePerms: d.RolePermissions,
		perms:     d.Permissions,
		userRoles: d.UserRoles,
		cache:     d.Cache,
	}
}

// HandleTenantCreated implements spec.md §4.4's TenantCreated steps:
// validate, idempotently materialize the default role set, assign
// TENANT_ADMIN to the referenced user if present, acknowledge on
// success.
func (c *Consumer) HandleTenantCreated(ctx context.Context, msg broker.Message) error {
	const eventType = "TenantCreated"
	ev, err := eventpb.UnmarshalTenantCreated(msg.Data)
	if err != nil {
		slog.ErrorContext(ctx, "tenantsync: malformed TenantCreated, dropping", "error", err)
		metrics.RecordEventConsumed(eventType, "dropped")
		return fmt.Errorf("malformed TenantCreated: %w", err)
	}
	if !id.Valid(ev.Tenant.TenantID) {
		slog.ErrorContext(ctx, "tenantsync: invalid tenant_id, dropping", "tenant_id", ev.Tenant.TenantID)
		metrics.RecordEventConsumed(eventType, "dropped")
		return fmt.Errorf("invalid tenant_id %q", ev.Tenant.TenantID)
	}
	if ev.Metadata.UserID != "" && !id.Valid(ev.Metadata.UserID) {
		slog.ErrorContext(ctx, "tenantsync: invalid user_id, dropping", "user_id", ev.Metadata.UserID)
		metrics.RecordEventConsumed(eventType, "dropped")
		return fmt.Errorf("invalid user_id %q", ev.Metadata.UserID)
	}

	for _, spec := range defaultRoleSet() {
		if err := c.materializeRole(ctx, ev.Tenant.TenantID, spec); err != nil {
			metrics.RecordEventConsumed(eventType, statusFor(err))
			return err
		}
	}

	if ev.Metadata.UserID != "" {
		if err := c.assignTenantAdmin(ctx, ev.Tenant.TenantID, ev.Metadata.UserID); err != nil {
			metrics.RecordEventConsumed(eventType, statusFor(err))
			return err
		}
	}

	metrics.RecordEventConsumed(eventType, "ok")
	return nil
}

func statusFor(err error) string {
	if broker.IsRetryable(err) {
		return "retry"
	}
	return "error"
}

// HandleTenantDeactivated implements spec.md §4.4's TenantDeactivated
// handling: deactivate every active role of the tenant.
func (c *Consumer) HandleTenantDeactivated(ctx context.Context, msg broker.Message) error {
	const eventType = "TenantDeactivated"
	ev, err := eventpb.UnmarshalTenantDeactivated(msg.Data)
	if err != nil {
		slog.ErrorContext(ctx, "tenantsync: malformed TenantDeactivated, dropping", "error", err)
		metrics.RecordEventConsumed(eventType, "dropped")
		return fmt.Errorf("malformed TenantDeactivated: %w", err)
	}
	if !id.Valid(ev.TenantID) {
		slog.ErrorContext(ctx, "tenantsync: invalid tenant_id, dropping", "tenant_id", ev.TenantID)
		metrics.RecordEventConsumed(eventType, "dropped")
		return fmt.Errorf("invalid tenant_id %q", ev.TenantID)
	}

	tenantID := ev.TenantID
	roles, err := c.roles.List(ctx, &tenantID)
	if err != nil {
		metrics.RecordEventConsumed(eventType, "retry")
		return broker.Retryable(fmt.Errorf("failed to list roles for tenant %s: %w", ev.TenantID, err))
	}

	for _, r := range roles {
		if !r.IsActive {
			continue
		}
		r.IsActive = false
		r.Version++
		r.UpdatedBy = "SYSTEM"
		r.UpdatedAt = time.Now()
		if err := c.roles.Update(ctx, r); err != nil {
			metrics.RecordEventConsumed(eventType, "retry")
			return broker.Retryable(fmt.Errorf("failed to deactivate role %s: %w", r.ID, err))
		}
	}

	_ = c.cache.InvalidateAll(ctx)
	metrics.RecordEventConsumed(eventType, "ok")
	return nil
}

func (c *Consumer) materializeRole(ctx context.Context, tenantID string, spec roleSpec) error {
	tid := tenantID
	if existing, err := c.roles.GetByName(ctx, spec.Name, &tid); err == nil && existing != nil {
		return nil
	} else if err != nil && !errors.Is(err, role.ErrNotFound) {
		return broker.Retryable(fmt.Errorf("failed to check existing role %s: %w", spec.Name, err))
	}

	now := time.Now()
	r := &role.Role{
		ID:        id.New(),
		TenantID:  &tid,
		Name:      spec.Name,
		Priority:  spec.Priority,
		IsSystem:  true,
		IsActive:  true,
		CreatedBy: "SYSTEM",
		UpdatedBy: "SYSTEM",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.roles.Create(ctx, r); err != nil {
		if errors.Is(err, role.ErrAlreadyExists) {
			return nil
		}
		return broker.Retryable(fmt.Errorf("failed to create role %s for tenant %s: %w", spec.Name, tenantID, err))
	}

	for _, permID := range c.resolvePermissionIDs(ctx, spec) {
		rp := &role.RolePermission{
			ID:           id.New(),
			RoleID:       r.ID,
			PermissionID: permID,
			GrantedBy:    "SYSTEM",
			GrantedAt:    now,
		}
		if err := c.rolePerms.Create(ctx, rp); err != nil {
			if errors.Is(err, role.ErrAssignmentAlreadyExists) {
				continue
			}
			return broker.Retryable(fmt.Errorf("failed to grant permission %s to role %s: %w", permID, spec.Name, err))
		}
	}

	return nil
}

func (c *Consumer) resolvePermissionIDs(ctx context.Context, spec roleSpec) []string {
	var ids []string
	for _, resourceType := range spec.Scope {
		rt := resourceType
		perms, err := c.perms.List(ctx, permission.Filter{ResourceType: &rt})
		if err != nil {
			slog.ErrorContext(ctx, "tenantsync: failed to list permissions for scope", "resource_type", rt, "error", err)
			continue
		}
		for _, p := range perms {
			if spec.allows(p.Action) {
				ids = append(ids, p.ID)
			}
		}
	}
	return ids
}

func (c *Consumer) assignTenantAdmin(ctx context.Context, tenantID, userID string) error {
	tid := tenantID
	r, err := c.roles.GetByName(ctx, "TENANT_ADMIN", &tid)
	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			// Logical impossibility: the role set was just materialized
			// above. Non-retryable per spec.md §5.
			return fmt.Errorf("TENANT_ADMIN role missing for tenant %s", tenantID)
		}
		return broker.Retryable(fmt.Errorf("failed to look up TENANT_ADMIN for tenant %s: %w", tenantID, err))
	}

	ur := &role.UserRole{
		ID:         id.New(),
		UserID:     userID,
		RoleID:     r.ID,
		TenantID:   tenantID,
		AssignedBy: "SYSTEM",
		AssignedAt: time.Now(),
		IsActive:   true,
	}
	if err := c.userRoles.Create(ctx, ur); err != nil {
		if errors.Is(err, role.ErrAssignmentAlreadyExists) {
			return nil
		}
		return broker.Retryable(fmt.Errorf("failed to assign TENANT_ADMIN to user %s: %w", userID, err))
	}

	_ = c.cache.InvalidateAll(ctx)
	return nil
}
