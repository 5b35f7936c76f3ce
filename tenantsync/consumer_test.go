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

package tenantsync

import (
	"context"
	"testing"

	"github.com/authzcore/authzcore/broker"
	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/eventpb"
	"github.com/authzcore/authzcore/internal/id"
	"github.com/authzcore/authzcore/permission"
	"github.com/authzcore/authzcore/role"
)

type mockRoleRepo struct {
	role.Repository
	byKey map[string]*role.Role
}

func newMockRoleRepo() *mockRoleRepo { return &mockRoleRepo{byKey: map[string]*role.Role{}} }

func roleKey(name string, tenantID *string) string {
	if tenantID == nil {
		return name + ":"
	}
	return name + ":" + *tenantID
}

func (m *mockRoleRepo) GetByName(ctx context.Context, name string, tenantID *string) (*role.Role, error) {
	r, ok := m.byKey[roleKey(name, tenantID)]
	if !ok {
		return nil, role.ErrNotFound
	}
	return r, nil
}

func (m *mockRoleRepo) Create(ctx context.Context, r *role.Role) error {
	key := roleKey(r.Name, r.TenantID)
	if _, exists := m.byKey[key]; exists {
		return role.ErrAlreadyExists
	}
	m.byKey[key] = r
	return nil
}

func (m *mockRoleRepo) Update(ctx context.Context, r *role.Role) error {
	m.byKey[roleKey(r.Name, r.TenantID)] = r
	return nil
}

func (m *mockRoleRepo) List(ctx context.Context, tenantID *string) ([]*role.Role, error) {
	var out []*role.Role
	for _, r := range m.byKey {
		if tenantID == nil || (r.TenantID != nil && *r.TenantID == *tenantID) {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockRolePermRepo struct {
	role.RolePermissionRepository
	seen map[string]bool
}

func newMockRolePermRepo() *mockRolePermRepo { return &mockRolePermRepo{seen: map[string]bool{}} }

func (m *mockRolePermRepo) Create(ctx context.Context, rp *role.RolePermission) error {
	key := rp.RoleID + ":" + rp.PermissionID
	if m.seen[key] {
		return role.ErrAssignmentAlreadyExists
	}
	m.seen[key] = true
	return nil
}

type mockPermRepo struct {
	permission.Repository
	all []*permission.Permission
}

func (m *mockPermRepo) List(ctx context.Context, filter permission.Filter) ([]*permission.Permission, error) {
	var out []*permission.Permission
	for _, p := range m.all {
		if filter.ResourceType != nil && p.ResourceType != *filter.ResourceType {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type mockUserRoleRepo struct {
	role.UserRoleRepository
	created []*role.UserRole
}

func (m *mockUserRoleRepo) Create(ctx context.Context, ur *role.UserRole) error {
	for _, existing := range m.created {
		if existing.UserID == ur.UserID && existing.RoleID == ur.RoleID {
			return role.ErrAssignmentAlreadyExists
		}
	}
	m.created = append(m.created, ur)
	return nil
}

func newTestConsumer(perms []*permission.Permission) (*Consumer, *mockRoleRepo, *mockUserRoleRepo) {
	roles := newMockRoleRepo()
	userRoles := &mockUserRoleRepo{}
	c := New(Deps{
		Roles:           roles,
		RolePermissions: newMockRolePermRepo(),
		Permissions:     &mockPermRepo{all: perms},
		UserRoles:       userRoles,
		Cache:           cache.NewMemoryCache(),
	})
	return c, roles, userRoles
}

func samplePermissions() []*permission.Permission {
	return []*permission.Permission{
		{ID: "p1", ResourceType: "DATASET", Action: "READ", IsActive: true},
		{ID: "p2", ResourceType: "DATASET", Action: "CREATE", IsActive: true},
		{ID: "p3", ResourceType: "TENANT", Action: "DELETE_TENANT", IsActive: true},
		{ID: "p4", ResourceType: "TENANT", Action: "READ", IsActive: true},
	}
}

func TestHandleTenantCreatedMaterializesRoleSetAndAssignsAdmin(t *testing.T) {
	c, roles, userRoles := newTestConsumer(samplePermissions())

	tenantID := id.New()
	userID := id.New()
	ev := eventpb.TenantCreated{
		Metadata: eventpb.EventMetadata{UserID: userID},
		Tenant:   eventpb.TenantRef{TenantID: tenantID, TenantCode: "acme"},
	}

	err := c.HandleTenantCreated(context.Background(), broker.Message{Data: ev.Marshal()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tid := tenantID
	allRoles, _ := roles.List(context.Background(), &tid)
	if len(allRoles) != 13 {
		t.Errorf("expected 13 default roles materialized, got %d", len(allRoles))
	}

	admin, err := roles.GetByName(context.Background(), "TENANT_ADMIN", &tid)
	if err != nil {
		t.Fatalf("expected TENANT_ADMIN to exist: %v", err)
	}
	if !admin.IsActive || !admin.IsSystem {
		t.Error("expected TENANT_ADMIN to be active and system")
	}

	if len(userRoles.created) != 1 || userRoles.created[0].UserID != userID || userRoles.created[0].RoleID != admin.ID {
		t.Errorf("expected TENANT_ADMIN assignment to user, got %+v", userRoles.created)
	}
}

func TestHandleTenantCreatedIdempotent(t *testing.T) {
	c, roles, userRoles := newTestConsumer(samplePermissions())
	tenantID := id.New()
	userID := id.New()
	ev := eventpb.TenantCreated{
		Metadata: eventpb.EventMetadata{UserID: userID},
		Tenant:   eventpb.TenantRef{TenantID: tenantID},
	}
	payload := ev.Marshal()

	if err := c.HandleTenantCreated(context.Background(), broker.Message{Data: payload}); err != nil {
		t.Fatalf("unexpected error on first delivery: %v", err)
	}
	if err := c.HandleTenantCreated(context.Background(), broker.Message{Data: payload}); err != nil {
		t.Fatalf("expected redelivery to be absorbed idempotently, got: %v", err)
	}

	tid := tenantID
	allRoles, _ := roles.List(context.Background(), &tid)
	if len(allRoles) != 13 {
		t.Errorf("expected still exactly 13 roles after redelivery, got %d", len(allRoles))
	}
	if len(userRoles.created) != 1 {
		t.Errorf("expected exactly one TENANT_ADMIN assignment after redelivery, got %d", len(userRoles.created))
	}
}

func TestHandleTenantCreatedMalformedIsNonRetryable(t *testing.T) {
	c, _, _ := newTestConsumer(nil)
	err := c.HandleTenantCreated(context.Background(), broker.Message{Data: []byte{0xff, 0xff, 0xff}})
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if broker.IsRetryable(err) {
		t.Error("malformed payload must be non-retryable (ack and drop)")
	}
}

func TestHandleTenantCreatedInvalidTenantID(t *testing.T) {
	c, _, _ := newTestConsumer(nil)
	ev := eventpb.TenantCreated{Tenant: eventpb.TenantRef{TenantID: "not-a-uuid"}}
	err := c.HandleTenantCreated(context.Background(), broker.Message{Data: ev.Marshal()})
	if err == nil {
		t.Fatal("expected error for invalid tenant_id")
	}
	if broker.IsRetryable(err) {
		t.Error("invalid UUID must be non-retryable (ack and drop)")
	}
}

func TestHandleTenantDeactivatedDeactivatesRoles(t *testing.T) {
	c, roles, _ := newTestConsumer(samplePermissions())
	tenantID := id.New()

	createEv := eventpb.TenantCreated{Tenant: eventpb.TenantRef{TenantID: tenantID}}
	if err := c.HandleTenantCreated(context.Background(), broker.Message{Data: createEv.Marshal()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deactivateEv := eventpb.TenantDeactivated{TenantID: tenantID}
	if err := c.HandleTenantDeactivated(context.Background(), broker.Message{Data: deactivateEv.Marshal()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tid := tenantID
	allRoles, _ := roles.List(context.Background(), &tid)
	for _, r := range allRoles {
		if r.IsActive {
			t.Errorf("expected role %s to be deactivated", r.Name)
		}
	}
}

func TestHandleTenantDeactivatedMalformedIsNonRetryable(t *testing.T) {
	c, _, _ := newTestConsumer(nil)
	err := c.HandleTenantDeactivated(context.Background(), broker.Message{Data: []byte{0xff, 0xff}})
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if broker.IsRetryable(err) {
		t.Error("malformed payload must be non-retryable")
	}
}
