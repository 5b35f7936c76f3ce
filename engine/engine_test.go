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

package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/authzcore/authzcore/authz"
	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/events"
	"github.com/authzcore/authzcore/permission"
	"github.com/authzcore/authzcore/policy"
	"github.com/authzcore/authzcore/resource"
	"github.com/authzcore/authzcore/role"
)

type mockUserRoles struct {
	role.UserRoleRepository
	grants map[string][]*role.Grant // keyed by userID+":"+tenantID
}

func (m *mockUserRoles) ListActiveGrants(ctx context.Context, userID, tenantID string, now time.Time) ([]*role.Grant, error) {
	return m.grants[userID+":"+tenantID], nil
}

type mockRoles struct {
	role.Repository
	roles map[string]*role.Role
}

func (m *mockRoles) GetByID(ctx context.Context, id string) (*role.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, fmt.Errorf("role not found")
	}
	return r, nil
}

type mockRolePerms struct {
	role.RolePermissionRepository
	byRole map[string][]*role.RolePermission
}

func (m *mockRolePerms) ListByRole(ctx context.Context, roleID string) ([]*role.RolePermission, error) {
	return m.byRole[roleID], nil
}

type mockPermissions struct {
	permission.Repository
	byID map[string]*permission.Permission
}

func (m *mockPermissions) GetByID(ctx context.Context, id string) (*permission.Permission, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("permission not found")
	}
	return p, nil
}

type mockResources struct {
	resource.Repository
	byIdentifier map[string]*resource.Resource
}

func (m *mockResources) GetByIdentifier(ctx context.Context, tenantID, identifier string) (*resource.Resource, error) {
	r, ok := m.byIdentifier[tenantID+":"+identifier]
	if !ok {
		return nil, fmt.Errorf("resource not found")
	}
	return r, nil
}

type mockResourceLinks struct {
	resource.PolicyLinkRepository
}

func (m *mockResourceLinks) ListPolicyIDs(ctx context.Context, resourceID string) ([]string, error) {
	return nil, nil
}

type mockPolicies struct {
	policy.Repository
	byTenant map[string][]*policy.Policy
}

func (m *mockPolicies) ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*policy.Policy, error) {
	return m.byTenant[tenantID], nil
}

func (m *mockPolicies) GetByID(ctx context.Context, id string) (*policy.Policy, error) {
	for _, ps := range m.byTenant {
		for _, p := range ps {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("policy not found")
}

func newTestEngine(grants []*role.Grant, roles map[string]*role.Role, rolePerms map[string][]*role.RolePermission, perms map[string]*permission.Permission, resources map[string]*resource.Resource, policies map[string][]*policy.Policy) *Engine {
	return New(Deps{
		UserRoles:       &mockUserRoles{grants: map[string][]*role.Grant{"u1:t1": grants}},
		Roles:           &mockRoles{roles: roles},
		RolePermissions: &mockRolePerms{byRole: rolePerms},
		Permissions:     &mockPermissions{byID: perms},
		Resources:       &mockResources{byIdentifier: resources},
		ResourceLinks:   &mockResourceLinks{},
		Policies:        &mockPolicies{byTenant: policies},
		Cache:           cache.NewMemoryCache(),
		Publisher:       events.NoopPublisher{},
	})
}

func TestAuthorizeNoActiveRoles(t *testing.T) {
	e := newTestEngine(nil, nil, nil, nil, nil, nil)
	resp := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ"})
	if resp.Allowed {
		t.Fatal("expected DENY with no active roles")
	}
	if resp.Reason != "User has no active roles" {
		t.Errorf("unexpected reason: %q", resp.Reason)
	}
}

func TestAuthorizeSuperAdminShortcut(t *testing.T) {
	adminRole := &role.Role{ID: "r-admin", Name: role.SuperAdmin, IsActive: true}
	grants := []*role.Grant{{Assignment: &role.UserRole{IsActive: true}, Role: adminRole}}

	e := newTestEngine(grants, map[string]*role.Role{"r-admin": adminRole}, nil, nil, nil, nil)
	resp := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "ANYTHING", Action: "DELETE"})
	if !resp.Allowed || resp.Reason != "Super admin access granted" {
		t.Errorf("expected super admin ALLOW, got %+v", resp)
	}
}

func TestAuthorizeDirectMatch(t *testing.T) {
	editorRole := &role.Role{ID: "r-editor", Name: "EDITOR", IsActive: true}
	perm := &permission.Permission{ID: "p1", ResourceType: "DATASET", Action: "READ", IsActive: true}
	grants := []*role.Grant{{
		Assignment:  &role.UserRole{IsActive: true},
		Role:        editorRole,
		Permissions: []*role.GrantedPermission{{Permission: perm}},
	}}

	e := newTestEngine(grants, map[string]*role.Role{"r-editor": editorRole}, nil, nil, nil, nil)
	resp := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ"})
	if !resp.Allowed || resp.Reason != "Direct permission granted" {
		t.Errorf("expected direct match ALLOW, got %+v", resp)
	}

	resp2 := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "DELETE"})
	if resp2.Allowed {
		t.Errorf("expected DENY for unmatched action, got %+v", resp2)
	}
}

func TestAuthorizeWildcardManage(t *testing.T) {
	managerRole := &role.Role{ID: "r-mgr", Name: "MANAGER", IsActive: true}
	perm := &permission.Permission{ID: "p1", ResourceType: "DATASET", Action: permission.ManageAction, IsActive: true}
	grants := []*role.Grant{{
		Assignment:  &role.UserRole{IsActive: true},
		Role:        managerRole,
		Permissions: []*role.GrantedPermission{{Permission: perm}},
	}}

	e := newTestEngine(grants, map[string]*role.Role{"r-mgr": managerRole}, nil, nil, nil, nil)
	resp := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "DELETE"})
	if !resp.Allowed {
		t.Errorf("expected MANAGE wildcard ALLOW, got %+v", resp)
	}
}

func TestAuthorizeResourceOwner(t *testing.T) {
	viewerRole := &role.Role{ID: "r-viewer", Name: "VIEWER", IsActive: true}
	grants := []*role.Grant{{Assignment: &role.UserRole{IsActive: true}, Role: viewerRole}}
	owner := "u1"
	res := &resource.Resource{ID: "res1", ResourceIdentifier: "ds-42", OwnerID: &owner, IsActive: true}

	e := newTestEngine(grants, map[string]*role.Role{"r-viewer": viewerRole}, nil, nil, map[string]*resource.Resource{"t1:ds-42": res}, nil)
	resourceID := "ds-42"
	resp := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ", ResourceID: &resourceID})
	if !resp.Allowed || resp.Reason != "Resource owner access granted" {
		t.Errorf("expected owner ALLOW, got %+v", resp)
	}
}

func TestAuthorizePublicResource(t *testing.T) {
	viewerRole := &role.Role{ID: "r-viewer", Name: "VIEWER", IsActive: true}
	grants := []*role.Grant{{Assignment: &role.UserRole{IsActive: true}, Role: viewerRole}}
	res := &resource.Resource{ID: "res1", ResourceIdentifier: "ds-42", IsPublic: true, IsActive: true}

	e := newTestEngine(grants, map[string]*role.Role{"r-viewer": viewerRole}, nil, nil, map[string]*resource.Resource{"t1:ds-42": res}, nil)
	resourceID := "ds-42"
	resp := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ", ResourceID: &resourceID})
	if !resp.Allowed || resp.Reason != "Public resource access granted" {
		t.Errorf("expected public ALLOW, got %+v", resp)
	}

	resp2 := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "DELETE", ResourceID: &resourceID})
	if resp2.Allowed {
		t.Errorf("expected DENY for non-read action on public resource, got %+v", resp2)
	}
}

func TestAuthorizeInheritedPermission(t *testing.T) {
	parentID := "r-parent"
	parent := &role.Role{ID: parentID, Name: "PARENT", IsActive: true}
	child := &role.Role{ID: "r-child", Name: "CHILD", IsActive: true, ParentRoleID: &parentID}
	grants := []*role.Grant{{Assignment: &role.UserRole{IsActive: true}, Role: child}}

	perm := &permission.Permission{ID: "p1", ResourceType: "DATASET", Action: "READ", IsActive: true}
	rolePerms := map[string][]*role.RolePermission{
		parentID: {{RoleID: parentID, PermissionID: "p1"}},
	}

	e := newTestEngine(grants, map[string]*role.Role{parentID: parent, "r-child": child}, rolePerms, map[string]*permission.Permission{"p1": perm}, nil, nil)
	resp := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ"})
	if !resp.Allowed || resp.Reason != "Inherited permission granted" {
		t.Errorf("expected inherited ALLOW, got %+v", resp)
	}
}

func TestAuthorizeDefaultDeny(t *testing.T) {
	viewerRole := &role.Role{ID: "r-viewer", Name: "VIEWER", IsActive: true}
	grants := []*role.Grant{{Assignment: &role.UserRole{IsActive: true}, Role: viewerRole}}

	e := newTestEngine(grants, map[string]*role.Role{"r-viewer": viewerRole}, nil, nil, nil, nil)
	resp := e.Authorize(context.Background(), authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "DELETE"})
	if resp.Allowed {
		t.Fatalf("expected default DENY, got %+v", resp)
	}
	if resp.Reason != "No permission for DATASET:DELETE" {
		t.Errorf("unexpected reason: %q", resp.Reason)
	}
}

func TestHasPermission(t *testing.T) {
	editorRole := &role.Role{ID: "r-editor", Name: "EDITOR", IsActive: true}
	perm := &permission.Permission{ID: "p1", ResourceType: "DATASET", Action: "READ", IsActive: true}
	grants := []*role.Grant{{
		Assignment:  &role.UserRole{IsActive: true},
		Role:        editorRole,
		Permissions: []*role.GrantedPermission{{Permission: perm}},
	}}

	e := newTestEngine(grants, map[string]*role.Role{"r-editor": editorRole}, nil, nil, nil, nil)
	if !e.HasPermission(context.Background(), "u1", "t1", "DATASET", "READ") {
		t.Error("expected HasPermission to be true")
	}
	if e.HasPermission(context.Background(), "u1", "t1", "DATASET", "DELETE") {
		t.Error("expected HasPermission to be false")
	}
}

func TestBatchAuthorize(t *testing.T) {
	editorRole := &role.Role{ID: "r-editor", Name: "EDITOR", IsActive: true}
	perm := &permission.Permission{ID: "p1", ResourceType: "DATASET", Action: "READ", IsActive: true}
	grants := []*role.Grant{{
		Assignment:  &role.UserRole{IsActive: true},
		Role:        editorRole,
		Permissions: []*role.GrantedPermission{{Permission: perm}},
	}}

	e := newTestEngine(grants, map[string]*role.Role{"r-editor": editorRole}, nil, nil, nil, nil)
	reqs := []authz.Request{
		{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ"},
		{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "DELETE"},
	}
	results := e.BatchAuthorize(context.Background(), reqs)
	if !results[reqs[0]].Allowed {
		t.Error("expected first request ALLOW")
	}
	if results[reqs[1]].Allowed {
		t.Error("expected second request DENY")
	}
}

func TestAuthorizeDeadlineExceeded(t *testing.T) {
	editorRole := &role.Role{ID: "r-editor", Name: "EDITOR", IsActive: true}
	perm := &permission.Permission{ID: "p1", ResourceType: "DATASET", Action: "READ", IsActive: true}
	grants := []*role.Grant{{
		Assignment:  &role.UserRole{IsActive: true},
		Role:        editorRole,
		Permissions: []*role.GrantedPermission{{Permission: perm}},
	}}

	e := newTestEngine(grants, map[string]*role.Role{"r-editor": editorRole}, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := e.Authorize(ctx, authz.Request{UserID: "u1", TenantID: "t1", Resource: "DATASET", Action: "READ"})
	if resp.Allowed {
		t.Fatal("expected DENY once the context is done")
	}
	if resp.Reason != "Authorization check failed: deadline exceeded" {
		t.Errorf("unexpected reason: %q", resp.Reason)
	}
}
