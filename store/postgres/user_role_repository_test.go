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
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/authzcore/authzcore/permission"
	"github.com/authzcore/authzcore/role"
)

func TestUserRoleRepositoryListActiveGrants(t *testing.T) {
	if os.Getenv("AUTHZCORE_TEST_POSTGRES") == "" {
		t.Skip("set AUTHZCORE_TEST_POSTGRES=1 to run Postgres-backed repository tests")
	}
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	roleRepo := NewRoleRepository(db)
	permRepo := NewPermissionRepository(db)
	rpRepo := NewRolePermissionRepository(db)
	urRepo := NewUserRoleRepository(db)

	tenantID := uuid.NewString()
	ro := &role.Role{ID: uuid.NewString(), TenantID: &tenantID, Name: "editor", IsActive: true, Version: 1}
	if err := roleRepo.Create(ctx, ro); err != nil {
		t.Fatalf("role Create() error = %v", err)
	}

	perm := &permission.Permission{ID: uuid.NewString(), ResourceType: "document", Action: "WRITE", IsActive: true}
	if err := permRepo.Create(ctx, perm); err != nil {
		t.Fatalf("permission Create() error = %v", err)
	}

	rp := &role.RolePermission{ID: uuid.NewString(), RoleID: ro.ID, PermissionID: perm.ID}
	if err := rpRepo.Create(ctx, rp); err != nil {
		t.Fatalf("role permission Create() error = %v", err)
	}

	userID := uuid.NewString()
	ur := &role.UserRole{ID: uuid.NewString(), UserID: userID, RoleID: ro.ID, TenantID: tenantID, IsActive: true}
	if err := urRepo.Create(ctx, ur); err != nil {
		t.Fatalf("user role Create() error = %v", err)
	}

	grants, err := urRepo.ListActiveGrants(ctx, userID, tenantID, time.Now())
	if err != nil {
		t.Fatalf("ListActiveGrants() error = %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("len(grants) = %d, want 1", len(grants))
	}
	if grants[0].Role.ID != ro.ID {
		t.Errorf("grants[0].Role.ID = %q, want %q", grants[0].Role.ID, ro.ID)
	}
	if len(grants[0].Permissions) != 1 || grants[0].Permissions[0].Permission.ID != perm.ID {
		t.Errorf("grants[0].Permissions = %+v, want one entry for %q", grants[0].Permissions, perm.ID)
	}
}

func TestUserRoleRepositoryExistsActiveExpiresGate(t *testing.T) {
	if os.Getenv("AUTHZCORE_TEST_POSTGRES") == "" {
		t.Skip("set AUTHZCORE_TEST_POSTGRES=1 to run Postgres-backed repository tests")
	}
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	roleRepo := NewRoleRepository(db)
	urRepo := NewUserRoleRepository(db)

	tenantID := uuid.NewString()
	ro := &role.Role{ID: uuid.NewString(), TenantID: &tenantID, Name: "expiring", IsActive: true, Version: 1}
	if err := roleRepo.Create(ctx, ro); err != nil {
		t.Fatalf("role Create() error = %v", err)
	}

	past := time.Now().Add(-time.Hour)
	userID := uuid.NewString()
	ur := &role.UserRole{ID: uuid.NewString(), UserID: userID, RoleID: ro.ID, TenantID: tenantID, IsActive: true, ExpiresAt: &past}
	if err := urRepo.Create(ctx, ur); err != nil {
		t.Fatalf("user role Create() error = %v", err)
	}

	exists, err := urRepo.ExistsActive(ctx, userID, ro.ID, tenantID)
	if err != nil {
		t.Fatalf("ExistsActive() error = %v", err)
	}
	if exists {
		t.Error("ExistsActive() = true for an expired assignment, want false")
	}
}
