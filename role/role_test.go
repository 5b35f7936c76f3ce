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
	"testing"
	"time"
)

func stringPtr(s string) *string { return &s }

func TestRoleIsGlobal(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want bool
	}{
		{name: "global role", role: Role{TenantID: nil}, want: true},
		{name: "tenant role", role: Role{TenantID: stringPtr("t1")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.IsGlobal(); got != tt.want {
				t.Errorf("Role.IsGlobal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoleSameTenant(t *testing.T) {
	tests := []struct {
		name string
		a, b Role
		want bool
	}{
		{name: "both global", a: Role{TenantID: nil}, b: Role{TenantID: nil}, want: true},
		{name: "one global one tenant", a: Role{TenantID: nil}, b: Role{TenantID: stringPtr("t1")}, want: false},
		{name: "same tenant", a: Role{TenantID: stringPtr("t1")}, b: Role{TenantID: stringPtr("t1")}, want: true},
		{name: "different tenant", a: Role{TenantID: stringPtr("t1")}, b: Role{TenantID: stringPtr("t2")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.SameTenant(&tt.b); got != tt.want {
				t.Errorf("Role.SameTenant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRolePermissionExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		rp   RolePermission
		want bool
	}{
		{name: "no expiry", rp: RolePermission{ExpiresAt: nil}, want: false},
		{name: "expired", rp: RolePermission{ExpiresAt: &past}, want: true},
		{name: "not yet expired", rp: RolePermission{ExpiresAt: &future}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rp.Expired(now); got != tt.want {
				t.Errorf("RolePermission.Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserRoleActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		ur   UserRole
		want bool
	}{
		{name: "active no expiry", ur: UserRole{IsActive: true, ExpiresAt: nil}, want: true},
		{name: "inactive", ur: UserRole{IsActive: false, ExpiresAt: nil}, want: false},
		{name: "active but expired", ur: UserRole{IsActive: true, ExpiresAt: &past}, want: false},
		{name: "active not yet expired", ur: UserRole{IsActive: true, ExpiresAt: &future}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ur.Active(now); got != tt.want {
				t.Errorf("UserRole.Active() = %v, want %v", got, tt.want)
			}
		})
	}
}
