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

// Package crosstenant holds the Access entity and the
// Grant/Revoke/Check contract of spec.md §4.5: time-bounded,
// action-scoped access from one tenant's principals into another
// tenant's resources.
package crosstenant

import (
	"context"
	"time"

	"github.com/authzcore/authzcore/errkind"
)

// Domain errors, each classified per spec.md §7.
var (
	ErrNotFound      = errkind.New(errkind.KindNotFound, "cross-tenant grant not found")
	ErrAlreadyExists = errkind.New(errkind.KindDuplicate, "an active grant already exists for this (source, target, resource_type)")
	ErrValidation    = errkind.New(errkind.KindValidation, "invalid cross-tenant grant")
	ErrSameTenant    = errkind.New(errkind.KindValidation, "source and target tenant must differ")
)

// Access is a time-bounded grant letting principals of SourceTenant
// exercise a set of actions against ResourceType (optionally one
// specific ResourceID) in TargetTenant.
//
// Purpose: The sole mechanism by which a decision may cross a tenant
// boundary (spec.md §3, §4.5).
// Domain: Authz
// Invariants: (SourceTenant, TargetTenant, ResourceType) unique per
// active grant. SourceTenant != TargetTenant. Permissions non-empty.
type Access struct {
	ID             string
	SourceTenant   string
	TargetTenant   string
	ResourceType   string
	ResourceID     *string
	Permissions    []string
	Conditions     map[string]any
	GrantedBy      string
	GrantedAt      time.Time
	RevokedBy      string
	RevokedAt      *time.Time
	ExpiresAt      *time.Time
	IsActive       bool
}

// Active reports whether the grant is usable as of now: flagged
// active and not expired.
func (a *Access) Active(now time.Time) bool {
	return a.IsActive && (a.ExpiresAt == nil || a.ExpiresAt.After(now))
}

// Allows reports whether the grant's permission set covers action.
func (a *Access) Allows(action string) bool {
	for _, p := range a.Permissions {
		if p == action {
			return true
		}
	}
	return false
}

// Repository defines persistence for Access grants.
//
// Purpose: Abstraction over cross-tenant grant storage.
// Domain: Authz
type Repository interface {
	Create(ctx context.Context, a *Access) error
	GetByID(ctx context.Context, id string) (*Access, error)
	FindActive(ctx context.Context, sourceTenant, targetTenant, resourceType string) (*Access, error)
	ListBySource(ctx context.Context, sourceTenant string) ([]*Access, error)
	ListByTarget(ctx context.Context, targetTenant string) ([]*Access, error)
	Update(ctx context.Context, a *Access) error
}
