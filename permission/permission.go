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

// Package permission holds the Permission entity: the (resource_type,
// action) capability that roles and policies reference.
package permission

import (
	"context"

	"github.com/authzcore/authzcore/errkind"
)

// Domain errors, each classified per spec.md §7.
var (
	ErrNotFound      = errkind.New(errkind.KindNotFound, "permission not found")
	ErrAlreadyExists = errkind.New(errkind.KindDuplicate, "permission already exists")
	ErrValidation    = errkind.New(errkind.KindValidation, "invalid permission")
)

// RiskLevel classifies how sensitive exercising a permission is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ManageAction is the wildcard action that, held for a resource type,
// implies every other action on that resource type (spec.md §4.1 step 5).
const ManageAction = "MANAGE"

// WildcardResourceType, combined with any action, grants that action on
// every resource type (spec.md §4.1 step 5).
const WildcardResourceType = "*"

// Permission is keyed by (ResourceType, Action); the pair is globally
// unique.
//
// Purpose: Smallest unit of authorization capability.
// Domain: Authz
// Invariants: (ResourceType, Action) globally unique. ResourceType len <= 100, Action len <= 50.
type Permission struct {
	ID               string
	ResourceType     string
	Action           string
	RiskLevel        RiskLevel
	RequiresMFA      bool
	RequiresApproval bool
	IsSystem         bool
	IsActive         bool
}

// Name returns the canonical "TYPE:ACTION" form used in AuthzResponse's
// granted_permissions and in event payloads.
func (p *Permission) Name() string {
	return p.ResourceType + ":" + p.Action
}

// Matches reports whether this permission directly covers the given
// resource type and action (direct match, not wildcard/MANAGE).
func (p *Permission) Matches(resourceType, action string) bool {
	return p.IsActive && p.ResourceType == resourceType && p.Action == action
}

// Repository defines persistence for Permission entities.
//
// Purpose: Abstraction over permission storage.
// Domain: Authz
type Repository interface {
	Create(ctx context.Context, p *Permission) error
	GetByID(ctx context.Context, id string) (*Permission, error)
	GetByResourceAction(ctx context.Context, resourceType, action string) (*Permission, error)
	List(ctx context.Context, filter Filter) ([]*Permission, error)
	Update(ctx context.Context, p *Permission) error
	Delete(ctx context.Context, id string) error
	DistinctResourceTypes(ctx context.Context) ([]string, error)
	DistinctActions(ctx context.Context) ([]string, error)
}

// Filter narrows a permission listing.
type Filter struct {
	ResourceType *string
	IsActive     *bool
	RiskLevel    *RiskLevel
}
