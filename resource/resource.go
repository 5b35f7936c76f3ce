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

// Package resource holds the Resource entity: the protected object a
// decision can be scoped to, with ownership, public-read, and a
// many-to-many attachment to policies.
package resource

import (
	"context"

	"github.com/authzcore/authzcore/errkind"
)

// Domain errors, each classified per spec.md §7.
var (
	ErrNotFound      = errkind.New(errkind.KindNotFound, "resource not found")
	ErrAlreadyExists = errkind.New(errkind.KindDuplicate, "resource already exists")
	ErrValidation    = errkind.New(errkind.KindValidation, "invalid resource")
	ErrHasChildren   = errkind.New(errkind.KindBusinessRule, "resource has child resources")
	ErrConflict      = errkind.New(errkind.KindBusinessRule, "resource was concurrently modified")
)

// Resource is a protected object that policies and ownership checks
// apply to (spec.md §3, engine step 6).
//
// Purpose: Scoping unit for resource-level authorization.
// Domain: Authz
// Invariants: ResourceIdentifier globally unique, len <= 255.
type Resource struct {
	ID                 string
	ResourceIdentifier string
	ResourceType       string
	TenantID           string
	ParentResourceID   *string
	Attributes         map[string]any
	OwnerID            *string
	IsPublic           bool
	IsActive           bool
	Version            int
}

// OwnedBy reports whether userID owns this resource.
func (r *Resource) OwnedBy(userID string) bool {
	return r.OwnerID != nil && *r.OwnerID == userID
}

// PublicReadable reports whether action is covered by the resource's
// public-read shortcut (spec.md §4.1 step 6).
func (r *Resource) PublicReadable(action string) bool {
	if !r.IsPublic {
		return false
	}
	switch action {
	case "READ", "VIEW", "LIST":
		return true
	default:
		return false
	}
}

// Repository defines persistence for Resource entities.
//
// Purpose: Abstraction over resource storage.
// Domain: Authz
type Repository interface {
	Create(ctx context.Context, r *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	GetByIdentifier(ctx context.Context, tenantID, identifier string) (*Resource, error)
	ListChildren(ctx context.Context, parentID string) ([]*Resource, error)
	Update(ctx context.Context, r *Resource) error
	Delete(ctx context.Context, id string) error
}

// PolicyLink associates a Resource with a Policy, the many-to-many
// attachment named in spec.md §3.
type PolicyLink struct {
	ResourceID string
	PolicyID   string
}

// PolicyLinkRepository manages resource-policy attachments.
type PolicyLinkRepository interface {
	Attach(ctx context.Context, resourceID, policyID string) error
	Detach(ctx context.Context, resourceID, policyID string) error
	ListPolicyIDs(ctx context.Context, resourceID string) ([]string, error)
}
