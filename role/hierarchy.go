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

	"github.com/authzcore/authzcore/permission"
)

// WalkAncestors returns the chain of ancestor roles from the given
// role's immediate parent up to the root, stopping at maxDepth and
// guarding against cycles with a visited set. Roles are looked up by
// id through repo on every hop — the hierarchy is never held as a
// direct pointer graph (spec.md §9).
func WalkAncestors(ctx context.Context, repo Repository, start *Role, maxDepth int) ([]*Role, error) {
	var chain []*Role
	visited := map[string]bool{start.ID: true}

	current := start
	for depth := 0; current.ParentRoleID != nil; depth++ {
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w: role %s exceeds depth %d", ErrHierarchyTooDeep, start.ID, maxDepth)
		}

		parentID := *current.ParentRoleID
		if visited[parentID] {
			return nil, fmt.Errorf("%w: role %s revisits %s", ErrHierarchyCycle, start.ID, parentID)
		}

		parent, err := repo.GetByID(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent role %s: %w", parentID, err)
		}

		visited[parentID] = true
		chain = append(chain, parent)
		current = parent
	}

	return chain, nil
}

// ValidateParent checks that attaching parentID to a role of the given
// tenant obeys the hierarchy invariants: the parent must share the
// child's tenant scope (or both be global), and the resulting chain
// (parent's own ancestor chain, plus the new child hop) must not
// exceed maxDepth or cycle back to the child.
func ValidateParent(ctx context.Context, repo Repository, childTenantID *string, childID string, parentID string, maxDepth int) error {
	parent, err := repo.GetByID(ctx, parentID)
	if err != nil {
		return fmt.Errorf("failed to load parent role %s: %w", parentID, err)
	}

	childGlobal := childTenantID == nil
	if childGlobal != parent.IsGlobal() {
		return ErrCrossTenantParent
	}
	if !childGlobal && *childTenantID != *parent.TenantID {
		return ErrCrossTenantParent
	}

	if parentID == childID {
		return ErrHierarchyCycle
	}

	ancestors, err := WalkAncestors(ctx, repo, parent, maxDepth-1)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a.ID == childID {
			return ErrHierarchyCycle
		}
	}
	if len(ancestors)+1 > maxDepth {
		return ErrHierarchyTooDeep
	}

	return nil
}

// InheritedPermissions performs the DFS of spec.md §4.3's
// GetAllPermissionsIncludingInherited: it walks the role's own
// permissions plus every ancestor's, filtering expired role-permissions
// and inactive permissions, and de-duplicating by permission id.
func InheritedPermissions(ctx context.Context, roleRepo Repository, rpRepo RolePermissionRepository, permRepo permission.Repository, start *Role, now time.Time, maxDepth int) ([]*GrantedPermission, error) {
	chain := []*Role{start}
	ancestors, err := WalkAncestors(ctx, roleRepo, start, maxDepth)
	if err != nil {
		return nil, err
	}
	chain = append(chain, ancestors...)

	seen := map[string]bool{}
	var out []*GrantedPermission

	for _, r := range chain {
		rps, err := rpRepo.ListByRole(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list permissions for role %s: %w", r.ID, err)
		}
		for _, rp := range rps {
			if rp.Expired(now) {
				continue
			}
			if seen[rp.PermissionID] {
				continue
			}
			p, err := permRepo.GetByID(ctx, rp.PermissionID)
			if err != nil {
				continue
			}
			if !p.IsActive {
				continue
			}
			seen[rp.PermissionID] = true
			out = append(out, &GrantedPermission{Permission: p, RolePermission: rp})
		}
	}

	return out, nil
}
