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

// Package engine is the decision engine: the hot-path orchestrator of
// the multi-layer authorization pipeline (spec.md §4.1).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/authzcore/authzcore/authz"
	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/events"
	"github.com/authzcore/authzcore/internal/id"
	"github.com/authzcore/authzcore/metrics"
	"github.com/authzcore/authzcore/permission"
	"github.com/authzcore/authzcore/policy"
	"github.com/authzcore/authzcore/resource"
	"github.com/authzcore/authzcore/role"
)

// Engine orchestrates a single authorization decision across roles,
// permissions, resource ownership, and policy evaluation.
//
// Purpose: Implements the strict-order decision pipeline of spec.md
// §4.1, the hot path of the service.
// Domain: Authz
type Engine struct {
	userRoles     role.UserRoleRepository
	roles         role.Repository
	rolePerms     role.RolePermissionRepository
	permRepo      permission.Repository
	resources     resource.Repository
	resourceLinks resource.PolicyLinkRepository
	policies      policy.Repository
	evaluator     *policy.Evaluator
	cache         cache.DecisionCache
	publisher     events.Publisher
	cacheTTL      time.Duration
	maxDepth      int
}

// Deps bundles the Engine's collaborators.
type Deps struct {
	UserRoles      role.UserRoleRepository
	Roles          role.Repository
	RolePermissions role.RolePermissionRepository
	Permissions    permission.Repository
	Resources      resource.Repository
	ResourceLinks  resource.PolicyLinkRepository
	Policies       policy.Repository
	Cache          cache.DecisionCache
	Publisher      events.Publisher
}

// New constructs an Engine.
func New(d Deps) *Engine {
	return &Engine{
		userRoles:     d.UserRoles,
		roles:         d.Roles,
		rolePerms:     d.RolePermissions,
		permRepo:      d.Permissions,
		resources:     d.Resources,
		resourceLinks: d.ResourceLinks,
		policies:      d.Policies,
		evaluator:     policy.NewEvaluator(),
		cache:         d.Cache,
		publisher:     d.Publisher,
		cacheTTL:      cache.DefaultTTL,
		maxDepth:      role.MaxHierarchyDepth,
	}
}

// Authorize runs the full decision pipeline for req, reading through
// the decision cache and asynchronously emitting an AuthorizationChecked
// event regardless of outcome (spec.md §4.1).
func (e *Engine) Authorize(ctx context.Context, req authz.Request) authz.Response {
	start := time.Now()
	key := cache.Key{UserID: req.UserID, TenantID: req.TenantID, Resource: req.Resource, Action: req.Action}

	if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		metrics.RecordCacheLookup(true)
		metrics.RecordDecision(decisionLabel(cached.Allowed), time.Since(start).Seconds())
		return *cached
	}
	metrics.RecordCacheLookup(false)

	resp := e.decide(ctx, req)

	_ = e.cache.Set(ctx, key, resp, e.cacheTTL)
	e.emitChecked(ctx, req, resp)
	metrics.RecordDecision(decisionLabel(resp.Allowed), time.Since(start).Seconds())
	return resp
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

// decide runs steps 1-9 of spec.md §4.1, converting any internal error
// into a fail-closed DENY.
func (e *Engine) decide(ctx context.Context, req authz.Request) authz.Response {
	if ctx.Err() != nil {
		return authz.Denied("Authorization check failed: deadline exceeded")
	}

	now := time.Now()

	grants, err := e.userRoles.ListActiveGrants(ctx, req.UserID, req.TenantID, now)
	if err != nil {
		return authz.Denied(fmt.Sprintf("Authorization check failed: %s", err))
	}
	if len(grants) == 0 {
		return authz.Denied("User has no active roles")
	}

	activeGrants := make([]*role.Grant, 0, len(grants))
	for _, g := range grants {
		if g.Role != nil && g.Role.IsActive {
			activeGrants = append(activeGrants, g)
		}
	}
	if len(activeGrants) == 0 {
		return authz.Denied("User has no active roles")
	}

	granted, names := flattenPermissions(activeGrants, now)

	// Step 3: super admin shortcut.
	for _, g := range activeGrants {
		if g.Role.Name == role.SuperAdmin {
			return authz.Allowed("Super admin access granted", []string{role.SuperAdmin})
		}
	}

	// Step 4: direct match.
	for _, p := range granted {
		if p.Matches(req.Resource, req.Action) {
			return authz.Allowed("Direct permission granted", names)
		}
	}

	// Step 5: wildcard match.
	for _, p := range granted {
		if p.IsActive && p.ResourceType == req.Resource && p.Action == permission.ManageAction {
			return authz.Allowed("Direct permission granted", names)
		}
	}
	for _, p := range granted {
		if p.IsActive && p.ResourceType == permission.WildcardResourceType && p.Action == req.Action {
			return authz.Allowed("Direct permission granted", names)
		}
	}

	if ctx.Err() != nil {
		return authz.Denied("Authorization check failed: deadline exceeded")
	}

	// Step 6: resource-scoped evaluation.
	if req.ResourceID != nil && *req.ResourceID != "" {
		resp, fallthroughToStep7, err := e.evaluateResourceScope(ctx, req, granted, names, now)
		if err != nil {
			return authz.Denied(fmt.Sprintf("Authorization check failed: %s", err))
		}
		if !fallthroughToStep7 {
			return resp
		}
	}

	if ctx.Err() != nil {
		return authz.Denied("Authorization check failed: deadline exceeded")
	}

	// Step 7: tenant-level policies.
	resp, fell, err := e.evaluateTenantPolicies(ctx, req, granted, names, now)
	if err != nil {
		return authz.Denied(fmt.Sprintf("Authorization check failed: %s", err))
	}
	if !fell {
		return resp
	}

	// Step 8: hierarchical inheritance — walk each assigned role's
	// ancestor chain and check direct matches at each ancestor.
	for _, g := range activeGrants {
		if ctx.Err() != nil {
			return authz.Denied("Authorization check failed: deadline exceeded")
		}
		ancestors, err := role.WalkAncestors(ctx, e.roles, g.Role, e.maxDepth)
		if err != nil {
			return authz.Denied(fmt.Sprintf("Authorization check failed: %s", err))
		}
		for _, ancestor := range ancestors {
			rps, err := e.rolePerms.ListByRole(ctx, ancestor.ID)
			if err != nil {
				return authz.Denied(fmt.Sprintf("Authorization check failed: %s", err))
			}
			for _, rp := range rps {
				if rp.Expired(now) {
					continue
				}
				p, err := e.permRepo.GetByID(ctx, rp.PermissionID)
				if err != nil || !p.IsActive {
					continue
				}
				if p.Matches(req.Resource, req.Action) {
					return authz.Allowed("Inherited permission granted", names)
				}
			}
		}
	}

	return authz.Denied(fmt.Sprintf("No permission for %s:%s", req.Resource, req.Action))
}

func flattenPermissions(grants []*role.Grant, now time.Time) ([]*permission.Permission, []string) {
	var granted []*permission.Permission
	var names []string
	for _, g := range grants {
		for _, gp := range g.Permissions {
			if gp.Valid(now) {
				granted = append(granted, gp.Permission)
				names = append(names, gp.Permission.Name())
			}
		}
	}
	return granted, names
}

// HasPermission is a thin boolean wrapper over Authorize.
func (e *Engine) HasPermission(ctx context.Context, userID, tenantID, resourceType, action string) bool {
	resp := e.Authorize(ctx, authz.Request{UserID: userID, TenantID: tenantID, Resource: resourceType, Action: action})
	return resp.Allowed
}

// BatchAuthorize evaluates every request sequentially, with no
// guarantee of parallelism beyond that of the cache (spec.md §4.1).
func (e *Engine) BatchAuthorize(ctx context.Context, reqs []authz.Request) map[authz.Request]authz.Response {
	out := make(map[authz.Request]authz.Response, len(reqs))
	for _, req := range reqs {
		out[req] = e.Authorize(ctx, req)
	}
	return out
}

func (e *Engine) emitChecked(ctx context.Context, req authz.Request, resp authz.Response) {
	ev := events.NewEvent(id.New(), events.TypeAuthorizationChecked, req.TenantID, req.UserID)
	ev.Resource = req.Resource
	ev.Attrs["action"] = req.Action
	ev.Attrs["allowed"] = resp.Allowed
	ev.Attrs["reason"] = resp.Reason
	e.publisher.Publish(ctx, ev)
}
