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
	"time"

	"github.com/authzcore/authzcore/authz"
	"github.com/authzcore/authzcore/permission"
	"github.com/authzcore/authzcore/policy"
)

// evaluateResourceScope implements spec.md §4.1 step 6. The second
// return value reports whether evaluation should fall through to step
// 7 (no owner/public shortcut fired and the resource's policies were
// all NOT_APPLICABLE or the resource did not resolve).
func (e *Engine) evaluateResourceScope(ctx context.Context, req authz.Request, granted []*permission.Permission, names []string, now time.Time) (authz.Response, bool, error) {
	res, err := e.resources.GetByIdentifier(ctx, req.TenantID, *req.ResourceID)
	if err != nil {
		// Unresolvable resource_id: fall through rather than fail closed,
		// matching "only if resource_id present and resolvable".
		return authz.Response{}, true, nil
	}

	if res.OwnedBy(req.UserID) {
		return authz.Allowed("Resource owner access granted", []string{"OWNER"}), false, nil
	}
	if res.PublicReadable(req.Action) {
		return authz.Allowed("Public resource access granted", []string{"PUBLIC_ACCESS"}), false, nil
	}

	policyIDs, err := e.resourceLinks.ListPolicyIDs(ctx, res.ID)
	if err != nil {
		return authz.Response{}, false, fmt.Errorf("failed to list resource policies: %w", err)
	}
	if len(policyIDs) == 0 {
		return authz.Response{}, true, nil
	}

	policies := make([]*policy.Policy, 0, len(policyIDs))
	for _, pid := range policyIDs {
		p, err := e.policies.GetByID(ctx, pid)
		if err != nil {
			continue
		}
		policies = append(policies, p)
	}

	in := toEvalInput(req)
	heldRefs := toPermissionRefs(granted)
	referenced := referencedPermsByPolicy(ctx, e.permRepo, policies)

	result, err := e.evaluator.EvaluateBatch(policies, referenced, heldRefs, in, now)
	if err != nil {
		return authz.Response{}, false, err
	}

	if result.Decision == policy.DecisionDeny && result.Winner == nil {
		// No policy applied: fall through to the next step.
		return authz.Response{}, true, nil
	}

	switch result.Decision {
	case policy.DecisionDeny:
		return authz.Denied(denyReason(result.Winner)), false, nil
	case policy.DecisionAllow:
		return authz.Allowed(allowReason(result.Winner), names), false, nil
	default:
		return authz.Response{}, true, nil
	}
}

// evaluateTenantPolicies implements spec.md §4.1 step 7.
func (e *Engine) evaluateTenantPolicies(ctx context.Context, req authz.Request, granted []*permission.Permission, names []string, now time.Time) (authz.Response, bool, error) {
	policies, err := e.policies.ListByTenant(ctx, req.TenantID, true)
	if err != nil {
		return authz.Response{}, false, fmt.Errorf("failed to list tenant policies: %w", err)
	}
	if len(policies) == 0 {
		return authz.Response{}, true, nil
	}

	in := toEvalInput(req)
	heldRefs := toPermissionRefs(granted)
	referenced := referencedPermsByPolicy(ctx, e.permRepo, policies)

	result, err := e.evaluator.EvaluateBatch(policies, referenced, heldRefs, in, now)
	if err != nil {
		return authz.Response{}, false, err
	}

	if result.Decision == policy.DecisionDeny && result.Winner == nil {
		// No policy applied: fall through to the next step.
		return authz.Response{}, true, nil
	}

	switch result.Decision {
	case policy.DecisionDeny:
		return authz.Denied(denyReason(result.Winner)), false, nil
	case policy.DecisionAllow:
		return authz.Allowed(allowReason(result.Winner), names), false, nil
	default:
		return authz.Response{}, true, nil
	}
}

func toEvalInput(req authz.Request) policy.Input {
	resourceID := ""
	if req.ResourceID != nil {
		resourceID = *req.ResourceID
	}
	return policy.Input{
		UserID:     req.UserID,
		TenantID:   req.TenantID,
		Resource:   req.Resource,
		Action:     req.Action,
		ResourceID: resourceID,
		Attributes: req.Attributes,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	}
}

func toPermissionRefs(perms []*permission.Permission) []policy.PermissionRef {
	refs := make([]policy.PermissionRef, 0, len(perms))
	for _, p := range perms {
		refs = append(refs, policy.PermissionRef{ResourceType: p.ResourceType, Action: p.Action})
	}
	return refs
}

func referencedPermsByPolicy(ctx context.Context, repo permission.Repository, policies []*policy.Policy) map[string][]policy.PermissionRef {
	out := make(map[string][]policy.PermissionRef, len(policies))
	for _, p := range policies {
		refs := make([]policy.PermissionRef, 0, len(p.PermissionIDs))
		for _, permID := range p.PermissionIDs {
			perm, err := repo.GetByID(ctx, permID)
			if err != nil {
				continue
			}
			refs = append(refs, policy.PermissionRef{ResourceType: perm.ResourceType, Action: perm.Action})
		}
		out[p.ID] = refs
	}
	return out
}

func denyReason(winner *policy.Policy) string {
	if winner == nil {
		return "Denied by policy evaluation"
	}
	return fmt.Sprintf("Denied by policy %q", winner.Name)
}

func allowReason(winner *policy.Policy) string {
	if winner == nil {
		return "Allowed by policy evaluation"
	}
	return fmt.Sprintf("Allowed by policy %q", winner.Name)
}
