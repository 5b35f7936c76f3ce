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

package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/events"
	"github.com/authzcore/authzcore/internal/id"
	"github.com/authzcore/authzcore/metrics"
)

// Service is the administrative surface over Policy entities
// (spec.md §4.3 PolicyService).
//
// Purpose: CRUD with (name, tenant_id) uniqueness, activation toggling,
// and a test-only evaluation endpoint for policy authoring tools.
// Domain: Authz
type Service struct {
	repo      Repository
	evaluator *Evaluator
	cache     cache.DecisionCache
	publisher events.Publisher
}

// NewService constructs a policy Service.
func NewService(repo Repository, c cache.DecisionCache, pub events.Publisher) *Service {
	return &Service{repo: repo, evaluator: NewEvaluator(), cache: c, publisher: pub}
}

// CreateRequest describes a new policy.
type CreateRequest struct {
	Name          string
	TenantID      string
	Type          Type
	Effect        Effect
	Priority      int
	Conditions    map[string]any
	StartDate     *time.Time
	EndDate       *time.Time
	PermissionIDs []string
	ResourceIDs   []string
	CreatedBy     string
}

// Create registers a new policy, rejecting a duplicate (name, tenant_id).
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Policy, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.Type == "" {
		return nil, fmt.Errorf("%w: policy_type is required", ErrValidation)
	}

	if existing, err := s.repo.GetByName(ctx, req.Name, req.TenantID); err == nil && existing != nil {
		return nil, ErrAlreadyExists
	}

	effect := req.Effect
	if effect == "" {
		effect = EffectDeny
	}

	conditions := req.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}

	p := &Policy{
		ID:            id.New(),
		Name:          req.Name,
		TenantID:      req.TenantID,
		Type:          req.Type,
		Effect:        effect,
		Priority:      req.Priority,
		Conditions:    conditions,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsActive:      true,
		PermissionIDs: req.PermissionIDs,
		ResourceIDs:   req.ResourceIDs,
		Version:       1,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}

	s.publisher.Publish(ctx, events.NewEvent(id.New(), events.TypePolicyCreated, req.TenantID, req.CreatedBy))
	return p, nil
}

// SetActive toggles a policy's is_active flag, invalidating the
// decision cache broadly since the affected principal set is unknown
// without a full dependency scan.
func (s *Service) SetActive(ctx context.Context, policyID string, active bool) error {
	p, err := s.repo.GetByID(ctx, policyID)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	p.IsActive = active
	p.Version++
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	_ = s.cache.InvalidateAll(ctx)
	return nil
}

// Delete removes a policy.
func (s *Service) Delete(ctx context.Context, policyID string) error {
	if err := s.repo.Delete(ctx, policyID); err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	_ = s.cache.InvalidateAll(ctx)
	return nil
}

// Evaluate runs the test-only evaluation endpoint named in spec.md
// §4.3: evaluate one policy against a caller-supplied request and
// permission set without affecting any real decision.
func (s *Service) Evaluate(ctx context.Context, policyID string, referencedPerms, permissionSet []PermissionRef, in Input) (EvaluationResponse, error) {
	p, err := s.repo.GetByID(ctx, policyID)
	if err != nil {
		return EvaluationResponse{}, fmt.Errorf("failed to load policy: %w", err)
	}

	now := time.Now()
	decision, err := s.evaluator.Evaluate(p, referencedPerms, permissionSet, in, now)

	resp := EvaluationResponse{
		PolicyID:    p.ID,
		PolicyName:  p.Name,
		Effect:      p.Effect,
		Evaluated:   decision,
		EvaluatedAt: now,
	}
	if err != nil {
		resp.Reason = err.Error()
	} else {
		resp.Reason = fmt.Sprintf("policy %q evaluated to %s", p.Name, decision)
	}
	metrics.RecordPolicyEvaluation(strings.ToLower(string(decision)))
	return resp, nil
}

// SweepExpired deactivates policies whose end_date has passed, used by
// the maintenance scheduler (spec.md §4.6).
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired policies: %w", err)
	}
	for _, p := range expired {
		p.IsActive = false
		p.Version++
		if err := s.repo.Update(ctx, p); err != nil {
			return 0, fmt.Errorf("failed to deactivate expired policy %s: %w", p.ID, err)
		}
	}
	if len(expired) > 0 {
		_ = s.cache.InvalidateAll(ctx)
	}
	return len(expired), nil
}
