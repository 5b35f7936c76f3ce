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

// Package policy holds the Policy entity and the evaluator that scores
// one policy against a request and a permission set (spec.md §3, §4.2).
package policy

import (
	"context"
	"time"

	"github.com/authzcore/authzcore/errkind"
)

// Domain errors, each classified per spec.md §7.
var (
	ErrNotFound      = errkind.New(errkind.KindNotFound, "policy not found")
	ErrAlreadyExists = errkind.New(errkind.KindDuplicate, "policy already exists")
	ErrValidation    = errkind.New(errkind.KindValidation, "invalid policy")
	ErrConflict      = errkind.New(errkind.KindBusinessRule, "policy was concurrently modified")
)

// Type enumerates the five policy flavors of spec.md §4.2.
type Type string

const (
	TypeResourceBased Type = "RESOURCE_BASED"
	TypeIdentityBased Type = "IDENTITY_BASED"
	TypeAttributeBased Type = "ATTRIBUTE_BASED"
	TypeTimeBased     Type = "TIME_BASED"
	TypeConditional   Type = "CONDITIONAL"
)

// Effect is the outcome a policy produces when applicable.
type Effect string

const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// Decision is the three-valued result of evaluating a single policy.
type Decision string

const (
	DecisionAllow        Decision = "ALLOW"
	DecisionDeny         Decision = "DENY"
	DecisionNotApplicable Decision = "NOT_APPLICABLE"
)

// Policy is a named, tenant-scoped rule attached to permissions and
// resources (spec.md §3).
//
// Purpose: Evaluable ABAC/TBAC/identity/resource rule.
// Domain: Authz
// Invariants: (Name, TenantID) unique. Default Effect is DENY.
type Policy struct {
	ID            string
	Name          string
	TenantID      string
	Type          Type
	Effect        Effect
	Priority      int
	Conditions    map[string]any
	StartDate     *time.Time
	EndDate       *time.Time
	IsActive      bool
	PermissionIDs []string
	ResourceIDs   []string
	Version       int
}

// Active reports whether the policy's activation gate passes at now
// (spec.md §4.2 "Activation gate").
func (p *Policy) Active(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.StartDate != nil && p.StartDate.After(now) {
		return false
	}
	if p.EndDate != nil && p.EndDate.Before(now) {
		return false
	}
	return true
}

// Repository defines persistence for Policy entities.
//
// Purpose: Abstraction over policy storage.
// Domain: Authz
type Repository interface {
	Create(ctx context.Context, p *Policy) error
	GetByID(ctx context.Context, id string) (*Policy, error)
	GetByName(ctx context.Context, name, tenantID string) (*Policy, error)
	ListByResource(ctx context.Context, resourceID string) ([]*Policy, error)
	ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*Policy, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Policy, error)
	Update(ctx context.Context, p *Policy) error
	Delete(ctx context.Context, id string) error
}

// EvaluationResponse is the PolicyService test-only evaluation result
// (spec.md §4.3).
type EvaluationResponse struct {
	PolicyID    string
	PolicyName  string
	Effect      Effect
	Evaluated   Decision
	Reason      string
	EvaluatedAt time.Time
}
