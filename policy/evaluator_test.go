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
	"testing"
	"time"
)

func TestEvaluateActivationGate(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	e := NewEvaluator()
	p := &Policy{Name: "future-only", Type: TypeConditional, Effect: EffectAllow, IsActive: true, StartDate: &future, Conditions: map[string]any{"expression": "true"}}

	decision, err := e.Evaluate(p, nil, nil, Input{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionNotApplicable {
		t.Errorf("expected NOT_APPLICABLE before start_date, got %v", decision)
	}

	p2 := &Policy{Name: "expired", Type: TypeConditional, Effect: EffectAllow, IsActive: true, EndDate: &past, Conditions: map[string]any{"expression": "true"}}
	decision, err = e.Evaluate(p2, nil, nil, Input{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionNotApplicable {
		t.Errorf("expected NOT_APPLICABLE after end_date, got %v", decision)
	}
}

func TestEvaluateConditional(t *testing.T) {
	now := time.Now()
	e := NewEvaluator()
	held := []PermissionRef{{ResourceType: "DATASET", Action: "READ"}}

	p := &Policy{
		Name: "biz-hours", Type: TypeConditional, Effect: EffectAllow, IsActive: true,
		Conditions: map[string]any{"expression": "hasPermission('DATASET', 'READ')"},
	}

	decision, err := e.Evaluate(p, nil, held, Input{Resource: "DATASET", Action: "READ"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionAllow {
		t.Errorf("expected ALLOW, got %v", decision)
	}

	p.Conditions["expression"] = "hasPermission('DATASET', 'DELETE')"
	decision, err = e.Evaluate(p, nil, held, Input{Resource: "DATASET", Action: "READ"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionNotApplicable {
		t.Errorf("expected NOT_APPLICABLE, got %v", decision)
	}
}

func TestEvaluateTimeBased(t *testing.T) {
	e := NewEvaluator()
	noon := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) // Thursday
	p := &Policy{
		Name: "business-hours", Type: TypeTimeBased, Effect: EffectAllow, IsActive: true,
		Conditions: map[string]any{"allowedHours": "09:00-17:00", "allowedDays": "MON,TUE,WED,THU,FRI"},
	}

	decision, err := e.Evaluate(p, nil, nil, Input{}, noon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionAllow {
		t.Errorf("expected ALLOW during business hours, got %v", decision)
	}

	midnight := time.Date(2026, 7, 30, 23, 30, 0, 0, time.UTC)
	decision, err = e.Evaluate(p, nil, nil, Input{}, midnight)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionNotApplicable {
		t.Errorf("expected NOT_APPLICABLE outside business hours, got %v", decision)
	}
}

func TestEvaluateIdentityBased(t *testing.T) {
	e := NewEvaluator()
	now := time.Now()
	referenced := []PermissionRef{{ResourceType: "DATASET", Action: "READ"}}

	p := &Policy{
		Name: "u1-only", Type: TypeIdentityBased, Effect: EffectAllow, IsActive: true,
		Conditions: map[string]any{"userId": "u1"},
	}

	decision, err := e.Evaluate(p, referenced, referenced, Input{UserID: "u1", Resource: "DATASET", Action: "READ"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionAllow {
		t.Errorf("expected ALLOW for matching user, got %v", decision)
	}

	decision, err = e.Evaluate(p, referenced, referenced, Input{UserID: "u2", Resource: "DATASET", Action: "READ"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionNotApplicable {
		t.Errorf("expected NOT_APPLICABLE for non-matching user, got %v", decision)
	}
}

func TestEvaluateBatchDenyPrecedence(t *testing.T) {
	e := NewEvaluator()
	now := time.Now()

	allow := &Policy{ID: "p-allow", Name: "allow-all", Type: TypeConditional, Effect: EffectAllow, IsActive: true, Priority: 100, Conditions: map[string]any{"expression": "true"}}
	deny := &Policy{ID: "p-deny", Name: "deny-all", Type: TypeConditional, Effect: EffectDeny, IsActive: true, Priority: 50, Conditions: map[string]any{"expression": "true"}}

	result, err := e.EvaluateBatch([]*Policy{allow, deny}, nil, nil, Input{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionDeny {
		t.Errorf("DENY must win over a higher-priority ALLOW, got %v", result.Decision)
	}

	deny.Priority = 200
	result, err = e.EvaluateBatch([]*Policy{allow, deny}, nil, nil, Input{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionDeny {
		t.Errorf("DENY must win regardless of evaluation order, got %v", result.Decision)
	}
}

func TestEvaluateBatchHighestPriorityAllowWins(t *testing.T) {
	e := NewEvaluator()
	now := time.Now()

	weak := &Policy{ID: "p-weak", Name: "weak-allow", Type: TypeConditional, Effect: EffectAllow, IsActive: true, Priority: 10, Conditions: map[string]any{"expression": "true"}}
	strong := &Policy{ID: "p-strong", Name: "strong-allow", Type: TypeConditional, Effect: EffectAllow, IsActive: true, Priority: 90, Conditions: map[string]any{"expression": "true"}}

	result, err := e.EvaluateBatch([]*Policy{weak, strong}, nil, nil, Input{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Fatalf("expected ALLOW, got %v", result.Decision)
	}
	if result.Winner == nil || result.Winner.ID != strong.ID {
		t.Errorf("expected the highest-priority ALLOW to be recorded as the winner, got %+v", result.Winner)
	}
}

func TestEvaluateBatchDefaultDeny(t *testing.T) {
	e := NewEvaluator()
	result, err := e.EvaluateBatch(nil, nil, nil, Input{}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision != DecisionDeny {
		t.Errorf("expected default-deny on empty policy set, got %v", result.Decision)
	}
}
