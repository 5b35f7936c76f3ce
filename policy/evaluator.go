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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/authzcore/authzcore/policy/expr"
)

// PermissionRef is the (resource_type, action) shape the evaluator
// needs from the engine's permission set P and from a policy's
// referenced permissions — the evaluator itself never touches a
// repository (spec.md §4.2 is a pure function of request + permission
// set).
type PermissionRef struct {
	ResourceType string
	Action       string
}

// Name renders the canonical "TYPE:ACTION" form.
func (p PermissionRef) Name() string { return p.ResourceType + ":" + p.Action }

// Input is the request context the evaluator is scored against
// (spec.md §4.2 "Expression context").
type Input struct {
	UserID     string
	TenantID   string
	Resource   string
	Action     string
	ResourceID string
	Attributes map[string]any
	IPAddress  string
	UserAgent  string
}

// Evaluator evaluates a single Policy against an Input and a
// permission set (spec.md §4.2).
//
// Purpose: The policy scoring function used by the decision engine's
// resource-scoped and tenant-level evaluation steps.
// Domain: Authz
type Evaluator struct{}

// NewEvaluator constructs an Evaluator. It holds no state: every
// method is a pure function of its arguments.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Evaluate scores p against in and the caller's permission set,
// returning ALLOW, DENY, or NOT_APPLICABLE. referencedPerms is the
// resolved (resource_type, action) set the policy's PermissionIDs
// point to; the caller resolves IDs to refs so the evaluator needs no
// repository access.
func (e *Evaluator) Evaluate(p *Policy, referencedPerms []PermissionRef, permissionSet []PermissionRef, in Input, now time.Time) (Decision, error) {
	if !p.Active(now) {
		return DecisionNotApplicable, nil
	}

	var (
		applicable bool
		err        error
	)

	switch p.Type {
	case TypeResourceBased:
		applicable, err = e.evalResourceBased(p, referencedPerms, permissionSet, in)
	case TypeIdentityBased:
		applicable, err = e.evalIdentityBased(p, referencedPerms, permissionSet, in)
	case TypeAttributeBased:
		applicable, err = e.evalAttributeBased(p, permissionSet, in, now)
	case TypeTimeBased:
		applicable, err = e.evalTimeBased(p, now)
	case TypeConditional:
		applicable, err = e.evalConditional(p, permissionSet, in, now)
	default:
		return DecisionNotApplicable, fmt.Errorf("unknown policy type %q", p.Type)
	}

	if err != nil {
		// A single policy's own evaluation error fails it closed.
		return DecisionDeny, fmt.Errorf("policy %q evaluation failed: %w", p.Name, err)
	}
	if !applicable {
		return DecisionNotApplicable, nil
	}
	if p.Effect == EffectAllow {
		return DecisionAllow, nil
	}
	return DecisionDeny, nil
}

func referencesResource(p *Policy, in Input) bool {
	if len(p.ResourceIDs) == 0 {
		return true
	}
	if in.ResourceID == "" {
		return false
	}
	for _, id := range p.ResourceIDs {
		if id == in.ResourceID {
			return true
		}
	}
	return false
}

func matchesSomePermission(refs []PermissionRef, resourceType, action string) bool {
	for _, r := range refs {
		if r.ResourceType == resourceType && r.Action == action {
			return true
		}
	}
	return false
}

func intersectsPermission(held, referenced []PermissionRef) bool {
	for _, r := range referenced {
		if matchesSomePermission(held, r.ResourceType, r.Action) {
			return true
		}
	}
	return false
}

func (e *Evaluator) evalResourceBased(p *Policy, referencedPerms, heldPerms []PermissionRef, in Input) (bool, error) {
	if !referencesResource(p, in) {
		return false, nil
	}
	if !intersectsPermission(heldPerms, referencedPerms) {
		return false, nil
	}
	return evalConditionsMap(p.Conditions, in)
}

func (e *Evaluator) evalIdentityBased(p *Policy, referencedPerms, heldPerms []PermissionRef, in Input) (bool, error) {
	if !matchesSomePermission(referencedPerms, in.Resource, in.Action) {
		return false, nil
	}

	if uid, ok := p.Conditions["userId"]; ok {
		if fmt.Sprint(uid) != in.UserID {
			return false, nil
		}
	}

	if groupsCond, ok := p.Conditions["groups"]; ok {
		requestGroups, _ := in.Attributes["groups"].([]string)
		if !groupsIntersect(groupsCond, requestGroups) {
			return false, nil
		}
	}

	return true, nil
}

func groupsIntersect(condition any, requestGroups []string) bool {
	wanted := toStringSlice(condition)
	if len(wanted) == 0 {
		return true
	}
	have := make(map[string]bool, len(requestGroups))
	for _, g := range requestGroups {
		have[g] = true
	}
	for _, w := range wanted {
		if have[w] {
			return true
		}
	}
	return false
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

func evalConditionsMap(conditions map[string]any, in Input) (bool, error) {
	for key, cond := range conditions {
		actual, ok := in.Attributes[key]
		if !ok {
			return false, nil
		}
		ok2, err := compare(cond, actual)
		if err != nil {
			return false, err
		}
		if !ok2 {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) evalAttributeBased(p *Policy, heldPerms []PermissionRef, in Input, now time.Time) (bool, error) {
	ctx := buildExprContext(in, heldPerms, now)

	keys := make([]string, 0, len(p.Conditions))
	for k := range p.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		exprStr, ok := p.Conditions[k].(string)
		if !ok {
			return false, fmt.Errorf("attribute condition %q is not an expression string", k)
		}
		result, err := expr.Eval(exprStr, ctx)
		if err != nil {
			return false, fmt.Errorf("condition %q: %w", k, err)
		}
		if !result {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) evalTimeBased(p *Policy, now time.Time) (bool, error) {
	loc := time.UTC
	if tz, ok := p.Conditions["timezone"].(string); ok && tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return false, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		loc = l
	}
	local := now.In(loc)

	if hours, ok := p.Conditions["allowedHours"].(string); ok && hours != "" {
		ok2, err := withinHourRange(hours, local)
		if err != nil {
			return false, err
		}
		if !ok2 {
			return false, nil
		}
	}

	if days, ok := p.Conditions["allowedDays"].(string); ok && days != "" {
		if !withinDays(days, local) {
			return false, nil
		}
	}

	if dateRange, ok := p.Conditions["dateRange"].(string); ok && dateRange != "" {
		ok2, err := withinDateRange(dateRange, local)
		if err != nil {
			return false, err
		}
		if !ok2 {
			return false, nil
		}
	}

	return true, nil
}

func withinHourRange(spec string, now time.Time) (bool, error) {
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid allowedHours %q", spec)
	}
	start, err := time.ParseInLocation("15:04", parts[0], now.Location())
	if err != nil {
		return false, fmt.Errorf("invalid allowedHours start %q: %w", parts[0], err)
	}
	end, err := time.ParseInLocation("15:04", parts[1], now.Location())
	if err != nil {
		return false, fmt.Errorf("invalid allowedHours end %q: %w", parts[1], err)
	}
	nowMinutes := now.Hour()*60 + now.Minute()
	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := end.Hour()*60 + end.Minute()
	if startMinutes <= endMinutes {
		return nowMinutes >= startMinutes && nowMinutes <= endMinutes, nil
	}
	// range wraps past midnight
	return nowMinutes >= startMinutes || nowMinutes <= endMinutes, nil
}

var weekdayAbbrev = map[string]time.Weekday{
	"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday,
	"WED": time.Wednesday, "THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
}

func withinDays(spec string, now time.Time) bool {
	for _, d := range strings.Split(spec, ",") {
		if w, ok := weekdayAbbrev[strings.ToUpper(strings.TrimSpace(d))]; ok && w == now.Weekday() {
			return true
		}
	}
	return false
}

func withinDateRange(spec string, now time.Time) (bool, error) {
	parts := strings.SplitN(spec, " to ", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid dateRange %q", spec)
	}
	from, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(parts[0]), now.Location())
	if err != nil {
		return false, fmt.Errorf("invalid dateRange start %q: %w", parts[0], err)
	}
	to, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(parts[1]), now.Location())
	if err != nil {
		return false, fmt.Errorf("invalid dateRange end %q: %w", parts[1], err)
	}
	to = to.Add(24*time.Hour - time.Nanosecond)
	return !now.Before(from) && !now.After(to), nil
}

func (e *Evaluator) evalConditional(p *Policy, heldPerms []PermissionRef, in Input, now time.Time) (bool, error) {
	exprStr, ok := p.Conditions["expression"].(string)
	if !ok || exprStr == "" {
		return false, fmt.Errorf("conditional policy missing \"expression\" condition")
	}
	ctx := buildExprContext(in, heldPerms, now)
	return expr.Eval(exprStr, ctx)
}

func buildExprContext(in Input, heldPerms []PermissionRef, now time.Time) *expr.Context {
	permNames := make(expr.List, 0, len(heldPerms))
	for _, p := range heldPerms {
		permNames = append(permNames, expr.String(p.Name()))
	}

	ctx := &expr.Context{
		Vars: map[string]expr.Value{
			"userId":     expr.String(in.UserID),
			"tenantId":   expr.String(in.TenantID),
			"resource":   expr.String(in.Resource),
			"action":     expr.String(in.Action),
			"resourceId": expr.String(in.ResourceID),
			"attributes": expr.FromGo(in.Attributes),
			"ipAddress":  expr.String(in.IPAddress),
			"userAgent":  expr.String(in.UserAgent),
			"permissionNames": permNames,
			"now":         expr.String(now.Format(time.RFC3339)),
			"currentTime": expr.String(now.Format("15:04:05")),
			"dayOfWeek":   expr.String(strings.ToUpper(now.Weekday().String()[:3])),
			"hour":        expr.Number(now.Hour()),
		},
		Helpers: map[string]expr.HelperFunc{
			"hasPermission": func(args []expr.Value) (expr.Value, error) {
				if len(args) != 2 {
					return nil, fmt.Errorf("hasPermission expects 2 arguments")
				}
				res, ok1 := args[0].(expr.String)
				act, ok2 := args[1].(expr.String)
				if !ok1 || !ok2 {
					return nil, fmt.Errorf("hasPermission expects string arguments")
				}
				return expr.Bool(matchesSomePermission(heldPerms, string(res), string(act))), nil
			},
			"hasAnyPermission": func(args []expr.Value) (expr.Value, error) {
				for _, arg := range args {
					list, ok := arg.(expr.List)
					if !ok {
						continue
					}
					for _, item := range list {
						name, ok := item.(expr.String)
						if !ok {
							continue
						}
						parts := strings.SplitN(string(name), ":", 2)
						if len(parts) == 2 && matchesSomePermission(heldPerms, parts[0], parts[1]) {
							return expr.Bool(true), nil
						}
					}
				}
				return expr.Bool(false), nil
			},
		},
	}
	return ctx
}

// BatchResult is the outcome of evaluating an ordered policy set.
type BatchResult struct {
	Decision Decision
	Winner   *Policy
}

// EvaluateBatch implements spec.md §4.2's batch evaluation: policies
// sorted by priority descending, short-circuiting on the first DENY,
// otherwise ALLOW if any ALLOW was seen, else default-deny.
func (e *Evaluator) EvaluateBatch(policies []*Policy, referenced map[string][]PermissionRef, permissionSet []PermissionRef, in Input, now time.Time) (BatchResult, error) {
	sorted := make([]*Policy, len(policies))
	copy(sorted, policies)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	sawAllow := false
	var allowWinner *Policy

	for _, p := range sorted {
		decision, err := e.Evaluate(p, referenced[p.ID], permissionSet, in, now)
		if err != nil {
			// A composition-level error downgrades this policy to
			// NOT_APPLICABLE and evaluation continues (spec.md §4.2).
			continue
		}
		switch decision {
		case DecisionDeny:
			return BatchResult{Decision: DecisionDeny, Winner: p}, nil
		case DecisionAllow:
			if !sawAllow {
				sawAllow = true
				allowWinner = p
			}
		}
	}

	if sawAllow {
		return BatchResult{Decision: DecisionAllow, Winner: allowWinner}, nil
	}
	return BatchResult{Decision: DecisionDeny}, nil
}
