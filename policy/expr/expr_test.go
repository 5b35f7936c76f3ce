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

package expr

import "testing"

func TestEvalBasic(t *testing.T) {
	ctx := &Context{Vars: map[string]Value{
		"hour":   Number(14),
		"userId": String("u1"),
		"groups": List{String("admins"), String("eng")},
		"attributes": Map{
			"department": String("engineering"),
		},
	}}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"numeric gt", "hour > 9", true},
		{"numeric range", "hour >= 9 && hour <= 17", true},
		{"string eq", "userId == 'u1'", true},
		{"string neq", "userId != 'u2'", true},
		{"or", "hour > 20 || userId == 'u1'", true},
		{"not", "!(hour > 20)", true},
		{"contains list", "groups contains 'admins'", true},
		{"contains miss", "groups contains 'finance'", false},
		{"member access", "attributes.department == 'engineering'", true},
		{"member access miss", "attributes.department == 'sales'", false},
		{"literal true", "true", true},
		{"literal false", "false", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalHelperFunctions(t *testing.T) {
	perms := map[string]bool{"DATASET:READ": true}

	ctx := &Context{
		Vars: map[string]Value{},
		Helpers: map[string]HelperFunc{
			"hasPermission": func(args []Value) (Value, error) {
				if len(args) != 2 {
					return nil, errArgCount
				}
				res, _ := args[0].(String)
				act, _ := args[1].(String)
				return Bool(perms[string(res)+":"+string(act)]), nil
			},
		},
	}

	got, err := Eval("hasPermission('DATASET', 'READ')", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected hasPermission('DATASET', 'READ') to be true")
	}

	got, err = Eval("hasPermission('DATASET', 'WRITE')", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("expected hasPermission('DATASET', 'WRITE') to be false")
	}
}

func TestEvalErrors(t *testing.T) {
	ctx := &Context{Vars: map[string]Value{"hour": Number(1)}}

	tests := []string{
		"hour ===",
		"unboundName == 1",
		"hour > 'not a number'",
		"hour > 1 extra",
	}

	for _, expr := range tests {
		if _, err := Eval(expr, ctx); err == nil {
			t.Errorf("Eval(%q): expected error, got none", expr)
		}
	}
}

var errArgCount = errTest("wrong argument count")

type errTest string

func (e errTest) Error() string { return string(e) }
