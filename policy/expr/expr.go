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

// Package expr is a small, sandboxed boolean expression grammar over a
// fixed set of bound names (spec.md §4.2 "Expression context"). It
// supports == != < > <= >= && || !, dotted field access on the bound
// names, the `contains` collection operator, and calls to two fixed
// helper functions. It never executes arbitrary code and never
// reflects on Go runtime internals — the only names it can resolve are
// the ones explicitly bound into a Context.
package expr

import (
	"fmt"
)

// HelperFunc is a bound helper callable from CONDITIONAL expressions
// (hasPermission, hasAnyPermission in spec.md §4.2).
type HelperFunc func(args []Value) (Value, error)

// Context binds names and helper functions for one evaluation.
type Context struct {
	Vars    map[string]Value
	Helpers map[string]HelperFunc
}

// Eval parses and evaluates expression s against ctx, returning its
// boolean result. Any parse or evaluation error is the caller's signal
// to fail the enclosing policy closed (spec.md §4.2 "Error policy").
func Eval(s string, ctx *Context) (bool, error) {
	toks, err := tokenize(s)
	if err != nil {
		return false, fmt.Errorf("expr: %w", err)
	}
	p := &parser{toks: toks, ctx: ctx}
	v, err := p.parseOr()
	if err != nil {
		return false, fmt.Errorf("expr: %w", err)
	}
	if !p.atEnd() {
		return false, fmt.Errorf("expr: unexpected trailing input at %q", p.peek().text)
	}
	b, ok := v.(Bool)
	if !ok {
		return false, fmt.Errorf("expr: expression did not evaluate to a boolean")
	}
	return bool(b), nil
}
