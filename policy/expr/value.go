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

import (
	"fmt"
	"reflect"
)

// Value is any runtime value the interpreter manipulates: Bool,
// Number, String, List, or Map.
type Value interface{ isValue() }

type Bool bool
type Number float64
type String string
type List []Value
type Map map[string]Value

func (Bool) isValue()   {}
func (Number) isValue() {}
func (String) isValue() {}
func (List) isValue()   {}
func (Map) isValue()    {}

// FromGo converts an arbitrary Go value (as bound from the expression
// context's map<string,any>) into a Value. Unsupported kinds become
// String via fmt.Sprint so comparisons degrade gracefully instead of
// panicking.
func FromGo(v any) Value {
	switch t := v.(type) {
	case nil:
		return String("")
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case []string:
		l := make(List, len(t))
		for i, s := range t {
			l[i] = String(s)
		}
		return l
	case []any:
		l := make(List, len(t))
		for i, s := range t {
			l[i] = FromGo(s)
		}
		return l
	case map[string]any:
		m := make(Map, len(t))
		for k, val := range t {
			m[k] = FromGo(val)
		}
		return m
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		l := make(List, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			l[i] = FromGo(rv.Index(i).Interface())
		}
		return l
	}
	return String(fmt.Sprint(v))
}

func truthy(v Value) bool {
	switch t := v.(type) {
	case Bool:
		return bool(t)
	case Number:
		return t != 0
	case String:
		return t != ""
	case List:
		return len(t) > 0
	default:
		return false
	}
}
