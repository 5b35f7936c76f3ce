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
	"regexp"
	"strconv"
	"strings"
)

// compare implements the "simple comparator" of spec.md §4.2, used by
// the non-ABAC flavors: a condition value of "regex:<pattern>" matches
// via regexp, "gt:<n>"/"lt:<n>" compare numerically, a list value is
// matched via containment, and anything else compares by equality.
func compare(condition, actual any) (bool, error) {
	switch c := condition.(type) {
	case string:
		switch {
		case strings.HasPrefix(c, "regex:"):
			pattern := strings.TrimPrefix(c, "regex:")
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false, fmt.Errorf("invalid regex condition %q: %w", pattern, err)
			}
			return re.MatchString(fmt.Sprint(actual)), nil
		case strings.HasPrefix(c, "gt:"):
			return numericCompare(c[len("gt:"):], actual, func(n, a float64) bool { return a > n })
		case strings.HasPrefix(c, "lt:"):
			return numericCompare(c[len("lt:"):], actual, func(n, a float64) bool { return a < n })
		default:
			return fmt.Sprint(actual) == c, nil
		}
	case []string:
		for _, item := range c {
			if item == fmt.Sprint(actual) {
				return true, nil
			}
		}
		return false, nil
	case []any:
		for _, item := range c {
			if fmt.Sprint(item) == fmt.Sprint(actual) {
				return true, nil
			}
		}
		return false, nil
	default:
		return fmt.Sprint(actual) == fmt.Sprint(condition), nil
	}
}

func numericCompare(boundLit string, actual any, cmp func(bound, value float64) bool) (bool, error) {
	bound, err := strconv.ParseFloat(boundLit, 64)
	if err != nil {
		return false, fmt.Errorf("invalid numeric bound %q: %w", boundLit, err)
	}
	value, err := toFloat(actual)
	if err != nil {
		return false, err
	}
	return cmp(bound, value), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
		if err != nil {
			return 0, fmt.Errorf("value %v is not numeric", v)
		}
		return f, nil
	}
}
