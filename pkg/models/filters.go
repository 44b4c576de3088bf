/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidFilter   = errors.New("invalid field filter")
	ErrInvalidSeverity = errors.New("invalid severity")
)

// FilterCondition is the comparison a FieldFilter applies.
type FilterCondition string

const (
	ConditionEquals      FilterCondition = "equals"
	ConditionNotEqual    FilterCondition = "not-equal"
	ConditionContains    FilterCondition = "contains"
	ConditionNotContains FilterCondition = "not-contains"
	ConditionGreater     FilterCondition = "gt"
	ConditionLess        FilterCondition = "lt"
	ConditionGreaterOrEq FilterCondition = "gte"
	ConditionLessOrEq    FilterCondition = "lte"
)

var validConditions = map[FilterCondition]struct{}{
	ConditionEquals:      {},
	ConditionNotEqual:    {},
	ConditionContains:    {},
	ConditionNotContains: {},
	ConditionGreater:     {},
	ConditionLess:        {},
	ConditionGreaterOrEq: {},
	ConditionLessOrEq:    {},
}

// FieldFilter matches a well-known field or an attribute key against a value.
type FieldFilter struct {
	Field     string          `json:"field"`
	Condition FilterCondition `json:"condition"`
	Value     string          `json:"value"`
}

// ParseFieldFilter parses the "field:condition:value" form. The value may contain colons.
func ParseFieldFilter(raw string) (FieldFilter, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return FieldFilter{}, fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
	}

	filter := FieldFilter{Field: parts[0], Condition: FilterCondition(parts[1]), Value: parts[2]}
	if err := filter.Validate(); err != nil {
		return FieldFilter{}, err
	}

	return filter, nil
}

// Validate checks the filter has a field and a known condition.
func (f FieldFilter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("%w: empty field", ErrInvalidFilter)
	}

	if _, ok := validConditions[f.Condition]; !ok {
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidFilter, f.Condition)
	}

	return nil
}

// Apply evaluates the filter against a field value. Absent fields only satisfy
// the negated conditions.
func (f FieldFilter) Apply(value string, present bool) bool {
	if !present {
		return f.Condition == ConditionNotEqual || f.Condition == ConditionNotContains
	}

	switch f.Condition {
	case ConditionEquals:
		return strings.EqualFold(value, f.Value)
	case ConditionNotEqual:
		return !strings.EqualFold(value, f.Value)
	case ConditionContains:
		return containsFold(value, f.Value)
	case ConditionNotContains:
		return !containsFold(value, f.Value)
	case ConditionGreater:
		return compare(value, f.Value) > 0
	case ConditionLess:
		return compare(value, f.Value) < 0
	case ConditionGreaterOrEq:
		return compare(value, f.Value) >= 0
	case ConditionLessOrEq:
		return compare(value, f.Value) <= 0
	}

	return false
}

// MatchAll reports whether every filter accepts the value returned by lookup.
func MatchAll(filters []FieldFilter, lookup func(field string) (string, bool)) bool {
	for _, f := range filters {
		value, ok := lookup(f.Field)
		if !f.Apply(value, ok) {
			return false
		}
	}

	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// compare orders numerically when both sides parse as numbers.
func compare(a, b string) int {
	af, errA := strconv.ParseFloat(a, 64)
	bf, errB := strconv.ParseFloat(b, 64)

	if errA == nil && errB == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(a, b)
}

// ContainsText reports whether text appears in any of the candidates, ignoring case.
func ContainsText(text string, candidates ...string) bool {
	if text == "" {
		return true
	}

	for _, c := range candidates {
		if containsFold(c, text) {
			return true
		}
	}

	return false
}

// AttributesContainText matches text against attribute keys and values.
func AttributesContainText(text string, attrs []KeyValue) bool {
	for _, kv := range attrs {
		if containsFold(kv.Key, text) || containsFold(kv.Value, text) {
			return true
		}
	}

	return false
}
