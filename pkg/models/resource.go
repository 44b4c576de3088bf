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

// Package models pkg/models/resource.go
package models

import (
	"time"
)

// KeyValue is a single flattened attribute. Attribute lists keep encounter order.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ResourceKey identifies a telemetry source by service name and instance id.
type ResourceKey struct {
	Name       string `json:"name"`
	InstanceID string `json:"instance_id"`
}

// String renders the stable key used in URLs and query parameters.
func (k ResourceKey) String() string {
	if k.InstanceID == "" || k.InstanceID == k.Name {
		return k.Name
	}

	return k.Name + "-" + k.InstanceID
}

// IsZero reports whether the key is unset.
func (k ResourceKey) IsZero() bool {
	return k.Name == "" && k.InstanceID == ""
}

// Resource is a process or service that emitted telemetry, or a peer inferred from spans.
type Resource struct {
	Key                ResourceKey `json:"key"`
	Name               string      `json:"name"`
	InstanceID         string      `json:"instance_id"`
	DisplayName        string      `json:"display_name"`
	Attributes         []KeyValue  `json:"attributes"`
	CreatedAt          time.Time   `json:"created_at"`
	UninstrumentedPeer bool        `json:"uninstrumented_peer"`
}

// ResourceRecord is a normalized OTLP resource before it is registered.
type ResourceRecord struct {
	Name       string     `json:"name"`
	InstanceID string     `json:"instance_id"`
	Attributes []KeyValue `json:"attributes"`
}

// Key returns the stable key of the record.
func (r ResourceRecord) Key() ResourceKey {
	return ResourceKey{Name: r.Name, InstanceID: r.InstanceID}
}

// Scope is an instrumentation library identity.
type Scope struct {
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Attributes []KeyValue `json:"attributes,omitempty"`
}

// ScopeBatch groups normalized items emitted by one scope.
type ScopeBatch[T any] struct {
	Scope Scope
	Items []T
}

// ResourceBatch groups normalized items emitted by one resource.
type ResourceBatch[T any] struct {
	Resource ResourceRecord
	Scopes   []ScopeBatch[T]
}

// Count returns the number of items in the batch.
func (b ResourceBatch[T]) Count() int {
	n := 0
	for _, scope := range b.Scopes {
		n += len(scope.Items)
	}

	return n
}

// PagedResult is one page of query results plus the total number of matches.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}

// Paginate slices items into a page. A non-positive count returns everything from start.
func Paginate[T any](items []T, start, count int) PagedResult[T] {
	total := len(items)
	if start < 0 {
		start = 0
	}

	if start > total {
		start = total
	}

	end := total
	if count > 0 && count < total-start {
		end = start + count
	}

	page := make([]T, end-start)
	copy(page, items[start:end])

	return PagedResult[T]{Items: page, TotalCount: total}
}

// AttributeValue returns the value of key and whether it was present.
func AttributeValue(attrs []KeyValue, key string) (string, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}

	return "", false
}

// CloneAttributes returns a copy of attrs.
func CloneAttributes(attrs []KeyValue) []KeyValue {
	if attrs == nil {
		return nil
	}

	out := make([]KeyValue, len(attrs))
	copy(out, attrs)

	return out
}
