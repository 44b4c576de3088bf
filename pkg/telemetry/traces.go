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

package telemetry

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/carverauto/otelhub/pkg/models"
)

type traceEntry struct {
	traceID string
	// owner is the resource of the first span seen for the trace.
	owner models.ResourceKey
	spans map[string]models.Span
}

func (e *traceEntry) spanSlice() []models.Span {
	out := make([]models.Span, 0, len(e.spans))
	for _, span := range e.spans {
		out = append(out, span)
	}

	return out
}

// traceStore keeps traces in arrival order of their first span. The LRU is
// only ever read with Peek so it behaves as a FIFO.
type traceStore struct {
	mu          sync.RWMutex
	traces      *simplelru.LRU[string, *traceEntry]
	byResource  map[models.ResourceKey][]string
	perResource int
}

func newTraceStore(capacity, perResource int) (*traceStore, error) {
	s := &traceStore{
		byResource:  make(map[models.ResourceKey][]string),
		perResource: perResource,
	}

	traces, err := simplelru.NewLRU[string, *traceEntry](capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace store: %w", err)
	}

	s.traces = traces

	return s, nil
}

func (s *traceStore) onEvict(traceID string, entry *traceEntry) {
	s.byResource[entry.owner] = removeKey(s.byResource[entry.owner], traceID)
	if len(s.byResource[entry.owner]) == 0 {
		delete(s.byResource, entry.owner)
	}
}

// add inserts spans for one resource and calls notify with the touched trace
// ids before the write lock is released.
func (s *traceStore) add(
	resource models.ResourceKey, scopes []models.ScopeBatch[models.SpanRecord], notify func(traceIDs []string),
) (accepted, evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []string

	seen := make(map[string]struct{})

	for _, scope := range scopes {
		for _, rec := range scope.Items {
			entry, ok := s.traces.Peek(rec.TraceID)
			if !ok {
				evicted += s.makeRoomLocked(resource)

				entry = &traceEntry{
					traceID: rec.TraceID,
					owner:   resource,
					spans:   make(map[string]models.Span),
				}

				if s.traces.Add(rec.TraceID, entry) {
					evicted++
				}

				s.byResource[resource] = append(s.byResource[resource], rec.TraceID)
			}

			rec.Attributes = models.CloneAttributes(rec.Attributes)
			entry.spans[rec.SpanID] = models.Span{SpanRecord: rec, Resource: resource, Scope: scope.Scope}
			accepted++

			if _, dup := seen[rec.TraceID]; !dup {
				seen[rec.TraceID] = struct{}{}
				touched = append(touched, rec.TraceID)
			}
		}
	}

	if notify != nil && len(touched) > 0 {
		notify(touched)
	}

	return accepted, evicted
}

func (s *traceStore) makeRoomLocked(resource models.ResourceKey) int {
	if s.perResource <= 0 || len(s.byResource[resource]) < s.perResource {
		return 0
	}

	oldest := s.byResource[resource][0]
	s.traces.Remove(oldest)

	return 1
}

func (s *traceStore) get(traceID string, names map[models.ResourceKey]string) (models.Trace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.traces.Peek(traceID)
	if !ok {
		return models.Trace{}, false
	}

	return assembleTrace(entry.traceID, entry.spanSlice(), names), true
}

// query returns matching traces newest first by arrival of their first span.
func (s *traceStore) query(m *TraceMatcher, start, count int, names map[models.ResourceKey]string) models.PagedResult[models.Trace] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.traces.Keys()
	matched := make([]*traceEntry, 0, len(keys))

	for i := len(keys) - 1; i >= 0; i-- {
		entry, ok := s.traces.Peek(keys[i])
		if !ok {
			continue
		}

		if m.matchSpans(entry.spanSlice()) {
			matched = append(matched, entry)
		}
	}

	page := models.Paginate(matched, start, count)
	out := models.PagedResult[models.Trace]{
		Items:      make([]models.Trace, 0, len(page.Items)),
		TotalCount: page.TotalCount,
	}

	for _, entry := range page.Items {
		out.Items = append(out.Items, assembleTrace(entry.traceID, entry.spanSlice(), names))
	}

	return out
}

// clear removes every span emitted by the given resources. Traces left without
// spans are dropped. A nil set clears everything.
func (s *traceStore) clear(resources resourceSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resources == nil {
		s.traces.Purge()
		return
	}

	for _, traceID := range s.traces.Keys() {
		entry, ok := s.traces.Peek(traceID)
		if !ok {
			continue
		}

		for spanID, span := range entry.spans {
			if resources.contains(span.Resource) {
				delete(entry.spans, spanID)
			}
		}

		if len(entry.spans) == 0 {
			s.traces.Remove(traceID)
		}
	}
}

func (s *traceStore) attributeKeys(resources resourceSet) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]struct{})

	for _, traceID := range s.traces.Keys() {
		entry, ok := s.traces.Peek(traceID)
		if !ok {
			continue
		}

		for _, span := range entry.spans {
			if !resources.contains(span.Resource) {
				continue
			}

			for _, kv := range span.Attributes {
				keys[kv.Key] = struct{}{}
			}
		}
	}

	return sortedKeys(keys)
}

func (s *traceStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.traces.Len()
}

// assembleTrace orders spans by start time and computes roots and depths.
// Spans whose parent is missing are roots. Spans unreachable from any root
// (parent cycles) promote their earliest member to an extra root.
func assembleTrace(traceID string, spans []models.Span, names map[models.ResourceKey]string) models.Trace {
	sort.Slice(spans, func(i, j int) bool {
		if !spans[i].StartTime.Equal(spans[j].StartTime) {
			return spans[i].StartTime.Before(spans[j].StartTime)
		}

		return spans[i].SpanID < spans[j].SpanID
	})

	index := make(map[string]int, len(spans))
	for i := range spans {
		index[spans[i].SpanID] = i
	}

	children := make(map[string][]int, len(spans))

	var roots []int

	for i := range spans {
		parent := spans[i].ParentSpanID
		if _, ok := index[parent]; parent == "" || !ok || parent == spans[i].SpanID {
			roots = append(roots, i)
			continue
		}

		children[parent] = append(children[parent], i)
	}

	depth := make([]int, len(spans))
	visited := make([]bool, len(spans))

	walk := func(root int) {
		queue := []int{root}
		visited[root] = true
		depth[root] = 0

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			for _, child := range children[spans[current].SpanID] {
				if visited[child] {
					continue
				}

				visited[child] = true
				depth[child] = depth[current] + 1
				queue = append(queue, child)
			}
		}
	}

	for _, root := range roots {
		walk(root)
	}

	for i := range spans {
		if !visited[i] {
			roots = append(roots, i)
			walk(i)
		}
	}

	slices.Sort(roots)

	trace := models.Trace{
		TraceID:     traceID,
		Spans:       spans,
		RootSpanIDs: make([]string, 0, len(roots)),
	}

	for _, root := range roots {
		trace.RootSpanIDs = append(trace.RootSpanIDs, spans[root].SpanID)
	}

	seenResources := make(map[models.ResourceKey]struct{})

	for i := range spans {
		span := &spans[i]
		span.Depth = depth[i]

		if trace.StartTime.IsZero() || span.StartTime.Before(trace.StartTime) {
			trace.StartTime = span.StartTime
		}

		end := span.EndTime
		if end.IsZero() {
			end = span.StartTime
		}

		if end.After(trace.EndTime) {
			trace.EndTime = end
		}

		if span.Status == models.SpanStatusError {
			trace.HasError = true
		}

		if _, ok := seenResources[span.Resource]; !ok {
			seenResources[span.Resource] = struct{}{}
			trace.Resources = append(trace.Resources, span.Resource)
		}
	}

	trace.Duration = trace.EndTime.Sub(trace.StartTime)
	if trace.Duration < 0 {
		trace.Duration = time.Duration(0)
	}

	if len(roots) > 0 {
		root := spans[roots[0]]

		name, ok := names[root.Resource]
		if !ok {
			name = root.Resource.Name
		}

		trace.Name = name + ": " + root.Name
	}

	return trace
}

func removeKey[K comparable](keys []K, key K) []K {
	if len(keys) > 0 && keys[0] == key {
		return keys[1:]
	}

	if i := slices.Index(keys, key); i >= 0 {
		return slices.Delete(keys, i, i+1)
	}

	return keys
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}

	sort.Strings(out)

	return out
}
