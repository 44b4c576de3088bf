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
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/carverauto/otelhub/pkg/models"
)

// logStore keys records by a monotonically increasing id, so LRU key order is
// insertion order.
type logStore struct {
	mu          sync.RWMutex
	nextID      uint64
	logs        *simplelru.LRU[uint64, *models.LogEntry]
	byResource  map[models.ResourceKey][]uint64
	perResource int
}

func newLogStore(capacity, perResource int) (*logStore, error) {
	s := &logStore{
		byResource:  make(map[models.ResourceKey][]uint64),
		perResource: perResource,
	}

	logs, err := simplelru.NewLRU[uint64, *models.LogEntry](capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create log store: %w", err)
	}

	s.logs = logs

	return s, nil
}

func (s *logStore) onEvict(id uint64, entry *models.LogEntry) {
	s.byResource[entry.Resource] = removeKey(s.byResource[entry.Resource], id)
	if len(s.byResource[entry.Resource]) == 0 {
		delete(s.byResource, entry.Resource)
	}
}

// add appends records for one resource and hands copies of the stored entries
// to notify before the write lock is released.
func (s *logStore) add(
	resource models.ResourceKey, scopes []models.ScopeBatch[models.LogRecord], notify func(entries []models.LogEntry),
) (accepted, evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []models.LogEntry

	for _, scope := range scopes {
		for _, rec := range scope.Items {
			if s.perResource > 0 && len(s.byResource[resource]) >= s.perResource {
				s.logs.Remove(s.byResource[resource][0])
				evicted++
			}

			s.nextID++
			rec.Attributes = models.CloneAttributes(rec.Attributes)

			entry := &models.LogEntry{
				ID:        s.nextID,
				LogRecord: rec,
				Resource:  resource,
				Scope:     scope.Scope,
			}

			if s.logs.Add(entry.ID, entry) {
				evicted++
			}

			s.byResource[resource] = append(s.byResource[resource], entry.ID)
			added = append(added, *entry)
			accepted++
		}
	}

	if notify != nil && len(added) > 0 {
		notify(added)
	}

	return accepted, evicted
}

// query returns matching records newest first.
func (s *logStore) query(m *LogMatcher, start, count int) models.PagedResult[models.LogEntry] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.logs.Keys()
	matched := make([]models.LogEntry, 0)

	for i := len(keys) - 1; i >= 0; i-- {
		entry, ok := s.logs.Peek(keys[i])
		if !ok {
			continue
		}

		if m.Match(entry) {
			matched = append(matched, *entry)
		}
	}

	return models.Paginate(matched, start, count)
}

func (s *logStore) clear(resources resourceSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resources == nil {
		s.logs.Purge()
		return
	}

	for key := range resources {
		ids := append([]uint64(nil), s.byResource[key]...)
		for _, id := range ids {
			s.logs.Remove(id)
		}
	}
}

func (s *logStore) attributeKeys(resources resourceSet) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]struct{})

	for _, id := range s.logs.Keys() {
		entry, ok := s.logs.Peek(id)
		if !ok || !resources.contains(entry.Resource) {
			continue
		}

		for _, kv := range entry.Attributes {
			keys[kv.Key] = struct{}{}
		}
	}

	return sortedKeys(keys)
}

func (s *logStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.logs.Len()
}
