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
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/carverauto/otelhub/pkg/models"
)

type instrumentKey struct {
	resource models.ResourceKey
	scope    string
	name     string
}

type instrumentEntry struct {
	instrument  models.Instrument
	points      *pointRing[models.DataPoint]
	lastUpdated time.Time
}

// metricStore keeps instruments in first-seen order, each with a bounded ring of points.
type metricStore struct {
	mu          sync.RWMutex
	instruments *simplelru.LRU[instrumentKey, *instrumentEntry]
	byResource  map[models.ResourceKey][]instrumentKey
	perResource int
	maxPoints   int
}

func newMetricStore(capacity, perResource, maxPoints int) (*metricStore, error) {
	s := &metricStore{
		byResource:  make(map[models.ResourceKey][]instrumentKey),
		perResource: perResource,
		maxPoints:   maxPoints,
	}

	instruments, err := simplelru.NewLRU[instrumentKey, *instrumentEntry](capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric store: %w", err)
	}

	s.instruments = instruments

	return s, nil
}

func (s *metricStore) onEvict(key instrumentKey, _ *instrumentEntry) {
	s.byResource[key.resource] = removeKey(s.byResource[key.resource], key)
	if len(s.byResource[key.resource]) == 0 {
		delete(s.byResource, key.resource)
	}
}

// add appends data points for one resource. Accepted and evicted are counted
// in data points; evicting an instrument counts as one.
func (s *metricStore) add(
	resource models.ResourceKey, scopes []models.ScopeBatch[models.MetricRecord], now time.Time,
	notify func(instruments []string),
) (accepted, evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []string

	seen := make(map[string]struct{})

	for _, scope := range scopes {
		for _, rec := range scope.Items {
			key := instrumentKey{resource: resource, scope: scope.Scope.Name, name: rec.Name}

			entry, ok := s.instruments.Peek(key)
			if !ok {
				if s.perResource > 0 && len(s.byResource[resource]) >= s.perResource {
					s.instruments.Remove(s.byResource[resource][0])
					evicted++
				}

				entry = &instrumentEntry{points: newPointRing[models.DataPoint](s.maxPoints)}

				if s.instruments.Add(key, entry) {
					evicted++
				}

				s.byResource[resource] = append(s.byResource[resource], key)
			} else if entry.instrument.Kind != rec.Kind {
				entry.points.reset()
			}

			entry.instrument = models.Instrument{
				Resource:    resource,
				Scope:       scope.Scope,
				Name:        rec.Name,
				Unit:        rec.Unit,
				Description: rec.Description,
				Kind:        rec.Kind,
				Temporality: rec.Temporality,
				Monotonic:   rec.Monotonic,
			}
			entry.lastUpdated = now

			for _, point := range rec.Points {
				point.Attributes = models.CloneAttributes(point.Attributes)
				if entry.points.push(point) {
					evicted++
				}

				if point.Time.After(entry.lastUpdated) {
					entry.lastUpdated = point.Time
				}

				accepted++
			}

			if _, dup := seen[rec.Name]; !dup {
				seen[rec.Name] = struct{}{}
				touched = append(touched, rec.Name)
			}
		}
	}

	if notify != nil && len(touched) > 0 {
		notify(touched)
	}

	return accepted, evicted
}

func (s *metricStore) summaries(resources resourceSet) []models.InstrumentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.InstrumentSummary

	for _, key := range s.instruments.Keys() {
		if !resources.contains(key.resource) {
			continue
		}

		entry, ok := s.instruments.Peek(key)
		if !ok {
			continue
		}

		out = append(out, models.InstrumentSummary{
			Instrument:  entry.instrument,
			PointCount:  entry.points.len(),
			LastUpdated: entry.lastUpdated,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Scope.Name != out[j].Scope.Name {
			return out[i].Scope.Name < out[j].Scope.Name
		}

		return out[i].Name < out[j].Name
	})

	return out
}

// data returns the points of the first instrument in arrival order that matches.
func (s *metricStore) data(resources resourceSet, scopeName, name string, start, end time.Time) (models.InstrumentData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.instruments.Keys() {
		if key.name != name || !resources.contains(key.resource) {
			continue
		}

		if scopeName != "" && key.scope != scopeName {
			continue
		}

		entry, ok := s.instruments.Peek(key)
		if !ok {
			continue
		}

		return buildInstrumentData(entry, start, end), true
	}

	return models.InstrumentData{}, false
}

func buildInstrumentData(entry *instrumentEntry, start, end time.Time) models.InstrumentData {
	all := entry.points.items()
	known := make(map[string]map[string]struct{})
	points := make([]models.DataPoint, 0, len(all))

	for _, point := range all {
		for _, kv := range point.Attributes {
			if known[kv.Key] == nil {
				known[kv.Key] = make(map[string]struct{})
			}

			known[kv.Key][kv.Value] = struct{}{}
		}

		if !start.IsZero() && point.Time.Before(start) {
			continue
		}

		if !end.IsZero() && point.Time.After(end) {
			continue
		}

		points = append(points, point)
	}

	values := make(map[string][]string, len(known))
	for key, set := range known {
		values[key] = sortedKeys(set)
	}

	return models.InstrumentData{
		Instrument:           entry.instrument,
		Points:               points,
		KnownAttributeValues: values,
	}
}

func (s *metricStore) clear(resources resourceSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resources == nil {
		s.instruments.Purge()
		return
	}

	for resource := range resources {
		keys := append([]instrumentKey(nil), s.byResource[resource]...)
		for _, key := range keys {
			s.instruments.Remove(key)
		}
	}
}

func (s *metricStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.instruments.Len()
}
