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

	"github.com/jonboulle/clockwork"

	"github.com/carverauto/otelhub/pkg/models"
)

type scopeKey struct {
	resource models.ResourceKey
	name     string
	version  string
}

// resourceTable registers resources in first-seen order and interns scopes.
type resourceTable struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[models.ResourceKey]*models.Resource
	order   []models.ResourceKey
	scopes  map[scopeKey]models.Scope
}

func newResourceTable(clock clockwork.Clock) *resourceTable {
	return &resourceTable{
		clock:   clock,
		entries: make(map[models.ResourceKey]*models.Resource),
		scopes:  make(map[scopeKey]models.Scope),
	}
}

// upsert registers a resource that sent telemetry. It reports true when the
// resource is new or was promoted from a peer placeholder.
func (t *resourceTable) upsert(rec models.ResourceRecord) bool {
	key := rec.Key()

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[key]; ok {
		if !existing.UninstrumentedPeer {
			return false
		}

		existing.UninstrumentedPeer = false
		existing.Attributes = models.CloneAttributes(rec.Attributes)

		return true
	}

	t.entries[key] = &models.Resource{
		Key:        key,
		Name:       rec.Name,
		InstanceID: rec.InstanceID,
		Attributes: models.CloneAttributes(rec.Attributes),
		CreatedAt:  t.clock.Now().UTC(),
	}
	t.order = append(t.order, key)

	return true
}

// ensurePeer creates a placeholder for a remote endpoint unless a resource
// that sent telemetry already carries that name.
func (t *resourceTable) ensurePeer(name string) (models.ResourceKey, bool) {
	key := models.ResourceKey{Name: name, InstanceID: name}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; ok {
		return key, false
	}

	for _, entry := range t.entries {
		if entry.Name == name && !entry.UninstrumentedPeer {
			return key, false
		}
	}

	t.entries[key] = &models.Resource{
		Key:                key,
		Name:               name,
		InstanceID:         name,
		CreatedAt:          t.clock.Now().UTC(),
		UninstrumentedPeer: true,
	}
	t.order = append(t.order, key)

	return key, true
}

func (t *resourceTable) internScope(resource models.ResourceKey, scope models.Scope) models.Scope {
	key := scopeKey{resource: resource, name: scope.Name, version: scope.Version}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.scopes[key]; ok {
		return existing
	}

	scope.Attributes = models.CloneAttributes(scope.Attributes)
	t.scopes[key] = scope

	return scope
}

// ordinalsLocked numbers resources that sent telemetry by first-seen order
// within each service name.
func (t *resourceTable) ordinalsLocked() (map[models.ResourceKey]int, map[string]int) {
	ordinals := make(map[models.ResourceKey]int, len(t.order))
	counts := make(map[string]int)

	for _, key := range t.order {
		entry := t.entries[key]
		if entry.UninstrumentedPeer {
			continue
		}

		counts[entry.Name]++
		ordinals[key] = counts[entry.Name]
	}

	return ordinals, counts
}

func displayName(entry *models.Resource, ordinals map[models.ResourceKey]int, counts map[string]int) string {
	if entry.UninstrumentedPeer || counts[entry.Name] <= 1 {
		return entry.Name
	}

	return fmt.Sprintf("%s-%d", entry.Name, ordinals[entry.Key])
}

func (t *resourceTable) snapshotLocked(entry *models.Resource, ordinals map[models.ResourceKey]int, counts map[string]int) models.Resource {
	out := *entry
	out.Attributes = models.CloneAttributes(entry.Attributes)
	out.DisplayName = displayName(entry, ordinals, counts)

	return out
}

func (t *resourceTable) list() []models.Resource {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ordinals, counts := t.ordinalsLocked()
	out := make([]models.Resource, 0, len(t.order))

	for _, key := range t.order {
		out = append(out, t.snapshotLocked(t.entries[key], ordinals, counts))
	}

	return out
}

func (t *resourceTable) get(key models.ResourceKey) (models.Resource, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[key]
	if !ok {
		return models.Resource{}, false
	}

	ordinals, counts := t.ordinalsLocked()

	return t.snapshotLocked(entry, ordinals, counts), true
}

// byName returns resources whose name, display name or key string equals name.
func (t *resourceTable) byName(name string) []models.Resource {
	var out []models.Resource

	for _, res := range t.list() {
		if res.Name == name || res.DisplayName == name || res.Key.String() == name {
			out = append(out, res)
		}
	}

	return out
}

// findResource returns the resource whose key string equals ref, falling back to a
// display name match. Keys are checked first across all resources so one
// resource's display name cannot shadow another's key.
func findResource(resources []models.Resource, ref string) (models.Resource, bool) {
	for _, res := range resources {
		if res.Key.String() == ref {
			return res, true
		}
	}

	for _, res := range resources {
		if res.DisplayName == ref {
			return res, true
		}
	}

	return models.Resource{}, false
}

// resolve maps a caller supplied reference to resource keys. An exact key or
// display name match wins over a service name shared by several instances.
func (t *resourceTable) resolve(ref string) ([]models.ResourceKey, bool) {
	resources := t.list()

	if res, ok := findResource(resources, ref); ok {
		return []models.ResourceKey{res.Key}, true
	}

	var keys []models.ResourceKey

	for _, res := range resources {
		if res.Name == ref {
			keys = append(keys, res.Key)
		}
	}

	return keys, len(keys) > 0
}

func (t *resourceTable) displayName(key models.ResourceKey) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[key]
	if !ok {
		return key.Name
	}

	ordinals, counts := t.ordinalsLocked()

	return displayName(entry, ordinals, counts)
}

func (t *resourceTable) displayNames() map[models.ResourceKey]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ordinals, counts := t.ordinalsLocked()
	out := make(map[models.ResourceKey]string, len(t.entries))

	for key, entry := range t.entries {
		out[key] = displayName(entry, ordinals, counts)
	}

	return out
}
