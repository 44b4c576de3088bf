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
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/carverauto/otelhub/pkg/models"
)

// Signal names a kind of change a subscriber can follow.
type Signal string

const (
	SignalTraces    Signal = "traces"
	SignalLogs      Signal = "logs"
	SignalMetrics   Signal = "metrics"
	SignalResources Signal = "resources"
)

// DefaultSubscriptionBuffer is used when Subscribe is given a non-positive size.
const DefaultSubscriptionBuffer = 256

// ParseSignal validates a signal name.
func ParseSignal(value string) (Signal, error) {
	switch Signal(value) {
	case SignalTraces, SignalLogs, SignalMetrics, SignalResources:
		return Signal(value), nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidSignal, value)
}

// Change describes one committed batch for one resource and signal.
type Change struct {
	Signal   Signal
	Resource models.ResourceKey
	// TraceIDs lists traces touched by the batch.
	TraceIDs []string
	// Logs holds copies of the appended log entries.
	Logs []models.LogEntry
	// Instruments lists instrument names that received points.
	Instruments []string
}

// SubscriptionFilter selects changes. Empty Resources matches every resource.
type SubscriptionFilter struct {
	Signal    Signal
	Resources []models.ResourceKey
}

func (f SubscriptionFilter) accepts(change *Change) bool {
	if f.Signal != change.Signal {
		return false
	}

	if len(f.Resources) == 0 {
		return true
	}

	for _, key := range f.Resources {
		if key == change.Resource {
			return true
		}
	}

	return false
}

// Subscription receives changes on a bounded channel. When the channel is
// full the oldest pending change is dropped and counted.
type Subscription struct {
	id        string
	filter    SubscriptionFilter
	events    chan Change
	dropped   atomic.Uint64
	registry  *subscriptionRegistry
	closeOnce sync.Once

	stopMu sync.Mutex
	stop   func() bool
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Events is closed once the subscription ends.
func (s *Subscription) Events() <-chan Change {
	return s.events
}

// TakeDropped returns the number of changes dropped since the previous call.
func (s *Subscription) TakeDropped() uint64 {
	return s.dropped.Swap(0)
}

// Close unregisters the subscription and closes its channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.stopMu.Lock()
		if s.stop != nil {
			s.stop()
		}
		s.stopMu.Unlock()

		s.registry.remove(s)
		close(s.events)
	})
}

// offer never blocks. Callers hold the registry read lock so the channel is open.
func (s *Subscription) offer(change Change) {
	select {
	case s.events <- change:
		return
	default:
	}

	select {
	case <-s.events:
		s.dropped.Add(1)
		recordDropped(1)
	default:
	}

	select {
	case s.events <- change:
	default:
		s.dropped.Add(1)
		recordDropped(1)
	}
}

type subscriptionRegistry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{subs: make(map[string]*Subscription)}
}

func (r *subscriptionRegistry) add(ctx context.Context, filter SubscriptionFilter, bufferSize int) *Subscription {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriptionBuffer
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		filter:   filter,
		events:   make(chan Change, bufferSize),
		registry: r,
	}

	r.mu.Lock()
	r.subs[sub.id] = sub
	r.mu.Unlock()

	recordSubscriptions(1)

	sub.stopMu.Lock()
	sub.stop = context.AfterFunc(ctx, sub.Close)
	sub.stopMu.Unlock()

	return sub
}

func (r *subscriptionRegistry) remove(sub *Subscription) {
	r.mu.Lock()
	delete(r.subs, sub.id)
	r.mu.Unlock()

	recordSubscriptions(-1)
}

func (r *subscriptionRegistry) publish(change Change) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs {
		if sub.filter.accepts(&change) {
			sub.offer(change)
		}
	}
}

func (r *subscriptionRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs)
}
