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

	"github.com/jonboulle/clockwork"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
)

const (
	attrPeerService   = "peer.service"
	attrServerAddress = "server.address"
	attrServerPort    = "server.port"
	attrNetPeerName   = "net.peer.name"
	attrNetPeerPort   = "net.peer.port"
)

// AddResult reports what a single Add call did. Evicted counts records
// removed to make room.
type AddResult struct {
	Accepted int
	Evicted  int
}

// Repository owns every store, the resource table and the subscription
// registry. All methods are safe for concurrent use.
type Repository struct {
	limits    Limits
	logger    logger.Logger
	clock     clockwork.Clock
	resources *resourceTable
	traces    *traceStore
	logs      *logStore
	metrics   *metricStore
	subs      *subscriptionRegistry
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the clock used for resource creation times.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Repository) {
		r.clock = clock
	}
}

// NewRepository builds an empty repository bounded by limits.
func NewRepository(limits Limits, log logger.Logger, opts ...Option) (*Repository, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	r := &Repository{
		limits: limits,
		logger: log,
		clock:  clockwork.NewRealClock(),
		subs:   newSubscriptionRegistry(),
	}

	for _, opt := range opts {
		opt(r)
	}

	var err error

	r.resources = newResourceTable(r.clock)

	if r.traces, err = newTraceStore(limits.MaxTraceCount, limits.MaxTracesPerResource); err != nil {
		return nil, err
	}

	if r.logs, err = newLogStore(limits.MaxLogCount, limits.MaxLogsPerResource); err != nil {
		return nil, err
	}

	if r.metrics, err = newMetricStore(
		limits.MaxInstrumentCount, limits.MaxInstrumentsPerResource, limits.MaxMetricPointsPerInstrument,
	); err != nil {
		return nil, err
	}

	return r, nil
}

// Limits returns the limits the repository was built with.
func (r *Repository) Limits() Limits {
	return r.limits
}

func (r *Repository) registerResource(rec models.ResourceRecord) models.ResourceKey {
	key := rec.Key()

	if r.resources.upsert(rec) {
		r.logger.Debug().Str("resource", key.String()).Msg("Registered resource")
		r.subs.publish(Change{Signal: SignalResources, Resource: key})
	}

	return key
}

func internScopes[T any](r *Repository, key models.ResourceKey, scopes []models.ScopeBatch[T]) []models.ScopeBatch[T] {
	out := make([]models.ScopeBatch[T], 0, len(scopes))
	for _, scope := range scopes {
		out = append(out, models.ScopeBatch[T]{
			Scope: r.resources.internScope(key, scope.Scope),
			Items: scope.Items,
		})
	}

	return out
}

// AddTraces stores normalized spans. It never refuses data; the oldest traces
// are evicted when a limit is reached.
func (r *Repository) AddTraces(ctx context.Context, batches []models.ResourceBatch[models.SpanRecord]) AddResult {
	var result AddResult

	for _, batch := range batches {
		key := r.registerResource(batch.Resource)
		scopes := internScopes(r, key, batch.Scopes)

		accepted, evicted := r.traces.add(key, scopes, func(traceIDs []string) {
			r.subs.publish(Change{Signal: SignalTraces, Resource: key, TraceIDs: traceIDs})
		})

		result.Accepted += accepted
		result.Evicted += evicted

		r.resolvePeers(scopes)
	}

	RecordIngested(ctx, SignalTraces, result.Accepted)
	recordEvicted(ctx, SignalTraces, result.Evicted)

	if result.Evicted > 0 {
		r.logger.Debug().Int("evicted", result.Evicted).Msg("Evicted traces to stay within limits")
	}

	return result
}

// resolvePeers creates placeholders for remote endpoints named by outgoing spans.
func (r *Repository) resolvePeers(scopes []models.ScopeBatch[models.SpanRecord]) {
	for _, scope := range scopes {
		for i := range scope.Items {
			name := peerName(&scope.Items[i])
			if name == "" {
				continue
			}

			if key, created := r.resources.ensurePeer(name); created {
				r.logger.Debug().Str("peer", name).Msg("Created uninstrumented peer resource")
				r.subs.publish(Change{Signal: SignalResources, Resource: key})
			}
		}
	}
}

func peerName(span *models.SpanRecord) string {
	if span.Kind != models.SpanKindClient && span.Kind != models.SpanKindProducer {
		return ""
	}

	if name, _ := models.AttributeValue(span.Attributes, attrPeerService); name != "" {
		return name
	}

	for _, pair := range [][2]string{{attrServerAddress, attrServerPort}, {attrNetPeerName, attrNetPeerPort}} {
		host, _ := models.AttributeValue(span.Attributes, pair[0])
		if host == "" {
			continue
		}

		if port, _ := models.AttributeValue(span.Attributes, pair[1]); port != "" {
			return host + ":" + port
		}

		return host
	}

	return ""
}

// AddLogs stores normalized log records.
func (r *Repository) AddLogs(ctx context.Context, batches []models.ResourceBatch[models.LogRecord]) AddResult {
	var result AddResult

	for _, batch := range batches {
		key := r.registerResource(batch.Resource)
		scopes := internScopes(r, key, batch.Scopes)

		accepted, evicted := r.logs.add(key, scopes, func(entries []models.LogEntry) {
			r.subs.publish(Change{Signal: SignalLogs, Resource: key, Logs: entries})
		})

		result.Accepted += accepted
		result.Evicted += evicted
	}

	RecordIngested(ctx, SignalLogs, result.Accepted)
	recordEvicted(ctx, SignalLogs, result.Evicted)

	return result
}

// AddMetrics stores normalized metrics. Accepted is counted in data points.
func (r *Repository) AddMetrics(ctx context.Context, batches []models.ResourceBatch[models.MetricRecord]) AddResult {
	var result AddResult

	now := r.clock.Now().UTC()

	for _, batch := range batches {
		key := r.registerResource(batch.Resource)
		scopes := internScopes(r, key, batch.Scopes)

		accepted, evicted := r.metrics.add(key, scopes, now, func(instruments []string) {
			r.subs.publish(Change{Signal: SignalMetrics, Resource: key, Instruments: instruments})
		})

		result.Accepted += accepted
		result.Evicted += evicted
	}

	RecordIngested(ctx, SignalMetrics, result.Accepted)
	recordEvicted(ctx, SignalMetrics, result.Evicted)

	return result
}

// GetResources lists every resource in first-seen order, peers included.
func (r *Repository) GetResources() []models.Resource {
	return r.resources.list()
}

// GetResource looks up a resource by key string or display name.
func (r *Repository) GetResource(ref string) (models.Resource, error) {
	if res, ok := findResource(r.resources.list(), ref); ok {
		return res, nil
	}

	return models.Resource{}, fmt.Errorf("%w: %s", ErrResourceNotFound, ref)
}

// GetResourceByKey returns the resource registered under key.
func (r *Repository) GetResourceByKey(key models.ResourceKey) (models.Resource, error) {
	if res, ok := r.resources.get(key); ok {
		return res, nil
	}

	return models.Resource{}, fmt.Errorf("%w: %s", ErrResourceNotFound, key)
}

// GetResourcesByName returns every resource whose name, display name or key
// matches. Placeholders are included and carry UninstrumentedPeer.
func (r *Repository) GetResourcesByName(name string) []models.Resource {
	return r.resources.byName(name)
}

// ResolveResources maps a reference to resource keys. Empty selects all
// resources and returns nil.
func (r *Repository) ResolveResources(ref string) ([]models.ResourceKey, error) {
	if ref == "" {
		return nil, nil
	}

	keys, ok := r.resources.resolve(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, ref)
	}

	return keys, nil
}

func (r *Repository) resourceSet(ref string) (resourceSet, error) {
	keys, err := r.ResolveResources(ref)
	if err != nil {
		return nil, err
	}

	return newResourceSet(keys), nil
}

// TraceMatcher compiles a query into the predicate used for paging and live updates.
func (r *Repository) TraceMatcher(q TraceQuery) (*TraceMatcher, error) {
	if err := validateFilters(q.Filters); err != nil {
		return nil, err
	}

	resources, err := r.resourceSet(q.Resource)
	if err != nil {
		return nil, err
	}

	return &TraceMatcher{resources: resources, text: normalizeText(q.FilterText), filters: q.Filters}, nil
}

// GetTraces returns a page of traces, newest first.
func (r *Repository) GetTraces(q TraceQuery) (models.PagedResult[models.Trace], error) {
	matcher, err := r.TraceMatcher(q)
	if err != nil {
		return models.PagedResult[models.Trace]{}, err
	}

	return r.traces.query(matcher, q.StartIndex, q.Count, r.resources.displayNames()), nil
}

// GetTrace returns the assembled trace. A missing trace is not an error.
func (r *Repository) GetTrace(traceID string) (models.Trace, bool) {
	return r.traces.get(models.NormalizeID(traceID), r.resources.displayNames())
}

// GetSpan returns one span with its depth in the assembled trace.
func (r *Repository) GetSpan(traceID, spanID string) (models.Span, bool) {
	trace, ok := r.GetTrace(traceID)
	if !ok {
		return models.Span{}, false
	}

	return trace.Span(models.NormalizeID(spanID))
}

// ClearTraces removes spans of the referenced resource, or everything for an empty ref.
func (r *Repository) ClearTraces(ref string) error {
	resources, err := r.resourceSet(ref)
	if err != nil {
		return err
	}

	r.traces.clear(resources)

	return nil
}

// TraceAttributeKeys lists span attribute keys seen for the referenced resource.
func (r *Repository) TraceAttributeKeys(ref string) ([]string, error) {
	resources, err := r.resourceSet(ref)
	if err != nil {
		return nil, err
	}

	return r.traces.attributeKeys(resources), nil
}

// LogMatcher compiles a query into the predicate used for paging and live updates.
func (r *Repository) LogMatcher(q LogQuery) (*LogMatcher, error) {
	if err := validateFilters(q.Filters); err != nil {
		return nil, err
	}

	resources, err := r.resourceSet(q.Resource)
	if err != nil {
		return nil, err
	}

	return &LogMatcher{
		resources:   resources,
		minSeverity: q.MinSeverity,
		traceID:     models.NormalizeID(q.TraceID),
		spanID:      models.NormalizeID(q.SpanID),
		text:        normalizeText(q.FilterText),
		filters:     q.Filters,
	}, nil
}

// GetLogs returns a page of log records, newest first.
func (r *Repository) GetLogs(q LogQuery) (models.PagedResult[models.LogEntry], error) {
	matcher, err := r.LogMatcher(q)
	if err != nil {
		return models.PagedResult[models.LogEntry]{}, err
	}

	return r.logs.query(matcher, q.StartIndex, q.Count), nil
}

// ClearLogs removes logs of the referenced resource, or everything for an empty ref.
func (r *Repository) ClearLogs(ref string) error {
	resources, err := r.resourceSet(ref)
	if err != nil {
		return err
	}

	r.logs.clear(resources)

	return nil
}

// LogAttributeKeys lists log attribute keys seen for the referenced resource.
func (r *Repository) LogAttributeKeys(ref string) ([]string, error) {
	resources, err := r.resourceSet(ref)
	if err != nil {
		return nil, err
	}

	return r.logs.attributeKeys(resources), nil
}

// GetInstrumentsSummary lists instruments without points.
func (r *Repository) GetInstrumentsSummary(ref string) ([]models.InstrumentSummary, error) {
	resources, err := r.resourceSet(ref)
	if err != nil {
		return nil, err
	}

	return r.metrics.summaries(resources), nil
}

// GetInstrumentData returns the points of one instrument within the query range.
func (r *Repository) GetInstrumentData(q InstrumentQuery) (models.InstrumentData, error) {
	resources, err := r.resourceSet(q.Resource)
	if err != nil {
		return models.InstrumentData{}, err
	}

	data, ok := r.metrics.data(resources, q.ScopeName, q.InstrumentName, q.Start, q.End)
	if !ok {
		return models.InstrumentData{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, q.InstrumentName)
	}

	return data, nil
}

// ClearMetrics removes instruments of the referenced resource, or everything for an empty ref.
func (r *Repository) ClearMetrics(ref string) error {
	resources, err := r.resourceSet(ref)
	if err != nil {
		return err
	}

	r.metrics.clear(resources)

	return nil
}

// Subscribe registers a live subscription. It ends when ctx is cancelled or
// Close is called; its channel is closed after it is unregistered.
func (r *Repository) Subscribe(ctx context.Context, filter SubscriptionFilter, bufferSize int) *Subscription {
	return r.subs.add(ctx, filter, bufferSize)
}

// Stats reports current store sizes.
type Stats struct {
	Resources     int `json:"resources"`
	Traces        int `json:"traces"`
	Logs          int `json:"logs"`
	Instruments   int `json:"instruments"`
	Subscriptions int `json:"subscriptions"`
}

// Stats returns a snapshot of store sizes.
func (r *Repository) Stats() Stats {
	return Stats{
		Resources:     len(r.resources.list()),
		Traces:        r.traces.len(),
		Logs:          r.logs.len(),
		Instruments:   r.metrics.len(),
		Subscriptions: r.subs.len(),
	}
}
