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

package query

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

// DefaultHeartbeatInterval applies when a Tailer is built without one.
const DefaultHeartbeatInterval = 15 * time.Second

// FrameType tells a streaming client how to apply a frame.
type FrameType string

const (
	FrameSnapshot  FrameType = "snapshot"
	FrameAdd       FrameType = "add"
	FrameGap       FrameType = "gap"
	FrameHeartbeat FrameType = "heartbeat"
)

// Frame is one message of a live tail. Traces in add frames replace any
// earlier copy with the same trace id.
type Frame struct {
	Type        FrameType                  `json:"type"`
	Signal      telemetry.Signal           `json:"signal"`
	Time        time.Time                  `json:"time"`
	TotalCount  int                        `json:"total_count,omitempty"`
	Dropped     uint64                     `json:"dropped,omitempty"`
	Traces      []models.Trace             `json:"traces,omitempty"`
	Logs        []models.LogEntry          `json:"logs,omitempty"`
	Instruments []models.InstrumentSummary `json:"instruments,omitempty"`
	Resources   []models.Resource          `json:"resources,omitempty"`
}

// TailRequest selects what to follow. Traces applies to the traces signal,
// Logs to the logs signal and Resource to metrics and resources.
type TailRequest struct {
	Signal   telemetry.Signal
	Traces   telemetry.TraceQuery
	Logs     telemetry.LogQuery
	Resource string
}

// ParseTailRequest builds a request from the same parameters the paged endpoints take.
func ParseTailRequest(signal telemetry.Signal, values map[string][]string) (TailRequest, error) {
	req := TailRequest{Signal: signal, Resource: firstValue(values, paramResource)}

	var err error

	switch signal {
	case telemetry.SignalTraces:
		req.Traces, err = ParseTraceQuery(values)
	case telemetry.SignalLogs:
		req.Logs, err = ParseLogQuery(values)
	case telemetry.SignalMetrics, telemetry.SignalResources:
	default:
		err = fmt.Errorf("%w: %q", telemetry.ErrInvalidSignal, signal)
	}

	return req, err
}

func firstValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}

	return ""
}

// EmitFunc delivers one frame. Returning an error ends the tail.
type EmitFunc func(Frame) error

// Tailer runs replay-then-follow streams against a repository.
type Tailer struct {
	repo       *telemetry.Repository
	bufferSize int
	heartbeat  time.Duration
	clock      clockwork.Clock
	logger     logger.Logger
}

// TailerOption configures a Tailer.
type TailerOption func(*Tailer)

// WithTailClock replaces the clock driving heartbeats and frame timestamps.
func WithTailClock(clock clockwork.Clock) TailerOption {
	return func(t *Tailer) {
		t.clock = clock
	}
}

// NewTailer creates a Tailer. Non-positive values fall back to defaults.
func NewTailer(repo *telemetry.Repository, bufferSize int, heartbeat time.Duration, log logger.Logger, opts ...TailerOption) *Tailer {
	if bufferSize <= 0 {
		bufferSize = telemetry.DefaultSubscriptionBuffer
	}

	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	t := &Tailer{
		repo:       repo,
		bufferSize: bufferSize,
		heartbeat:  heartbeat,
		clock:      clockwork.NewRealClock(),
		logger:     log,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// tailState carries the compiled predicate of one tail.
type tailState struct {
	req       TailRequest
	traces    *telemetry.TraceMatcher
	logs      *telemetry.LogMatcher
	lastLogID uint64
}

// Tail subscribes, emits the current matching snapshot and then follows
// changes until ctx is cancelled, the subscription ends or emit fails.
// Validation and not-found errors are returned before anything is emitted.
func (t *Tailer) Tail(ctx context.Context, req TailRequest, emit EmitFunc) error {
	state, keys, err := t.prepare(req)
	if err != nil {
		return err
	}

	sub := t.repo.Subscribe(ctx, telemetry.SubscriptionFilter{Signal: req.Signal, Resources: keys}, t.bufferSize)
	defer sub.Close()

	t.logger.Debug().
		Str("subscription_id", sub.ID()).
		Str("signal", string(req.Signal)).
		Msg("Tail started")

	snapshot, err := t.snapshot(state)
	if err != nil {
		return err
	}

	if err := emit(snapshot); err != nil {
		return err
	}

	ticker := t.clock.NewTicker(t.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug().Str("subscription_id", sub.ID()).Msg("Tail stopped")
			return nil
		case change, ok := <-sub.Events():
			if !ok {
				return nil
			}

			if err := t.emitGap(sub, req.Signal, emit); err != nil {
				return err
			}

			frame, ok := t.changeFrame(state, &change)
			if !ok {
				continue
			}

			if err := emit(frame); err != nil {
				return err
			}
		case <-ticker.Chan():
			if err := t.emitGap(sub, req.Signal, emit); err != nil {
				return err
			}

			if err := emit(Frame{Type: FrameHeartbeat, Signal: req.Signal, Time: t.now()}); err != nil {
				return err
			}
		}
	}
}

// Validate reports the error Tail would return before emitting anything.
func (t *Tailer) Validate(req TailRequest) error {
	_, _, err := t.prepare(req)
	return err
}

func (t *Tailer) prepare(req TailRequest) (*tailState, []models.ResourceKey, error) {
	state := &tailState{req: req}

	var (
		ref string
		err error
	)

	switch req.Signal {
	case telemetry.SignalTraces:
		ref = req.Traces.Resource
		state.traces, err = t.repo.TraceMatcher(req.Traces)
	case telemetry.SignalLogs:
		ref = req.Logs.Resource
		state.logs, err = t.repo.LogMatcher(req.Logs)
	case telemetry.SignalMetrics, telemetry.SignalResources:
		ref = req.Resource
	default:
		err = fmt.Errorf("%w: %q", telemetry.ErrInvalidSignal, req.Signal)
	}

	if err != nil {
		return nil, nil, err
	}

	if ref == "" {
		return state, nil, nil
	}

	keys, err := t.repo.ResolveResources(ref)
	if err != nil {
		return nil, nil, err
	}

	return state, keys, nil
}

func (t *Tailer) snapshot(state *tailState) (Frame, error) {
	frame := Frame{Type: FrameSnapshot, Signal: state.req.Signal, Time: t.now()}

	switch state.req.Signal {
	case telemetry.SignalTraces:
		page, err := t.repo.GetTraces(state.req.Traces)
		if err != nil {
			return Frame{}, err
		}

		frame.Traces = page.Items
		frame.TotalCount = page.TotalCount
	case telemetry.SignalLogs:
		page, err := t.repo.GetLogs(state.req.Logs)
		if err != nil {
			return Frame{}, err
		}

		for i := range page.Items {
			state.lastLogID = max(state.lastLogID, page.Items[i].ID)
		}

		frame.Logs = page.Items
		frame.TotalCount = page.TotalCount
	case telemetry.SignalMetrics:
		instruments, err := t.repo.GetInstrumentsSummary(state.req.Resource)
		if err != nil {
			return Frame{}, err
		}

		frame.Instruments = instruments
		frame.TotalCount = len(instruments)
	case telemetry.SignalResources:
		resources, err := t.resources(state.req.Resource)
		if err != nil {
			return Frame{}, err
		}

		frame.Resources = resources
		frame.TotalCount = len(resources)
	}

	return frame, nil
}

func (t *Tailer) resources(ref string) ([]models.Resource, error) {
	if ref == "" {
		return t.repo.GetResources(), nil
	}

	keys, err := t.repo.ResolveResources(ref)
	if err != nil {
		return nil, err
	}

	out := make([]models.Resource, 0, len(keys))

	for _, key := range keys {
		if res, err := t.repo.GetResourceByKey(key); err == nil {
			out = append(out, res)
		}
	}

	return out, nil
}

// changeFrame applies the snapshot predicate to a change. Changes that no
// longer match anything produce no frame.
func (t *Tailer) changeFrame(state *tailState, change *telemetry.Change) (Frame, bool) {
	frame := Frame{Type: FrameAdd, Signal: change.Signal, Time: t.now()}

	switch change.Signal {
	case telemetry.SignalTraces:
		for _, id := range change.TraceIDs {
			trace, ok := t.repo.GetTrace(id)
			if ok && state.traces.Match(&trace) {
				frame.Traces = append(frame.Traces, trace)
			}
		}

		return frame, len(frame.Traces) > 0
	case telemetry.SignalLogs:
		for i := range change.Logs {
			entry := &change.Logs[i]
			if entry.ID <= state.lastLogID || !state.logs.Match(entry) {
				continue
			}

			frame.Logs = append(frame.Logs, *entry)
		}

		return frame, len(frame.Logs) > 0
	case telemetry.SignalMetrics:
		summaries, err := t.repo.GetInstrumentsSummary(change.Resource.String())
		if err != nil {
			return Frame{}, false
		}

		touched := make(map[string]struct{}, len(change.Instruments))
		for _, name := range change.Instruments {
			touched[name] = struct{}{}
		}

		for _, summary := range summaries {
			if _, ok := touched[summary.Name]; ok && summary.Resource == change.Resource {
				frame.Instruments = append(frame.Instruments, summary)
			}
		}

		return frame, len(frame.Instruments) > 0
	case telemetry.SignalResources:
		res, err := t.repo.GetResourceByKey(change.Resource)
		if err != nil {
			return Frame{}, false
		}

		frame.Resources = []models.Resource{res}

		return frame, true
	}

	return Frame{}, false
}

func (t *Tailer) emitGap(sub *telemetry.Subscription, signal telemetry.Signal, emit EmitFunc) error {
	dropped := sub.TakeDropped()
	if dropped == 0 {
		return nil
	}

	t.logger.Debug().
		Str("subscription_id", sub.ID()).
		Uint64("dropped", dropped).
		Msg("Subscriber fell behind")

	return emit(Frame{Type: FrameGap, Signal: signal, Time: t.now(), Dropped: dropped})
}

func (t *Tailer) now() time.Time {
	return t.clock.Now().UTC()
}
