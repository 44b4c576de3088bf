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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/otelhub/pkg/models"
)

func TestSubscriptionLiveness(t *testing.T) {
	repo := newTestRepository(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sub := repo.Subscribe(ctx, SubscriptionFilter{Signal: SignalLogs}, 8)

	select {
	case change := <-sub.Events():
		t.Fatalf("unexpected change before ingestion: %+v", change)
	default:
	}

	repo.AddLogs(context.Background(), logBatch(resourceRecord("api", ""), "hello"))

	select {
	case change := <-sub.Events():
		assert.Equal(t, SignalLogs, change.Signal)
		require.Len(t, change.Logs, 1)
		assert.Equal(t, "hello", change.Logs[0].Message)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log change")
	}

	cancel()

	require.Eventually(t, func() bool {
		_, open := <-sub.Events()
		return !open
	}, time.Second, 10*time.Millisecond)

	assert.Zero(t, repo.Stats().Subscriptions)

	// Publishing after the subscriber is gone must not panic.
	repo.AddLogs(context.Background(), logBatch(resourceRecord("api", ""), "after"))
}

func TestSubscriptionFiltersByResourceAndSignal(t *testing.T) {
	repo := newTestRepository(t, nil)

	sub := repo.Subscribe(context.Background(), SubscriptionFilter{
		Signal:    SignalTraces,
		Resources: []models.ResourceKey{{Name: "worker", InstanceID: "worker"}},
	}, 8)
	defer sub.Close()

	repo.AddTraces(context.Background(), spanBatch(resourceRecord("api", ""), span(1, 1, 0, 0)))
	repo.AddLogs(context.Background(), logBatch(resourceRecord("worker", ""), "ignored"))
	repo.AddTraces(context.Background(), spanBatch(resourceRecord("worker", ""), span(2, 2, 0, 0)))

	select {
	case change := <-sub.Events():
		assert.Equal(t, []string{traceID(2)}, change.TraceIDs)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trace change")
	}

	select {
	case change := <-sub.Events():
		t.Fatalf("unexpected change: %+v", change)
	default:
	}
}

func TestSubscriptionDropsOldest(t *testing.T) {
	repo := newTestRepository(t, nil)

	sub := repo.Subscribe(context.Background(), SubscriptionFilter{Signal: SignalLogs}, 1)
	defer sub.Close()

	for _, msg := range []string{"1", "2", "3"} {
		repo.AddLogs(context.Background(), logBatch(resourceRecord("api", ""), msg))
	}

	change := <-sub.Events()
	require.Len(t, change.Logs, 1)
	assert.Equal(t, "3", change.Logs[0].Message)
	assert.Equal(t, uint64(2), sub.TakeDropped())
	assert.Zero(t, sub.TakeDropped())
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	repo := newTestRepository(t, nil)

	sub := repo.Subscribe(context.Background(), SubscriptionFilter{Signal: SignalResources}, 0)
	assert.NotEmpty(t, sub.ID())

	sub.Close()
	sub.Close()

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestResourceChangesArePublished(t *testing.T) {
	repo := newTestRepository(t, nil)

	sub := repo.Subscribe(context.Background(), SubscriptionFilter{Signal: SignalResources}, 8)
	defer sub.Close()

	repo.AddLogs(context.Background(), logBatch(resourceRecord("api", ""), "a"))
	repo.AddLogs(context.Background(), logBatch(resourceRecord("api", ""), "b"))

	change := <-sub.Events()
	assert.Equal(t, "api", change.Resource.String())

	select {
	case extra := <-sub.Events():
		t.Fatalf("resource announced twice: %+v", extra)
	default:
	}
}

func TestParseSignal(t *testing.T) {
	s, err := ParseSignal("metrics")
	require.NoError(t, err)
	assert.Equal(t, SignalMetrics, s)

	_, err = ParseSignal("events")
	require.ErrorIs(t, err, ErrInvalidSignal)
}

func TestPointRing(t *testing.T) {
	ring := newPointRing[int](3)

	for i := 1; i <= 4; i++ {
		ring.push(i)
	}

	assert.Equal(t, []int{2, 3, 4}, ring.items())

	ring.reset()
	assert.Empty(t, ring.items())
	assert.False(t, ring.push(7))
	assert.Equal(t, []int{7}, ring.items())
}
