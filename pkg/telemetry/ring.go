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

// pointRing is a fixed-capacity circular buffer. Pushing into a full ring
// overwrites the oldest element. Callers serialize access.
type pointRing[T any] struct {
	data  []T
	start int
	size  int
}

func newPointRing[T any](capacity int) *pointRing[T] {
	return &pointRing[T]{data: make([]T, capacity)}
}

// push appends v and reports whether an old element was overwritten.
func (r *pointRing[T]) push(v T) bool {
	capacity := len(r.data)
	if capacity == 0 {
		return false
	}

	if r.size < capacity {
		r.data[(r.start+r.size)%capacity] = v
		r.size++

		return false
	}

	r.data[r.start] = v
	r.start = (r.start + 1) % capacity

	return true
}

// items returns the contents oldest first.
func (r *pointRing[T]) items() []T {
	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.data[(r.start+i)%len(r.data)])
	}

	return out
}

func (r *pointRing[T]) len() int {
	return r.size
}

func (r *pointRing[T]) reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}

	r.start, r.size = 0, 0
}
