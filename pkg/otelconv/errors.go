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

package otelconv

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidTraceID       = errors.New("invalid trace id")
	ErrInvalidSpanID        = errors.New("invalid span id")
	ErrInvalidParentSpanID  = errors.New("invalid parent span id")
	ErrUnsupportedMetric    = errors.New("summary metrics are not supported")
	ErrMissingMetricName    = errors.New("metric name is required")
	ErrMissingMetricPayload = errors.New("metric has no data")
)

const (
	traceIDSize = 16
	spanIDSize  = 8
)

// Rejections counts records dropped by domain validation and keeps the first reason.
type Rejections struct {
	Count   int64
	Message string
}

func (r *Rejections) add(n int64, err error) {
	if n <= 0 {
		return
	}

	r.Count += n

	if r.Message == "" && err != nil {
		r.Message = err.Error()
	}
}

// Empty reports whether nothing was rejected.
func (r Rejections) Empty() bool {
	return r.Count == 0
}

// requiredID validates a mandatory id of the given size.
func requiredID(id []byte, size int, sentinel error) (string, error) {
	if len(id) != size {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", sentinel, size, len(id))
	}

	if isZero(id) {
		return "", fmt.Errorf("%w: all zero", sentinel)
	}

	return hex.EncodeToString(id), nil
}

// optionalID validates an id that may be absent. All-zero ids count as absent.
func optionalID(id []byte, size int, sentinel error) (string, error) {
	if len(id) == 0 {
		return "", nil
	}

	if len(id) != size {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", sentinel, size, len(id))
	}

	if isZero(id) {
		return "", nil
	}

	return hex.EncodeToString(id), nil
}

func isZero(id []byte) bool {
	for _, b := range id {
		if b != 0 {
			return false
		}
	}

	return true
}

// unixNano converts OTLP timestamps. Zero means unset, as does anything past
// the int64 range time.Time can hold.
func unixNano(ns uint64) time.Time {
	if ns == 0 || ns > math.MaxInt64 {
		return time.Time{}
	}

	return time.Unix(0, int64(ns)).UTC()
}
