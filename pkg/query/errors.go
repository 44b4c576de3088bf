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
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

var (
	ErrInvalidParameter = errors.New("invalid query parameter")
	ErrMissingParameter = errors.New("missing query parameter")
)

// httpStatus maps repository and parameter errors onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, telemetry.ErrResourceNotFound), errors.Is(err, telemetry.ErrInstrumentNotFound):
		return http.StatusNotFound
	case isInvalidArgument(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// grpcCode maps the same errors onto gRPC status codes.
func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, telemetry.ErrResourceNotFound), errors.Is(err, telemetry.ErrInstrumentNotFound):
		return codes.NotFound
	case isInvalidArgument(err):
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func isInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrMissingParameter) ||
		errors.Is(err, models.ErrInvalidFilter) ||
		errors.Is(err, models.ErrInvalidSeverity) ||
		errors.Is(err, telemetry.ErrInvalidSignal)
}
