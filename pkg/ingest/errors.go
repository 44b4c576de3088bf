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

package ingest

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrRequestTooLarge      = errors.New("request body too large")
	ErrMalformedPayload     = errors.New("malformed OTLP payload")
	ErrUnsupportedEncoding  = errors.New("unsupported content encoding")
	ErrUnknownSubject       = errors.New("subject does not name a telemetry signal")
	ErrNATSNotConfigured    = errors.New("nats url and stream are required")
)
