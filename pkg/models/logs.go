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

package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the ordered level a log record is mapped to.
type Severity int

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInformation
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityNone
)

var severityNames = []string{"Trace", "Debug", "Information", "Warning", "Error", "Critical", "None"}

func (s Severity) String() string {
	if s >= SeverityTrace && s <= SeverityNone {
		return severityNames[s]
	}

	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// ParseSeverity accepts a level name (case-insensitive, common abbreviations allowed).
func ParseSeverity(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return SeverityTrace, nil
	case "debug":
		return SeverityDebug, nil
	case "info", "information":
		return SeverityInformation, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	case "critical", "fatal":
		return SeverityCritical, nil
	case "none":
		return SeverityNone, nil
	}

	return SeverityNone, fmt.Errorf("%w: %q", ErrInvalidSeverity, value)
}

// LogRecord is a normalized OTLP log record.
type LogRecord struct {
	Timestamp         time.Time  `json:"timestamp"`
	ObservedTimestamp time.Time  `json:"observed_timestamp"`
	Severity          Severity   `json:"severity"`
	SeverityNumber    int32      `json:"severity_number"`
	SeverityText      string     `json:"severity_text,omitempty"`
	Message           string     `json:"message"`
	EventName         string     `json:"event_name,omitempty"`
	TraceID           string     `json:"trace_id,omitempty"`
	SpanID            string     `json:"span_id,omitempty"`
	Flags             uint32     `json:"flags,omitempty"`
	Attributes        []KeyValue `json:"attributes"`
}

// IsEvent reports whether the record carries an event name.
func (r *LogRecord) IsEvent() bool {
	return r.EventName != ""
}

// LogEntry is a stored log record.
type LogEntry struct {
	ID uint64 `json:"id"`
	LogRecord
	Resource ResourceKey `json:"resource"`
	Scope    Scope       `json:"scope"`
}
