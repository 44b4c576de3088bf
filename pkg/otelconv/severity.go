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
	"strings"

	"github.com/carverauto/otelhub/pkg/models"
)

var severityPrefixes = []struct {
	prefix   string
	severity models.Severity
}{
	{"trace", models.SeverityTrace},
	{"debug", models.SeverityDebug},
	{"info", models.SeverityInformation},
	{"warn", models.SeverityWarning},
	{"error", models.SeverityError},
	{"fatal", models.SeverityCritical},
	{"critical", models.SeverityCritical},
}

// SeverityFromOTLP maps OTLP severity numbers 1-24 onto the ordered enum. Other
// numbers fall back to matching the severity text, then to Information.
func SeverityFromOTLP(number int32, text string) models.Severity {
	switch {
	case number >= 1 && number <= 4:
		return models.SeverityTrace
	case number >= 5 && number <= 8:
		return models.SeverityDebug
	case number >= 9 && number <= 12:
		return models.SeverityInformation
	case number >= 13 && number <= 16:
		return models.SeverityWarning
	case number >= 17 && number <= 20:
		return models.SeverityError
	case number >= 21 && number <= 24:
		return models.SeverityCritical
	}

	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, p := range severityPrefixes {
		if strings.HasPrefix(lowered, p.prefix) {
			return p.severity
		}
	}

	return models.SeverityInformation
}
