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

package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var errInvalidLogConfig = errors.New("invalid logging config")

// Config controls the process logger. Debug forces the debug level.
type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

// DefaultConfig honours OTELHUB_LOG_LEVEL, OTELHUB_DEBUG, OTELHUB_LOG_OUTPUT
// and OTELHUB_LOG_TIME_FORMAT before any config file is applied.
func DefaultConfig() *Config {
	return &Config{
		Level:      getEnvOrDefault("OTELHUB_LOG_LEVEL", "info"),
		Debug:      getEnvBoolOrDefault("OTELHUB_DEBUG", false),
		Output:     getEnvOrDefault("OTELHUB_LOG_OUTPUT", "stdout"),
		TimeFormat: getEnvOrDefault("OTELHUB_LOG_TIME_FORMAT", ""),
	}
}

func (c *Config) Validate() error {
	if _, err := ParseLevel(c); err != nil {
		return fmt.Errorf("%w: level %q", errInvalidLogConfig, c.Level)
	}

	switch c.Output {
	case "", "stdout", "stderr":
	default:
		return fmt.Errorf("%w: output %q must be stdout or stderr", errInvalidLogConfig, c.Output)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))

	switch value {
	case "":
		return defaultValue
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
