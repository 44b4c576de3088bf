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

package lifecycle

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/otelhub/pkg/logger"
)

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger("ingest", &logger.Config{Level: "warn"})
	require.NoError(t, err)
	require.NotNil(t, log)

	impl, ok := log.(*LoggerImpl)
	require.True(t, ok)
	require.Equal(t, zerolog.WarnLevel, impl.logger.GetLevel())

	log.SetDebug(true)
	require.Equal(t, zerolog.DebugLevel, impl.logger.GetLevel())
}

func TestCreateLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := CreateLogger(&logger.Config{Level: "shouting"})
	require.Error(t, err)
}

func TestWrapLoggerKeepsLevel(t *testing.T) {
	base, err := NewLoggerImpl(&logger.Config{Level: "error"})
	require.NoError(t, err)

	wrapped := WrapLogger(base.WithComponent("query"))
	require.Equal(t, zerolog.ErrorLevel, wrapped.(*LoggerImpl).logger.GetLevel())
}
