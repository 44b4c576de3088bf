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
	"io"

	"github.com/rs/zerolog"
)

// Logger is the injected logging surface shared by every otelhub component.
// Process exit is left to main, so there is no Fatal or Panic.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) zerolog.Logger
	WithFields(fields map[string]any) zerolog.Logger
	SetLevel(level zerolog.Level)
	SetDebug(debug bool)
}

// NewTestLogger returns a Logger that discards everything.
func NewTestLogger() Logger {
	return &discardLogger{zlog: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

type discardLogger struct {
	zlog zerolog.Logger
}

func (d *discardLogger) Trace() *zerolog.Event { return d.zlog.Trace() }
func (d *discardLogger) Debug() *zerolog.Event { return d.zlog.Debug() }
func (d *discardLogger) Info() *zerolog.Event  { return d.zlog.Info() }
func (d *discardLogger) Warn() *zerolog.Event  { return d.zlog.Warn() }
func (d *discardLogger) Error() *zerolog.Event { return d.zlog.Error() }
func (d *discardLogger) With() zerolog.Context { return d.zlog.With() }

func (d *discardLogger) WithComponent(component string) zerolog.Logger {
	return d.zlog.With().Str("component", component).Logger()
}

func (d *discardLogger) WithFields(fields map[string]any) zerolog.Logger {
	return d.zlog.With().Fields(fields).Logger()
}

func (d *discardLogger) SetLevel(level zerolog.Level) { d.zlog = d.zlog.Level(level) }
func (*discardLogger) SetDebug(bool)                  {}
