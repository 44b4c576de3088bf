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

// Package app boots otelhub from a config file.
package app

import (
	"context"

	"github.com/carverauto/otelhub/pkg/config"
	"github.com/carverauto/otelhub/pkg/dashboard"
	"github.com/carverauto/otelhub/pkg/lifecycle"
	"github.com/carverauto/otelhub/pkg/version"
)

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// Run loads configuration and serves until ctx is canceled.
func Run(ctx context.Context, opts Options) error {
	cfg := dashboard.DefaultConfig()

	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, cfg); err != nil {
		return err
	}

	if err := lifecycle.InitializeLogger(cfg.Logging); err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger("otelhub", cfg.Logging)
	if err != nil {
		return err
	}

	mainLogger.Info().Str("version", version.Get().String()).Str("config", opts.ConfigPath).Msg("Starting otelhub")

	server, err := dashboard.NewServer(ctx, cfg, mainLogger)
	if err != nil {
		return err
	}

	return server.Run(ctx)
}
