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

// Package version reports the build of the running binary.
package version

import (
	"runtime/debug"
)

// Set with -ldflags "-X github.com/carverauto/otelhub/pkg/version.version=...".
//
//nolint:gochecknoglobals // ldflags injection
var (
	version = "dev"
	buildID = ""
)

// Info describes the running build.
type Info struct {
	Version string `json:"version"`
	BuildID string `json:"build_id,omitempty"`
}

// Get returns the injected version, falling back to the VCS revision recorded
// by the Go toolchain when no build id was injected.
func Get() Info {
	info := Info{Version: version, BuildID: buildID}

	if info.BuildID == "" {
		info.BuildID = vcsRevision()
	}

	return info
}

// String renders the version with its build id when known.
func (i Info) String() string {
	if i.BuildID == "" {
		return i.Version
	}

	return i.Version + " (build: " + i.BuildID + ")"
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	for _, setting := range bi.Settings {
		if setting.Key == "vcs.revision" {
			if len(setting.Value) > 12 {
				return setting.Value[:12]
			}

			return setting.Value
		}
	}

	return ""
}
