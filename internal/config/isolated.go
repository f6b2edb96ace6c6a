// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import "periph.io/x/lithiumhome/isolated"

// ToIsolatedConfig converts the YAML-facing IsolatedExecution section into
// an isolated.Config, applying isolated's own defaults for anything left
// at its zero value.
func (i IsolatedExecution) ToIsolatedConfig() isolated.Config {
	level := isolated.Subprocess
	switch i.Level {
	case "none":
		level = isolated.None
	case "sandboxed":
		level = isolated.Sandboxed
	}
	return isolated.Config{
		Level:              level,
		MaxMemoryMB:        i.MaxMemoryMB,
		Timeout:            i.Timeout,
		AllowNetwork:       i.AllowNetwork,
		AllowFilesystem:    i.AllowFilesystem,
		WorkerPath:         i.WorkerPath,
		InheritEnvironment: true,
		CaptureOutput:      true,
	}
}
