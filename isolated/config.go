// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package isolated implements the Isolated Executor: it launches a child
// process to run an operator-supplied script, communicates over an
// ipc.BidirectionalChannel, enforces resource and timeout limits, and
// collects a typed result. Config mirrors original_source's
// src/script/isolated/types.hpp IsolationConfig field-for-field; Execute's
// poll loop and cancellation grace are grounded on execution_engine.cpp
// and lifecycle.cpp. Spawning uses os/exec (Go's exec.Cmd already unifies
// POSIX/Windows process creation) rather than hand-rolled fork/CreateProcess,
// with process_spawning_{unix,win32}.cpp as ground truth for argument order,
// working directory, and descriptor hand-off behavior only.
package isolated

import "time"

// Level selects how strongly a script is isolated from the parent.
type Level int

const (
	// None runs the worker with no resource limits applied beyond what
	// the OS defaults to.
	None Level = iota
	// Subprocess runs the worker as a plain child process.
	Subprocess
	// Sandboxed additionally applies an address-space resource limit
	// to the child right after it starts, on platforms that support it.
	Sandboxed
)

func (l Level) String() string {
	switch l {
	case None:
		return "None"
	case Subprocess:
		return "Subprocess"
	case Sandboxed:
		return "Sandboxed"
	default:
		return "Unknown"
	}
}

// Config configures one Execute call's isolation, resource limits, and
// worker environment.
type Config struct {
	Level Level

	MaxMemoryMB    int // 0 = unlimited
	MaxCPUPercent  int // 0 = unlimited
	Timeout        time.Duration

	AllowNetwork    bool
	AllowFilesystem bool
	AllowedPaths    []string
	AllowedImports  []string
	BlockedImports  []string

	WorkingDirectory string
	ExecutorPath     string // the worker's interpreter/runtime binary, if any
	WorkerPath       string // the worker entrypoint script/binary
	ExtraPath        []string

	Environment        map[string]string
	InheritEnvironment bool

	CaptureOutput   bool
	EnableProfiling bool
}

// DefaultTimeout matches the original's 300s default when Config.Timeout
// is left unset.
const DefaultTimeout = 300 * time.Second

// DefaultMaxMemoryMB matches the original's 512MB default, though it is
// currently unused: MaxMemoryMB's zero value means unlimited, per its own
// doc comment, not "apply the default".
const DefaultMaxMemoryMB = 512

// CancelGrace is how long Execute's message loop, after sending a Cancel
// message, waits for the worker's reply before returning; the child is
// then killed if it has not exited within ChildExitGrace.
const CancelGrace = 2 * time.Second

// ChildExitGrace bounds how long Execute waits for the child to exit on
// its own during cleanup before killing it.
const ChildExitGrace = 5 * time.Second

// PollInterval is the cadence Execute's message loop polls the channel at.
const PollInterval = 100 * time.Millisecond

// MemoryPollInterval is the cadence the resource monitor samples child RSS
// at, independent of PollInterval since memory sampling is comparatively
// expensive (a /proc read or syscall per sample).
const MemoryPollInterval = 500 * time.Millisecond

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// maxMemoryMB returns the configured memory cap in MB, 0 meaning
// unlimited, per MaxMemoryMB's own doc comment.
func (c Config) maxMemoryMB() int {
	return c.MaxMemoryMB
}
