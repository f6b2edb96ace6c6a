// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package isolated

// Request describes one script execution, mirroring original_source's
// types.hpp execution request fields folded together with
// ipc.ExecuteRequest.
type Request struct {
	ScriptContent    string
	ScriptPath       string
	FunctionName     string
	Arguments        map[string]any
	CaptureOutput    bool
	AllowedImports   []string
	WorkingDirectory string
}

// Result is the outcome of one Execute call, mirroring original_source's
// ExecutionResult.
type Result struct {
	Success         bool
	Result          any
	Output          string
	ErrorOutput     string
	Exception       string
	ExceptionType   string
	Traceback       string
	ExecutionTimeMs int64
	PeakMemoryBytes int64

	// Err is the taxonomy-typed failure (see errors.go), nil on success.
	Err error
}

// ProgressFunc is invoked for every Progress message the worker sends.
type ProgressFunc func(percentage float64, message, currentStep string, elapsedMs int64, estRemainingMs *int64)

// LogFunc is invoked for every Log message the worker sends.
type LogFunc func(level, message string)
