// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ipc

// ExecuteRequest is the payload of an Execute message, mirroring
// original_source/src/script/isolated/types.hpp's execution request shape.
type ExecuteRequest struct {
	ScriptContent      string            `json:"script_content"`
	ScriptPath         string            `json:"script_path,omitempty"`
	FunctionName       string            `json:"function_name,omitempty"`
	Arguments          map[string]any    `json:"arguments,omitempty"`
	TimeoutS           float64           `json:"timeout_s"`
	CaptureOutput      bool              `json:"capture_output"`
	AllowedImports     []string          `json:"allowed_imports,omitempty"`
	WorkingDirectory   string            `json:"working_directory,omitempty"`
	Environment        map[string]string `json:"environment,omitempty"`
}

// ExecuteResult is the payload of a Result message.
type ExecuteResult struct {
	Success          bool   `json:"success"`
	Result           any    `json:"result,omitempty"`
	Output           string `json:"output,omitempty"`
	ErrorOutput      string `json:"error_output,omitempty"`
	Exception        string `json:"exception,omitempty"`
	ExceptionType    string `json:"exception_type,omitempty"`
	Traceback        string `json:"traceback,omitempty"`
	ExecutionTimeMs  int64  `json:"execution_time_ms"`
	PeakMemoryBytes  int64  `json:"peak_memory_bytes"`
}

// ProgressUpdate is the payload of a Progress message.
type ProgressUpdate struct {
	Percentage     float64 `json:"percentage"`
	Message        string  `json:"message"`
	CurrentStep    string  `json:"current_step,omitempty"`
	ElapsedMs      int64   `json:"elapsed_ms"`
	EstRemainingMs *int64  `json:"est_remaining_ms,omitempty"`
}

// LogEntry is the payload of a Log message.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ErrorPayload is the payload of an ErrorMsg message.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
