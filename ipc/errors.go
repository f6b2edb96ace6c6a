// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ipc implements the binary framed message transport used between
// the parent process and an isolated script worker: a fixed 16-byte header
// followed by a JSON payload, carried over a pair of unidirectional pipes.
// The header's compressed flag is never set by Send, and frames carrying it
// are rejected on receive.
package ipc

import "errors"

// Sentinel errors making up the IPC error taxonomy. Callers should use
// errors.Is against these, since concrete errors are wrapped with
// additional context via fmt.Errorf("...: %w", ...).
var (
	// ErrChannelClosed is returned by any operation performed after Close,
	// and by Receive when the peer has closed its end (EOF).
	ErrChannelClosed = errors.New("ipc: channel closed")

	// ErrPipeError wraps an underlying OS-level pipe failure that is not a
	// clean close (e.g. a broken pipe write).
	ErrPipeError = errors.New("ipc: pipe error")

	// ErrTimeout is returned by Receive when no frame arrives within the
	// requested timeout.
	ErrTimeout = errors.New("ipc: receive timeout")

	// ErrInvalidMessage is returned when a header fails magic/version
	// validation, or payload_size exceeds MaxPayloadSize.
	ErrInvalidMessage = errors.New("ipc: invalid message")

	// ErrSerializationFailed is returned when a payload cannot be encoded
	// or decoded, including a request to decode a compressed payload (no
	// compressor is wired; see DESIGN.md).
	ErrSerializationFailed = errors.New("ipc: serialization failed")

	// ErrHandshakeFailed is returned by PerformHandshake on version
	// mismatch or timeout.
	ErrHandshakeFailed = errors.New("ipc: handshake failed")
)
