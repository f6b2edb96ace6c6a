// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package isolated

import "errors"

// Sentinel errors making up the isolated-executor error taxonomy,
// mirroring original_source's RunnerError enum. Callers should use
// errors.Is against these.
var (
	ErrProcessSpawnFailed  = errors.New("isolated: process spawn failed")
	ErrWorkerNotFound      = errors.New("isolated: worker executable not found")
	ErrHandshakeFailed     = errors.New("isolated: handshake failed")
	ErrCommunicationError  = errors.New("isolated: communication error")
	ErrTimeout             = errors.New("isolated: execution timeout")
	ErrMemoryLimitExceeded = errors.New("isolated: memory limit exceeded")
	ErrCancelled           = errors.New("isolated: cancelled")
	ErrInvalidConfiguration = errors.New("isolated: invalid configuration")
	ErrAlreadyRunning      = errors.New("isolated: execution already in progress")
)
