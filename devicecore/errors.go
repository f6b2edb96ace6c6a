// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package devicecore implements the per-device coordinator: lifecycle,
// capability registry, state machine, parameter store, and event fan-out to
// registered Components. It generalizes node.Node (a fixed ESPHome
// entity tree) into a capability-typed component set driving
// cameras, focusers, filter wheels, and telescopes.
package devicecore

import "errors"

// Sentinel errors shared by devicecore and the packages built on top of it
// (exposure, thermal, accessory). They live here rather than duplicated
// per package because they are the cross-cutting lifecycle
// and argument-validation errors spec.md §7 groups together, and every
// Component implementation needs the same vocabulary to report them.
var (
	ErrInvalidArgument     = errors.New("devicecore: invalid argument")
	ErrNotConnected        = errors.New("devicecore: not connected")
	ErrAlreadyConnected    = errors.New("devicecore: already connected")
	ErrNotInitialized      = errors.New("devicecore: not initialized")
	ErrAlreadyInitialized  = errors.New("devicecore: already initialized")
	ErrComponentInitFailed = errors.New("devicecore: component init failed")
	ErrAdapterInitFailed   = errors.New("devicecore: adapter init failed")
	ErrNotFound            = errors.New("devicecore: device not found")
	ErrOpenFailed          = errors.New("devicecore: open failed")
	ErrTimeout             = errors.New("devicecore: timeout")
	ErrAdapterError        = errors.New("devicecore: adapter error")
	ErrCapabilityAbsent    = errors.New("devicecore: capability absent")
	ErrCancelled           = errors.New("devicecore: cancelled")
	ErrFatal               = errors.New("devicecore: fatal")
)
