// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package accessory implements the Accessory Coordinator: filter wheel and
// focuser movement sequencing on behalf of a camera Device Core, per
// spec.md §4.5. The retry-with-backoff shape generalizes
// node/sensor_bm280.go's "try one bus, fall back to another" idiom into
// internal/retry.Do; the component catalogue (switch-like devices with
// timers, safety interlocks and usage statistics) is grounded on
// original_source's src/device/indi/switch/{switch_timer,switch_safety,
// switch_stats}.{hpp,cpp}.
package accessory

import "errors"

// ErrWheelMoving is returned when a filter wheel command is issued while
// the wheel is already moving.
var ErrWheelMoving = errors.New("accessory: filter wheel already moving")

// ErrFilterNotFound is returned by ChangeFilter when the requested filter
// name is not in the configured filter set.
var ErrFilterNotFound = errors.New("accessory: filter not found")

// ErrSettleTimeout is returned when a wheel or focuser move doesn't report
// settled position within its timeout.
var ErrSettleTimeout = errors.New("accessory: move did not settle in time")

// ErrSequenceAborted names the outcome of a coordinated sequence whose
// step failed and whose remaining steps were skipped. PerformFocusSequence
// and PerformFilterSequence do not wrap it: they return the failing
// step's own error.
var ErrSequenceAborted = errors.New("accessory: sequence aborted")

// ErrSwitchNotFound is returned when a switch index/name has no matching
// entry in a SwitchBank.
var ErrSwitchNotFound = errors.New("accessory: switch not found")
