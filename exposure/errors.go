// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package exposure implements the Exposure Pipeline component: a single
// worker goroutine per Pipeline that drives a hardware exposure to
// completion (or abort) and publishes the resulting Frame, per spec.md
// §4.3. The 100ms poll cadence reuses the poll-with-cancel-context
// goroutine shape of node/binary_sensor_gpio.go's binarySensorGPIO.init.
package exposure

import "errors"

// ErrAlreadyExposing is returned by StartExposure when an exposure is
// already in progress. Not named in spec.md's taxonomy directly, but
// required by spec.md §4.3's "A new start_exposure refuses if an exposure
// is running".
var ErrAlreadyExposing = errors.New("exposure: already exposing")
