// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package thermal implements the Thermal Controller component: a 2s
// monitor loop driving the cooler/fan/anti-dew heater, a bounded history
// ring, and running statistics, per spec.md §4.4. The auto-fan-on-high-
// power rule and the 0.1°C integer reading conversion are grounded on
// original_source/src/device/asi/camera/temperature/
// temperature_controller.{hpp,cpp}, since nothing in periph-home keeps
// numeric history of this shape.
package thermal

// No package-specific sentinel errors beyond devicecore's shared taxonomy
// (ErrNotConnected, ErrInvalidArgument, ErrCapabilityAbsent) are needed
// here; see devicecore/errors.go.
