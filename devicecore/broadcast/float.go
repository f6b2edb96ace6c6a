// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import "math"

func doubleToBits(v float64) uint64 { return math.Float64bits(v) }
func bitsToDouble(v uint64) float64 { return math.Float64frombits(v) }
