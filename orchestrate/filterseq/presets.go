// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package filterseq

// LRGBSettings configures a Luminance/Red/Green/Blue sequence, mirroring
// original_source's task/custom/filter/lrgb_sequence.hpp LRGBSettings.
type LRGBSettings struct {
	LuminanceExposure, RedExposure, GreenExposure, BlueExposure float64
	LuminanceCount, RedCount, GreenCount, BlueCount              int
	Gain, Offset                                                 float64
	StartWithLuminance                                           bool
}

// LRGB builds the ordered Step list for an LRGBSettings sequence. When
// StartWithLuminance is false, the L step is omitted from the front and
// appended at the end instead (the original's only other supported
// ordering besides full interleave, which filterseq leaves to the
// caller to express as its own Step slice).
func LRGB(s LRGBSettings) []Step {
	l := Step{Filter: "L", ExposureS: s.LuminanceExposure, Count: s.LuminanceCount, Gain: s.Gain, Offset: s.Offset}
	rgb := []Step{
		{Filter: "R", ExposureS: s.RedExposure, Count: s.RedCount, Gain: s.Gain, Offset: s.Offset},
		{Filter: "G", ExposureS: s.GreenExposure, Count: s.GreenCount, Gain: s.Gain, Offset: s.Offset},
		{Filter: "B", ExposureS: s.BlueExposure, Count: s.BlueCount, Gain: s.Gain, Offset: s.Offset},
	}
	if s.StartWithLuminance {
		return append([]Step{l}, rgb...)
	}
	return append(rgb, l)
}

// NarrowbandFilterSettings configures one filter within a narrowband
// sequence, mirroring original_source's NarrowbandFilterSettings.
type NarrowbandFilterSettings struct {
	Name             string
	ExposureS        float64
	FrameCount       int
	Gain, Offset     float64
	Enabled          bool
}

// Narrowband builds the ordered Step list for a set of narrowband
// filters (e.g. Ha/OIII/SII), skipping any with Enabled == false.
func Narrowband(filters []NarrowbandFilterSettings) []Step {
	var steps []Step
	for _, f := range filters {
		if !f.Enabled {
			continue
		}
		steps = append(steps, Step{
			Filter:    f.Name,
			ExposureS: f.ExposureS,
			Count:     f.FrameCount,
			Gain:      f.Gain,
			Offset:    f.Offset,
		})
	}
	return steps
}
