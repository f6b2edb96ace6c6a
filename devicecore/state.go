// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package devicecore

// State is the device's single lifecycle state, exactly one of the values
// below at any instant.
type State int

const (
	Idle State = iota
	Connecting
	Exposing
	Downloading
	Aborted
	Parking
	Parked
	Slewing
	Tracking
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Exposing:
		return "Exposing"
	case Downloading:
		return "Downloading"
	case Aborted:
		return "Aborted"
	case Parking:
		return "Parking"
	case Parked:
		return "Parked"
	case Slewing:
		return "Slewing"
	case Tracking:
		return "Tracking"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Capabilities is a bitmask of hardware features fixed once at connect
// time; it never changes for the lifetime of a session, per spec.md §3.
type Capabilities uint16

const (
	CanCool Capabilities = 1 << iota
	HasFan
	HasAntiDew
	HasFilterWheel
	HasAutoFocuser
	HasPierSide
	HasTrackMode
	CanPark
)

// Has reports whether all bits in want are set.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}
