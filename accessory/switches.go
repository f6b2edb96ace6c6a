// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package accessory

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/lithiumhome/protocol"
)

// SwitchBank drives a set of named boolean accessory switches (dew
// heaters, dust caps, auxiliary power outlets) through an Adapter, one
// control per switch. It is the home for SwitchTimer/SwitchSafety/
// SwitchStats, mirroring the INDI switch device original_source models
// (switch_timer.{hpp,cpp}, switch_safety.{hpp,cpp}, switch_stats.{hpp,
// cpp}) as three facets of one bank rather than three client-pointer
// objects.
type SwitchBank struct {
	adapter protocol.Adapter
	names   []string

	mu    sync.Mutex
	state []bool

	Timer  *SwitchTimer
	Safety *SwitchSafety
	Stats  *SwitchStats
}

// NewSwitchBank constructs a bank over names, one control per switch
// (control name == switch name).
func NewSwitchBank(adapter protocol.Adapter, names []string) *SwitchBank {
	b := &SwitchBank{
		adapter: adapter,
		names:   append([]string(nil), names...),
		state:   make([]bool, len(names)),
	}
	b.Timer = newSwitchTimer(b)
	b.Safety = newSwitchSafety(b)
	b.Stats = newSwitchStats(b, len(names))
	return b
}

func (b *SwitchBank) indexOf(name string) (int, bool) {
	for i, n := range b.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (b *SwitchBank) count() int { return len(b.names) }

// Set turns switch index on or off, subject to SwitchSafety's interlock,
// and feeds SwitchStats/SwitchTimer bookkeeping.
func (b *SwitchBank) Set(ctx context.Context, index int, on bool) error {
	if index < 0 || index >= len(b.names) {
		return fmt.Errorf("accessory: switch index %d out of range", index)
	}
	if !b.Safety.isSafeToOperate() {
		return fmt.Errorf("accessory: switch %q: safety interlock engaged", b.names[index])
	}
	v := 0.0
	if on {
		v = 1
	}
	if err := b.adapter.SetControl(ctx, b.names[index], v, false); err != nil {
		return fmt.Errorf("accessory: set switch %q: %w", b.names[index], protocol.NewAdapterError("SetControl", err))
	}
	b.mu.Lock()
	b.state[index] = on
	b.mu.Unlock()

	b.Stats.updateStatistics(index, on)
	b.Stats.trackSwitchOperation(index)
	return nil
}

// Get returns the last commanded on/off state of switch index.
func (b *SwitchBank) Get(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.state) {
		return false
	}
	return b.state[index]
}

// Count returns the number of configured switches.
func (b *SwitchBank) Count() int { return len(b.names) }

// Name returns the configured name for switch index.
func (b *SwitchBank) Name(index int) string {
	if index < 0 || index >= len(b.names) {
		return ""
	}
	return b.names[index]
}
