// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package accessory

import (
	"context"
	"sync"
	"sync/atomic"
)

// SwitchSafety tracks an emergency-stop interlock and an optional safety
// mode for a SwitchBank, grounded on original_source's switch_safety.
// {hpp,cpp}. Unlike the original's separate atomics, isSafeToOperate here
// is a single derived check (no emergency stop) since this bank has no
// power-limit sensor of its own to factor in.
type SwitchSafety struct {
	bank *SwitchBank

	emergencyStop int32 // atomic bool
	safetyMode    int32 // atomic bool

	mu       sync.Mutex
	onChange func(emergencyActive bool)
}

func newSwitchSafety(bank *SwitchBank) *SwitchSafety {
	return &SwitchSafety{bank: bank}
}

// EnableSafetyMode sets or clears the safety-mode flag reported by
// IsSafetyModeEnabled. The flag adds no checks of its own: whether an
// operation may proceed depends only on the emergency stop.
func (s *SwitchSafety) EnableSafetyMode(enable bool) {
	v := int32(0)
	if enable {
		v = 1
	}
	atomic.StoreInt32(&s.safetyMode, v)
}

// IsSafetyModeEnabled reports whether safety mode is active.
func (s *SwitchSafety) IsSafetyModeEnabled() bool { return atomic.LoadInt32(&s.safetyMode) != 0 }

// SetEmergencyStop immediately engages the interlock and turns every
// switch in the bank off.
func (s *SwitchSafety) SetEmergencyStop() {
	atomic.StoreInt32(&s.emergencyStop, 1)
	s.notify(true)
	for i := 0; i < s.bank.count(); i++ {
		_ = s.bank.adapter.SetControl(context.Background(), s.bank.names[i], 0, false)
		s.bank.mu.Lock()
		s.bank.state[i] = false
		s.bank.mu.Unlock()
	}
	s.bank.Timer.CancelAll()
}

// ClearEmergencyStop lifts the interlock, allowing operations to resume.
func (s *SwitchSafety) ClearEmergencyStop() {
	atomic.StoreInt32(&s.emergencyStop, 0)
	s.notify(false)
}

// IsEmergencyStopActive reports whether the interlock is engaged.
func (s *SwitchSafety) IsEmergencyStopActive() bool { return atomic.LoadInt32(&s.emergencyStop) != 0 }

func (s *SwitchSafety) isSafeToOperate() bool { return !s.IsEmergencyStopActive() }

// OnChange registers a callback fired whenever the emergency-stop state
// changes.
func (s *SwitchSafety) OnChange(cb func(emergencyActive bool)) {
	s.mu.Lock()
	s.onChange = cb
	s.mu.Unlock()
}

func (s *SwitchSafety) notify(active bool) {
	s.mu.Lock()
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(active)
	}
}
