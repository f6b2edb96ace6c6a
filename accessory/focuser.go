// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package accessory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/protocol"
)

// Control names for a focuser.
const (
	ctrlFocusAbsPos  = "FOCUS_ABSOLUTE_POSITION"
	ctrlFocusAbort   = "FOCUS_ABORT_MOTION"
	ctrlFocusHome    = "FOCUS_HOME"
	ctrlFocusCal     = "FOCUS_CALIBRATE"
	ctrlFocusTemp    = "FOCUS_TEMPERATURE"
	ctrlFocusMotion  = "FOCUS_MOTION" // 1 while moving, 0 settled
)

// Focuser drives an absolute-position focuser through an Adapter.
type Focuser struct {
	core    *devicecore.Core
	adapter protocol.Adapter

	mu      sync.Mutex
	maxStep int
}

// NewFocuser constructs a Focuser whose valid position range is
// [0, maxStep].
func NewFocuser(core *devicecore.Core, maxStep int) *Focuser {
	return &Focuser{core: core, adapter: core.Adapter(), maxStep: maxStep}
}

// MoveToPosition commands an absolute move; asynchronous, poll IsMoving to
// track completion.
func (f *Focuser) MoveToPosition(ctx context.Context, position int) error {
	if !f.core.IsConnected() {
		return devicecore.ErrNotConnected
	}
	f.mu.Lock()
	maxStep := f.maxStep
	f.mu.Unlock()
	if position < 0 || position > maxStep {
		return fmt.Errorf("accessory: focus position %d out of [0,%d]: %w", position, maxStep, devicecore.ErrInvalidArgument)
	}
	if err := f.adapter.SetControl(ctx, ctrlFocusAbsPos, float64(position), false); err != nil {
		return fmt.Errorf("accessory: move focuser: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// Stop aborts any in-progress focuser motion.
func (f *Focuser) Stop(ctx context.Context) error {
	if err := f.adapter.SetControl(ctx, ctrlFocusAbort, 1, false); err != nil {
		return fmt.Errorf("accessory: stop focuser: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// Home drives the focuser to its hardware home position.
func (f *Focuser) Home(ctx context.Context) error {
	if err := f.adapter.SetControl(ctx, ctrlFocusHome, 1, false); err != nil {
		return fmt.Errorf("accessory: home focuser: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// Calibrate runs the focuser's built-in calibration routine.
func (f *Focuser) Calibrate(ctx context.Context) error {
	if err := f.adapter.SetControl(ctx, ctrlFocusCal, 1, false); err != nil {
		return fmt.Errorf("accessory: calibrate focuser: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// GetTemperature reads the focuser's onboard temperature sensor, when
// present.
func (f *Focuser) GetTemperature(ctx context.Context) (float64, error) {
	v, err := f.adapter.GetControl(ctx, ctrlFocusTemp)
	if err != nil {
		return 0, fmt.Errorf("accessory: focuser temperature: %w", protocol.NewAdapterError("GetControl", err))
	}
	return v, nil
}

// IsMoving polls the device's motion flag.
func (f *Focuser) IsMoving(ctx context.Context) bool {
	v, err := f.adapter.GetControl(ctx, ctrlFocusMotion)
	if err != nil {
		return false
	}
	return v != 0
}

// CurrentPosition reads the focuser's reported absolute position.
func (f *Focuser) CurrentPosition(ctx context.Context) (int, error) {
	v, err := f.adapter.GetControl(ctx, ctrlFocusAbsPos)
	if err != nil {
		return 0, fmt.Errorf("accessory: focuser position: %w", protocol.NewAdapterError("GetControl", err))
	}
	return int(v), nil
}

// waitSettled polls IsMoving until it reports false or timeout elapses.
func (f *Focuser) waitSettled(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for f.IsMoving(ctx) {
		if !time.Now().Before(deadline) {
			return ErrSettleTimeout
		}
		select {
		case <-time.After(WheelPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
