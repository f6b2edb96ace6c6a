// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package accessory

import (
	"context"
	"log"

	"periph.io/x/lithiumhome/devicecore"
)

// StepCallback is invoked before (completed=false) and after
// (completed=true) each step of a coordinated sequence.
type StepCallback func(position int, completed bool)

// Coordinator is the Accessory Coordinator devicecore.Component: it owns
// an optional FilterWheel and an optional Focuser and sequences moves
// across them, logging (never blocking) when the camera starts exposing
// while either is still in motion.
type Coordinator struct {
	devicecore.ComponentBase

	core    *devicecore.Core
	Wheel   *FilterWheel
	Focuser *Focuser

	unsubscribeState func()
}

// New constructs an unattached Coordinator; attach a wheel/focuser with
// AttachFilterWheel/AttachFocuser after Init.
func New(name string) *Coordinator {
	return &Coordinator{ComponentBase: devicecore.NewComponentBase(name)}
}

func (c *Coordinator) Init(ctx context.Context, core *devicecore.Core) error {
	c.core = core
	return nil
}

func (c *Coordinator) Destroy() error { return nil }

// OnStateChanged logs a warning if the camera starts exposing while an
// accessory is still moving. Per spec.md §4.5 this is advisory only: the
// Coordinator never blocks or cancels the Pipeline.
func (c *Coordinator) OnStateChanged(old, new devicecore.State) {
	if new != devicecore.Exposing {
		return
	}
	if c.Wheel != nil && c.Wheel.IsMoving() {
		log.Printf("accessory: exposure starting while filter wheel is still moving")
	}
	if c.Focuser != nil && c.Focuser.IsMoving(context.Background()) {
		log.Printf("accessory: exposure starting while focuser is still moving")
	}
}

// AttachFilterWheel wires a FilterWheel into this Coordinator.
func (c *Coordinator) AttachFilterWheel(w *FilterWheel) { c.Wheel = w }

// AttachFocuser wires a Focuser into this Coordinator.
func (c *Coordinator) AttachFocuser(f *Focuser) { c.Focuser = f }

// PerformFocusSequence drives the focuser through positions in order,
// waiting for each to settle (30s timeout) before the next, invoking cb
// with completed=false before the move and completed=true after it
// settles. Aborts on the first failure.
func (c *Coordinator) PerformFocusSequence(ctx context.Context, positions []int, cb StepCallback) error {
	for _, pos := range positions {
		if cb != nil {
			cb(pos, false)
		}
		if err := c.Focuser.MoveToPosition(ctx, pos); err != nil {
			if cb != nil {
				cb(pos, false)
			}
			return err
		}
		if err := c.Focuser.waitSettled(ctx, WheelSettleTimeout); err != nil {
			if cb != nil {
				cb(pos, false)
			}
			return err
		}
		if cb != nil {
			cb(pos, true)
		}
	}
	return nil
}

// PerformFilterSequence drives the filter wheel through positions (slot
// indices) in order, with the same before/after callback contract as
// PerformFocusSequence.
func (c *Coordinator) PerformFilterSequence(ctx context.Context, positions []int, cb StepCallback) error {
	for _, pos := range positions {
		if cb != nil {
			cb(pos, false)
		}
		if err := c.Wheel.ChangeToPosition(ctx, pos, DefaultMaxRetries); err != nil {
			if cb != nil {
				cb(pos, false)
			}
			return err
		}
		if cb != nil {
			cb(pos, true)
		}
	}
	return nil
}
