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
	"periph.io/x/lithiumhome/internal/retry"
	"periph.io/x/lithiumhome/protocol"
)

// ctrlFilterSlot is INDI's FILTER_SLOT property: writing it commands a
// move, reading it reports the wheel's current (or settling) position.
const ctrlFilterSlot = "FILTER_SLOT"

// WheelSettleTimeout bounds how long a single filter change waits for the
// wheel to report its target position.
const WheelSettleTimeout = 30 * time.Second

// WheelPollInterval is the cadence WaitForWheel polls at.
const WheelPollInterval = 100 * time.Millisecond

// DefaultMaxRetries is the retry budget for a single filter change.
const DefaultMaxRetries = 3

// RetryBackoff is the fixed backoff between filter-change retries.
const RetryBackoff = time.Second

// FilterWheel drives a filter wheel through an Adapter, keyed on
// configured filter names mapped 1:1 onto slot positions 0..len(names)-1.
type FilterWheel struct {
	core    *devicecore.Core
	adapter protocol.Adapter
	onMove  func(name string, position int)

	names []string

	mu      sync.Mutex
	moving  bool
	current int // -1 until known
}

// NewFilterWheel constructs a FilterWheel over names, the ordered filter
// names at slot positions 0..len(names)-1.
func NewFilterWheel(core *devicecore.Core, names []string) *FilterWheel {
	return &FilterWheel{
		core:    core,
		adapter: core.Adapter(),
		names:   append([]string(nil), names...),
		current: -1,
	}
}

// OnMove registers a callback fired whenever a move begins.
func (w *FilterWheel) OnMove(cb func(name string, position int)) { w.onMove = cb }

func (w *FilterWheel) positionOf(name string) (int, bool) {
	for i, n := range w.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// CurrentFilter returns the last known filter name, or "" if unknown.
func (w *FilterWheel) CurrentFilter() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current < 0 || w.current >= len(w.names) {
		return "", false
	}
	return w.names[w.current], true
}

// IsMoving reports whether a filter change is in progress.
func (w *FilterWheel) IsMoving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.moving
}

// ChangeFilter moves the wheel to name, a no-op if it is already current.
// Retries up to maxRetries times (0 selects DefaultMaxRetries) with
// RetryBackoff between attempts.
func (w *FilterWheel) ChangeFilter(ctx context.Context, name string, maxRetries int) error {
	pos, ok := w.positionOf(name)
	if !ok {
		return fmt.Errorf("accessory: filter %q: %w: %w", name, ErrFilterNotFound, devicecore.ErrInvalidArgument)
	}
	return w.ChangeToPosition(ctx, pos, maxRetries)
}

// ChangeToPosition moves the wheel to the slot index, a no-op if already
// there.
func (w *FilterWheel) ChangeToPosition(ctx context.Context, index int, maxRetries int) error {
	if !w.core.IsConnected() {
		return devicecore.ErrNotConnected
	}
	if index < 0 || index >= len(w.names) {
		return fmt.Errorf("accessory: position %d out of [0,%d): %w", index, len(w.names), devicecore.ErrInvalidArgument)
	}

	w.mu.Lock()
	if w.current == index {
		w.mu.Unlock()
		return nil
	}
	if w.moving {
		w.mu.Unlock()
		return ErrWheelMoving
	}
	w.moving = true
	w.mu.Unlock()

	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if w.onMove != nil {
		w.onMove(w.names[index], index)
	}

	err := retry.Do(ctx, maxRetries, RetryBackoff, func(attempt int) error {
		if err := w.adapter.SetControl(ctx, ctrlFilterSlot, float64(index), false); err != nil {
			return fmt.Errorf("accessory: set filter target: %w", protocol.NewAdapterError("SetControl", err))
		}
		if err := w.WaitForWheel(ctx, WheelSettleTimeout); err != nil {
			return err
		}
		got, err := w.adapter.GetControl(ctx, ctrlFilterSlot)
		if err != nil {
			return fmt.Errorf("accessory: read filter slot: %w", protocol.NewAdapterError("GetControl", err))
		}
		if int(got) != index {
			return fmt.Errorf("accessory: wheel settled at %d, want %d", int(got), index)
		}
		return nil
	})

	w.mu.Lock()
	w.moving = false
	if err == nil {
		w.current = index
	}
	w.mu.Unlock()
	return err
}

// WaitForWheel polls the wheel's reported slot at WheelPollInterval until
// it stops changing or timeout elapses.
func (w *FilterWheel) WaitForWheel(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	last := -1.0
	stable := 0
	for {
		v, err := w.adapter.GetControl(ctx, ctrlFilterSlot)
		if err == nil {
			if v == last {
				stable++
				if stable >= 2 {
					return nil
				}
			} else {
				stable = 0
			}
			last = v
		}
		if !time.Now().Before(deadline) {
			return ErrSettleTimeout
		}
		select {
		case <-time.After(WheelPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
