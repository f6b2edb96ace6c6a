// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package accessory

import (
	"context"
	"sync"
	"time"
)

// SwitchTimer schedules automatic switch-off after a configured duration,
// grounded on original_source's switch_timer.{hpp,cpp}: a map of active
// timer deadlines, with one goroutine per armed timer (waiting on
// time.After or its cancellation) replacing the original's polling
// timer_thread_.
type SwitchTimer struct {
	bank *SwitchBank

	mu       sync.Mutex
	timers   map[int]time.Time
	cancelFn map[int]context.CancelFunc
	onExpire func(index int, expired bool)
}

func newSwitchTimer(bank *SwitchBank) *SwitchTimer {
	return &SwitchTimer{
		bank:     bank,
		timers:   make(map[int]time.Time),
		cancelFn: make(map[int]context.CancelFunc),
	}
}

// OnExpire registers a callback fired when a timer expires or is
// cancelled (expired=false in the cancelled case).
func (t *SwitchTimer) OnExpire(cb func(index int, expired bool)) { t.onExpire = cb }

// SetTimer arms index to switch off after d, turning it on first.
func (t *SwitchTimer) SetTimer(ctx context.Context, index int, d time.Duration) error {
	if index < 0 || index >= t.bank.count() {
		return ErrSwitchNotFound
	}
	if err := t.bank.Set(ctx, index, true); err != nil {
		return err
	}
	t.CancelTimer(index)

	timerCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.timers[index] = time.Now().Add(d)
	t.cancelFn[index] = cancel
	t.mu.Unlock()

	go func() {
		select {
		case <-time.After(d):
			_ = t.bank.Set(context.Background(), index, false)
			t.mu.Lock()
			delete(t.timers, index)
			delete(t.cancelFn, index)
			t.mu.Unlock()
			if t.onExpire != nil {
				t.onExpire(index, true)
			}
		case <-timerCtx.Done():
		}
	}()
	return nil
}

// CancelTimer cancels any active timer for index without changing the
// switch's current state.
func (t *SwitchTimer) CancelTimer(index int) bool {
	t.mu.Lock()
	cancel, ok := t.cancelFn[index]
	delete(t.timers, index)
	delete(t.cancelFn, index)
	t.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	if t.onExpire != nil {
		t.onExpire(index, false)
	}
	return true
}

// RemainingTime returns the time left before index's timer fires.
func (t *SwitchTimer) RemainingTime(index int) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.timers[index]
	if !ok {
		return 0, false
	}
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// HasTimer reports whether index has an active timer.
func (t *SwitchTimer) HasTimer(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[index]
	return ok
}

// ActiveTimerCount returns the number of switches with an active timer.
func (t *SwitchTimer) ActiveTimerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// CancelAll cancels every active timer.
func (t *SwitchTimer) CancelAll() {
	t.mu.Lock()
	indices := make([]int, 0, len(t.cancelFn))
	for i := range t.cancelFn {
		indices = append(indices, i)
	}
	t.mu.Unlock()
	for _, i := range indices {
		t.CancelTimer(i)
	}
}
