// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpio implements a binary GPIO input, used for a telescope's
// park-sensor or a dome's shutter limit switch. It is a close structural
// adaptation of node/binary_sensor_gpio.go: same gpioreg.ByName +
// gpio.PinIO + WaitForEdge goroutine shape, generalized
// from an ESPHome binary-sensor entity to a plain callback-driven
// LimitSwitch. No other package in this module imports it.
package gpio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// PullMode selects the input pin's internal pull resistor.
type PullMode int

const (
	PullNone PullMode = iota
	PullUp
	PullDown
)

// LimitSwitch reports a boolean level from a GPIO input pin, waiting for
// edges in a background goroutine and firing OnChange on every observed
// transition. No debouncing is applied: the level is re-read on each edge.
type LimitSwitch struct {
	p        gpio.PinIO
	inverted bool

	mu       sync.Mutex
	level    bool
	onChange func(active bool)

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Open opens pinName (e.g. "GPIO17") with the given pull mode, inverted
// flipping the sense of "active".
func Open(pinName string, pull PullMode, inverted bool) (*LimitSwitch, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("gpio: unknown pin %q", pinName)
	}
	gpioPull := gpio.Float
	switch pull {
	case PullUp:
		gpioPull = gpio.PullUp
	case PullDown:
		gpioPull = gpio.PullDown
	}
	if err := p.In(gpioPull, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("gpio: configure %q as input: %w", pinName, err)
	}
	return &LimitSwitch{p: p, inverted: inverted}, nil
}

// Start begins edge-polling in the background; ctx cancellation (or
// Close) stops it.
func (s *LimitSwitch) Start(ctx context.Context) {
	s.mu.Lock()
	s.level = bool(s.p.Read()) != s.inverted
	level := s.level
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(level)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			// gpiotest's Halt() doesn't
			// unblock WaitForEdge in this conn/v3 version, so a 1s poll
			// timeout double-checks context cancellation between edges.
			if !s.p.WaitForEdge(time.Second) {
				if runCtx.Err() != nil {
					return
				}
				continue
			}
			s.mu.Lock()
			l2 := bool(s.p.Read()) != s.inverted
			changed := l2 != s.level
			s.level = l2
			cb := s.onChange
			s.mu.Unlock()
			if changed && cb != nil {
				cb(l2)
			}
			if runCtx.Err() != nil {
				return
			}
		}
	}()
}

// OnChange registers a callback fired on every observed level transition,
// including the initial read performed by Start.
func (s *LimitSwitch) OnChange(cb func(active bool)) { s.onChange = cb }

// Active reports the last observed level.
func (s *LimitSwitch) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Close stops the polling goroutine and releases the pin.
func (s *LimitSwitch) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.p.Halt()
}
