// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sim implements a software-only protocol.Adapter used by package
// tests and by spec.md §8 scenario 1 ("cold connect + one exposure"). It
// plays the same role node/sensor_fake.go, node/camera_fake.go,
// node/light_fake.go, and node/binary_sensor_fake.go play in periphhome: a
// real-feeling adapter implementation with no actual hardware underneath,
// living next to the real ones in the same package shape (protocol/indi is
// the "real" counterpart).
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/lithiumhome/protocol"
)

// Config seeds a simulated device's shape and scripted failures.
type Config struct {
	Width, Height   int
	BitDepth        int
	Capabilities    uint16
	ConnectFailures int            // leading Connect calls that fail before succeeding
	ControlFailures map[string]int // per-control leading SetControl failures before succeeding
}

// Adapter is a simulated protocol.Adapter: an in-memory control map, a
// deadline-based fake exposure clock, and a watcher fan-out, with no real
// I/O anywhere.
type Adapter struct {
	mu sync.Mutex

	width, height, bitDepth int
	caps                    uint16

	connected       bool
	connectFailures int

	controls        map[string]float64
	controlFailures map[string]int

	exposing    bool
	exposureEnd time.Time

	watchers   map[uint64]func(protocol.PropertyUpdate)
	nextWatch  uint64
}

// New builds a simulated Adapter from cfg.
func New(cfg Config) *Adapter {
	failures := make(map[string]int, len(cfg.ControlFailures))
	for k, v := range cfg.ControlFailures {
		failures[k] = v
	}
	width, height, bitDepth := cfg.Width, cfg.Height, cfg.BitDepth
	if width == 0 {
		width = 1000
	}
	if height == 0 {
		height = 1000
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	return &Adapter{
		width:           width,
		height:          height,
		bitDepth:        bitDepth,
		caps:            cfg.Capabilities,
		connectFailures: cfg.ConnectFailures,
		controls:        make(map[string]float64),
		controlFailures: failures,
		watchers:        make(map[uint64]func(protocol.PropertyUpdate)),
	}
}

func (a *Adapter) Init(context.Context) error { return nil }
func (a *Adapter) Close() error                { return nil }

func (a *Adapter) Connect(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connectFailures > 0 {
		a.connectFailures--
		return protocol.NewAdapterError("Busy", fmt.Errorf("simulated device %q busy", name))
	}
	a.connected = true
	return nil
}

func (a *Adapter) Disconnect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *Adapter) Scan(context.Context) ([]string, error) {
	return []string{"SimCam"}, nil
}

func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Adapter) Capabilities() uint16 { return a.caps }

func (a *Adapter) SetControl(ctx context.Context, ctrl string, value float64, auto bool) error {
	a.mu.Lock()
	if n := a.controlFailures[ctrl]; n > 0 {
		a.controlFailures[ctrl] = n - 1
		a.mu.Unlock()
		return protocol.NewAdapterError("Busy", fmt.Errorf("simulated control %q busy", ctrl))
	}
	a.controls[ctrl] = value
	watchers := a.snapshotWatchersLocked()
	a.mu.Unlock()

	for _, w := range watchers {
		w(protocol.PropertyUpdate{Name: ctrl, Value: value})
	}
	return nil
}

func (a *Adapter) GetControl(ctx context.Context, ctrl string) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.controls[ctrl]
	if !ok {
		return 0, fmt.Errorf("sim: unknown control %q: %w", ctrl, protocol.ErrUnknownControl)
	}
	return v, nil
}

func (a *Adapter) GetControlCaps(context.Context, string) (protocol.ControlCaps, error) {
	return protocol.ControlCaps{Min: -60, Max: 60, Step: 0.1, SupportsAuto: true}, nil
}

func (a *Adapter) StartExposure(ctx context.Context, durationS float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exposing = true
	a.exposureEnd = time.Now().Add(time.Duration(durationS * float64(time.Second)))
	return nil
}

func (a *Adapter) AbortExposure(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exposing = false
	return nil
}

func (a *Adapter) ExposureStatus(context.Context) (protocol.ExposureStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.exposing {
		return protocol.ExposureStatus{Complete: true}, nil
	}
	if !time.Now().Before(a.exposureEnd) {
		a.exposing = false
		return protocol.ExposureStatus{Complete: true}, nil
	}
	return protocol.ExposureStatus{Complete: false}, nil
}

func (a *Adapter) ReadFrame(context.Context) ([]byte, error) {
	a.mu.Lock()
	size := a.width * a.height * bytesPerPixel(a.bitDepth)
	a.mu.Unlock()
	return make([]byte, size), nil
}

// FrameDims exposes the configured width/height/bit depth so callers can
// assert Frame.Size() against it without hardcoding the sim's defaults.
func (a *Adapter) FrameDims() (width, height, bitDepth int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.width, a.height, a.bitDepth
}

func (a *Adapter) AwaitProperty(ctx context.Context, name string, timeout time.Duration) (float64, error) {
	deadline := time.Now().Add(timeout)
	for {
		a.mu.Lock()
		v, ok := a.controls[name]
		a.mu.Unlock()
		if ok {
			return v, nil
		}
		if !time.Now().Before(deadline) {
			return 0, protocol.ErrTimeout
		}
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (a *Adapter) Watch(onUpdate func(protocol.PropertyUpdate)) func() {
	a.mu.Lock()
	a.nextWatch++
	id := a.nextWatch
	a.watchers[id] = onUpdate
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.watchers, id)
		a.mu.Unlock()
	}
}

func (a *Adapter) snapshotWatchersLocked() []func(protocol.PropertyUpdate) {
	out := make([]func(protocol.PropertyUpdate), 0, len(a.watchers))
	for _, w := range a.watchers {
		out = append(out, w)
	}
	return out
}

func bytesPerPixel(bitDepth int) int {
	if bitDepth <= 8 {
		return 1
	}
	return 2
}
