// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package protocol defines the vendor-agnostic Adapter contract that
// translates a property-oriented or callback-oriented vendor API (INDI, a
// camera vendor SDK, or a simulator) into the shapes devicecore.Core needs:
// scan/connect/disconnect, capability discovery, generic named controls,
// exposure start/abort/status/read, and a property-change watch. Adapter is
// the only place vendor-specific names or encodings may appear; every other
// package is vendor-agnostic, per spec.md §4.8.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors an Adapter implementation should wrap with fmt.Errorf's
// %w when returning a failure, so callers can errors.Is against them.
var (
	ErrTimeout         = errors.New("protocol: timeout waiting for property")
	ErrNotConnected    = errors.New("protocol: not connected")
	ErrUnknownControl  = errors.New("protocol: unknown control")
	ErrAdapterFailure  = errors.New("protocol: adapter failure")
)

// AdapterError wraps an underlying vendor/protocol failure with a short
// code, realizing spec.md §7's AdapterError{code} taxonomy entry.
type AdapterError struct {
	Code string
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("protocol: adapter error [%s]: %v", e.Code, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAdapterFailure) succeed for any *AdapterError.
func (e *AdapterError) Is(target error) bool { return target == ErrAdapterFailure }

// NewAdapterError builds an *AdapterError, wrapping ErrAdapterFailure.
func NewAdapterError(code string, err error) error {
	return &AdapterError{Code: code, Err: err}
}

// ControlCaps describes the valid range and step of a named control, the
// adapter-facing equivalent of an INDI number vector's min/max/step.
type ControlCaps struct {
	Min, Max, Step float64
	SupportsAuto   bool
}

// ExposureStatus is returned by Adapter.ExposureStatus while a hardware
// exposure is in flight.
type ExposureStatus struct {
	Complete      bool
	AbortRequired bool // adapter-observed condition requiring an abort, e.g. a hardware fault
}

// PropertyUpdate is delivered to a Watch callback whenever the adapter
// observes a relevant vendor/INDI property change. Name is a
// vendor-agnostic control name (already translated by the adapter); Value
// is the numeric reading.
type PropertyUpdate struct {
	Name  string
	Value float64
}

// Adapter is the vendor-agnostic hardware facade devicecore.Core drives.
// Implementations: protocol/indi (a property-oriented INDI-like client),
// protocol/sim (a software-only simulator for tests and scenario 1 of
// spec.md §8). protocol/gpio does not implement Adapter: its LimitSwitch
// type reads a single digital input pin.
type Adapter interface {
	// Init performs adapter-level setup (e.g. opening a connection to an
	// INDI server) independent of any specific device name.
	Init(ctx context.Context) error
	// Close tears down adapter-level resources.
	Close() error

	// Connect locates and opens the named device. Implementations retry
	// internally are NOT expected here: devicecore.Core.Connect owns the
	// retry/backoff loop specified in spec.md §4.1.
	Connect(ctx context.Context, deviceName string) error
	Disconnect(ctx context.Context) error
	Scan(ctx context.Context) ([]string, error)
	IsConnected() bool

	// Capabilities returns the capability bitmask observed on connect, as
	// a plain uint16 so this package does not need to import devicecore's
	// Capabilities type (devicecore.Capabilities is bit-for-bit the same
	// mask).
	Capabilities() uint16

	SetControl(ctx context.Context, ctrl string, value float64, auto bool) error
	GetControl(ctx context.Context, ctrl string) (float64, error)
	GetControlCaps(ctx context.Context, ctrl string) (ControlCaps, error)

	StartExposure(ctx context.Context, durationS float64) error
	AbortExposure(ctx context.Context) error
	ExposureStatus(ctx context.Context) (ExposureStatus, error)
	ReadFrame(ctx context.Context) ([]byte, error)

	// AwaitProperty blocks until name is reported at least once or timeout
	// elapses, returning ErrTimeout in the latter case (spec.md §4.8's
	// "timeout-bounded wait for property appearance after connect").
	AwaitProperty(ctx context.Context, name string, timeout time.Duration) (float64, error)

	// Watch registers onUpdate to be called for every subsequent property
	// update the adapter observes. The returned func removes the
	// registration; it is safe to call more than once.
	Watch(onUpdate func(PropertyUpdate)) (unwatch func())
}
