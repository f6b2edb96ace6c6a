// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package devicecore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"periph.io/x/lithiumhome/protocol"
)

// fakeAdapter is a minimal in-memory protocol.Adapter for core tests.
type fakeAdapter struct {
	mu          sync.Mutex
	connected   bool
	connectErrs int // number of leading Connect calls to fail
	caps        uint16
	initErr     error
}

func (f *fakeAdapter) Init(context.Context) error { return f.initErr }
func (f *fakeAdapter) Close() error                { return nil }

func (f *fakeAdapter) Connect(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErrs > 0 {
		f.connectErrs--
		return protocol.NewAdapterError("Busy", errors.New("device busy"))
	}
	f.connected = true
	return nil
}

func (f *fakeAdapter) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeAdapter) Scan(context.Context) ([]string, error) { return []string{"SimCam"}, nil }

func (f *fakeAdapter) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeAdapter) Capabilities() uint16 { return f.caps }

func (f *fakeAdapter) SetControl(context.Context, string, float64, bool) error { return nil }
func (f *fakeAdapter) GetControl(context.Context, string) (float64, error)    { return 0, nil }
func (f *fakeAdapter) GetControlCaps(context.Context, string) (protocol.ControlCaps, error) {
	return protocol.ControlCaps{}, nil
}
func (f *fakeAdapter) StartExposure(context.Context, float64) error { return nil }
func (f *fakeAdapter) AbortExposure(context.Context) error          { return nil }
func (f *fakeAdapter) ExposureStatus(context.Context) (protocol.ExposureStatus, error) {
	return protocol.ExposureStatus{Complete: true}, nil
}
func (f *fakeAdapter) ReadFrame(context.Context) ([]byte, error) { return nil, nil }
func (f *fakeAdapter) AwaitProperty(context.Context, string, time.Duration) (float64, error) {
	return 0, nil
}
func (f *fakeAdapter) Watch(func(protocol.PropertyUpdate)) func() { return func() {} }

type fakeComponent struct {
	ComponentBase
	initErr    error
	destroyErr error
	initCalls  int
	destroyed  bool
	states     []State
	panics     bool
}

func newFakeComponent(name string) *fakeComponent {
	return &fakeComponent{ComponentBase: NewComponentBase(name)}
}

func (c *fakeComponent) Init(ctx context.Context, core *Core) error {
	c.initCalls++
	return c.initErr
}
func (c *fakeComponent) Destroy() error {
	c.destroyed = true
	return c.destroyErr
}
func (c *fakeComponent) OnStateChanged(old, new State) {
	if c.panics {
		panic("component blew up")
	}
	c.states = append(c.states, new)
}

func TestInitializeIdempotent(t *testing.T) {
	core := New("cam", &fakeAdapter{})
	comp := newFakeComponent("exposure")
	if err := core.RegisterComponent(comp); err != nil {
		t.Fatal(err)
	}
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize should succeed (AlreadyInitialized): %v", err)
	}
	if comp.initCalls != 1 {
		t.Fatalf("component Init called %d times, want 1", comp.initCalls)
	}
}

func TestInitializeRollsBackOnComponentFailure(t *testing.T) {
	core := New("cam", &fakeAdapter{})
	ok := newFakeComponent("thermal")
	bad := newFakeComponent("accessory")
	bad.initErr = errors.New("boom")
	core.RegisterComponent(ok)
	core.RegisterComponent(bad)

	err := core.Initialize(context.Background())
	if !errors.Is(err, ErrComponentInitFailed) {
		t.Fatalf("got %v, want ErrComponentInitFailed", err)
	}
	if !ok.destroyed {
		t.Fatal("expected already-initialized component to be rolled back")
	}
	if core.IsInitialized() {
		t.Fatal("core should not report initialized after rollback")
	}
}

func TestConnectRetriesThenSucceeds(t *testing.T) {
	adapter := &fakeAdapter{connectErrs: 2}
	core := New("cam", adapter)
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	orig := ConnectRetryBackoff
	_ = orig // backoff is a package const; real delay is acceptable for 2 retries in a unit test

	if err := core.Connect(context.Background(), "SimCam", time.Second, 3); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if core.State() != Idle {
		t.Fatalf("state = %v, want Idle", core.State())
	}
}

func TestConnectAlreadyConnectedIsSuccess(t *testing.T) {
	adapter := &fakeAdapter{connected: true}
	core := New("cam", adapter)
	core.Initialize(context.Background())
	if err := core.Connect(context.Background(), "SimCam", time.Second, 0); err != nil {
		t.Fatalf("Connect on already-connected adapter should succeed: %v", err)
	}
}

func TestConnectNotInitialized(t *testing.T) {
	core := New("cam", &fakeAdapter{})
	err := core.Connect(context.Background(), "SimCam", time.Second, 0)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
}

func TestUpdateStateNotifiesComponentsInOrder(t *testing.T) {
	core := New("cam", &fakeAdapter{})
	a := newFakeComponent("a")
	b := newFakeComponent("b")
	core.RegisterComponent(a)
	core.RegisterComponent(b)
	core.Initialize(context.Background())

	core.UpdateState(Connecting)
	core.UpdateState(Idle)

	want := []State{Connecting, Idle}
	for _, comp := range []*fakeComponent{a, b} {
		if len(comp.states) != len(want) {
			t.Fatalf("%s got %v transitions, want %v", comp.Name(), comp.states, want)
		}
		for i := range want {
			if comp.states[i] != want[i] {
				t.Fatalf("%s transition %d = %v, want %v", comp.Name(), i, comp.states[i], want[i])
			}
		}
	}
}

func TestUpdateStateNoopWhenUnchanged(t *testing.T) {
	core := New("cam", &fakeAdapter{})
	comp := newFakeComponent("a")
	core.RegisterComponent(comp)
	core.Initialize(context.Background())

	core.UpdateState(Idle) // already Idle (zero value)
	if len(comp.states) != 0 {
		t.Fatalf("expected no notification for a no-op transition, got %v", comp.states)
	}
}

func TestSetParameterOrderingAndRecall(t *testing.T) {
	core := New("cam", &fakeAdapter{})
	var mu sync.Mutex
	var seen []float64
	core.OnParameterChange(func(name string, value float64) {
		if name != "CCD_TEMPERATURE" {
			return
		}
		mu.Lock()
		seen = append(seen, value)
		mu.Unlock()
	})
	for _, v := range []float64{1, 2, 3} {
		core.SetParameter("CCD_TEMPERATURE", v)
	}
	if got, ok := core.GetParameter("CCD_TEMPERATURE"); !ok || got != 3 {
		t.Fatalf("GetParameter = (%v, %v), want (3, true)", got, ok)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range []float64{1, 2, 3} {
		if seen[i] != v {
			t.Fatalf("seen[%d] = %v, want %v (out of commit order)", i, seen[i], v)
		}
	}
}

func TestUnregisterComponentSkipsFutureNotifications(t *testing.T) {
	core := New("cam", &fakeAdapter{})
	comp := newFakeComponent("a")
	core.RegisterComponent(comp)
	core.Initialize(context.Background())
	core.UnregisterComponent("a")
	core.UpdateState(Connecting)
	if len(comp.states) != 0 {
		t.Fatalf("unregistered component should not be notified, got %v", comp.states)
	}
}

func TestObserverPanicDoesNotStopFanOut(t *testing.T) {
	core := New("cam", &fakeAdapter{})
	panicking := newFakeComponent("panicker")
	healthy := newFakeComponent("healthy")
	panicking.panics = true
	core.RegisterComponent(panicking)
	core.RegisterComponent(healthy)
	core.Initialize(context.Background())

	core.UpdateState(Connecting)
	if len(healthy.states) != 1 {
		t.Fatalf("healthy component should still be notified despite a panicking observer, got %v", healthy.states)
	}
}
