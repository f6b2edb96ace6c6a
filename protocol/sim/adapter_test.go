// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/lithiumhome/protocol"
)

func TestConnectFailsThenSucceeds(t *testing.T) {
	a := New(Config{ConnectFailures: 1})
	ctx := context.Background()
	if err := a.Connect(ctx, "SimCam"); err == nil {
		t.Fatal("expected first Connect to fail")
	}
	if err := a.Connect(ctx, "SimCam"); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if !a.IsConnected() {
		t.Fatal("expected connected")
	}
}

func TestExposureLifecycle(t *testing.T) {
	a := New(Config{Width: 100, Height: 50, BitDepth: 16})
	ctx := context.Background()
	if err := a.StartExposure(ctx, 0.02); err != nil {
		t.Fatal(err)
	}
	status, err := a.ExposureStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Complete {
		t.Fatal("exposure should not be complete immediately")
	}
	time.Sleep(30 * time.Millisecond)
	status, err = a.ExposureStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Complete {
		t.Fatal("exposure should be complete after duration elapses")
	}
	frame, err := a.ReadFrame(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != 100*50*2 {
		t.Fatalf("frame size = %d, want %d", len(frame), 100*50*2)
	}
}

func TestSetControlFailsThenSucceedsAndNotifiesWatchers(t *testing.T) {
	a := New(Config{ControlFailures: map[string]int{"FILTER_SLOT": 1}})
	var got protocol.PropertyUpdate
	unwatch := a.Watch(func(u protocol.PropertyUpdate) { got = u })
	defer unwatch()

	ctx := context.Background()
	if err := a.SetControl(ctx, "FILTER_SLOT", 2, false); err == nil {
		t.Fatal("expected first SetControl to fail")
	}
	if err := a.SetControl(ctx, "FILTER_SLOT", 2, false); err != nil {
		t.Fatalf("second SetControl: %v", err)
	}
	if got.Name != "FILTER_SLOT" || got.Value != 2 {
		t.Fatalf("watcher got %#v", got)
	}
}

func TestGetControlUnknown(t *testing.T) {
	a := New(Config{})
	_, err := a.GetControl(context.Background(), "NOPE")
	if !errors.Is(err, protocol.ErrUnknownControl) {
		t.Fatalf("got %v, want ErrUnknownControl", err)
	}
}

func TestAwaitPropertyTimeout(t *testing.T) {
	a := New(Config{})
	_, err := a.AwaitProperty(context.Background(), "NEVER", 10*time.Millisecond)
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}
