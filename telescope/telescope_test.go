// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telescope

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/protocol/sim"
)

func newTestMount(t *testing.T, caps devicecore.Capabilities) (*devicecore.Core, *Mount) {
	t.Helper()
	adapter := sim.New(sim.Config{Capabilities: uint16(caps)})
	core := devicecore.New("SimMount", adapter)
	m := New("telescope")
	if err := core.RegisterComponent(m); err != nil {
		t.Fatal(err)
	}
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := core.Connect(context.Background(), "SimMount", 5*time.Second, 3); err != nil {
		t.Fatal(err)
	}
	return core, m
}

func TestSlewToRADECJNowReachesTarget(t *testing.T) {
	_, m := newTestMount(t, devicecore.CanPark|devicecore.HasTrackMode)
	target := Equatorial{RAHours: 5.5, DecDegrees: 20}
	if err := m.SlewToRADECJNow(context.Background(), target, true); err != nil {
		t.Fatalf("SlewToRADECJNow: %v", err)
	}
	if m.IsSlewing() {
		t.Fatal("expected slewing to have completed")
	}
	on, err := m.IsTrackingEnabled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !on {
		t.Fatal("expected tracking enabled after slew with enableTracking=true")
	}
}

func TestSlewRejectsConcurrentSlew(t *testing.T) {
	_, m := newTestMount(t, 0)
	m.mu.Lock()
	m.slewing = true
	m.mu.Unlock()
	err := m.SlewToRADECJNow(context.Background(), Equatorial{}, false)
	if !errors.Is(err, ErrAlreadySlewing) {
		t.Fatalf("got %v, want ErrAlreadySlewing", err)
	}
}

func TestParkRequiresCapability(t *testing.T) {
	_, m := newTestMount(t, 0)
	if err := m.Park(context.Background()); !errors.Is(err, devicecore.ErrCapabilityAbsent) {
		t.Fatalf("got %v, want ErrCapabilityAbsent", err)
	}
}

func TestParkAndUnpark(t *testing.T) {
	_, m := newTestMount(t, devicecore.CanPark)
	if err := m.Park(context.Background()); err != nil {
		t.Fatalf("Park: %v", err)
	}
	parked, err := m.IsParked(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !parked {
		t.Fatal("expected parked after Park")
	}
	if err := m.Unpark(context.Background()); err != nil {
		t.Fatalf("Unpark: %v", err)
	}
}

func TestSetAndGetParkPosition(t *testing.T) {
	_, m := newTestMount(t, devicecore.CanPark)
	want := Horizontal{AzDegrees: 180, AltDegrees: 0}
	if err := m.SetParkPosition(context.Background(), want); err != nil {
		t.Fatal(err)
	}
	got, err := m.GetParkPosition(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTrackRateRequiresCapability(t *testing.T) {
	_, m := newTestMount(t, 0)
	if err := m.SetTrackRate(context.Background(), 15.0); !errors.Is(err, devicecore.ErrCapabilityAbsent) {
		t.Fatalf("got %v, want ErrCapabilityAbsent", err)
	}
}

func TestFlipPierSideRequiresCapability(t *testing.T) {
	_, m := newTestMount(t, 0)
	if m.CanFlipPierSide() {
		t.Fatal("expected CanFlipPierSide false without HasPierSide")
	}
	if err := m.FlipPierSide(context.Background()); !errors.Is(err, devicecore.ErrCapabilityAbsent) {
		t.Fatalf("got %v, want ErrCapabilityAbsent", err)
	}
}

func TestFlipPierSideTogglesSide(t *testing.T) {
	_, m := newTestMount(t, devicecore.HasPierSide)
	if err := m.adapter.SetControl(context.Background(), ctrlPierSide, float64(PierEast), false); err != nil {
		t.Fatal(err)
	}
	if err := m.FlipPierSide(context.Background()); err != nil {
		t.Fatalf("FlipPierSide: %v", err)
	}
	got, err := m.GetPierSide(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != PierWest {
		t.Fatalf("pier side = %v, want PierWest", got)
	}
}

func TestAbortMotionStopsSlew(t *testing.T) {
	_, m := newTestMount(t, 0)
	if err := m.AbortMotion(context.Background()); err != nil {
		t.Fatalf("AbortMotion: %v", err)
	}
	if m.IsSlewing() {
		t.Fatal("expected not slewing after abort")
	}
}

func TestHomeSetAndGoto(t *testing.T) {
	_, m := newTestMount(t, 0)
	if err := m.SetHome(context.Background()); err != nil {
		t.Fatal(err)
	}
	set, err := m.IsHomeSet(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !set {
		t.Fatal("expected home set")
	}
	if err := m.GotoHome(context.Background()); err != nil {
		t.Fatalf("GotoHome: %v", err)
	}
	atHome, err := m.IsAtHome(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !atHome {
		t.Fatal("expected at home after GotoHome")
	}
}
