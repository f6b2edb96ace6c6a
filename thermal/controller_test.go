// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/protocol/sim"
)

func newTestController(t *testing.T) (*devicecore.Core, *Controller) {
	t.Helper()
	adapter := sim.New(sim.Config{Capabilities: uint16(devicecore.CanCool | devicecore.HasFan)})
	core := devicecore.New("SimCam", adapter)
	ctrl := New("thermal")
	if err := core.RegisterComponent(ctrl); err != nil {
		t.Fatal(err)
	}
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := core.Connect(context.Background(), "SimCam", 5*time.Second, 3); err != nil {
		t.Fatal(err)
	}
	return core, ctrl
}

func TestStartCoolingRejectsOutOfRangeTarget(t *testing.T) {
	_, ctrl := newTestController(t)
	if err := ctrl.StartCooling(context.Background(), 61); !errors.Is(err, devicecore.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
	if err := ctrl.StartCooling(context.Background(), -61); !errors.Is(err, devicecore.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestStartCoolingRequiresCapability(t *testing.T) {
	adapter := sim.New(sim.Config{})
	core := devicecore.New("SimCam", adapter)
	ctrl := New("thermal")
	if err := core.RegisterComponent(ctrl); err != nil {
		t.Fatal(err)
	}
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := core.Connect(context.Background(), "SimCam", 5*time.Second, 3); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.StartCooling(context.Background(), -10); !errors.Is(err, devicecore.ErrCapabilityAbsent) {
		t.Fatalf("got %v, want ErrCapabilityAbsent", err)
	}
}

func TestMonitorLoopPopulatesHistory(t *testing.T) {
	core, ctrl := newTestController(t)
	// Seed a raw tenths-of-a-degree reading; a real device would already
	// report this on its own once connected.
	if err := core.Adapter().SetControl(context.Background(), ctrlTemperature, 150, false); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.StartCooling(context.Background(), -10); err != nil {
		t.Fatalf("StartCooling: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := ctrl.Temperature(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no temperature sample observed in time")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !ctrl.IsCooling() {
		t.Fatal("expected cooling to be reported active")
	}
	if len(ctrl.History()) == 0 {
		t.Fatal("expected non-empty history")
	}
}

func TestHistoryCapacityBounded(t *testing.T) {
	h := &history{}
	base := time.Now()
	for i := 0; i < HistoryCapacity+250; i++ {
		h.add(Sample{Time: base.Add(time.Duration(i) * time.Second), Celsius: float64(i % 5)})
	}
	if n := len(h.snapshot()); n != HistoryCapacity {
		t.Fatalf("history length = %d, want %d", n, HistoryCapacity)
	}
}

func TestStatsMinMaxAvg(t *testing.T) {
	h := &history{}
	vals := []float64{1, 2, 3, 4, 5}
	for i, v := range vals {
		h.add(Sample{Time: time.Now().Add(time.Duration(i) * time.Second), Celsius: v})
	}
	s := h.stats()
	if s.Min != 1 || s.Max != 5 {
		t.Fatalf("min/max = %v/%v, want 1/5", s.Min, s.Max)
	}
	if s.Avg != 3 {
		t.Fatalf("avg = %v, want 3", s.Avg)
	}
	if s.Count != 5 {
		t.Fatalf("count = %d, want 5", s.Count)
	}
}

func TestStopCoolingClearsCoolingPower(t *testing.T) {
	_, ctrl := newTestController(t)
	if err := ctrl.StartCooling(context.Background(), -10); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.StopCooling(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ctrl.IsCooling() {
		t.Fatal("expected cooling off")
	}
	if p := ctrl.CoolingPower(); p != 0 {
		t.Fatalf("cooling power = %v, want 0 when off", p)
	}
}

func TestFanRequiresCapability(t *testing.T) {
	adapter := sim.New(sim.Config{Capabilities: uint16(devicecore.CanCool)})
	core := devicecore.New("SimCam", adapter)
	ctrl := New("thermal")
	if err := core.RegisterComponent(ctrl); err != nil {
		t.Fatal(err)
	}
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := core.Connect(context.Background(), "SimCam", 5*time.Second, 3); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Fan(context.Background(), true); !errors.Is(err, devicecore.ErrCapabilityAbsent) {
		t.Fatalf("got %v, want ErrCapabilityAbsent", err)
	}
}

func TestAmbientProbeDewPoint(t *testing.T) {
	_, ctrl := newTestController(t)
	fake := NewFakeProbe()
	if err := ctrl.AttachAmbientProbe(context.Background(), fake); err != nil {
		t.Fatal(err)
	}
	fake.SetReading(AmbientReading{Celsius: 20, HumidityPct: 50})
	r, ok := ctrl.AmbientTemperature()
	if !ok {
		t.Fatal("expected ambient reading")
	}
	dp := r.DewPointC()
	if dp <= -50 || dp >= 20 {
		t.Fatalf("dew point = %v, expected a plausible value below ambient temperature", dp)
	}
}
