// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package filterseq

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/lithiumhome/accessory"
	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/exposure"
	"periph.io/x/lithiumhome/protocol/sim"
)

func newTestRig(t *testing.T) (*devicecore.Core, *Sequence) {
	t.Helper()
	adapter := sim.New(sim.Config{Capabilities: uint16(devicecore.HasFilterWheel)})
	core := devicecore.New("SimCam", adapter)

	coord := accessory.New("accessory")
	if err := core.RegisterComponent(coord); err != nil {
		t.Fatal(err)
	}
	pipe := exposure.New("exposure")
	if err := core.RegisterComponent(pipe); err != nil {
		t.Fatal(err)
	}
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := core.Connect(context.Background(), "SimCam", 5*time.Second, 3); err != nil {
		t.Fatal(err)
	}
	coord.AttachFilterWheel(accessory.NewFilterWheel(core, []string{"L", "R", "G", "B"}))

	return core, New(core, coord, pipe)
}

func TestRunCompletesAllFramesAndReportsProgress(t *testing.T) {
	_, seq := newTestRig(t)
	steps := []Step{
		{Filter: "R", ExposureS: 0.01, Count: 2, SettlingTime: time.Millisecond},
		{Filter: "G", ExposureS: 0.01, Count: 1, SettlingTime: time.Millisecond},
	}
	var progressCalls int
	var historyCalls int
	err := seq.Run(context.Background(), steps,
		func(completed, total int) { progressCalls++ },
		func(step Step, idx int) { historyCalls++ },
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if progressCalls != 3 || historyCalls != 3 {
		t.Fatalf("progressCalls=%d historyCalls=%d, want 3/3", progressCalls, historyCalls)
	}
	if got := seq.Progress(); got != 100 {
		t.Fatalf("Progress() = %v, want 100", got)
	}
}

func TestRunCancelStopsBeforeNextFrame(t *testing.T) {
	_, seq := newTestRig(t)
	steps := []Step{
		{Filter: "R", ExposureS: 0.01, Count: 5, SettlingTime: time.Millisecond},
	}
	seq.Cancel()
	err := seq.Run(context.Background(), steps, nil, nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
}

func TestLRGBPresetOrdersLuminanceFirst(t *testing.T) {
	steps := LRGB(LRGBSettings{
		LuminanceExposure: 60, RedExposure: 30, GreenExposure: 30, BlueExposure: 30,
		LuminanceCount: 10, RedCount: 5, GreenCount: 5, BlueCount: 5,
		StartWithLuminance: true,
	})
	if len(steps) != 4 || steps[0].Filter != "L" {
		t.Fatalf("got %+v, want L first among 4 steps", steps)
	}
}

func TestNarrowbandPresetSkipsDisabled(t *testing.T) {
	steps := Narrowband([]NarrowbandFilterSettings{
		{Name: "Ha", ExposureS: 300, FrameCount: 10, Enabled: true},
		{Name: "OIII", ExposureS: 300, FrameCount: 10, Enabled: false},
		{Name: "SII", ExposureS: 300, FrameCount: 10, Enabled: true},
	})
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2 (OIII disabled)", len(steps))
	}
}
