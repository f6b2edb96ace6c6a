// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"periph.io/x/lithiumhome/isolated"
)

const sampleConf = `
lithiumhome:
  name: obs-1
  comment: roll-off roof observatory

telescope:
  name: "Main mount"
  platform: indi
  park_on_exit: true

camera:
  - platform: indi
    name: "Main camera"
    cooling:
      target_c: -10
      enabled: true

filter_wheel:
  - platform: indi
    name: "Filter wheel"
    filters: [L, R, G, B, Ha, OIII, SII]

focuser:
  - platform: indi
    name: "Focuser"

isolated_execution:
  level: sandboxed
  max_memory_mb: 512
  timeout: 300s
`

func TestRootLoadYaml(t *testing.T) {
	got := Root{}
	if err := got.LoadYaml([]byte(sampleConf)); err != nil {
		t.Fatal(err)
	}
	want := Root{
		LithiumHome: LithiumHome{
			Name:    "obs-1",
			Comment: "roll-off roof observatory",
		},
		Telescope: Telescope{
			Name:       "Main mount",
			Platform:   "indi",
			ParkOnExit: true,
		},
		Cameras: []Camera{
			{
				Platform: "indi",
				Name:     "Main camera",
				Cooling:  Cooling{TargetC: -10, Enabled: true},
			},
		},
		FilterWheels: []FilterWheel{
			{
				Platform: "indi",
				Name:     "Filter wheel",
				Filters:  []string{"L", "R", "G", "B", "Ha", "OIII", "SII"},
			},
		},
		Focusers: []Focuser{
			{Platform: "indi", Name: "Focuser"},
		},
		IsolatedExecution: IsolatedExecution{
			Level:       "sandboxed",
			MaxMemoryMB: 512,
			Timeout:     300 * time.Second,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Root mismatch (-want +got):\n%s", diff)
	}
}

func TestRootLoadYaml_Err(t *testing.T) {
	got := Root{}
	if err := got.LoadYaml([]byte("unexpected: false")); err == nil {
		t.Fatal("expected error")
	}
}

func TestRootLoadYaml_Minimal(t *testing.T) {
	got := Root{}
	if err := got.LoadYaml([]byte("lithiumhome:\n")); err != nil {
		t.Fatal(err)
	}
	want := Root{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Root mismatch (-want +got):\n%s", diff)
	}
}

func TestCameraValidateRequiresPlatformAndName(t *testing.T) {
	c := Camera{}
	if err := c.validate(); err == nil {
		t.Fatal("expected error for missing platform/name")
	}
	c.Platform = "indi"
	if err := c.validate(); err == nil {
		t.Fatal("expected error for missing name")
	}
	c.Name = "Main camera"
	if err := c.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestFilterWheelValidateRequiresFilters(t *testing.T) {
	f := FilterWheel{Platform: "indi", Name: "Wheel"}
	if err := f.validate(); err == nil {
		t.Fatal("expected error for empty filters")
	}
	f.Filters = []string{"L"}
	if err := f.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestIsolatedExecutionValidateRejectsBadLevel(t *testing.T) {
	i := IsolatedExecution{Level: "bogus"}
	if err := i.validate(); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestIsolatedExecutionValidateRejectsRelativeWorkerPath(t *testing.T) {
	i := IsolatedExecution{WorkerPath: "relative/path"}
	if err := i.validate(); err == nil {
		t.Fatal("expected error for relative worker_path")
	}
}

func TestToIsolatedConfigMapsLevel(t *testing.T) {
	i := IsolatedExecution{Level: "sandboxed", MaxMemoryMB: 256, Timeout: time.Minute}
	got := i.ToIsolatedConfig()
	if got.Level != isolated.Sandboxed {
		t.Fatalf("Level = %v, want Sandboxed", got.Level)
	}
	if got.MaxMemoryMB != 256 {
		t.Fatalf("MaxMemoryMB = %d, want 256", got.MaxMemoryMB)
	}
	if got.Timeout != time.Minute {
		t.Fatalf("Timeout = %v, want 1m", got.Timeout)
	}
}
