// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config contains all the structures used to represent the YAML
// file used to configure a lithiumhome session.
//
// The file schema starts with the type Root.
//
// Configuration
//
// The configuration yaml file is expected to look like this:
//
//   lithiumhome:
//
//   telescope:
//     name: "Main mount"
//     platform: indi
//     address: "127.0.0.1:7624"
//     park_on_exit: true
//
//   camera:
//     - platform: indi
//       name: "Main camera"
//       address: "127.0.0.1:7625"
//       cooling:
//         target_c: -10
//
//   filter_wheel:
//     - platform: indi
//       name: "Filter wheel"
//       address: "127.0.0.1:7626"
//       filters: [L, R, G, B, Ha, OIII, SII]
//
//   focuser:
//     - platform: indi
//       name: "Focuser"
//       address: "127.0.0.1:7627"
//       max_step: 50000
//
//   isolated_execution:
//     level: sandboxed
//     max_memory_mb: 512
//     timeout: 300s
//
package config

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// Root is the configuration file format.
type Root struct {
	LithiumHome        LithiumHome          `yaml:"lithiumhome"`
	Telescope          Telescope            `yaml:"telescope"`
	Cameras            []Camera             `yaml:"camera"`
	FilterWheels       []FilterWheel        `yaml:"filter_wheel"`
	Focusers           []Focuser            `yaml:"focuser"`
	IsolatedExecution  IsolatedExecution    `yaml:"isolated_execution"`

	_ struct{}
}

// LoadYaml loads the config from serialized yaml.
//
// It deserializes the yaml with strict checking, to save the user trouble
// when they are doing a typo, then validates the result. The validation is
// not exhaustive; device-level errors can still surface when the
// configuration is handed to devicecore.New.
func (r *Root) LoadYaml(b []byte) error {
	d := yaml.NewDecoder(bytes.NewReader(b))
	d.SetStrict(true)
	if err := d.Decode(r); err != nil {
		return err
	}
	return r.validate()
}

func (r *Root) validate() error {
	if err := r.LithiumHome.validate(); err != nil {
		return err
	}
	if err := r.Telescope.validate(); err != nil {
		return err
	}
	for i := range r.Cameras {
		if err := r.Cameras[i].validate(); err != nil {
			return fmt.Errorf("camera[%d]: %w", i, err)
		}
	}
	for i := range r.FilterWheels {
		if err := r.FilterWheels[i].validate(); err != nil {
			return fmt.Errorf("filter_wheel[%d]: %w", i, err)
		}
	}
	for i := range r.Focusers {
		if err := r.Focusers[i].validate(); err != nil {
			return fmt.Errorf("focuser[%d]: %w", i, err)
		}
	}
	return r.IsolatedExecution.validate()
}

// LithiumHome is the "lithiumhome" section.
type LithiumHome struct {
	// Name is shown to operator consoles and advertised over zeroconf.
	// Defaults to the hostname.
	Name    string
	Comment string

	_ struct{}
}

func (l *LithiumHome) validate() error {
	if len(l.Name) > 63 {
		return errors.New("lithiumhome: name is too long")
	}
	return nil
}

// Telescope is the "telescope" section.
type Telescope struct {
	Name       string
	Platform   string
	Address    string
	ParkOnExit bool `yaml:"park_on_exit"`

	_ struct{}
}

func (t *Telescope) validate() error {
	if t.Name == "" {
		return nil
	}
	if t.Platform == "" {
		return errors.New("telescope: platform is required")
	}
	return nil
}

// Cooling is the "cooling" sub-section of a camera entry.
type Cooling struct {
	TargetC float64 `yaml:"target_c"`
	Enabled bool

	_ struct{}
}

// Camera is an element in the "camera" section.
type Camera struct {
	Platform string
	Name     string
	Address  string
	Cooling  Cooling

	_ struct{}
}

func (c *Camera) validate() error {
	if c.Platform == "" {
		return errors.New("platform is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// FilterWheel is an element in the "filter_wheel" section.
type FilterWheel struct {
	Platform string
	Name     string
	Address  string
	Filters  []string

	_ struct{}
}

func (f *FilterWheel) validate() error {
	if f.Platform == "" {
		return errors.New("platform is required")
	}
	if f.Name == "" {
		return errors.New("name is required")
	}
	if len(f.Filters) == 0 {
		return errors.New("filters: at least one filter name is required")
	}
	return nil
}

// Focuser is an element in the "focuser" section.
type Focuser struct {
	Platform string
	Name     string
	Address  string
	MaxStep  int `yaml:"max_step"`

	_ struct{}
}

func (f *Focuser) validate() error {
	if f.Platform == "" {
		return errors.New("platform is required")
	}
	if f.Name == "" {
		return errors.New("name is required")
	}
	if f.MaxStep < 0 {
		return errors.New("max_step must be >= 0")
	}
	return nil
}

// IsolatedExecution is the "isolated_execution" section, the YAML-facing
// defaults for isolated.Config.
type IsolatedExecution struct {
	Level           string        `yaml:"level"`
	MaxMemoryMB     int           `yaml:"max_memory_mb"`
	Timeout         time.Duration `yaml:"timeout"`
	AllowNetwork    bool          `yaml:"allow_network"`
	AllowFilesystem bool          `yaml:"allow_filesystem"`
	WorkerPath      string        `yaml:"worker_path"`

	_ struct{}
}

func (i *IsolatedExecution) validate() error {
	switch i.Level {
	case "", "none", "subprocess", "sandboxed":
	default:
		return fmt.Errorf("isolated_execution: invalid level %q", i.Level)
	}
	if i.MaxMemoryMB < 0 {
		return errors.New("isolated_execution: max_memory_mb must be >= 0")
	}
	if i.WorkerPath != "" && !filepath.IsAbs(i.WorkerPath) {
		// Save the user trouble since when started via systemd the working
		// directory will not match what they tested locally with.
		return errors.New("isolated_execution: worker_path must be an absolute path")
	}
	return nil
}
