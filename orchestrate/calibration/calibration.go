// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package calibration implements the Calibration Orchestrator: dark,
// flat, and bias frame sequences run outside the Device Core but
// entirely through its published capabilities (Accessory Coordinator,
// Exposure Pipeline, Thermal Controller). Grounded on original_source's
// src/task/custom/filter/calibration.{hpp,cpp}, translating the
// original's std::atomic progress counter into plain int fields on Runner.
// They are updated by the goroutine running a Run* call and carry no lock,
// so Progress is not synchronized with a run in progress on another
// goroutine.
package calibration

import (
	"context"
	"fmt"
	"log"
	"time"

	"periph.io/x/lithiumhome/accessory"
	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/exposure"
	"periph.io/x/lithiumhome/thermal"
)

const (
	ctrlGain   = "CCD_GAIN"
	ctrlOffset = "CCD_OFFSET"
)

// TemperatureGateTimeout is how long a run waits for the Thermal
// Controller to settle within TemperatureGateTolerance of its target
// before proceeding anyway with a warning.
const TemperatureGateTimeout = 30 * time.Minute

// TemperatureGateTolerance is the |current - target| band considered
// "settled".
const TemperatureGateTolerance = 1.0

// AutoFlatMinExposure and AutoFlatMaxExposure bound the closed-loop
// auto-flat-exposure search.
const (
	AutoFlatMinExposure = 0.001
	AutoFlatMaxExposure = 60.0
	AutoFlatMaxIters    = 10
	AutoFlatTolerance   = 0.10 // accept within 10% of target ADU
	autoFlatStartExposure = 0.1
)

// Settings configures a calibration run, mirroring original_source's
// CalibrationSettings.
type Settings struct {
	Filters []string // filters to capture flats for; ignored for dark/bias

	DarkExposures []float64
	DarkCount     int

	FlatExposure     float64
	FlatCount        int
	AutoFlatExposure bool
	TargetADU        float64

	BiasCount int

	Gain, Offset float64
	Temperature  float64
}

// ProgressFunc is invoked after every completed frame.
type ProgressFunc func(completedFrames, totalFrames int)

// Runner drives dark/flat/bias capture through a shared Accessory
// Coordinator, Exposure Pipeline, and Thermal Controller.
type Runner struct {
	core    *devicecore.Core
	coord   *accessory.Coordinator
	pipe    *exposure.Pipeline
	thermal *thermal.Controller

	completed int
	total     int
}

// New builds a Runner. thermalCtl may be nil when the device has no
// cooling capability, in which case WaitForTemperature is skipped.
func New(core *devicecore.Core, coord *accessory.Coordinator, pipe *exposure.Pipeline, thermalCtl *thermal.Controller) *Runner {
	return &Runner{core: core, coord: coord, pipe: pipe, thermal: thermalCtl}
}

// Progress returns completed_frames / total_frames * 100.
func (r *Runner) Progress() float64 {
	if r.total == 0 {
		return 0
	}
	return float64(r.completed) / float64(r.total) * 100
}

func (r *Runner) applyGainOffset(ctx context.Context, s Settings) error {
	if s.Gain != 0 {
		if err := r.core.Adapter().SetControl(ctx, ctrlGain, s.Gain, false); err != nil {
			return fmt.Errorf("calibration: set gain: %w", err)
		}
	}
	if s.Offset != 0 {
		if err := r.core.Adapter().SetControl(ctx, ctrlOffset, s.Offset, false); err != nil {
			return fmt.Errorf("calibration: set offset: %w", err)
		}
	}
	return nil
}

// RunDarks captures s.DarkCount frames at each of s.DarkExposures, after
// gating on temperature (see WaitForTemperature).
func (r *Runner) RunDarks(ctx context.Context, s Settings, onProgress ProgressFunc) error {
	if err := r.applyGainOffset(ctx, s); err != nil {
		return err
	}
	r.WaitForTemperature(ctx, s.Temperature)

	r.total = len(s.DarkExposures) * s.DarkCount
	r.completed = 0
	for _, exp := range s.DarkExposures {
		for i := 0; i < s.DarkCount; i++ {
			if err := r.captureOne(ctx, exp); err != nil {
				return fmt.Errorf("calibration: dark frame: %w", err)
			}
			r.completed++
			if onProgress != nil {
				onProgress(r.completed, r.total)
			}
		}
	}
	return nil
}

// RunBias captures s.BiasCount bias frames at 1e-6 s, the shortest
// exposure the Pipeline accepts.
func (r *Runner) RunBias(ctx context.Context, s Settings, onProgress ProgressFunc) error {
	if err := r.applyGainOffset(ctx, s); err != nil {
		return err
	}
	r.WaitForTemperature(ctx, s.Temperature)

	r.total = s.BiasCount
	r.completed = 0
	for i := 0; i < s.BiasCount; i++ {
		if err := r.captureOne(ctx, 1e-6); err != nil {
			return fmt.Errorf("calibration: bias frame: %w", err)
		}
		r.completed++
		if onProgress != nil {
			onProgress(r.completed, r.total)
		}
	}
	return nil
}

// RunFlats captures s.FlatCount frames per filter in s.Filters, changing
// filter via the Accessory Coordinator first. When s.AutoFlatExposure is
// set, DetermineOptimalFlatExposure picks the per-filter exposure before
// capture begins.
func (r *Runner) RunFlats(ctx context.Context, s Settings, onProgress ProgressFunc) error {
	if err := r.applyGainOffset(ctx, s); err != nil {
		return err
	}

	r.total = len(s.Filters) * s.FlatCount
	r.completed = 0
	target := s.TargetADU
	if target == 0 {
		target = 25000
	}

	for _, filter := range s.Filters {
		if err := r.coord.Wheel.ChangeFilter(ctx, filter, accessory.DefaultMaxRetries); err != nil {
			return fmt.Errorf("calibration: change filter %q: %w", filter, err)
		}
		exposureS := s.FlatExposure
		if s.AutoFlatExposure {
			opt, err := r.DetermineOptimalFlatExposure(ctx, target)
			if err != nil {
				return fmt.Errorf("calibration: auto flat exposure for %q: %w", filter, err)
			}
			exposureS = opt
		}
		for i := 0; i < s.FlatCount; i++ {
			if err := r.captureOne(ctx, exposureS); err != nil {
				return fmt.Errorf("calibration: flat frame: %w", err)
			}
			r.completed++
			if onProgress != nil {
				onProgress(r.completed, r.total)
			}
		}
	}
	return nil
}

func (r *Runner) captureOne(ctx context.Context, exposureS float64) error {
	if err := r.pipe.StartExposure(ctx, exposureS); err != nil {
		return err
	}
	ticker := time.NewTicker(exposure.PollInterval)
	defer ticker.Stop()
	for r.pipe.IsExposing() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			_ = r.pipe.AbortExposure(context.Background())
			return ctx.Err()
		}
	}
	return nil
}

// WaitForTemperature waits up to TemperatureGateTimeout for the Thermal
// Controller (if attached and cooling) to report within
// TemperatureGateTolerance of targetC. On timeout it logs a warning and
// returns, so the run continues.
func (r *Runner) WaitForTemperature(ctx context.Context, targetC float64) {
	if r.thermal == nil {
		return
	}
	if _, cooling := r.thermal.TargetTemperature(); !cooling {
		return
	}
	deadline := time.Now().Add(TemperatureGateTimeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		cur, ok := r.thermal.Temperature()
		if ok && abs(cur-targetC) <= TemperatureGateTolerance {
			return
		}
		if !time.Now().Before(deadline) {
			log.Printf("calibration: temperature did not settle within %.1f°C of %.1f°C after %v; continuing", TemperatureGateTolerance, targetC, TemperatureGateTimeout)
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// DetermineOptimalFlatExposure runs a closed-loop search: start at
// autoFlatStartExposure, measure mean ADU, scale exposure by
// target/measured, clamp to [AutoFlatMinExposure, AutoFlatMaxExposure],
// iterate up to AutoFlatMaxIters times, accepting once within
// AutoFlatTolerance of targetADU.
func (r *Runner) DetermineOptimalFlatExposure(ctx context.Context, targetADU float64) (float64, error) {
	exposureS := autoFlatStartExposure
	for i := 0; i < AutoFlatMaxIters; i++ {
		if err := r.captureOne(ctx, exposureS); err != nil {
			return 0, err
		}
		frame := r.pipe.CurrentResult()
		if frame == nil {
			return 0, fmt.Errorf("calibration: no frame published after exposure")
		}
		measured := meanADU(frame)
		if measured <= 0 {
			return 0, fmt.Errorf("calibration: measured mean ADU is zero")
		}
		if abs(measured-targetADU)/targetADU <= AutoFlatTolerance {
			return exposureS, nil
		}
		exposureS *= targetADU / measured
		if exposureS < AutoFlatMinExposure {
			exposureS = AutoFlatMinExposure
		}
		if exposureS > AutoFlatMaxExposure {
			exposureS = AutoFlatMaxExposure
		}
	}
	return exposureS, nil
}

// meanADU computes the mean pixel value of frame, decoding big-endian
// 16-bit samples the same way exposure's preview downsampler does.
func meanADU(frame *devicecore.Frame) float64 {
	n := frame.Width * frame.Height
	if n == 0 || len(frame.Pix) != frame.Size() {
		return 0
	}
	bpp := frame.BytesPerPixel()
	var sum float64
	for i := 0; i < n; i++ {
		if bpp == 1 {
			sum += float64(frame.Pix[i])
			continue
		}
		v := uint16(frame.Pix[i*2])<<8 | uint16(frame.Pix[i*2+1])
		sum += float64(v)
	}
	return sum / float64(n)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
