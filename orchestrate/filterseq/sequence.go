// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package filterseq implements the Filter-Sequence Orchestrator: a
// higher-level task that runs outside the Device Core but entirely
// through its published capabilities (Accessory Coordinator, Exposure
// Pipeline), executing ordered or interleaved LRGB/narrowband/custom
// color sequences. Grounded on original_source's
// src/task/custom/filter/{lrgb_sequence,narrowband_sequence}.{hpp,cpp},
// translated from the original's std::future-based async task into a
// single blocking Run call the caller can launch in its own goroutine —
// Go's goroutine-plus-context idiom does the work the original's
// std::atomic pause/cancel flags and std::future existed to provide.
package filterseq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/lithiumhome/accessory"
	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/exposure"
)

const (
	ctrlGain   = "CCD_GAIN"
	ctrlOffset = "CCD_OFFSET"
)

// DefaultSettlingTime is how long the sequence waits after a filter
// change before starting to expose, when a Step leaves SettlingTime
// unset (0).
const DefaultSettlingTime = 2 * time.Second

// Step describes one filter's worth of exposures within a sequence.
type Step struct {
	Filter      string
	ExposureS   float64
	Count       int
	Gain        float64
	Offset      float64
	SettlingTime time.Duration
}

// ProgressFunc is invoked after every completed frame with the running
// count and the sequence total.
type ProgressFunc func(completedFrames, totalFrames int)

// HistoryFunc is invoked once per completed frame with the step that
// produced it, for the caller to append to a persistent history log.
type HistoryFunc func(step Step, frameIndex int)

// Sequence runs an ordered list of Steps through a shared Accessory
// Coordinator and Exposure Pipeline, supporting pause/resume/cancel via
// atomic flags polled between frames.
type Sequence struct {
	core    *devicecore.Core
	coord   *accessory.Coordinator
	pipe    *exposure.Pipeline

	paused    int32
	cancelled int32

	completed int32
	total     int32
}

// New builds a Sequence driving coord and pipe, both of which must
// already be Init'd against core.
func New(core *devicecore.Core, coord *accessory.Coordinator, pipe *exposure.Pipeline) *Sequence {
	return &Sequence{core: core, coord: coord, pipe: pipe}
}

// Pause suspends frame capture after the current exposure completes.
func (s *Sequence) Pause() { atomic.StoreInt32(&s.paused, 1) }

// Resume clears a prior Pause.
func (s *Sequence) Resume() { atomic.StoreInt32(&s.paused, 0) }

// Cancel aborts the sequence; the in-flight exposure (if any) is
// aborted via the Exposure Pipeline.
func (s *Sequence) Cancel() { atomic.StoreInt32(&s.cancelled, 1) }

// Progress returns completed_frames / total_frames * 100, or 0 before
// Run has computed a total.
func (s *Sequence) Progress() float64 {
	total := atomic.LoadInt32(&s.total)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt32(&s.completed)) / float64(total) * 100
}

// Run executes steps in order: for each, change filter, wait the
// configured settling time, then capture Count exposures, polling the
// pause/cancel flags between frames. On cancel the in-flight exposure is
// aborted and Run returns ErrCancelled.
func (s *Sequence) Run(ctx context.Context, steps []Step, onProgress ProgressFunc, onHistory HistoryFunc) error {
	total := 0
	for _, st := range steps {
		total += st.Count
	}
	atomic.StoreInt32(&s.total, int32(total))
	atomic.StoreInt32(&s.completed, 0)

	for _, step := range steps {
		if err := s.runStep(ctx, step, onProgress, onHistory); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequence) runStep(ctx context.Context, step Step, onProgress ProgressFunc, onHistory HistoryFunc) error {
	if err := s.coord.Wheel.ChangeFilter(ctx, step.Filter, accessory.DefaultMaxRetries); err != nil {
		return fmt.Errorf("filterseq: change filter %q: %w", step.Filter, err)
	}

	if step.Gain != 0 {
		if err := s.core.Adapter().SetControl(ctx, ctrlGain, step.Gain, false); err != nil {
			return fmt.Errorf("filterseq: set gain: %w", err)
		}
	}
	if step.Offset != 0 {
		if err := s.core.Adapter().SetControl(ctx, ctrlOffset, step.Offset, false); err != nil {
			return fmt.Errorf("filterseq: set offset: %w", err)
		}
	}

	settle := step.SettlingTime
	if settle == 0 {
		settle = DefaultSettlingTime
	}
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return ctx.Err()
	}

	for i := 0; i < step.Count; i++ {
		if atomic.LoadInt32(&s.cancelled) != 0 {
			return ErrCancelled
		}
		for atomic.LoadInt32(&s.paused) != 0 {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			if atomic.LoadInt32(&s.cancelled) != 0 {
				return ErrCancelled
			}
		}

		if err := s.pipe.StartExposure(ctx, step.ExposureS); err != nil {
			return fmt.Errorf("filterseq: start exposure: %w", err)
		}
		if err := s.waitExposureDone(ctx); err != nil {
			return err
		}

		atomic.AddInt32(&s.completed, 1)
		if onProgress != nil {
			onProgress(int(atomic.LoadInt32(&s.completed)), int(atomic.LoadInt32(&s.total)))
		}
		if onHistory != nil {
			onHistory(step, i)
		}
	}
	return nil
}

// waitExposureDone polls the Pipeline until the in-flight exposure
// completes, aborting it if the sequence is cancelled mid-exposure.
func (s *Sequence) waitExposureDone(ctx context.Context) error {
	ticker := time.NewTicker(exposure.PollInterval)
	defer ticker.Stop()
	for s.pipe.IsExposing() {
		if atomic.LoadInt32(&s.cancelled) != 0 {
			_ = s.pipe.AbortExposure(ctx)
			return ErrCancelled
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			_ = s.pipe.AbortExposure(context.Background())
			return ctx.Err()
		}
	}
	return nil
}
