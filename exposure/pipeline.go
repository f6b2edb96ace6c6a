// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package exposure

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/protocol"
)

// PollInterval is the exposure-status poll cadence specified in spec.md
// §4.3/§5.
const PollInterval = 100 * time.Millisecond

// Geometry describes the frame shape a Pipeline will publish, normally
// read from the adapter's control properties once after connect.
type Geometry struct {
	Width, Height int
	BitDepth      int
	Bayer         bool
	PixelPitchUm  float64
	BinX, BinY    int
}

// Pipeline is the Exposure Pipeline devicecore.Component: one worker
// goroutine per instance, an atomic-flag-guarded abort, and wall-clock
// progress derived from the recorded start instant.
type Pipeline struct {
	devicecore.ComponentBase

	core    *devicecore.Core
	adapter protocol.Adapter
	rootCtx context.Context

	geomMu sync.Mutex
	geom   Geometry

	mu         sync.Mutex
	exposing   bool
	startedAt  time.Time
	durationS  float64
	workerDone chan struct{}
	cancel     context.CancelFunc

	abortFlag int32

	frameSlot devicecore.FrameSlot

	exposureCount   uint64
	lastDurationMu  sync.Mutex
	lastDurationS   float64
}

// New constructs an unconnected Pipeline; call Init (via
// devicecore.Core.RegisterComponent + Core.Initialize) before use.
func New(name string) *Pipeline {
	return &Pipeline{ComponentBase: devicecore.NewComponentBase(name)}
}

func (p *Pipeline) Init(ctx context.Context, core *devicecore.Core) error {
	p.core = core
	p.adapter = core.Adapter()
	p.rootCtx = ctx
	return nil
}

func (p *Pipeline) Destroy() error {
	if p.IsExposing() {
		return p.AbortExposure(context.Background())
	}
	return nil
}

// SetGeometry records the frame shape subsequent exposures will publish.
func (p *Pipeline) SetGeometry(g Geometry) {
	p.geomMu.Lock()
	p.geom = g
	p.geomMu.Unlock()
}

// StartExposure configures the hardware and spawns the exposure worker.
// Preconditions: the device is connected, no exposure is already running,
// and 1e-6 <= durationS <= 3600.
func (p *Pipeline) StartExposure(ctx context.Context, durationS float64) error {
	if !p.core.IsConnected() {
		return devicecore.ErrNotConnected
	}
	if durationS < 1e-6 || durationS > 3600 {
		return fmt.Errorf("exposure: duration_s=%g out of [1e-6, 3600]: %w", durationS, devicecore.ErrInvalidArgument)
	}

	p.mu.Lock()
	if p.exposing {
		p.mu.Unlock()
		return ErrAlreadyExposing
	}
	workerCtx, cancel := context.WithCancel(p.rootCtx)
	p.exposing = true
	p.startedAt = time.Now()
	p.durationS = durationS
	p.workerDone = make(chan struct{})
	p.cancel = cancel
	atomic.StoreInt32(&p.abortFlag, 0)
	done := p.workerDone
	p.mu.Unlock()

	if err := p.adapter.StartExposure(workerCtx, durationS); err != nil {
		p.mu.Lock()
		p.exposing = false
		p.mu.Unlock()
		cancel()
		close(done)
		return fmt.Errorf("exposure: start: %w", protocol.NewAdapterError("StartExposure", err))
	}

	p.core.UpdateState(devicecore.Exposing)
	go p.runWorker(workerCtx, done)
	return nil
}

func (p *Pipeline) runWorker(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		if atomic.LoadInt32(&p.abortFlag) != 0 {
			p.finishAborted(ctx)
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			p.finishAborted(ctx)
			return
		}
		status, err := p.adapter.ExposureStatus(ctx)
		if err != nil {
			p.finishError(err)
			return
		}
		if status.Complete {
			break
		}
	}

	p.core.UpdateState(devicecore.Downloading)
	pix, err := p.adapter.ReadFrame(ctx)
	if err != nil {
		p.finishError(err)
		return
	}

	p.geomMu.Lock()
	g := p.geom
	p.geomMu.Unlock()

	p.mu.Lock()
	startedAt, durationS := p.startedAt, p.durationS
	p.mu.Unlock()

	frame := &devicecore.Frame{
		Width:           g.Width,
		Height:          g.Height,
		BitDepth:        g.BitDepth,
		Bayer:           g.Bayer,
		PixelPitchUm:    g.PixelPitchUm,
		BinX:            g.BinX,
		BinY:            g.BinY,
		ExposureSeconds: durationS,
		StartedAt:       startedAt,
		Pix:             pix,
	}
	p.frameSlot.Set(frame)
	atomic.AddUint64(&p.exposureCount, 1)
	p.lastDurationMu.Lock()
	p.lastDurationS = durationS
	p.lastDurationMu.Unlock()

	p.mu.Lock()
	p.exposing = false
	p.mu.Unlock()
	p.core.UpdateState(devicecore.Idle)
}

func (p *Pipeline) finishAborted(ctx context.Context) {
	if err := p.adapter.AbortExposure(ctx); err != nil {
		log.Printf("exposure: adapter abort: %v", err)
	}
	p.mu.Lock()
	p.exposing = false
	p.mu.Unlock()
	p.core.UpdateState(devicecore.Aborted)
}

func (p *Pipeline) finishError(err error) {
	log.Printf("exposure: worker error: %v", err)
	p.mu.Lock()
	p.exposing = false
	p.mu.Unlock()
	p.core.UpdateState(devicecore.Error)
}

// AbortExposure signals the worker to stop, asks the adapter to abort
// hardware, joins the worker, and leaves the device in state Aborted. A
// no-op when idle.
func (p *Pipeline) AbortExposure(ctx context.Context) error {
	p.mu.Lock()
	if !p.exposing {
		p.mu.Unlock()
		return nil
	}
	atomic.StoreInt32(&p.abortFlag, 1)
	cancel := p.cancel
	done := p.workerDone
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
	return nil
}

// IsExposing reports whether a worker is currently in flight.
func (p *Pipeline) IsExposing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exposing
}

// Progress returns elapsed/duration clamped to [0,1], wall-clock driven.
func (p *Pipeline) Progress() float64 {
	p.mu.Lock()
	exposing, startedAt, durationS := p.exposing, p.startedAt, p.durationS
	p.mu.Unlock()
	if !exposing || durationS <= 0 {
		return 0
	}
	elapsed := time.Since(startedAt).Seconds()
	prog := elapsed / durationS
	if prog < 0 {
		return 0
	}
	if prog > 1 {
		return 1
	}
	return prog
}

// RemainingS returns the wall-clock seconds left in the current exposure,
// never negative.
func (p *Pipeline) RemainingS() float64 {
	p.mu.Lock()
	exposing, startedAt, durationS := p.exposing, p.startedAt, p.durationS
	p.mu.Unlock()
	if !exposing {
		return 0
	}
	remaining := durationS - time.Since(startedAt).Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CurrentResult returns the last completed frame, or nil while an
// exposure is still running.
func (p *Pipeline) CurrentResult() *devicecore.Frame {
	if p.IsExposing() {
		return nil
	}
	return p.frameSlot.Current()
}

// ExposureCount returns the monotonic count of successfully published
// frames.
func (p *Pipeline) ExposureCount() uint64 { return atomic.LoadUint64(&p.exposureCount) }

// LastExposureDuration returns the duration, in seconds, of the most
// recently published frame.
func (p *Pipeline) LastExposureDuration() float64 {
	p.lastDurationMu.Lock()
	defer p.lastDurationMu.Unlock()
	return p.lastDurationS
}
