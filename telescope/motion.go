// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telescope

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/protocol"
)

// Control names, grounded on INDI's telescope property family referenced
// throughout original_source/src/device/indi/telescope/*.
const (
	ctrlRA        = "EQUATORIAL_EOD_COORD_RA"
	ctrlDec       = "EQUATORIAL_EOD_COORD_DEC"
	ctrlSlewRate  = "TELESCOPE_SLEW_RATE"
	ctrlAbort     = "TELESCOPE_ABORT_MOTION"
	ctrlTrackOn   = "TELESCOPE_TRACK_STATE"
	ctrlTrackMode = "TELESCOPE_TRACK_MODE"
	ctrlPierSide  = "TELESCOPE_PIER_SIDE"
	ctrlPark      = "TELESCOPE_PARK"
)

// SettleTimeout bounds how long a slew waits to reach its target.
const SettleTimeout = 5 * time.Minute

// SettlePollInterval is the cadence slew-completion polling runs at.
const SettlePollInterval = 500 * time.Millisecond

// TrackMode selects the mount's sidereal/solar/lunar/custom tracking rate.
type TrackMode int

const (
	TrackSidereal TrackMode = iota
	TrackSolar
	TrackLunar
	TrackCustom
)

// PierSide reports which side of the pier a German-equatorial mount's
// optical tube currently sits on.
type PierSide int

const (
	PierUnknown PierSide = iota
	PierEast
	PierWest
)

// Mount is the Telescope devicecore.Component: slew/track/park state
// tracking layered over protocol.Adapter controls.
type Mount struct {
	devicecore.ComponentBase

	core    *devicecore.Core
	adapter protocol.Adapter
	rootCtx context.Context

	mu         sync.Mutex
	slewing    bool
	cancelSlew context.CancelFunc
}

// New constructs an unconnected Mount; call Init via
// devicecore.Core.RegisterComponent + Core.Initialize before use.
func New(name string) *Mount { return &Mount{ComponentBase: devicecore.NewComponentBase(name)} }

func (m *Mount) Init(ctx context.Context, core *devicecore.Core) error {
	m.core = core
	m.adapter = core.Adapter()
	m.rootCtx = ctx
	return nil
}

func (m *Mount) Destroy() error {
	if m.IsSlewing() {
		return m.AbortMotion(context.Background())
	}
	return nil
}

// IsSlewing reports whether a coordinate slew is in progress.
func (m *Mount) IsSlewing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slewing
}

// SlewToRADECJNow commands a goto to the given RA/Dec and blocks until
// settled or SettleTimeout elapses. When enableTracking is true, tracking
// is turned on once the slew completes.
func (m *Mount) SlewToRADECJNow(ctx context.Context, eq Equatorial, enableTracking bool) error {
	if !m.core.IsConnected() {
		return devicecore.ErrNotConnected
	}
	m.mu.Lock()
	if m.slewing {
		m.mu.Unlock()
		return ErrAlreadySlewing
	}
	slewCtx, cancel := context.WithCancel(m.rootCtx)
	m.slewing = true
	m.cancelSlew = cancel
	m.mu.Unlock()

	m.core.UpdateState(devicecore.Slewing)
	defer func() {
		m.mu.Lock()
		m.slewing = false
		m.mu.Unlock()
	}()

	if err := m.adapter.SetControl(slewCtx, ctrlRA, eq.RAHours, false); err != nil {
		m.core.UpdateState(devicecore.Idle)
		return fmt.Errorf("telescope: set RA: %w", protocol.NewAdapterError("SetControl", err))
	}
	if err := m.adapter.SetControl(slewCtx, ctrlDec, eq.DecDegrees, false); err != nil {
		m.core.UpdateState(devicecore.Idle)
		return fmt.Errorf("telescope: set Dec: %w", protocol.NewAdapterError("SetControl", err))
	}

	if err := m.waitSettled(slewCtx, ctrlRA, eq.RAHours); err != nil {
		m.core.UpdateState(devicecore.Idle)
		return err
	}

	if enableTracking {
		if err := m.EnableTracking(ctx, true); err != nil {
			return err
		}
		m.core.UpdateState(devicecore.Tracking)
	} else {
		m.core.UpdateState(devicecore.Idle)
	}
	return nil
}

// AbortMotion immediately halts any slew or guide motion in progress.
func (m *Mount) AbortMotion(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancelSlew
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := m.adapter.SetControl(ctx, ctrlAbort, 1, false); err != nil {
		return fmt.Errorf("telescope: abort: %w", protocol.NewAdapterError("SetControl", err))
	}
	m.mu.Lock()
	m.slewing = false
	m.mu.Unlock()
	m.core.UpdateState(devicecore.Aborted)
	return nil
}

// waitSettled polls ctrl until its reported value matches want within a
// small epsilon, twice in a row, or SettleTimeout elapses.
func (m *Mount) waitSettled(ctx context.Context, ctrl string, want float64) error {
	deadline := time.Now().Add(SettleTimeout)
	stable := 0
	for {
		v, err := m.adapter.GetControl(ctx, ctrl)
		if err == nil && math.Abs(v-want) < 1e-6 {
			stable++
			if stable >= 2 {
				return nil
			}
		} else {
			stable = 0
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("telescope: slew settle: %w", protocol.ErrTimeout)
		}
		select {
		case <-time.After(SettlePollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetSlewRate sets the mount's active slew speed.
func (m *Mount) SetSlewRate(ctx context.Context, speed float64) error {
	if err := m.adapter.SetControl(ctx, ctrlSlewRate, speed, false); err != nil {
		return fmt.Errorf("telescope: set slew rate: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// EnableTracking turns sidereal/solar/lunar tracking on or off.
func (m *Mount) EnableTracking(ctx context.Context, on bool) error {
	v := 0.0
	if on {
		v = 1
	}
	if err := m.adapter.SetControl(ctx, ctrlTrackOn, v, false); err != nil {
		return fmt.Errorf("telescope: enable tracking: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// IsTrackingEnabled reports the mount's last reported tracking state.
func (m *Mount) IsTrackingEnabled(ctx context.Context) (bool, error) {
	v, err := m.adapter.GetControl(ctx, ctrlTrackOn)
	if err != nil {
		return false, fmt.Errorf("telescope: tracking state: %w", protocol.NewAdapterError("GetControl", err))
	}
	return v != 0, nil
}

// SetTrackMode selects the tracking rate.
func (m *Mount) SetTrackMode(ctx context.Context, mode TrackMode) error {
	if err := m.adapter.SetControl(ctx, ctrlTrackMode, float64(mode), false); err != nil {
		return fmt.Errorf("telescope: set track mode: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// GetPierSide reads the mount's current pier side, when the capability is
// present.
func (m *Mount) GetPierSide(ctx context.Context) (PierSide, error) {
	if !m.core.Capabilities().Has(devicecore.HasPierSide) {
		return PierUnknown, fmt.Errorf("telescope: pier side: %w", devicecore.ErrCapabilityAbsent)
	}
	v, err := m.adapter.GetControl(ctx, ctrlPierSide)
	if err != nil {
		return PierUnknown, fmt.Errorf("telescope: pier side: %w", protocol.NewAdapterError("GetControl", err))
	}
	return PierSide(int(v)), nil
}
