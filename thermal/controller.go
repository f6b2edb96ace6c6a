// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/protocol"
)

// Control names, grounded on INDI's CCD_TEMPERATURE* / CCD_COOLER*
// property family referenced by original_source's temperature controller.
const (
	ctrlTemperature = "CCD_TEMPERATURE"
	ctrlTargetTemp  = "CCD_TEMPERATURE_TARGET"
	ctrlCooler      = "CCD_COOLER"
	ctrlCoolerPower = "CCD_COOLER_POWER"
	ctrlFan         = "CCD_FAN"
	ctrlAntiDew     = "CCD_ANTI_DEW"
)

// MonitorPeriod is the temperature/power poll cadence.
const MonitorPeriod = 2 * time.Second

// AutoFanThresholdPercent is the cooling-power level above which the fan
// is auto-enabled when cooling is active.
const AutoFanThresholdPercent = 50.0

// Controller is the Thermal Controller devicecore.Component: a single
// monitor goroutine that samples temperature and cooling power every
// MonitorPeriod, retains a bounded history and drives the fan
// automatically under high cooling load.
type Controller struct {
	devicecore.ComponentBase

	core    *devicecore.Core
	adapter protocol.Adapter
	rootCtx context.Context

	hist history

	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	coolingOn    bool
	fanOn        bool
	coolingPower float64
	targetC      float64

	ambientMu sync.Mutex
	ambient   AmbientProbe
}

// AttachAmbientProbe wires an optional ambient-environment probe (real
// hardware or FakeProbe); ambient readings surface via AmbientTemperature
// and DewPointC regardless of cooler state.
func (c *Controller) AttachAmbientProbe(ctx context.Context, p AmbientProbe) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	c.ambientMu.Lock()
	c.ambient = p
	c.ambientMu.Unlock()
	return nil
}

// AmbientTemperature returns the latest ambient probe reading, if one is
// attached and has reported at least once.
func (c *Controller) AmbientTemperature() (AmbientReading, bool) {
	c.ambientMu.Lock()
	p := c.ambient
	c.ambientMu.Unlock()
	if p == nil {
		return AmbientReading{}, false
	}
	return p.Latest()
}

// New constructs an unconnected Controller; call Init (via
// devicecore.Core.RegisterComponent + Core.Initialize) before use.
func New(name string) *Controller {
	return &Controller{ComponentBase: devicecore.NewComponentBase(name)}
}

func (c *Controller) Init(ctx context.Context, core *devicecore.Core) error {
	c.core = core
	c.adapter = core.Adapter()
	c.rootCtx = ctx
	return nil
}

func (c *Controller) Destroy() error {
	c.mu.Lock()
	running, cancel, done := c.running, c.cancel, c.done
	c.mu.Unlock()
	if running {
		cancel()
		<-done
	}
	c.ambientMu.Lock()
	ambient := c.ambient
	c.ambientMu.Unlock()
	if ambient != nil {
		return ambient.Close()
	}
	return nil
}

// StartCooling enables the cooler, sets its target temperature and starts
// the monitor goroutine if it is not already running. targetC must lie
// within [-60, 60].
func (c *Controller) StartCooling(ctx context.Context, targetC float64) error {
	if !c.core.IsConnected() {
		return devicecore.ErrNotConnected
	}
	if !c.core.Capabilities().Has(devicecore.CanCool) {
		return fmt.Errorf("thermal: start_cooling: %w", devicecore.ErrCapabilityAbsent)
	}
	if targetC < -60 || targetC > 60 {
		return fmt.Errorf("thermal: target_c=%g out of [-60, 60]: %w", targetC, devicecore.ErrInvalidArgument)
	}
	if err := c.adapter.SetControl(ctx, ctrlTargetTemp, targetC, false); err != nil {
		return fmt.Errorf("thermal: set target: %w", protocol.NewAdapterError("SetControl", err))
	}
	if err := c.adapter.SetControl(ctx, ctrlCooler, 1, false); err != nil {
		return fmt.Errorf("thermal: enable cooler: %w", protocol.NewAdapterError("SetControl", err))
	}

	c.mu.Lock()
	c.coolingOn = true
	c.targetC = targetC
	needsStart := !c.running
	c.mu.Unlock()

	if needsStart {
		c.startMonitor()
	}
	return nil
}

// StopCooling disables the cooler and the fan (if present), but leaves the
// monitor loop running so Temperature/History keep reporting.
func (c *Controller) StopCooling(ctx context.Context) error {
	if !c.core.IsConnected() {
		return devicecore.ErrNotConnected
	}
	if err := c.adapter.SetControl(ctx, ctrlCooler, 0, false); err != nil {
		return fmt.Errorf("thermal: disable cooler: %w", protocol.NewAdapterError("SetControl", err))
	}
	c.mu.Lock()
	c.coolingOn = false
	hasFan := c.core.Capabilities().Has(devicecore.HasFan)
	c.fanOn = false
	c.mu.Unlock()
	if hasFan {
		if err := c.adapter.SetControl(ctx, ctrlFan, 0, false); err != nil {
			log.Printf("thermal: disable fan: %v", err)
		}
	}
	return nil
}

func (c *Controller) startMonitor() {
	ctx, cancel := context.WithCancel(c.rootCtx)
	done := make(chan struct{})
	c.mu.Lock()
	c.running = true
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()
	go c.monitorLoop(ctx, done)
}

func (c *Controller) monitorLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(MonitorPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		c.sampleOnce(ctx)
	}
}

func (c *Controller) sampleOnce(ctx context.Context) {
	raw, err := c.adapter.GetControl(ctx, ctrlTemperature)
	if err != nil {
		log.Printf("thermal: read temperature: %v", err)
		return
	}
	// Readings arrive as integer tenths of a degree Celsius.
	celsius := raw / 10
	c.hist.add(Sample{Time: time.Now(), Celsius: celsius})

	c.mu.Lock()
	coolingOn := c.coolingOn
	c.mu.Unlock()

	var power float64
	if coolingOn {
		power, err = c.adapter.GetControl(ctx, ctrlCoolerPower)
		if err != nil {
			log.Printf("thermal: read cooling power: %v", err)
			power = 0
		}
	}

	c.mu.Lock()
	c.coolingPower = power
	hasFan := c.core.Capabilities().Has(devicecore.HasFan)
	needsFan := coolingOn && power > AutoFanThresholdPercent && hasFan && !c.fanOn
	if needsFan {
		c.fanOn = true
	}
	c.mu.Unlock()

	if needsFan {
		if err := c.adapter.SetControl(ctx, ctrlFan, 1, false); err != nil {
			log.Printf("thermal: auto-enable fan: %v", err)
		}
	}
}

// Temperature returns the most recent reading and whether one exists yet.
func (c *Controller) Temperature() (float64, bool) {
	s, ok := c.hist.latest()
	return s.Celsius, ok
}

// CoolingPower returns the last observed cooler duty cycle in percent, or
// 0 when the cooler is off.
func (c *Controller) CoolingPower() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.coolingOn {
		return 0
	}
	return c.coolingPower
}

// Fan enables or disables the cooling fan, when present.
func (c *Controller) Fan(ctx context.Context, on bool) error {
	if !c.core.Capabilities().Has(devicecore.HasFan) {
		return fmt.Errorf("thermal: fan: %w", devicecore.ErrCapabilityAbsent)
	}
	v := 0.0
	if on {
		v = 1
	}
	if err := c.adapter.SetControl(ctx, ctrlFan, v, false); err != nil {
		return fmt.Errorf("thermal: fan: %w", protocol.NewAdapterError("SetControl", err))
	}
	c.mu.Lock()
	c.fanOn = on
	c.mu.Unlock()
	return nil
}

// AntiDewHeater enables or disables the anti-dew heater, when present.
func (c *Controller) AntiDewHeater(ctx context.Context, on bool) error {
	if !c.core.Capabilities().Has(devicecore.HasAntiDew) {
		return fmt.Errorf("thermal: anti_dew: %w", devicecore.ErrCapabilityAbsent)
	}
	v := 0.0
	if on {
		v = 1
	}
	if err := c.adapter.SetControl(ctx, ctrlAntiDew, v, false); err != nil {
		return fmt.Errorf("thermal: anti_dew: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// History returns a snapshot of the retained samples, oldest first,
// capped at HistoryCapacity entries.
func (c *Controller) History() []Sample { return c.hist.snapshot() }

// Statistics returns min/max/avg over the retained history and standard
// deviation over the most recent StatsWindow samples.
func (c *Controller) Statistics() Stats { return c.hist.stats() }

// TargetTemperature returns the last commanded cooling setpoint and
// whether the cooler is currently commanded on (StopCooling clears it).
func (c *Controller) TargetTemperature() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetC, c.coolingOn
}

// IsCooling reports whether the cooler was last commanded on.
func (c *Controller) IsCooling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coolingOn
}
