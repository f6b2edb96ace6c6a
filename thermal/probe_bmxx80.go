// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
)

// AmbientReading is one sample from an ambient environmental probe, used
// for dew-point safety checks rather than camera cooling control.
type AmbientReading struct {
	Celsius     float64
	PressureKPa float64
	HumidityPct float64
	At          time.Time
}

// DewPointC returns the Magnus-formula approximation of the dew point in
// Celsius for this reading.
func (r AmbientReading) DewPointC() float64 {
	const a, b = 17.62, 243.12
	gamma := math.Log(r.HumidityPct/100) + a*r.Celsius/(b+r.Celsius)
	return b * gamma / (a - gamma)
}

// AmbientProbe is an optional auxiliary ambient-environment sensor; a
// Controller reports its latest reading alongside the device cooling
// telemetry when one is attached.
type AmbientProbe interface {
	Start(ctx context.Context) error
	Latest() (AmbientReading, bool)
	Close() error
}

// bmxx80Probe reads a real Bosch BMP280/BME280 over I²C or SPI,
// continuously sensing at updateInterval, grounded on the bus-selection
// and SenseContinuous idiom of node/sensor_bm280.go's loadSensorBMxx80/
// devBMxx80.init — adapted here to a single ambient probe abstraction
// instead of three separate ESPHome entities.
type bmxx80Probe struct {
	bus            io.Closer
	dev            *bmxx80.Dev
	updateInterval time.Duration

	mu      sync.RWMutex
	latest  AmbientReading
	hasRead bool
}

// NewBMxx80I2C opens a BMxx80 at device address addr on the first
// available I²C bus.
func NewBMxx80I2C(addr uint16, updateInterval time.Duration) (AmbientProbe, error) {
	p, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("thermal: open i2c bus: %w", err)
	}
	dev, err := bmxx80.NewI2C(p, addr, &bmxx80.Opts{Temperature: bmxx80.O16x, Pressure: bmxx80.O16x, Humidity: bmxx80.O16x})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("thermal: open bmxx80 over i2c: %w", err)
	}
	return &bmxx80Probe{bus: p, dev: dev, updateInterval: updateInterval}, nil
}

// NewBMxx80SPI opens a BMxx80 on the first available SPI bus.
func NewBMxx80SPI(updateInterval time.Duration) (AmbientProbe, error) {
	p, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("thermal: open spi bus: %w", err)
	}
	dev, err := bmxx80.NewSPI(p, &bmxx80.Opts{Temperature: bmxx80.O16x, Pressure: bmxx80.O16x, Humidity: bmxx80.O16x})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("thermal: open bmxx80 over spi: %w", err)
	}
	return &bmxx80Probe{bus: p, dev: dev, updateInterval: updateInterval}, nil
}

func (b *bmxx80Probe) Start(ctx context.Context) error {
	ch, err := b.dev.SenseContinuous(b.updateInterval)
	if err != nil {
		return fmt.Errorf("thermal: sense continuous: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				b.mu.Lock()
				b.latest = AmbientReading{
					Celsius:     e.Temperature.Celsius(),
					PressureKPa: float64(e.Pressure) / float64(physic.KiloPascal),
					HumidityPct: float64(e.Humidity) / float64(physic.PercentRH),
					At:          time.Now(),
				}
				b.hasRead = true
				b.mu.Unlock()
			}
		}
	}()
	return nil
}

func (b *bmxx80Probe) Latest() (AmbientReading, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasRead {
		return AmbientReading{}, false
	}
	return b.latest, true
}

func (b *bmxx80Probe) Close() error {
	err := b.dev.Halt()
	if err2 := b.bus.Close(); err == nil {
		err = err2
	}
	return err
}
