// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package accessory

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/apa102"

	"periph.io/x/lithiumhome/devicecore"
)

// Indicator drives an APA102 LED strip as a rig-status indicator (idle,
// exposing, moving, error), adapted from node/light_apa102.go: same
// spireg.Open + apa102.New device handle, but
// driven by devicecore.State transitions instead of ESPHome light
// commands, and with a fixed per-state palette instead of arbitrary
// client-set RGB.
type Indicator struct {
	p   spi.PortCloser
	d   *apa102.Dev
	img *image.NRGBA
}

// StateColors maps a devicecore.State to the color the indicator shows
// while the device core is in that state. States with no entry leave the
// strip at StateColors[devicecore.Idle].
var StateColors = map[devicecore.State]color.NRGBA{
	devicecore.Idle:        {R: 0, G: 40, B: 0, A: 255},
	devicecore.Connecting:  {R: 40, G: 40, B: 0, A: 255},
	devicecore.Exposing:    {R: 0, G: 0, B: 80, A: 255},
	devicecore.Downloading: {R: 0, G: 60, B: 60, A: 255},
	devicecore.Slewing:     {R: 60, G: 30, B: 0, A: 255},
	devicecore.Tracking:    {R: 0, G: 80, B: 0, A: 255},
	devicecore.Parking:     {R: 60, G: 0, B: 60, A: 255},
	devicecore.Parked:      {R: 20, G: 0, B: 20, A: 255},
	devicecore.Aborted:     {R: 80, G: 40, B: 0, A: 255},
	devicecore.Error:       {R: 90, G: 0, B: 0, A: 255},
}

// NewIndicator opens numLEDs worth of APA102 strip on the first available
// SPI port.
func NewIndicator(numLEDs int) (*Indicator, error) {
	p, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("accessory: open spi port: %w", err)
	}
	dev, err := apa102.New(p, &apa102.DefaultOpts)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("accessory: open apa102: %w", err)
	}
	return &Indicator{p: p, d: dev, img: image.NewNRGBA(image.Rect(0, 0, numLEDs, 1))}, nil
}

// OnStateChanged fills the whole strip with the color for new, per
// StateColors (falling back to Idle's color for unmapped states).
func (ind *Indicator) OnStateChanged(old, new devicecore.State) {
	c, ok := StateColors[new]
	if !ok {
		c = StateColors[devicecore.Idle]
	}
	draw.Draw(ind.img, ind.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	if err := ind.d.Draw(ind.d.Bounds(), ind.img, image.Point{}); err != nil {
		// Best-effort: a status LED failing to update shouldn't interrupt
		// the state transition it's illustrating.
		log.Printf("accessory: indicator update: %v", err)
	}
}

func (ind *Indicator) Close() error {
	err := ind.d.Halt()
	if err2 := ind.p.Close(); err == nil {
		err = err2
	}
	return err
}
