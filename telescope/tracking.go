// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telescope

import (
	"context"
	"fmt"

	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/protocol"
)

const ctrlTrackRate = "TELESCOPE_TRACK_RATE"

// GetTrackRate reads the mount's custom tracking rate, in arcsec/sec.
// Requires devicecore.HasTrackMode.
func (m *Mount) GetTrackRate(ctx context.Context) (float64, error) {
	if !m.core.Capabilities().Has(devicecore.HasTrackMode) {
		return 0, fmt.Errorf("telescope: track rate: %w", devicecore.ErrCapabilityAbsent)
	}
	v, err := m.adapter.GetControl(ctx, ctrlTrackRate)
	if err != nil {
		return 0, fmt.Errorf("telescope: track rate: %w", protocol.NewAdapterError("GetControl", err))
	}
	return v, nil
}

// SetTrackRate sets a custom tracking rate, in arcsec/sec. Requires
// devicecore.HasTrackMode and TrackMode to be TrackCustom for the rate to
// take effect on a real mount.
func (m *Mount) SetTrackRate(ctx context.Context, arcsecPerSec float64) error {
	if !m.core.Capabilities().Has(devicecore.HasTrackMode) {
		return fmt.Errorf("telescope: set track rate: %w", devicecore.ErrCapabilityAbsent)
	}
	if err := m.adapter.SetControl(ctx, ctrlTrackRate, arcsecPerSec, false); err != nil {
		return fmt.Errorf("telescope: set track rate: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// CanFlipPierSide reports whether the mount supports a commanded pier
// flip independent of a meridian-crossing slew.
func (m *Mount) CanFlipPierSide() bool {
	return m.core.Capabilities().Has(devicecore.HasPierSide)
}

// FlipPierSide commands the mount to flip from its current pier side to
// the other, re-pointing at the same sky position. Requires
// devicecore.HasPierSide.
func (m *Mount) FlipPierSide(ctx context.Context) error {
	if !m.CanFlipPierSide() {
		return fmt.Errorf("telescope: flip pier side: %w", devicecore.ErrCapabilityAbsent)
	}
	side, err := m.GetPierSide(ctx)
	if err != nil {
		return err
	}
	next := PierEast
	if side == PierEast {
		next = PierWest
	}
	if err := m.adapter.SetControl(ctx, ctrlPierSide, float64(next), false); err != nil {
		return fmt.Errorf("telescope: flip pier side: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}
