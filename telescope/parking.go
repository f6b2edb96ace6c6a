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

const (
	ctrlParkPosAz  = "TELESCOPE_PARK_POSITION_AZ"
	ctrlParkPosAlt = "TELESCOPE_PARK_POSITION_ALT"
	ctrlHomeSet    = "TELESCOPE_HOME_SET"
	ctrlAtHome     = "TELESCOPE_HOME_AT"
)

// Park slews the mount to its configured park position and marks it
// parked. Requires devicecore.CanPark.
func (m *Mount) Park(ctx context.Context) error {
	if !m.core.Capabilities().Has(devicecore.CanPark) {
		return fmt.Errorf("telescope: park: %w", devicecore.ErrCapabilityAbsent)
	}
	m.core.UpdateState(devicecore.Parking)
	if err := m.adapter.SetControl(ctx, ctrlPark, 1, false); err != nil {
		m.core.UpdateState(devicecore.Idle)
		return fmt.Errorf("telescope: park: %w", protocol.NewAdapterError("SetControl", err))
	}
	if err := m.waitSettled(ctx, ctrlPark, 1); err != nil {
		m.core.UpdateState(devicecore.Idle)
		return err
	}
	m.core.UpdateState(devicecore.Parked)
	return nil
}

// Unpark releases the mount from its parked state, making it available
// for slews again. Requires devicecore.CanPark.
func (m *Mount) Unpark(ctx context.Context) error {
	if !m.core.Capabilities().Has(devicecore.CanPark) {
		return fmt.Errorf("telescope: unpark: %w", devicecore.ErrCapabilityAbsent)
	}
	if err := m.adapter.SetControl(ctx, ctrlPark, 0, false); err != nil {
		return fmt.Errorf("telescope: unpark: %w", protocol.NewAdapterError("SetControl", err))
	}
	m.core.UpdateState(devicecore.Idle)
	return nil
}

// IsParked reports the mount's last reported park state.
func (m *Mount) IsParked(ctx context.Context) (bool, error) {
	v, err := m.adapter.GetControl(ctx, ctrlPark)
	if err != nil {
		return false, fmt.Errorf("telescope: park state: %w", protocol.NewAdapterError("GetControl", err))
	}
	return v != 0, nil
}

// SetParkPosition records the Alt/Az position Park will slew to.
func (m *Mount) SetParkPosition(ctx context.Context, hz Horizontal) error {
	if !m.core.Capabilities().Has(devicecore.CanPark) {
		return fmt.Errorf("telescope: set park position: %w", devicecore.ErrCapabilityAbsent)
	}
	if err := m.adapter.SetControl(ctx, ctrlParkPosAz, hz.AzDegrees, false); err != nil {
		return fmt.Errorf("telescope: set park azimuth: %w", protocol.NewAdapterError("SetControl", err))
	}
	if err := m.adapter.SetControl(ctx, ctrlParkPosAlt, hz.AltDegrees, false); err != nil {
		return fmt.Errorf("telescope: set park altitude: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// GetParkPosition reads the mount's configured park Alt/Az.
func (m *Mount) GetParkPosition(ctx context.Context) (Horizontal, error) {
	az, err := m.adapter.GetControl(ctx, ctrlParkPosAz)
	if err != nil {
		return Horizontal{}, fmt.Errorf("telescope: park azimuth: %w", protocol.NewAdapterError("GetControl", err))
	}
	alt, err := m.adapter.GetControl(ctx, ctrlParkPosAlt)
	if err != nil {
		return Horizontal{}, fmt.Errorf("telescope: park altitude: %w", protocol.NewAdapterError("GetControl", err))
	}
	return Horizontal{AzDegrees: az, AltDegrees: alt}, nil
}

// SetHome marks the mount's current position as its home reference.
func (m *Mount) SetHome(ctx context.Context) error {
	if err := m.adapter.SetControl(ctx, ctrlHomeSet, 1, false); err != nil {
		return fmt.Errorf("telescope: set home: %w", protocol.NewAdapterError("SetControl", err))
	}
	return nil
}

// IsHomeSet reports whether a home reference has been recorded.
func (m *Mount) IsHomeSet(ctx context.Context) (bool, error) {
	v, err := m.adapter.GetControl(ctx, ctrlHomeSet)
	if err != nil {
		return false, fmt.Errorf("telescope: home set state: %w", protocol.NewAdapterError("GetControl", err))
	}
	return v != 0, nil
}

// IsAtHome reports whether the mount is currently at its home reference
// position.
func (m *Mount) IsAtHome(ctx context.Context) (bool, error) {
	v, err := m.adapter.GetControl(ctx, ctrlAtHome)
	if err != nil {
		return false, fmt.Errorf("telescope: at-home state: %w", protocol.NewAdapterError("GetControl", err))
	}
	return v != 0, nil
}

// GotoHome slews the mount to its recorded home position.
func (m *Mount) GotoHome(ctx context.Context) error {
	if err := m.adapter.SetControl(ctx, ctrlAtHome, 1, false); err != nil {
		return fmt.Errorf("telescope: goto home: %w", protocol.NewAdapterError("SetControl", err))
	}
	return m.waitSettled(ctx, ctrlAtHome, 1)
}
