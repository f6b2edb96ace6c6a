// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers for each message. There is no .proto source for these —
// see the package doc for why — so the numbering is fixed here and must
// not be renumbered without bumping a protocol version.
const (
	fieldDeviceStateName         protowire.Number = 1
	fieldDeviceStateState        protowire.Number = 2
	fieldDeviceStateCapabilities protowire.Number = 3

	fieldParamUpdateDevice protowire.Number = 1
	fieldParamUpdateName   protowire.Number = 2
	fieldParamUpdateValue  protowire.Number = 3

	fieldListDevicesName protowire.Number = 1
)

// DeviceState announces one device's current lifecycle state and fixed
// capability bitmask.
type DeviceState struct {
	Name         string
	State        int64
	Capabilities uint64
}

func (d DeviceState) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldDeviceStateName, protowire.BytesType)
	b = protowire.AppendString(b, d.Name)
	b = protowire.AppendTag(b, fieldDeviceStateState, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.State))
	b = protowire.AppendTag(b, fieldDeviceStateCapabilities, protowire.VarintType)
	b = protowire.AppendVarint(b, d.Capabilities)
	return b
}

func decodeDeviceState(b []byte) (DeviceState, error) {
	var d DeviceState
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return d, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldDeviceStateName:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return d, protowire.ParseError(n)
			}
			d.Name = v
			b = b[n:]
		case fieldDeviceStateState:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return d, protowire.ParseError(n)
			}
			d.State = int64(v)
			b = b[n:]
		case fieldDeviceStateCapabilities:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return d, protowire.ParseError(n)
			}
			d.Capabilities = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return d, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return d, nil
}

// ParameterUpdate announces a single parameter write on a device.
type ParameterUpdate struct {
	DeviceName string
	Name       string
	Value      float64
}

func (p ParameterUpdate) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldParamUpdateDevice, protowire.BytesType)
	b = protowire.AppendString(b, p.DeviceName)
	b = protowire.AppendTag(b, fieldParamUpdateName, protowire.BytesType)
	b = protowire.AppendString(b, p.Name)
	b = protowire.AppendTag(b, fieldParamUpdateValue, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, doubleToBits(p.Value))
	return b
}

func decodeParameterUpdate(b []byte) (ParameterUpdate, error) {
	var p ParameterUpdate
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldParamUpdateDevice:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.DeviceName = v
			b = b[n:]
		case fieldParamUpdateName:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.Name = v
			b = b[n:]
		case fieldParamUpdateValue:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.Value = bitsToDouble(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return p, nil
}

// ListDevicesResponse carries the set of device names the server knows
// about, in response to an (empty-payload) MsgListDevicesRequest.
type ListDevicesResponse struct {
	Names []string
}

func (l ListDevicesResponse) encode() []byte {
	var b []byte
	for _, name := range l.Names {
		b = protowire.AppendTag(b, fieldListDevicesName, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}
	return b
}

func decodeListDevicesResponse(b []byte) (ListDevicesResponse, error) {
	var l ListDevicesResponse
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return l, protowire.ParseError(n)
		}
		b = b[n:]
		if num == fieldListDevicesName {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return l, protowire.ParseError(n)
			}
			l.Names = append(l.Names, v)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return l, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return l, nil
}
