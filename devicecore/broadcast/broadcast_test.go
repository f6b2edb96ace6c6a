// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello")
	if err := writeFrame(&buf, MsgDeviceState, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	typ, got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if typ != MsgDeviceState {
		t.Fatalf("type = %v, want MsgDeviceState", typ)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, MsgListDevicesRequest, nil); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	typ, got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if typ != MsgListDevicesRequest {
		t.Fatalf("type = %v, want MsgListDevicesRequest", typ)
	}
	if len(got) != 0 {
		t.Fatalf("payload = %q, want empty", got)
	}
}

func TestDeviceStateEncodeDecode(t *testing.T) {
	want := DeviceState{Name: "Main mount", State: 7, Capabilities: 0x42}
	got, err := decodeDeviceState(want.encode())
	if err != nil {
		t.Fatalf("decodeDeviceState: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParameterUpdateEncodeDecode(t *testing.T) {
	want := ParameterUpdate{DeviceName: "Main camera", Name: "CCD_TEMPERATURE", Value: -12.5}
	got, err := decodeParameterUpdate(want.encode())
	if err != nil {
		t.Fatalf("decodeParameterUpdate: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestListDevicesResponseEncodeDecode(t *testing.T) {
	want := ListDevicesResponse{Names: []string{"Main mount", "Main camera", "Filter wheel"}}
	got, err := decodeListDevicesResponse(want.encode())
	if err != nil {
		t.Fatalf("decodeListDevicesResponse: %v", err)
	}
	if len(got.Names) != len(want.Names) {
		t.Fatalf("got %d names, want %d", len(got.Names), len(want.Names))
	}
	for i := range want.Names {
		if got.Names[i] != want.Names[i] {
			t.Fatalf("name[%d] = %q, want %q", i, got.Names[i], want.Names[i])
		}
	}
}
