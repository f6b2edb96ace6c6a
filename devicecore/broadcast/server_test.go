// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import (
	"context"
	"net"
	"testing"
	"time"

	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/protocol/sim"
)

func newTestCore(t *testing.T) *devicecore.Core {
	t.Helper()
	adapter := sim.New(sim.Config{})
	core := devicecore.New("Main mount", adapter)
	if err := core.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := core.Connect(context.Background(), "Main mount", 5*time.Second, 3); err != nil {
		t.Fatal(err)
	}
	return core
}

func TestServerBroadcastsStateChange(t *testing.T) {
	s, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	core := newTestCore(t)
	s.RegisterDevice(core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	core.UpdateState(devicecore.Slewing)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, payload, err := readFrame(conn)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if typ != MsgDeviceState {
		t.Fatalf("type = %v, want MsgDeviceState", typ)
	}
	got, err := decodeDeviceState(payload)
	if err != nil {
		t.Fatalf("decodeDeviceState: %v", err)
	}
	if got.Name != "Main mount" || got.State != int64(devicecore.Slewing) {
		t.Fatalf("got %+v, want Name=Main mount State=%d", got, devicecore.Slewing)
	}
}

func TestServerAnswersListDevicesRequest(t *testing.T) {
	s, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	core := newTestCore(t)
	s.RegisterDevice(core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx)

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := writeFrame(conn, MsgListDevicesRequest, nil); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, payload, err := readFrame(conn)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if typ != MsgListDevicesResponse {
		t.Fatalf("type = %v, want MsgListDevicesResponse", typ)
	}
	resp, err := decodeListDevicesResponse(payload)
	if err != nil {
		t.Fatalf("decodeListDevicesResponse: %v", err)
	}
	if len(resp.Names) != 1 || resp.Names[0] != "Main mount" {
		t.Fatalf("got %v, want [Main mount]", resp.Names)
	}
}
