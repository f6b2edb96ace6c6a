// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ipc

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPipeChannelSendReceiveRoundTrip(t *testing.T) {
	p, err := NewPipeChannel()
	if err != nil {
		t.Fatalf("NewPipeChannel: %v", err)
	}
	defer p.Close()

	payload := []byte(`{"n":1}`)
	if err := p.Send(Query, payload, false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg, err := p.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg.Header.Type != Query {
		t.Fatalf("got type %v, want Query", msg.Header.Type)
	}
	if string(msg.Payload) != string(payload) {
		t.Fatalf("got payload %q, want %q", msg.Payload, payload)
	}
}

func TestPipeChannelSequenceIDStrictlyIncreases(t *testing.T) {
	p, err := NewPipeChannel()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	for i := 0; i < 5; i++ {
		if err := p.Send(Heartbeat, nil, false); err != nil {
			t.Fatal(err)
		}
	}
	var last uint32
	for i := 0; i < 5; i++ {
		msg, err := p.Receive(time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if msg.Header.SequenceID <= last {
			t.Fatalf("sequence id %d did not strictly increase from %d", msg.Header.SequenceID, last)
		}
		last = msg.Header.SequenceID
	}
}

func TestPipeChannelReceiveTimeout(t *testing.T) {
	p, err := NewPipeChannel()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	_, err = p.Receive(10 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestPipeChannelCloseThenOperationsReportClosed(t *testing.T) {
	p, err := NewPipeChannel()
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Send(Heartbeat, nil, false); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Send after close = %v, want ErrChannelClosed", err)
	}
	if _, err := p.Receive(time.Millisecond); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("Receive after close = %v, want ErrChannelClosed", err)
	}
}

func TestPipeChannelHasData(t *testing.T) {
	p, err := NewPipeChannel()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.HasData() {
		t.Fatal("HasData true on empty channel")
	}
	if err := p.Send(Heartbeat, []byte("x"), false); err != nil {
		t.Fatal(err)
	}
	// Give the pipe a moment to become readable.
	deadline := time.Now().Add(time.Second)
	for !p.HasData() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !p.HasData() {
		t.Fatal("HasData false after Send")
	}
	if _, err := p.Receive(time.Second); err != nil {
		t.Fatalf("Receive: %v", err)
	}
}

func TestBidirectionalChannelHandshake(t *testing.T) {
	b, err := NewBidirectionalChannel()
	if err != nil {
		t.Fatalf("NewBidirectionalChannel: %v", err)
	}
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		done <- RespondHandshake(b, "test-worker", []string{"exec"}, time.Second)
	}()

	ack, err := PerformHandshake(b, []string{"exec"}, time.Second)
	if err != nil {
		t.Fatalf("PerformHandshake: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("RespondHandshake: %v", err)
	}
	if ack.WorkerVersion != "test-worker" {
		t.Fatalf("got worker version %q", ack.WorkerVersion)
	}
	if ack.Pid == 0 {
		t.Fatal("expected non-zero pid")
	}
}

func TestBidirectionalChannelHandshakeVersionMismatch(t *testing.T) {
	b, err := NewBidirectionalChannel()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	go func() {
		msg, err := b.ReceiveFromParent(time.Second)
		if err != nil {
			return
		}
		_ = msg
		// Reply with a mismatched protocol version directly, bypassing
		// RespondHandshake's version stamping.
		ack := HandshakeAckPayload{ProtocolVersion: int(ProtocolVersion) + 1}
		payload, _ := json.Marshal(ack)
		_ = b.SendToParent(HandshakeAck, payload, false)
	}()

	if _, err := PerformHandshake(b, nil, time.Second); !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("got %v, want ErrHandshakeFailed", err)
	}
}
