// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ipc

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic:       Magic,
		Version:     ProtocolVersion,
		Type:        Execute,
		PayloadSize: 42,
		SequenceID:  7,
		Flags:       FlagChecksum,
		Reserved:    0,
	}
	buf := marshalHeader(h)
	if len(buf) != HeaderSize {
		t.Fatalf("marshalHeader produced %d bytes, want %d", len(buf), HeaderSize)
	}
	got, err := unmarshalHeader(buf)
	if err != nil {
		t.Fatalf("unmarshalHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestHeaderValidate(t *testing.T) {
	cases := []struct {
		name string
		h    Header
		ok   bool
	}{
		{"ok", Header{Magic: Magic, Version: ProtocolVersion}, true},
		{"bad magic", Header{Magic: 0, Version: ProtocolVersion}, false},
		{"bad version", Header{Magic: Magic, Version: 2}, false},
		{"oversize payload", Header{Magic: Magic, Version: ProtocolVersion, PayloadSize: MaxPayloadSize + 1}, false},
		{"max payload exactly", Header{Magic: Magic, Version: ProtocolVersion, PayloadSize: MaxPayloadSize}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.h.Validate()
			if (err == nil) != c.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, c.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalidMessage) {
				t.Fatalf("error %v does not wrap ErrInvalidMessage", err)
			}
		})
	}
}

func TestEncodeFrameChecksum(t *testing.T) {
	payload := []byte(`{"hello":"world"}`)
	frame, err := encodeFrame(Query, 1, payload, true)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	if len(frame) != HeaderSize+len(payload)+4 {
		t.Fatalf("frame length = %d, want %d", len(frame), HeaderSize+len(payload)+4)
	}
	h, err := unmarshalHeader(frame[:HeaderSize])
	if err != nil {
		t.Fatal(err)
	}
	if h.Flags&FlagChecksum == 0 {
		t.Fatal("expected FlagChecksum set")
	}
	gotPayload := frame[HeaderSize : HeaderSize+len(payload)]
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", gotPayload, payload)
	}
	sumBuf := frame[HeaderSize+len(payload):]
	var sum uint32
	for _, b := range sumBuf {
		sum = sum<<8 | uint32(b)
	}
	if err := verifyChecksum(payload, sum); err != nil {
		t.Fatalf("verifyChecksum: %v", err)
	}
}

func TestEncodeFrameRejectsOversizePayload(t *testing.T) {
	_, err := encodeFrame(DataChunk, 1, make([]byte, MaxPayloadSize+1), false)
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("got %v, want ErrInvalidMessage", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	if Handshake.String() != "Handshake" {
		t.Fatalf("got %q", Handshake.String())
	}
	if got := MessageType(0xFF).String(); got == "" {
		t.Fatalf("unknown type produced empty string")
	}
}
