// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package broadcast implements a small TCP server that advertises live
// Device Core state (connection state transitions, parameter writes) to
// operator consoles, superseding node/api.go's ESPHome-native-API server.
// The frame shape (a leading zero byte, a varint payload length, a
// varint message-type id, then the payload) is carried over unchanged
// from node/api.go's writeMsg/readMsg; only the payload encoding changes,
// from node/api.go's generated aioesphomeapi protobuf messages (not
// available in this module; see DESIGN.md) to a small set of
// hand-encoded messages built directly on
// google.golang.org/protobuf/encoding/protowire, this module's own
// minimal wire format rather than a regenerated .proto package.
package broadcast

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MessageType identifies the payload shape carried by a frame.
type MessageType uint64

const (
	MsgDeviceState        MessageType = 1
	MsgParameterUpdate     MessageType = 2
	MsgListDevicesRequest  MessageType = 3
	MsgListDevicesResponse MessageType = 4
)

// maxFrameSize bounds a single payload, mirroring node/api.go's readMsg
// 1MiB ceiling.
const maxFrameSize = 1024 * 1024

// writeFrame writes one frame: 0x00, varint(len(payload)), varint(type),
// payload.
func writeFrame(w io.Writer, typ MessageType, payload []byte) error {
	b := make([]byte, 1, 1+2*binary.MaxVarintLen64+len(payload))
	b[0] = 0
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(payload)))
	b = append(b, tmp[:n]...)
	n = binary.PutUvarint(tmp[:], uint64(typ))
	b = append(b, tmp[:n]...)
	b = append(b, payload...)
	_, err := w.Write(b)
	return err
}

// readFrame reads one frame in the shape writeFrame produces.
func readFrame(r io.Reader) (MessageType, []byte, error) {
	var zero [1]byte
	if _, err := io.ReadFull(r, zero[:]); err != nil {
		return 0, nil, err
	}
	if zero[0] != 0 {
		return 0, nil, errors.New("broadcast: expected leading zero byte")
	}
	size, err := readUvarint(r)
	if err != nil {
		return 0, nil, err
	}
	if size > maxFrameSize {
		return 0, nil, fmt.Errorf("broadcast: frame size %d exceeds limit", size)
	}
	typ, err := readUvarint(r)
	if err != nil {
		return 0, nil, err
	}
	var payload []byte
	if size > 0 {
		payload = make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return MessageType(typ), payload, nil
}

// readUvarint reads a single protobuf-style varint one byte at a time,
// mirroring node/api.go's readVarUint.
func readUvarint(r io.Reader) (uint64, error) {
	var x uint64
	var s uint
	var buf [1]byte
	for i := 0; ; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		b := buf[0]
		if b < 0x80 {
			if i >= binary.MaxVarintLen64 || (i == binary.MaxVarintLen64-1 && b > 1) {
				return 0, errors.New("broadcast: varint overflow")
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
}
