// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ipc

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	// Magic is the fixed 4-byte value identifying a lithiumhome IPC frame
	// ("LITH" read as a big-endian uint32).
	Magic uint32 = 0x4C495448

	// ProtocolVersion is the only header version this package understands.
	ProtocolVersion uint8 = 1

	// HeaderSize is the fixed, wire size of a Header in bytes.
	HeaderSize = 16

	// MaxPayloadSize is the largest payload accepted on receive, in bytes
	// (64 MiB).
	MaxPayloadSize = 64 * 1024 * 1024

	// CompressionThreshold is the payload size, in bytes, above which a
	// sender may set FlagCompressed. No compressor is wired (see
	// DESIGN.md); Send never sets this flag on its own.
	CompressionThreshold = 1024
)

// Flag bits for Header.Flags.
const (
	FlagCompressed uint8 = 1 << 0
	FlagChecksum   uint8 = 1 << 1
)

// MessageType identifies the payload shape carried by a Message.
type MessageType uint8

// Control message types.
const (
	Handshake MessageType = 0x01
	HandshakeAck MessageType = 0x02
	Shutdown     MessageType = 0x03
	ShutdownAck  MessageType = 0x04
	Heartbeat    MessageType = 0x05
	HeartbeatAck MessageType = 0x06
)

// Execution message types.
const (
	Execute   MessageType = 0x10
	Result    MessageType = 0x11
	ErrorMsg  MessageType = 0x12
	Cancel    MessageType = 0x13
	CancelAck MessageType = 0x14
)

// Progress message types.
const (
	Progress MessageType = 0x20
	Log      MessageType = 0x21
)

// Data message types.
const (
	DataChunk MessageType = 0x30
	DataEnd   MessageType = 0x31
	DataAck   MessageType = 0x32
)

// Query message types.
const (
	Query         MessageType = 0x40
	QueryResponse MessageType = 0x41
)

func (t MessageType) String() string {
	switch t {
	case Handshake:
		return "Handshake"
	case HandshakeAck:
		return "HandshakeAck"
	case Shutdown:
		return "Shutdown"
	case ShutdownAck:
		return "ShutdownAck"
	case Heartbeat:
		return "Heartbeat"
	case HeartbeatAck:
		return "HeartbeatAck"
	case Execute:
		return "Execute"
	case Result:
		return "Result"
	case ErrorMsg:
		return "Error"
	case Cancel:
		return "Cancel"
	case CancelAck:
		return "CancelAck"
	case Progress:
		return "Progress"
	case Log:
		return "Log"
	case DataChunk:
		return "DataChunk"
	case DataEnd:
		return "DataEnd"
	case DataAck:
		return "DataAck"
	case Query:
		return "Query"
	case QueryResponse:
		return "QueryResponse"
	default:
		return fmt.Sprintf("MessageType(0x%02x)", uint8(t))
	}
}

// Header is the fixed 16-byte frame header preceding every Message payload.
// Field order and widths match spec.md §6.1 exactly; all multi-byte fields
// are big-endian on the wire.
type Header struct {
	Magic       uint32
	Version     uint8
	Type        MessageType
	PayloadSize uint32
	SequenceID  uint32
	Flags       uint8
	Reserved    uint8
}

// Message is a decoded frame: header plus raw payload bytes. The CRC-32
// trailer, when FlagChecksum was set, is verified on receive and not kept.
type Message struct {
	Header  Header
	Payload []byte
}

// marshalHeader writes h to a fresh 16-byte big-endian buffer.
func marshalHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = uint8(h.Type)
	binary.BigEndian.PutUint32(buf[6:10], h.PayloadSize)
	binary.BigEndian.PutUint32(buf[10:14], h.SequenceID)
	buf[14] = h.Flags
	buf[15] = h.Reserved
	return buf
}

// unmarshalHeader parses exactly HeaderSize bytes of buf into a Header. It
// does not validate magic/version; callers call (Header).Validate.
func unmarshalHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("ipc: short header (%d bytes): %w", len(buf), ErrInvalidMessage)
	}
	return Header{
		Magic:       binary.BigEndian.Uint32(buf[0:4]),
		Version:     buf[4],
		Type:        MessageType(buf[5]),
		PayloadSize: binary.BigEndian.Uint32(buf[6:10]),
		SequenceID:  binary.BigEndian.Uint32(buf[10:14]),
		Flags:       buf[14],
		Reserved:    buf[15],
	}, nil
}

// Validate checks the invariants testable property 6 requires: an accepted
// message has magic == Magic and version == ProtocolVersion, and its
// payload size does not exceed MaxPayloadSize.
func (h Header) Validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("ipc: bad magic 0x%08x: %w", h.Magic, ErrInvalidMessage)
	}
	if h.Version != ProtocolVersion {
		return fmt.Errorf("ipc: unsupported version %d: %w", h.Version, ErrInvalidMessage)
	}
	if h.PayloadSize > MaxPayloadSize {
		return fmt.Errorf("ipc: payload_size %d exceeds max %d: %w", h.PayloadSize, MaxPayloadSize, ErrInvalidMessage)
	}
	return nil
}

// encodeFrame builds the complete wire representation of a message: header
// bytes, payload bytes, and (if FlagChecksum is requested) a trailing CRC-32
// of the payload. seq and flags are folded into the header; typ selects the
// MessageType. checksum controls whether FlagChecksum is set and a CRC-32
// trailer appended.
func encodeFrame(typ MessageType, seq uint32, payload []byte, checksum bool) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("ipc: payload of %d bytes exceeds max %d: %w", len(payload), MaxPayloadSize, ErrInvalidMessage)
	}
	flags := uint8(0)
	if checksum {
		flags |= FlagChecksum
	}
	h := Header{
		Magic:       Magic,
		Version:     ProtocolVersion,
		Type:        typ,
		PayloadSize: uint32(len(payload)),
		SequenceID:  seq,
		Flags:       flags,
	}
	out := make([]byte, 0, HeaderSize+len(payload)+4)
	out = append(out, marshalHeader(h)...)
	out = append(out, payload...)
	if checksum {
		sum := crc32.ChecksumIEEE(payload)
		var sumBuf [4]byte
		binary.BigEndian.PutUint32(sumBuf[:], sum)
		out = append(out, sumBuf[:]...)
	}
	return out, nil
}

// verifyChecksum compares crc32.ChecksumIEEE(payload) against sum, returning
// ErrInvalidMessage on mismatch.
func verifyChecksum(payload []byte, sum uint32) error {
	if got := crc32.ChecksumIEEE(payload); got != sum {
		return fmt.Errorf("ipc: checksum mismatch (got %08x want %08x): %w", got, sum, ErrInvalidMessage)
	}
	return nil
}
