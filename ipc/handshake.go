// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ipc

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultHandshakeTimeout is the bound spec.md §4.9/§5 gives the handshake:
// if the child's HandshakeAck has not arrived within this long, the parent
// fails with ErrHandshakeFailed and the caller is expected to kill the
// child.
const DefaultHandshakeTimeout = 5 * time.Second

// HandshakePayload is sent by the parent immediately after spawning the
// worker.
type HandshakePayload struct {
	ProtocolVersion int      `json:"protocol_version"`
	Capabilities    []string `json:"capabilities"`
}

// HandshakeAckPayload is the worker's reply.
type HandshakeAckPayload struct {
	ProtocolVersion int      `json:"protocol_version"`
	WorkerVersion   string   `json:"worker_version"`
	Capabilities    []string `json:"capabilities"`
	Pid             int      `json:"pid"`
}

// PerformHandshake runs the parent side of the handshake: send Handshake,
// wait up to timeout (DefaultHandshakeTimeout if <= 0) for HandshakeAck, and
// verify the protocol versions match. Callers that receive ErrHandshakeFailed
// are expected to kill the child process.
func PerformHandshake(b *BidirectionalChannel, capabilities []string, timeout time.Duration) (*HandshakeAckPayload, error) {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	req := HandshakePayload{ProtocolVersion: int(ProtocolVersion), Capabilities: capabilities}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ipc: marshal handshake: %w", ErrSerializationFailed)
	}
	if err := b.SendToChild(Handshake, payload, false); err != nil {
		return nil, fmt.Errorf("ipc: send handshake: %w", err)
	}
	msg, err := b.ReceiveFromChild(timeout)
	if err != nil {
		return nil, fmt.Errorf("ipc: await handshake ack: %w: %w", err, ErrHandshakeFailed)
	}
	if msg.Header.Type != HandshakeAck {
		return nil, fmt.Errorf("ipc: expected HandshakeAck, got %s: %w", msg.Header.Type, ErrHandshakeFailed)
	}
	var ack HandshakeAckPayload
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		return nil, fmt.Errorf("ipc: decode handshake ack: %w: %w", err, ErrHandshakeFailed)
	}
	if ack.ProtocolVersion != int(ProtocolVersion) {
		return nil, fmt.Errorf("ipc: worker protocol version %d != %d: %w", ack.ProtocolVersion, ProtocolVersion, ErrHandshakeFailed)
	}
	return &ack, nil
}

// RespondHandshake runs the worker side: wait for Handshake, reply with
// HandshakeAck carrying this process's pid and workerVersion.
func RespondHandshake(b *BidirectionalChannel, workerVersion string, capabilities []string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	msg, err := b.ReceiveFromParent(timeout)
	if err != nil {
		return fmt.Errorf("ipc: await handshake: %w: %w", err, ErrHandshakeFailed)
	}
	if msg.Header.Type != Handshake {
		return fmt.Errorf("ipc: expected Handshake, got %s: %w", msg.Header.Type, ErrHandshakeFailed)
	}
	var req HandshakePayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return fmt.Errorf("ipc: decode handshake: %w: %w", err, ErrHandshakeFailed)
	}
	ack := HandshakeAckPayload{
		ProtocolVersion: int(ProtocolVersion),
		WorkerVersion:   workerVersion,
		Capabilities:    capabilities,
		Pid:             os.Getpid(),
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("ipc: marshal handshake ack: %w", ErrSerializationFailed)
	}
	return b.SendToParent(HandshakeAck, payload, false)
}
