// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultReceiveTimeout is used by Receive when the caller passes 0.
const DefaultReceiveTimeout = 5 * time.Second

// PipeChannel is a unidirectional framed message pipe, grounded on the
// read/write framing pair in node/api.go (writeMsg/readMsg) but carrying a
// fixed 16-byte header instead of a varint length prefix, and backed by an
// os.Pipe() pair instead of a TCP connection.
//
// A freshly created PipeChannel owns both ends of the underlying pipe.
// BidirectionalChannel's SetupParent/SetupChild close whichever
// end the local process does not use, per spec.md §3's ownership rule that
// each side closes the descriptors it does not use.
type PipeChannel struct {
	r  *os.File
	w  *os.File
	br *bufio.Reader

	seq    uint32
	closed int32
	mu     sync.Mutex
}

// NewPipeChannel allocates an OS pipe and wraps both ends. Returns
// ErrPipeError on allocation failure.
func NewPipeChannel() (*PipeChannel, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("ipc: create pipe: %w: %w", err, ErrPipeError)
	}
	return &PipeChannel{r: r, w: w, br: bufio.NewReader(r)}, nil
}

// ReadFile returns the read end, for handing to exec.Cmd.ExtraFiles.
func (p *PipeChannel) ReadFile() *os.File { return p.r }

// WriteFile returns the write end, for handing to exec.Cmd.ExtraFiles.
func (p *PipeChannel) WriteFile() *os.File { return p.w }

// CloseReadEnd closes the read end only, e.g. from the side that only
// writes on this channel.
func (p *PipeChannel) CloseReadEnd() error {
	if p.r == nil {
		return nil
	}
	err := p.r.Close()
	p.r = nil
	p.br = nil
	return err
}

// CloseWriteEnd closes the write end only, e.g. from the side that only
// reads on this channel.
func (p *PipeChannel) CloseWriteEnd() error {
	if p.w == nil {
		return nil
	}
	err := p.w.Close()
	p.w = nil
	return err
}

// NextSequenceID atomically returns the next strictly-increasing sequence
// number for this channel direction, starting at 1.
func (p *PipeChannel) NextSequenceID() uint32 {
	return atomic.AddUint32(&p.seq, 1)
}

// Send serializes and writes a message, retrying partial writes until
// complete or until a write error occurs. checksum requests a trailing
// CRC-32 of the payload with Header.Flags bit 1 set.
func (p *PipeChannel) Send(typ MessageType, payload []byte, checksum bool) error {
	if atomic.LoadInt32(&p.closed) != 0 {
		return ErrChannelClosed
	}
	if p.w == nil {
		return fmt.Errorf("ipc: send on a receive-only channel: %w", ErrPipeError)
	}
	frame, err := encodeFrame(typ, p.NextSequenceID(), payload, checksum)
	if err != nil {
		return fmt.Errorf("ipc: encode frame: %w", errors.Join(err, ErrSerializationFailed))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := writeFull(p.w, frame); err != nil {
		if isClosedErr(err) {
			return ErrChannelClosed
		}
		return fmt.Errorf("ipc: write: %w: %w", err, ErrPipeError)
	}
	return nil
}

// Receive blocks up to timeout (DefaultReceiveTimeout if timeout <= 0) for
// one complete frame. Returns ErrTimeout if nothing arrives in time,
// ErrChannelClosed if the peer has closed its end, and
// ErrSerializationFailed for a frame with FlagCompressed set (its bytes are
// consumed so the stream stays framed).
func (p *PipeChannel) Receive(timeout time.Duration) (*Message, error) {
	if atomic.LoadInt32(&p.closed) != 0 {
		return nil, ErrChannelClosed
	}
	if p.r == nil {
		return nil, fmt.Errorf("ipc: receive on a send-only channel: %w", ErrPipeError)
	}
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}
	if err := p.r.SetReadDeadline(time.Now().Add(timeout)); err == nil {
		defer p.r.SetReadDeadline(time.Time{})
	}

	hdrBuf, err := readExact(p.br, HeaderSize)
	if err != nil {
		return nil, p.classifyReadErr(err)
	}
	h, err := unmarshalHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	payload, err := readExact(p.br, int(h.PayloadSize))
	if err != nil {
		return nil, p.classifyReadErr(err)
	}
	if h.Flags&FlagChecksum != 0 {
		sumBuf, err := readExact(p.br, 4)
		if err != nil {
			return nil, p.classifyReadErr(err)
		}
		sum := uint32(sumBuf[0])<<24 | uint32(sumBuf[1])<<16 | uint32(sumBuf[2])<<8 | uint32(sumBuf[3])
		if err := verifyChecksum(payload, sum); err != nil {
			return nil, err
		}
	}
	if h.Flags&FlagCompressed != 0 {
		return nil, fmt.Errorf("ipc: compressed payload received but no decompressor is available: %w", ErrSerializationFailed)
	}
	return &Message{Header: h, Payload: payload}, nil
}

func (p *PipeChannel) classifyReadErr(err error) error {
	if isTimeoutErr(err) {
		return ErrTimeout
	}
	if isClosedErr(err) {
		return ErrChannelClosed
	}
	return fmt.Errorf("ipc: read: %w: %w", err, ErrPipeError)
}

// HasData reports whether at least one byte is immediately available to
// read, without consuming it. Used for non-blocking polling.
func (p *PipeChannel) HasData() bool {
	if p.r == nil || atomic.LoadInt32(&p.closed) != 0 {
		return false
	}
	if err := p.r.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		defer p.r.SetReadDeadline(time.Time{})
		return false
	}
	defer p.r.SetReadDeadline(time.Time{})
	_, err := p.br.Peek(1)
	return err == nil
}

// Close closes both ends still owned by this PipeChannel. Subsequent
// operations report ErrChannelClosed.
func (p *PipeChannel) Close() error {
	atomic.StoreInt32(&p.closed, 1)
	var firstErr error
	if p.r != nil {
		if err := p.r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.r = nil
		p.br = nil
	}
	if p.w != nil {
		if err := p.w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.w = nil
	}
	return firstErr
}

func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func readExact(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// isTimeoutErr mirrors the spirit of node/api.go's isErrEOF: a small,
// centrally-located helper that hides a
// platform-specific error check behind a boolean so callers never need to
// import "net" or "syscall" themselves.
func isTimeoutErr(err error) bool {
	var nerr interface{ Timeout() bool }
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return false
}

// isClosedErr reports whether err indicates the peer end of the pipe has
// gone away: EOF, os.ErrClosed, or io.ErrClosedPipe.
func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
