// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ipc

import (
	"bufio"
	"os"
	"time"
)

// BidirectionalChannel composes two PipeChannels, one per direction, exactly
// as spec.md §4.9 describes: parent->child and child->parent. A parent
// process builds one with NewBidirectionalChannel, hands the child-facing
// ends to the worker via exec.Cmd.ExtraFiles, then calls SetupParent once
// the child has started. A worker process rebuilds the same logical
// channel from its two inherited file descriptors with NewWorkerChannel.
type BidirectionalChannel struct {
	parentToChild *PipeChannel
	childToParent *PipeChannel
}

// NewBidirectionalChannel allocates both underlying pipes. Call SetupParent
// after the child process has been started and has inherited the
// child-facing descriptors.
func NewBidirectionalChannel() (*BidirectionalChannel, error) {
	p2c, err := NewPipeChannel()
	if err != nil {
		return nil, err
	}
	c2p, err := NewPipeChannel()
	if err != nil {
		p2c.Close()
		return nil, err
	}
	return &BidirectionalChannel{parentToChild: p2c, childToParent: c2p}, nil
}

// NewWorkerChannel builds the worker-side view of a BidirectionalChannel
// from the two file descriptors the parent handed down (conventionally fd 3
// for the parent->child read end, fd 4 for the child->parent write end; see
// SPEC_FULL.md §6.2).
func NewWorkerChannel(readEnd, writeEnd *os.File) *BidirectionalChannel {
	return &BidirectionalChannel{
		parentToChild: newReadOnlyPipeChannel(readEnd),
		childToParent: newWriteOnlyPipeChannel(writeEnd),
	}
}

// ChildFiles returns the two *os.File the parent should place in
// exec.Cmd.ExtraFiles, in (read, write) order as the child sees them.
func (b *BidirectionalChannel) ChildFiles() (readEnd, writeEnd *os.File) {
	return b.parentToChild.r, b.childToParent.w
}

// SetupParent closes the descriptors only the child needs: the
// parent->child read end and the child->parent write end. Call this after
// the child process has started and inherited its copies, per spec.md
// §4.9's "do this after fork/spawn and descriptor inheritance".
func (b *BidirectionalChannel) SetupParent() error {
	err1 := b.parentToChild.CloseReadEnd()
	err2 := b.childToParent.CloseWriteEnd()
	if err1 != nil {
		return err1
	}
	return err2
}

// SetupChild closes the descriptors only the parent needs. Used by
// in-process mock workers in tests; a real worker process built with
// NewWorkerChannel never holds the parent-only ends in the first place.
func (b *BidirectionalChannel) SetupChild() error {
	err1 := b.parentToChild.CloseWriteEnd()
	err2 := b.childToParent.CloseReadEnd()
	if err1 != nil {
		return err1
	}
	return err2
}

// SendToChild writes a message on the parent->child direction. Call from
// the parent side.
func (b *BidirectionalChannel) SendToChild(typ MessageType, payload []byte, checksum bool) error {
	return b.parentToChild.Send(typ, payload, checksum)
}

// ReceiveFromChild reads the next message on the child->parent direction.
// Call from the parent side.
func (b *BidirectionalChannel) ReceiveFromChild(timeout time.Duration) (*Message, error) {
	return b.childToParent.Receive(timeout)
}

// SendToParent writes a message on the child->parent direction. Call from
// the worker side.
func (b *BidirectionalChannel) SendToParent(typ MessageType, payload []byte, checksum bool) error {
	return b.childToParent.Send(typ, payload, checksum)
}

// ReceiveFromParent reads the next message on the parent->child direction.
// Call from the worker side.
func (b *BidirectionalChannel) ReceiveFromParent(timeout time.Duration) (*Message, error) {
	return b.parentToChild.Receive(timeout)
}

// HasDataFromChild is the non-blocking poll counterpart to ReceiveFromChild.
func (b *BidirectionalChannel) HasDataFromChild() bool { return b.childToParent.HasData() }

// Close closes both underlying pipe channels.
func (b *BidirectionalChannel) Close() error {
	err1 := b.parentToChild.Close()
	err2 := b.childToParent.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func newReadOnlyPipeChannel(f *os.File) *PipeChannel {
	return &PipeChannel{r: f, br: bufio.NewReader(f)}
}

func newWriteOnlyPipeChannel(f *os.File) *PipeChannel {
	return &PipeChannel{w: f}
}
