// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package devicecore

import (
	"context"
	"log"
	"sync"
)

// Event is the tagged union delivered to a ComponentBase's own external
// subscribers (e.g. the broadcast server relaying live state to a
// console). It generalizes node/node.go's componentBase.onNewState, which
// fanned out a single concrete *proto.Message type, to the two event
// shapes this domain needs.
type Event interface{ isEvent() }

// StateChangedEvent reports a Core-wide state transition.
type StateChangedEvent struct {
	Old, New State
}

func (StateChangedEvent) isEvent() {}

// ParameterChangedEvent reports a single parameter write.
type ParameterChangedEvent struct {
	Name    string
	Value   float64
	Version uint64
}

func (ParameterChangedEvent) isEvent() {}

// Component is a pluggable unit of device behavior attached to a Core:
// exposure, thermal, accessory, or a future capability. Components are not
// copyable (embed ComponentBase by pointer receiver) and their lifetime is
// bounded by the Core that owns them, per spec.md §4.2.
type Component interface {
	Name() string
	Init(ctx context.Context, core *Core) error
	Destroy() error
	OnStateChanged(old, new State)
	OnParameterChanged(name string, value float64)
}

// ComponentBase gives Component implementations the default no-op
// OnStateChanged/OnParameterChanged methods plus a small per-component
// subscriber registry, generalizing componentBase.register/unregister/
// onNewState from node/node.go from proto.Message payloads to the Event
// union above.
type ComponentBase struct {
	name string

	mu        sync.Mutex
	nextSubID uint64
	subs      map[uint64]chan Event
}

// NewComponentBase constructs a ComponentBase with the given component
// name. Embed it by value in a concrete Component's struct.
func NewComponentBase(name string) ComponentBase {
	return ComponentBase{name: name, subs: make(map[uint64]chan Event)}
}

func (b *ComponentBase) Name() string { return b.name }

// OnStateChanged is the default no-op; concrete components override it
// when they care about Core-wide transitions (e.g. Accessory Coordinator
// logging a warning when Exposing begins while a mover is in flight).
func (b *ComponentBase) OnStateChanged(State, State) {}

// OnParameterChanged is the default no-op.
func (b *ComponentBase) OnParameterChanged(string, float64) {}

// Subscribe registers a new external listener for this component's events
// and returns its id (for Unsubscribe) and a receive-only channel. The
// channel has a small buffer; a slow subscriber has events dropped rather
// than blocking the publisher, matching spec.md §4.1's "a failing or slow
// observer must not break others".
func (b *ComponentBase) Subscribe() (id uint64, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	id = b.nextSubID
	c := make(chan Event, 16)
	b.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscriber registered with Subscribe. Safe to call
// more than once for the same id.
func (b *ComponentBase) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.subs[id]; ok {
		close(c)
		delete(b.subs, id)
	}
}

// publish snapshots the subscriber list under the lock, then sends
// unlocked, so a subscriber callback can never re-enter and deadlock this
// component (spec.md §4.1's notify-outside-the-lock discipline).
func (b *ComponentBase) publish(ev Event) {
	b.mu.Lock()
	chans := make([]chan Event, 0, len(b.subs))
	for _, c := range b.subs {
		chans = append(chans, c)
	}
	b.mu.Unlock()

	for _, c := range chans {
		select {
		case c <- ev:
		default:
			log.Printf("devicecore: dropping event for slow subscriber of %s", b.name)
		}
	}
}

// PublishState lets a concrete component emit a StateChangedEvent to its
// own subscribers, independent of the Core-level callback list.
func (b *ComponentBase) PublishState(old, new State) {
	b.publish(StateChangedEvent{Old: old, New: new})
}

// PublishParameter lets a concrete component emit a ParameterChangedEvent.
func (b *ComponentBase) PublishParameter(name string, value float64, version uint64) {
	b.publish(ParameterChangedEvent{Name: name, Value: value, Version: version})
}
