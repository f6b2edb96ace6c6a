// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package devicecore

import "testing"

func TestComponentBaseSubscribeUnsubscribe(t *testing.T) {
	b := NewComponentBase("thermal")
	id, ch := b.Subscribe()

	b.PublishState(Idle, Connecting)
	ev := <-ch
	sc, ok := ev.(StateChangedEvent)
	if !ok || sc.New != Connecting {
		t.Fatalf("got %#v, want StateChangedEvent{New: Connecting}", ev)
	}

	b.Unsubscribe(id)
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}

func TestComponentBaseDefaultsAreNoOps(t *testing.T) {
	b := NewComponentBase("x")
	// Must not panic.
	b.OnStateChanged(Idle, Connecting)
	b.OnParameterChanged("p", 1)
}

func TestComponentBasePublishParameter(t *testing.T) {
	b := NewComponentBase("exposure")
	_, ch := b.Subscribe()
	b.PublishParameter("CCD_GAIN", 100, 1)
	ev := <-ch
	pc, ok := ev.(ParameterChangedEvent)
	if !ok || pc.Name != "CCD_GAIN" || pc.Value != 100 {
		t.Fatalf("got %#v", ev)
	}
}
