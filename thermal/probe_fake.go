// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"context"
	"sync"
	"time"
)

// FakeProbe is an in-memory AmbientProbe for tests and simulation runs,
// mirroring the real/fake split used for every sensor kind (e.g.
// node/sensor_bm280.go vs a fake counterpart).
type FakeProbe struct {
	mu      sync.RWMutex
	reading AmbientReading
	set     bool
}

// NewFakeProbe returns a probe with no reading until SetReading is called.
func NewFakeProbe() *FakeProbe { return &FakeProbe{} }

func (f *FakeProbe) Start(ctx context.Context) error { return nil }

// SetReading installs the next value Latest will report.
func (f *FakeProbe) SetReading(r AmbientReading) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	f.mu.Lock()
	f.reading = r
	f.set = true
	f.mu.Unlock()
}

func (f *FakeProbe) Latest() (AmbientReading, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.reading, f.set
}

func (f *FakeProbe) Close() error { return nil }
