// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package devicecore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/lithiumhome/protocol"
)

// ConnectRetryBackoff is the fixed delay between connect attempts, per
// spec.md §4.1.
const ConnectRetryBackoff = time.Second

// Core coordinates one device's lifecycle, capability registry, state
// machine, parameter store, and the Components registered against it. It
// generalizes node.Node, whose entities []component + lookup
// map[uint32]component drove a fixed ESPHome entity tree (node/node.go),
// into an arbitrary capability-typed component set.
type Core struct {
	name    string
	adapter protocol.Adapter

	lifecycleMu  sync.Mutex
	initialized  bool
	vendorID     string
	capabilities Capabilities

	stateMu sync.Mutex
	state   State

	componentsMu sync.Mutex
	components   []Component
	byName       map[string]Component

	params *paramStore

	stateCbMu      sync.Mutex
	stateCallbacks map[uint64]func(old, new State)
	nextStateCbID  uint64

	paramCbMu      sync.Mutex
	paramCallbacks map[uint64]func(name string, value float64)
	nextParamCbID  uint64
}

// New constructs a Core for a named device driven by adapter. The Core is
// not usable until Initialize succeeds.
func New(name string, adapter protocol.Adapter) *Core {
	return &Core{
		name:           name,
		adapter:        adapter,
		byName:         make(map[string]Component),
		params:         newParamStore(),
		stateCallbacks: make(map[uint64]func(State, State)),
		paramCallbacks: make(map[uint64]func(string, float64)),
	}
}

func (c *Core) Name() string                   { return c.name }
func (c *Core) VendorID() string               { return c.vendorID }
func (c *Core) Capabilities() Capabilities     { return c.capabilities }
func (c *Core) State() State                   { c.stateMu.Lock(); defer c.stateMu.Unlock(); return c.state }
func (c *Core) IsConnected() bool              { return c.adapter.IsConnected() }

// IsInitialized reports whether Initialize has succeeded and Destroy has
// not yet been called.
func (c *Core) IsInitialized() bool {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	return c.initialized
}

// RegisterComponent adds c to the registration-ordered component list.
// Thread-safe; may be called before or after Initialize (components
// registered afterward are not retroactively Init'd — callers should
// register before Initialize in normal use).
func (c *Core) RegisterComponent(comp Component) error {
	c.componentsMu.Lock()
	defer c.componentsMu.Unlock()
	if _, exists := c.byName[comp.Name()]; exists {
		return fmt.Errorf("devicecore: component %q already registered: %w", comp.Name(), ErrInvalidArgument)
	}
	c.components = append(c.components, comp)
	c.byName[comp.Name()] = comp
	return nil
}

// UnregisterComponent removes a component by name. If UpdateState or
// SetParameter is concurrently iterating a snapshot taken before this
// call, that in-flight fan-out still delivers to the removed component
// (the snapshot was already taken); any fan-out starting afterward skips
// it, per spec.md §4.1's "unregistering during iteration is defined to
// skip the removed entry".
func (c *Core) UnregisterComponent(name string) {
	c.componentsMu.Lock()
	defer c.componentsMu.Unlock()
	if _, ok := c.byName[name]; !ok {
		return
	}
	delete(c.byName, name)
	for i, comp := range c.components {
		if comp.Name() == name {
			c.components = append(c.components[:i:i], c.components[i+1:]...)
			break
		}
	}
}

// Component returns a registered component by name.
func (c *Core) Component(name string) (Component, bool) {
	c.componentsMu.Lock()
	defer c.componentsMu.Unlock()
	comp, ok := c.byName[name]
	return comp, ok
}

func (c *Core) snapshotComponents() []Component {
	c.componentsMu.Lock()
	defer c.componentsMu.Unlock()
	out := make([]Component, len(c.components))
	copy(out, c.components)
	return out
}

// Initialize is idempotent: a second call while already initialized
// returns nil (spec.md's "AlreadyInitialized (returned success)").
// Otherwise it initializes the protocol adapter, then each registered
// component in registration order; if any component fails, already-
// initialized components are rolled back in reverse order and the adapter
// is closed, mirroring node.New's partial-init rollback in node/node.go
// ("_ = n.Close()" on any load failure).
func (c *Core) Initialize(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.adapter.Init(ctx); err != nil {
		return fmt.Errorf("devicecore: adapter init: %w: %w", err, ErrAdapterInitFailed)
	}

	comps := c.snapshotComponents()
	for i, comp := range comps {
		if err := comp.Init(ctx, c); err != nil {
			for j := i - 1; j >= 0; j-- {
				if derr := comps[j].Destroy(); derr != nil {
					log.Printf("devicecore: rollback destroy %s: %v", comps[j].Name(), derr)
				}
			}
			_ = c.adapter.Close()
			return fmt.Errorf("devicecore: init component %q: %w: %w", comp.Name(), err, ErrComponentInitFailed)
		}
	}
	c.initialized = true
	return nil
}

// Destroy is the inverse of Initialize: disconnects if connected, destroys
// components in reverse registration order (a component's Destroy failure
// is logged but does not abort the sequence), then releases the adapter.
func (c *Core) Destroy(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if !c.initialized {
		return nil
	}
	if c.adapter.IsConnected() {
		if err := c.adapter.Disconnect(ctx); err != nil {
			log.Printf("devicecore: disconnect during destroy: %v", err)
		}
	}
	comps := c.snapshotComponents()
	for i := len(comps) - 1; i >= 0; i-- {
		if err := comps[i].Destroy(); err != nil {
			log.Printf("devicecore: destroy component %s: %v", comps[i].Name(), err)
		}
	}
	if err := c.adapter.Close(); err != nil {
		log.Printf("devicecore: close adapter: %v", err)
	}
	c.initialized = false
	return nil
}

// Connect locates and opens the device, retrying with a 1s backoff up to
// maxRetry times. Returns nil (success) immediately if already connected.
func (c *Core) Connect(ctx context.Context, deviceName string, timeout time.Duration, maxRetry int) error {
	c.lifecycleMu.Lock()
	initialized := c.initialized
	c.lifecycleMu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}
	if c.adapter.IsConnected() {
		return nil
	}

	c.UpdateState(Connecting)
	var lastErr error
	for attempt := 0; attempt <= maxRetry; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.adapter.Connect(attemptCtx, deviceName)
		cancel()
		if err == nil {
			c.vendorID = deviceName
			c.capabilities = Capabilities(c.adapter.Capabilities())
			c.UpdateState(Idle)
			return nil
		}
		lastErr = err
		if attempt < maxRetry {
			select {
			case <-time.After(ConnectRetryBackoff):
			case <-ctx.Done():
				c.UpdateState(Error)
				return fmt.Errorf("devicecore: connect %s: %w: %w", deviceName, ctx.Err(), ErrOpenFailed)
			}
		}
	}
	c.UpdateState(Error)
	return fmt.Errorf("devicecore: connect %s after %d attempts: %w: %w", deviceName, maxRetry+1, lastErr, ErrOpenFailed)
}

// Disconnect closes the adapter's connection to the device.
func (c *Core) Disconnect(ctx context.Context) error {
	if !c.adapter.IsConnected() {
		return nil
	}
	if err := c.adapter.Disconnect(ctx); err != nil {
		return fmt.Errorf("devicecore: disconnect: %w", err)
	}
	c.UpdateState(Idle)
	return nil
}

// Scan returns a snapshot list of device names visible to the adapter.
func (c *Core) Scan(ctx context.Context) ([]string, error) {
	return c.adapter.Scan(ctx)
}

// UpdateState performs an atomic read-modify-compare: if the state
// actually changes, every registered component is notified in registration
// order, then every Core-level state callback fires, all outside any
// mutex. Panics from a component or callback are recovered, logged, and do
// not stop the fan-out (spec.md §4.1).
func (c *Core) UpdateState(new State) {
	c.stateMu.Lock()
	old := c.state
	if old == new {
		c.stateMu.Unlock()
		return
	}
	c.state = new
	c.stateMu.Unlock()

	for _, comp := range c.snapshotComponents() {
		comp := comp
		safeCall(func() { comp.OnStateChanged(old, new) })
	}

	c.stateCbMu.Lock()
	cbs := make([]func(State, State), 0, len(c.stateCallbacks))
	for _, cb := range c.stateCallbacks {
		cbs = append(cbs, cb)
	}
	c.stateCbMu.Unlock()
	for _, cb := range cbs {
		cb := cb
		safeCall(func() { cb(old, new) })
	}
}

// OnStateChange registers a Core-level state-change callback and returns a
// function to remove it.
func (c *Core) OnStateChange(cb func(old, new State)) (unregister func()) {
	c.stateCbMu.Lock()
	c.nextStateCbID++
	id := c.nextStateCbID
	c.stateCallbacks[id] = cb
	c.stateCbMu.Unlock()
	return func() {
		c.stateCbMu.Lock()
		delete(c.stateCallbacks, id)
		c.stateCbMu.Unlock()
	}
}

// SetParameter writes value under name, then notifies every registered
// component and every Core-level parameter callback, in that order,
// outside any mutex.
func (c *Core) SetParameter(name string, value float64) {
	version := c.params.set(name, value)

	for _, comp := range c.snapshotComponents() {
		comp := comp
		safeCall(func() { comp.OnParameterChanged(name, value) })
	}

	c.paramCbMu.Lock()
	cbs := make([]func(string, float64), 0, len(c.paramCallbacks))
	for _, cb := range c.paramCallbacks {
		cbs = append(cbs, cb)
	}
	c.paramCbMu.Unlock()
	for _, cb := range cbs {
		cb := cb
		safeCall(func() { cb(name, value) })
	}
	_ = version
}

// GetParameter returns the current value of name, or ok=false if it has
// never been set.
func (c *Core) GetParameter(name string) (value float64, ok bool) {
	return c.params.get(name)
}

// HasParameter reports whether name has ever been set.
func (c *Core) HasParameter(name string) bool {
	return c.params.has(name)
}

// OnParameterChange registers a Core-level parameter callback and returns
// a function to remove it.
func (c *Core) OnParameterChange(cb func(name string, value float64)) (unregister func()) {
	c.paramCbMu.Lock()
	c.nextParamCbID++
	id := c.nextParamCbID
	c.paramCallbacks[id] = cb
	c.paramCbMu.Unlock()
	return func() {
		c.paramCbMu.Lock()
		delete(c.paramCallbacks, id)
		c.paramCbMu.Unlock()
	}
}

// Adapter exposes the underlying protocol.Adapter for Components that need
// to issue hardware commands directly (exposure, thermal, accessory).
func (c *Core) Adapter() protocol.Adapter { return c.adapter }

// safeCall invokes f, recovering and logging any panic so a failing
// observer never breaks the rest of a fan-out — the Go realization of the
// teacher's implicit "a slow/failing subscriber must not break others"
// posture in componentBase.onNewState.
func safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("devicecore: recovered panic in observer: %v", r)
		}
	}()
	f()
}
