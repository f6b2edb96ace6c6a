// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import (
	"context"
	"log"
	"net"
	"sync"

	"periph.io/x/lithiumhome/devicecore"
)

// Server accepts TCP connections from operator consoles and fans out
// DeviceState/ParameterUpdate messages for every devicecore.Core
// registered with it, generalizing node.Node's single-client ESPHome
// native-API server (node/api.go) to many registered devices and many
// concurrent console connections.
type Server struct {
	ln net.Listener

	mu       sync.Mutex
	devices  map[string]*devicecore.Core
	conns    map[*serverConn]struct{}
	unregFns []func()
}

// New binds a TCP listener on addr (e.g. ":7053", echoing periphhome's
// ESPHome default port 6053 shifted by 1000 to avoid colliding with a
// periph-home node on the same host) and returns a Server ready for
// RegisterDevice and Serve.
func New(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		ln:      ln,
		devices: make(map[string]*devicecore.Core),
		conns:   make(map[*serverConn]struct{}),
	}, nil
}

// Addr returns the listener's bound address, useful when addr was ":0".
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// RegisterDevice adds core to the set of devices this server reports on
// and subscribes to its state/parameter changes for the lifetime of the
// server.
func (s *Server) RegisterDevice(core *devicecore.Core) {
	s.mu.Lock()
	s.devices[core.Name()] = core
	s.mu.Unlock()

	unregState := core.OnStateChange(func(old, new devicecore.State) {
		s.broadcast(MsgDeviceState, DeviceState{
			Name:         core.Name(),
			State:        int64(new),
			Capabilities: uint64(core.Capabilities()),
		}.encode())
	})
	unregParam := core.OnParameterChange(func(name string, value float64) {
		s.broadcast(MsgParameterUpdate, ParameterUpdate{
			DeviceName: core.Name(),
			Name:       name,
			Value:      value,
		}.encode())
	})

	s.mu.Lock()
	s.unregFns = append(s.unregFns, unregState, unregParam)
	s.mu.Unlock()
}

// Serve accepts connections until ctx is cancelled or the listener fails.
// It always returns a non-nil error (nil ctx errors are converted to
// ctx.Err()), following cmd/periphhome/main.go's convention
// of a context-driven accept loop closed out by cancellation.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		sc := &serverConn{c: c, s: s}
		s.mu.Lock()
		s.conns[sc] = struct{}{}
		s.mu.Unlock()
		go sc.run(ctx)
	}
}

// Close closes the listener and unregisters every device's callbacks.
func (s *Server) Close() error {
	s.mu.Lock()
	fns := s.unregFns
	s.unregFns = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return s.ln.Close()
}

func (s *Server) broadcast(typ MessageType, payload []byte) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		if err := c.send(typ, payload); err != nil {
			log.Printf("broadcast: send to %s: %v", c.c.RemoteAddr(), err)
		}
	}
}

func (s *Server) deviceNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.devices))
	for name := range s.devices {
		names = append(names, name)
	}
	return names
}

func (s *Server) removeConn(c *serverConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
