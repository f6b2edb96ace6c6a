// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/grandcat/zeroconf"

	"periph.io/x/lithiumhome/accessory"
	"periph.io/x/lithiumhome/devicecore"
	"periph.io/x/lithiumhome/devicecore/broadcast"
	"periph.io/x/lithiumhome/exposure"
	"periph.io/x/lithiumhome/internal/config"
	"periph.io/x/lithiumhome/protocol"
	"periph.io/x/lithiumhome/protocol/indi"
	"periph.io/x/lithiumhome/protocol/sim"
	"periph.io/x/lithiumhome/telescope"
	"periph.io/x/lithiumhome/thermal"
)

const (
	connectTimeout = 30 * time.Second
	connectRetries = 3
)

// version is reported over the broadcast protocol's handshake-free
// zeroconf TXT record, the same role node.version plays in periphhome.
const version = "0.1"

// device bundles a devicecore.Core with whatever else New tore down on
// Close: the accessory helpers built on top of it (FilterWheel, Focuser)
// have no Close of their own, so Session only has to remember the Core.
type device struct {
	name string
	core *devicecore.Core
}

// Session wires every configured device into a devicecore.Core, exposes
// them over a broadcast.Server, and advertises the rig on the LAN, the
// role node.Node plays for a periphhome install.
type Session struct {
	cfg *config.Root

	devices []device
	server  *broadcast.Server
	zc      *zeroconf.Server

	mount       *telescope.Mount
	filterWheel *accessory.FilterWheel
	focuser     *accessory.Focuser
}

// newAdapter builds a protocol.Adapter for platform/address. "sim" builds
// a software-only simulator (useful for -config files exercised in CI);
// anything else is treated as an INDI-like address to dial.
func newAdapter(platform, address string, caps uint16) (protocol.Adapter, error) {
	switch platform {
	case "", "sim":
		return sim.New(sim.Config{Capabilities: caps}), nil
	case "indi":
		if address == "" {
			return nil, fmt.Errorf("platform %q requires an address", platform)
		}
		return indi.New(address, caps), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
}

// NewSession loads cfg's devices, connects each one and starts the
// broadcast server and zeroconf advertisement. On any failure, already
// initialized devices are closed before the error is returned, mirroring
// node.New's partial-failure cleanup.
func NewSession(ctx context.Context, cfg *config.Root) (_ *Session, err error) {
	s := &Session{cfg: cfg}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if cfg.Telescope.Name != "" {
		if err = s.loadTelescope(ctx, &cfg.Telescope); err != nil {
			return nil, fmt.Errorf("telescope: %w", err)
		}
	}
	for i := range cfg.Cameras {
		if err = s.loadCamera(ctx, &cfg.Cameras[i]); err != nil {
			return nil, fmt.Errorf("camera[%d]: %w", i, err)
		}
	}
	for i := range cfg.FilterWheels {
		if err = s.loadFilterWheel(ctx, &cfg.FilterWheels[i]); err != nil {
			return nil, fmt.Errorf("filter_wheel[%d]: %w", i, err)
		}
	}
	for i := range cfg.Focusers {
		if err = s.loadFocuser(ctx, &cfg.Focusers[i]); err != nil {
			return nil, fmt.Errorf("focuser[%d]: %w", i, err)
		}
	}

	addr := ":7053"
	server, err := broadcast.New(addr)
	if err != nil {
		return nil, fmt.Errorf("broadcast server: %w", err)
	}
	s.server = server
	for _, d := range s.devices {
		server.RegisterDevice(d.core)
	}
	go func() {
		if err := server.Serve(ctx); err != nil {
			log.Printf("broadcast server stopped: %s", err)
		}
	}()

	name := cfg.LithiumHome.Name
	if name == "" {
		if h, err2 := os.Hostname(); err2 == nil {
			name = h
		} else {
			name = "lithiumhome"
		}
	}
	text := []string{"version=" + version}
	zc, err := server.Advertise(name, text)
	if err != nil {
		return nil, fmt.Errorf("advertise: %w", err)
	}
	s.zc = zc
	log.Printf("session ready: %d device(s), broadcasting on %s", len(s.devices), server.Addr())
	return s, nil
}

func (s *Session) connect(ctx context.Context, core *devicecore.Core, deviceName string) error {
	if err := core.Initialize(ctx); err != nil {
		return err
	}
	if err := core.Connect(ctx, deviceName, connectTimeout, connectRetries); err != nil {
		return err
	}
	s.devices = append(s.devices, device{name: deviceName, core: core})
	return nil
}

func (s *Session) loadTelescope(ctx context.Context, t *config.Telescope) error {
	adapter, err := newAdapter(t.Platform, t.Address, 0)
	if err != nil {
		return err
	}
	core := devicecore.New(t.Name, adapter)
	mount := telescope.New(t.Name)
	if err = core.RegisterComponent(mount); err != nil {
		return err
	}
	if err = s.connect(ctx, core, t.Name); err != nil {
		return err
	}
	s.mount = mount
	return nil
}

func (s *Session) loadCamera(ctx context.Context, c *config.Camera) error {
	adapter, err := newAdapter(c.Platform, c.Address, 0)
	if err != nil {
		return err
	}
	core := devicecore.New(c.Name, adapter)
	pipeline := exposure.New(c.Name)
	if err = core.RegisterComponent(pipeline); err != nil {
		return err
	}
	if c.Cooling.Enabled {
		controller := thermal.New(c.Name + " cooler")
		if err = core.RegisterComponent(controller); err != nil {
			return err
		}
	}
	if err = s.connect(ctx, core, c.Name); err != nil {
		return err
	}
	if c.Cooling.Enabled {
		if comp, ok := core.Component(c.Name + " cooler"); ok {
			if controller, ok2 := comp.(*thermal.Controller); ok2 {
				if err = controller.StartCooling(ctx, c.Cooling.TargetC); err != nil {
					return fmt.Errorf("start cooling: %w", err)
				}
			}
		}
	}
	return nil
}

func (s *Session) loadFilterWheel(ctx context.Context, f *config.FilterWheel) error {
	adapter, err := newAdapter(f.Platform, f.Address, uint16(devicecore.HasFilterWheel))
	if err != nil {
		return err
	}
	core := devicecore.New(f.Name, adapter)
	if err = s.connect(ctx, core, f.Name); err != nil {
		return err
	}
	s.filterWheel = accessory.NewFilterWheel(core, f.Filters)
	return nil
}

func (s *Session) loadFocuser(ctx context.Context, f *config.Focuser) error {
	adapter, err := newAdapter(f.Platform, f.Address, uint16(devicecore.HasAutoFocuser))
	if err != nil {
		return err
	}
	core := devicecore.New(f.Name, adapter)
	if err = s.connect(ctx, core, f.Name); err != nil {
		return err
	}
	s.focuser = accessory.NewFocuser(core, f.MaxStep)
	return nil
}

// Close tears down the session in the reverse order of NewSession,
// tolerating partial initialization exactly as node.Node.Close does.
func (s *Session) Close() error {
	var err error
	if s.zc != nil {
		log.Printf("shutting down zeroconf")
		s.zc.Shutdown()
	}
	if s.server != nil {
		log.Printf("shutting down broadcast server")
		if err2 := s.server.Close(); err == nil {
			err = err2
		}
	}
	for i := len(s.devices) - 1; i >= 0; i-- {
		d := s.devices[i]
		log.Printf("closing device %s", d.name)
		if s.cfg.Telescope.ParkOnExit && s.mount != nil && d.name == s.cfg.Telescope.Name {
			if perr := s.mount.Park(context.Background()); perr != nil {
				log.Printf("park on exit failed for %s: %s", d.name, perr)
			}
		}
		if err2 := d.core.Destroy(context.Background()); err == nil {
			err = err2
		}
	}
	return err
}
