// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import (
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the zeroconf service name lithiumhome advertises and
// browses for, the domain-stack analogue of
// "_esphomelib._tcp" constant in node/node.go.
const ServiceType = "_lithiumhome._tcp"

// Advertise registers this server on the LAN via mDNS/zeroconf under
// name, so operator consoles can discover it with discovery.Search,
// exactly as node.New calls zeroconf.Register to make a periphhome node
// discoverable. The returned zeroconf.Server must be shut down by the
// caller (its Shutdown method) when the broadcast server stops.
func (s *Server) Advertise(name string, text []string) (*zeroconf.Server, error) {
	_, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		return nil, fmt.Errorf("broadcast: advertise: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("broadcast: advertise: %w", err)
	}
	return zeroconf.Register(name, ServiceType, "local.", port, text, nil)
}
