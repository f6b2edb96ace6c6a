// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package discovery implements LAN discovery of running lithiumhome
// broadcast servers, generalizing client/client.go's search for
// "_esphomelib._tcp" periphhome nodes to lithiumhome's own
// "_lithiumhome._tcp" service type.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"

	"periph.io/x/lithiumhome/devicecore/broadcast"
)

// Found is one lithiumhome broadcast server found on the network.
type Found struct {
	Name     string
	Hostname string
	IP       net.IP
	Port     int
	Text     []string

	_ struct{}
}

func (f *Found) String() string {
	return fmt.Sprintf("%s (%s / %s:%d): %s", f.Name, f.Hostname, f.IP, f.Port, f.Text)
}

// Search searches the local network for lithiumhome broadcast servers via
// zeroconf (224.0.0.251:5353). If first is true, Search returns as soon as
// one is found instead of waiting for ctx to be done.
func Search(ctx context.Context, first bool) ([]*Found, error) {
	var cancel func()
	if first {
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
	}
	r, err := zeroconf.NewResolver()
	if err != nil {
		return nil, err
	}
	c := make(chan *zeroconf.ServiceEntry)
	var out []*Found
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range c {
			if first && len(out) != 0 {
				continue
			}
			f := &Found{
				Name:     e.Instance,
				Hostname: strings.TrimRight(e.HostName, "."),
				Port:     e.Port,
				Text:     e.Text,
			}
			if len(e.AddrIPv4) != 0 {
				f.IP = e.AddrIPv4[0]
			} else if len(e.AddrIPv6) != 0 {
				f.IP = e.AddrIPv6[0]
			}
			out = append(out, f)
			if first {
				cancel()
			}
		}
	}()

	if err = r.Browse(ctx, broadcast.ServiceType, "local.", c); err != nil {
		return nil, err
	}
	<-ctx.Done()
	wg.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}
