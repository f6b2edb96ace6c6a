// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package indi

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"
)

// fakeServer is a minimal in-process stand-in for an INDI-like property
// server: it acknowledges "set" with a single "set" reply carrying the
// value, and answers "get" with the last value set for that name.
func fakeServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	values := map[string]float64{}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		w := bufio.NewWriter(conn)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var f frame
			if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
				continue
			}
			var resp frame
			switch f.Type {
			case "hello":
				continue
			case "set":
				values[f.Name] = f.Value
				resp = frame{Type: "set", Name: f.Name, Value: f.Value, OK: true}
			case "get":
				resp = frame{Type: "get", Name: f.Name, Value: values[f.Name], OK: true}
			case "exposure_start":
				resp = frame{Type: "exposure_start", OK: true}
			case "exposure_status":
				resp = frame{Type: "exposure_status", OK: true}
			default:
				resp = frame{Type: f.Type, Name: f.Name, OK: true}
			}
			b, _ := json.Marshal(resp)
			b = append(b, '\n')
			w.Write(b)
			w.Flush()
		}
	}()

	go func() {
		<-time.After(2 * time.Second)
		ln.Close()
	}()
	return ln.Addr().String()
}

func TestConnectSetGetRoundTrip(t *testing.T) {
	addr := fakeServer(t)
	a := New(addr, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := a.Connect(ctx, "SimScope"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer a.Close()

	if err := a.SetControl(ctx, "CCD_TEMPERATURE", -10, false); err != nil {
		t.Fatalf("SetControl: %v", err)
	}
	v, err := a.GetControl(ctx, "CCD_TEMPERATURE")
	if err != nil {
		t.Fatalf("GetControl: %v", err)
	}
	if v != -10 {
		t.Fatalf("GetControl = %v, want -10", v)
	}
}

func TestExposureLifecycle(t *testing.T) {
	addr := fakeServer(t)
	a := New(addr, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := a.Connect(ctx, "SimScope"); err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if err := a.StartExposure(ctx, 1); err != nil {
		t.Fatalf("StartExposure: %v", err)
	}
	status, err := a.ExposureStatus(ctx)
	if err != nil {
		t.Fatalf("ExposureStatus: %v", err)
	}
	if !status.Complete {
		t.Fatal("expected fake server to report complete immediately")
	}
}

func TestAwaitPropertyTimeout(t *testing.T) {
	addr := fakeServer(t)
	a := New(addr, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := a.Connect(ctx, "SimScope"); err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	_, err := a.AwaitProperty(ctx, "NEVER_SET", 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
