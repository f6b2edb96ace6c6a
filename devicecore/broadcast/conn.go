// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package broadcast

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
)

// serverConn is one console connection, reading requests and writing
// broadcast frames, generalizing node/api.go's *conn.handleConnection to a
// tiny request set (currently just MsgListDevicesRequest) plus
// server-initiated pushes.
type serverConn struct {
	c net.Conn
	s *Server

	writeMu sync.Mutex
}

func (sc *serverConn) run(ctx context.Context) {
	defer sc.s.removeConn(sc)
	defer sc.c.Close()

	type frame struct {
		typ MessageType
		b   []byte
		err error
	}
	frames := make(chan frame, 1)
	go func() {
		for {
			typ, b, err := readFrame(sc.c)
			frames <- frame{typ, b, err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-frames:
			if f.err != nil {
				if !isClosedErr(f.err) {
					log.Printf("broadcast: read from %s: %v", sc.c.RemoteAddr(), f.err)
				}
				return
			}
			if f.typ == MsgListDevicesRequest {
				resp := ListDevicesResponse{Names: sc.s.deviceNames()}
				if err := sc.send(MsgListDevicesResponse, resp.encode()); err != nil {
					log.Printf("broadcast: write to %s: %v", sc.c.RemoteAddr(), err)
					return
				}
			}
		}
	}
}

func (sc *serverConn) send(typ MessageType, payload []byte) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return writeFrame(sc.c, typ, payload)
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
