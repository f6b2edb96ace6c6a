// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"log"

	"periph.io/x/lithiumhome/internal/config"
)

func run(ctx context.Context, cfg *config.Root) error {
	s, err := NewSession(ctx, cfg)
	if err != nil {
		return err
	}
	log.Printf("session initialized")
	<-ctx.Done()
	log.Printf("closing session")
	return s.Close()
}
