// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(attempt int) error {
		calls++
		if attempt == 0 {
			return errors.New("busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDoExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, 5, time.Millisecond, func(int) error {
		calls++
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected context error")
	}
	if calls > 1 {
		t.Fatalf("calls = %d, expected cancellation to short-circuit", calls)
	}
}
