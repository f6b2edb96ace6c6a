// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package retry implements a small bounded-retry-with-backoff helper,
// generalized from node/sensor_bm280.go's "try one bus, fall back to the
// other" style (loadSensorBMxx80 tries I2C then SPI) into
// an explicit retry loop used by the Accessory Coordinator's filter-wheel
// move command (accessory.FilterWheel.ChangeFilter).
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do calls fn up to attempts times (attempts >= 1), sleeping backoff
// between tries. It returns nil on the first success. If every attempt
// fails, it returns the last error, wrapped with the attempt count.
func Do(ctx context.Context, attempts int, backoff time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt < attempts-1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("retry: %d attempts exhausted: %w", attempts, lastErr)
}
