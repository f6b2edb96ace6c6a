// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package thermal

import (
	"math"
	"sync"
	"time"
)

// HistoryCapacity bounds the number of retained temperature samples.
const HistoryCapacity = 1000

// StatsWindow is the number of most-recent samples standard deviation is
// computed over.
const StatsWindow = 100

// Sample is one temperature reading taken at a point in time.
type Sample struct {
	Time    time.Time
	Celsius float64
}

// Stats summarizes the retained temperature history.
type Stats struct {
	Min, Max, Avg float64
	Stdev         float64
	Count         int
}

// history is a FIFO ring of at most HistoryCapacity samples, guarded by
// its own lock since it is read from Temperature/History/Stats and the
// monitor goroutine is its sole writer.
type history struct {
	mu      sync.RWMutex
	samples []Sample
}

func (h *history) add(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, s)
	if len(h.samples) > HistoryCapacity {
		// Drop the oldest entries; a plain copy keeps this straightforward
		// since monitor ticks are seconds apart, not hot-path.
		over := len(h.samples) - HistoryCapacity
		h.samples = append(h.samples[:0], h.samples[over:]...)
	}
}

func (h *history) latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

func (h *history) snapshot() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

func (h *history) stats() Stats {
	h.mu.RLock()
	samples := make([]Sample, len(h.samples))
	copy(samples, h.samples)
	h.mu.RUnlock()

	if len(samples) == 0 {
		return Stats{}
	}
	min, max, sum := samples[0].Celsius, samples[0].Celsius, 0.0
	for _, s := range samples {
		if s.Celsius < min {
			min = s.Celsius
		}
		if s.Celsius > max {
			max = s.Celsius
		}
		sum += s.Celsius
	}
	avg := sum / float64(len(samples))

	window := samples
	if len(window) > StatsWindow {
		window = window[len(window)-StatsWindow:]
	}
	var windowSum float64
	for _, s := range window {
		windowSum += s.Celsius
	}
	windowAvg := windowSum / float64(len(window))
	var varSum float64
	for _, s := range window {
		d := s.Celsius - windowAvg
		varSum += d * d
	}
	stdev := math.Sqrt(varSum / float64(len(window)))

	return Stats{Min: min, Max: max, Avg: avg, Stdev: stdev, Count: len(samples)}
}
