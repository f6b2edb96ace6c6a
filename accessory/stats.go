// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package accessory

import (
	"sync"
	"time"
)

// SwitchStats tracks per-switch operation counts and cumulative on-time,
// grounded on original_source's switch_stats.{hpp,cpp}.
type SwitchStats struct {
	mu               sync.Mutex
	operationCounts  []uint64
	uptimes          []time.Duration
	onSince          []time.Time
	totalOperations  uint64
}

func newSwitchStats(bank *SwitchBank, n int) *SwitchStats {
	return &SwitchStats{
		operationCounts: make([]uint64, n),
		uptimes:         make([]time.Duration, n),
		onSince:         make([]time.Time, n),
	}
}

// trackSwitchOperation increments index's operation count.
func (s *SwitchStats) trackSwitchOperation(index int) {
	s.mu.Lock()
	s.operationCounts[index]++
	s.totalOperations++
	s.mu.Unlock()
}

// updateStatistics starts or stops index's uptime tracking depending on
// switchedOn.
func (s *SwitchStats) updateStatistics(index int, switchedOn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if switchedOn {
		s.onSince[index] = time.Now()
		return
	}
	if !s.onSince[index].IsZero() {
		s.uptimes[index] += time.Since(s.onSince[index])
		s.onSince[index] = time.Time{}
	}
}

// OperationCount returns the number of on/off operations recorded for
// index.
func (s *SwitchStats) OperationCount(index int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operationCounts[index]
}

// Uptime returns index's cumulative on-time, including any time it is
// currently on.
func (s *SwitchStats) Uptime(index int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.uptimes[index]
	if !s.onSince[index].IsZero() {
		u += time.Since(s.onSince[index])
	}
	return u
}

// TotalOperationCount returns the sum of every switch's operation count.
func (s *SwitchStats) TotalOperationCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalOperations
}

// ResetStatistics clears all recorded counts and uptimes.
func (s *SwitchStats) ResetStatistics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.operationCounts {
		s.operationCounts[i] = 0
		s.uptimes[i] = 0
		s.onSince[i] = time.Time{}
	}
	s.totalOperations = 0
}

// ResetSwitchStatistics clears recorded counts and uptime for index only.
func (s *SwitchStats) ResetSwitchStatistics(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalOperations -= s.operationCounts[index]
	s.operationCounts[index] = 0
	s.uptimes[index] = 0
	s.onSince[index] = time.Time{}
}
