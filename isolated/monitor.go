// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package isolated

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// memoryMonitor samples a worker's RSS on MemoryPollInterval and tracks the
// peak observed value, signalling exceeded if limitMB is crossed. Grounded
// on the process.NewProcess(pid).MemoryInfo().RSS idiom used for per-process
// resource sampling elsewhere in the pack; limitMB of 0 disables the limit
// check but peak tracking still runs.
type memoryMonitor struct {
	pid   int
	limit uint64 // bytes; 0 = no limit

	exceeded chan struct{} // closed once, when limit is crossed
	quit     chan struct{} // closed once, by stop()

	peakBytes uint64 // atomic

	exceededOnce sync.Once
	quitOnce     sync.Once
}

func newMemoryMonitor(pid, limitMB int) *memoryMonitor {
	var limit uint64
	if limitMB > 0 {
		limit = uint64(limitMB) * 1024 * 1024
	}
	return &memoryMonitor{
		pid:      pid,
		limit:    limit,
		exceeded: make(chan struct{}),
		quit:     make(chan struct{}),
	}
}

func (m *memoryMonitor) start() {
	proc, err := process.NewProcess(int32(m.pid))
	if err != nil {
		// Nothing to sample; exceeded never fires and peak() stays 0.
		return
	}
	go m.run(proc)
}

func (m *memoryMonitor) run(proc *process.Process) {
	ticker := time.NewTicker(MemoryPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			info, err := proc.MemoryInfo()
			if err != nil {
				continue
			}
			for {
				cur := atomic.LoadUint64(&m.peakBytes)
				if info.RSS <= cur {
					break
				}
				if atomic.CompareAndSwapUint64(&m.peakBytes, cur, info.RSS) {
					break
				}
			}
			if m.limit > 0 && info.RSS > m.limit {
				m.exceededOnce.Do(func() { close(m.exceeded) })
				return
			}
		}
	}
}

// stop halts sampling. Safe to call multiple times and after exceeded has
// already fired.
func (m *memoryMonitor) stop() {
	m.quitOnce.Do(func() { close(m.quit) })
}

func (m *memoryMonitor) peak() int64 {
	return int64(atomic.LoadUint64(&m.peakBytes))
}
