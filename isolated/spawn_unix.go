// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !windows

package isolated

import (
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// applySandboxLimits enforces Config's Sandboxed level on an already-
// started child: an RLIMIT_AS cap via prlimit(2) targeting the child's
// pid. Go's exec.Cmd has no pre-exec hook (unlike the C++ original's
// fork-then-setrlimit-then-exec shape in process_spawning_unix.cpp), so
// the limit is applied to the running child immediately after Start
// instead of before exec. By then the worker program has begun running,
// so memory it mapped before the prlimit call is not checked against the
// limit; its later allocations are.
func applySandboxLimits(cmd *exec.Cmd, maxMemoryMB int) error {
	if maxMemoryMB <= 0 {
		return nil
	}
	limBytes := uint64(maxMemoryMB) * 1024 * 1024
	rlim := unix.Rlimit{Cur: limBytes, Max: limBytes}
	if err := unix.Prlimit(cmd.Process.Pid, unix.RLIMIT_AS, &rlim, nil); err != nil {
		return fmt.Errorf("isolated: apply RLIMIT_AS to pid %d: %w", cmd.Process.Pid, err)
	}
	return nil
}
