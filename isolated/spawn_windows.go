// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build windows

package isolated

import (
	"fmt"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Job Object constants and structures kernel32 exposes but
// golang.org/x/sys/windows does not wrap; defined here to match the
// documented Win32 ABI exactly.
const (
	jobObjectExtendedLimitInformation = 9
	jobObjectLimitProcessMemory       = 0x00000100
)

type ioCounters struct {
	ReadOperationCount  uint64
	WriteOperationCount uint64
	OtherOperationCount uint64
	ReadTransferCount   uint64
	WriteTransferCount  uint64
	OtherTransferCount  uint64
}

type jobObjectBasicLimitInformation struct {
	PerProcessUserTimeLimit int64
	PerJobUserTimeLimit     int64
	LimitFlags              uint32
	MinimumWorkingSetSize   uintptr
	MaximumWorkingSetSize   uintptr
	ActiveProcessLimit      uint32
	Affinity                uintptr
	PriorityClass           uint32
	SchedulingClass         uint32
}

type jobObjectExtendedLimitInformation struct {
	BasicLimitInformation jobObjectBasicLimitInformation
	IoInfo                ioCounters
	ProcessMemoryLimit    uintptr
	JobMemoryLimit        uintptr
	PeakProcessMemoryUsed uintptr
	PeakJobMemoryUsed     uintptr
}

var (
	modkernel32                   = windows.NewLazySystemDLL("kernel32.dll")
	procCreateJobObjectW          = modkernel32.NewProc("CreateJobObjectW")
	procSetInformationJobObject   = modkernel32.NewProc("SetInformationJobObject")
	procAssignProcessToJobObject  = modkernel32.NewProc("AssignProcessToJobObject")
)

// applySandboxLimits enforces Config's Sandboxed level on an already-
// started child on Windows: assigns the child to a Job Object whose
// extended limit information caps committed process memory, the Windows
// analogue of process_spawning_win32.cpp's resource-limiting behavior
// (that file applies its limits directly at spawn time via a Job Object;
// here the same object is attached immediately after Start for the same
// reason applySandboxLimits on POSIX applies prlimit post-Start rather
// than pre-exec — os/exec has no pre-exec hook on either platform).
func applySandboxLimits(cmd *exec.Cmd, maxMemoryMB int) error {
	if maxMemoryMB <= 0 {
		return nil
	}

	jobHandle, _, err := procCreateJobObjectW.Call(0, 0)
	if jobHandle == 0 {
		return fmt.Errorf("isolated: CreateJobObjectW: %w", err)
	}
	job := windows.Handle(jobHandle)

	limit := jobObjectExtendedLimitInformation{
		BasicLimitInformation: jobObjectBasicLimitInformation{
			LimitFlags: jobObjectLimitProcessMemory,
		},
		ProcessMemoryLimit: uintptr(maxMemoryMB) * 1024 * 1024,
	}
	ret, _, err := procSetInformationJobObject.Call(
		uintptr(job),
		jobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&limit)),
		unsafe.Sizeof(limit),
	)
	if ret == 0 {
		windows.CloseHandle(job)
		return fmt.Errorf("isolated: SetInformationJobObject: %w", err)
	}

	procHandle, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err != nil {
		windows.CloseHandle(job)
		return fmt.Errorf("isolated: OpenProcess: %w", err)
	}
	defer windows.CloseHandle(procHandle)

	ret, _, err = procAssignProcessToJobObject.Call(uintptr(job), uintptr(procHandle))
	if ret == 0 {
		windows.CloseHandle(job)
		return fmt.Errorf("isolated: AssignProcessToJobObject: %w", err)
	}
	return nil
}
