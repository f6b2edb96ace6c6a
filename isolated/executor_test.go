// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package isolated

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"testing"
	"time"

	"periph.io/x/lithiumhome/ipc"
)

// TestMain re-execs the test binary itself as the worker process when
// LITHIUMHOME_TEST_WORKER is set, the standard Go idiom for exercising
// exec.Cmd against a real child without a separate build artifact.
func TestMain(m *testing.M) {
	if os.Getenv("LITHIUMHOME_TEST_WORKER") != "" {
		runTestWorker()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runTestWorker is a minimal worker: handshake, receive one Execute
// request, reply with a canned success Result.
func runTestWorker() {
	readEnd := os.NewFile(3, "p2c")
	writeEnd := os.NewFile(4, "c2p")
	channel := ipc.NewWorkerChannel(readEnd, writeEnd)
	defer channel.Close()

	if err := ipc.RespondHandshake(channel, "test-worker", nil, ipc.DefaultHandshakeTimeout); err != nil {
		return
	}

	msg, err := channel.ReceiveFromParent(5 * time.Second)
	if err != nil || msg.Header.Type != ipc.Execute {
		return
	}
	var req ipc.ExecuteRequest
	_ = json.Unmarshal(msg.Payload, &req)

	if req.ScriptContent == "sleep" {
		time.Sleep(2 * time.Second)
	}

	result := ipc.ExecuteResult{
		Success:         true,
		Result:          "ok",
		ExecutionTimeMs: 1,
	}
	payload, _ := json.Marshal(result)
	_ = channel.SendToParent(ipc.Result, payload, false)
}

func testWorkerPath(t *testing.T) string {
	t.Helper()
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return self
}

func newTestConfig(t *testing.T) Config {
	return Config{
		Level:              None,
		Timeout:            3 * time.Second,
		WorkerPath:         testWorkerPath(t),
		InheritEnvironment: true,
		Environment:        map[string]string{"LITHIUMHOME_TEST_WORKER": "1"},
		CaptureOutput:      true,
	}
}

func TestExecuteRunsWorkerAndReturnsResult(t *testing.T) {
	if _, err := exec.LookPath(testWorkerPath(t)); err != nil {
		t.Skip("test binary not found on PATH for exec.LookPath; environment-specific")
	}
	e := New(newTestConfig(t))
	res, err := e.Execute(context.Background(), Request{ScriptContent: "noop"}, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("got Success=false, want true")
	}
	if res.Result != "ok" {
		t.Fatalf("got Result=%v, want ok", res.Result)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	if _, err := exec.LookPath(testWorkerPath(t)); err != nil {
		t.Skip("test binary not found on PATH for exec.LookPath; environment-specific")
	}
	cfg := newTestConfig(t)
	cfg.Timeout = 200 * time.Millisecond
	e := New(cfg)
	_, err := e.Execute(context.Background(), Request{ScriptContent: "sleep"}, nil, nil)
	if err != ErrTimeout {
		t.Fatalf("got err=%v, want ErrTimeout", err)
	}
}

func TestExecuteRejectsConcurrentRun(t *testing.T) {
	e := New(newTestConfig(t))
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	_, err := e.Execute(context.Background(), Request{}, nil, nil)
	if err != ErrAlreadyRunning {
		t.Fatalf("got err=%v, want ErrAlreadyRunning", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}
	if got := c.timeout(); got != DefaultTimeout {
		t.Fatalf("got timeout=%v, want %v", got, DefaultTimeout)
	}
	if got := c.maxMemoryMB(); got != 0 {
		t.Fatalf("got maxMemoryMB=%d, want 0 (unlimited)", got)
	}
	c.MaxMemoryMB = 256
	if got := c.maxMemoryMB(); got != 256 {
		t.Fatalf("got maxMemoryMB=%d, want 256", got)
	}
}
