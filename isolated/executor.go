// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package isolated

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"periph.io/x/lithiumhome/ipc"
)

// capabilities is the fixed capability set this Executor advertises during
// handshake; it carries no version-gated features yet so the list is empty.
var capabilities []string

// Executor runs one script to completion in a child process, enforcing
// Config's timeout and (where supported) memory limit. Its lifecycle
// mirrors execution_engine.cpp/lifecycle.cpp: spawn, handshake, send
// Execute, pump messages until Result/ErrorMsg/timeout/cancel, then tear
// down the child.
type Executor struct {
	cfg Config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New builds an Executor for one-shot or repeated use with cfg. A single
// Executor must not run two Execute calls concurrently; ErrAlreadyRunning
// is returned if attempted.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg}
}

// Execute spawns the worker, runs req to completion or failure, and
// returns the collected Result. onProgress and onLog may be nil.
func (e *Executor) Execute(ctx context.Context, req Request, onProgress ProgressFunc, onLog LogFunc) (Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
	}()

	timeout := e.cfg.timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	channel, err := ipc.NewBidirectionalChannel()
	if err != nil {
		return Result{}, fmt.Errorf("isolated: %w: %w", ErrProcessSpawnFailed, err)
	}

	workerPath := e.cfg.WorkerPath
	if workerPath == "" {
		return Result{}, fmt.Errorf("isolated: %w: no WorkerPath configured", ErrWorkerNotFound)
	}
	if _, err := exec.LookPath(workerPath); err != nil {
		channel.Close()
		return Result{}, fmt.Errorf("isolated: %w: %w", ErrWorkerNotFound, err)
	}

	// Deliberately not exec.CommandContext(runCtx, ...): its default
	// Cancel hook kills the child the instant runCtx is done, racing
	// ahead of sendCancel's cooperative Cancel/CancelAck handshake below.
	// The child is killed only by reapChild's ChildExitGrace timeout,
	// after sendCancel has had its chance.
	cmd := exec.Command(workerPath, e.cfg.ExtraPath...)
	cmd.Dir = pickWorkDir(e.cfg, req)
	cmd.Env = buildEnv(e.cfg)
	readEnd, writeEnd := channel.ChildFiles()
	cmd.ExtraFiles = []*os.File{readEnd, writeEnd}

	// Script output is relayed over the channel as Log messages rather
	// than inherited stdio; the worker does not write script output to
	// its own stdout/stderr.

	if err := cmd.Start(); err != nil {
		channel.Close()
		return Result{}, fmt.Errorf("isolated: %w: %w", ErrProcessSpawnFailed, err)
	}

	if e.cfg.Level == Sandboxed {
		if err := applySandboxLimits(cmd, e.cfg.maxMemoryMB()); err != nil {
			cmd.Process.Kill()
			channel.Close()
			return Result{}, fmt.Errorf("isolated: %w: %w", ErrProcessSpawnFailed, err)
		}
	}

	if err := channel.SetupParent(); err != nil {
		cmd.Process.Kill()
		channel.Close()
		return Result{}, fmt.Errorf("isolated: %w: %w", ErrProcessSpawnFailed, err)
	}
	defer channel.Close()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()
	defer e.reapChild(cmd, waitDone)

	if _, err := ipc.PerformHandshake(channel, capabilities, ipc.DefaultHandshakeTimeout); err != nil {
		return Result{}, fmt.Errorf("isolated: %w: %w", ErrHandshakeFailed, err)
	}

	mon := newMemoryMonitor(cmd.Process.Pid, e.cfg.maxMemoryMB())
	defer mon.stop()
	mon.start()

	execReq := ipc.ExecuteRequest{
		ScriptContent:    req.ScriptContent,
		ScriptPath:       req.ScriptPath,
		FunctionName:     req.FunctionName,
		Arguments:        req.Arguments,
		TimeoutS:         timeout.Seconds(),
		CaptureOutput:    req.CaptureOutput,
		AllowedImports:   req.AllowedImports,
		WorkingDirectory: req.WorkingDirectory,
		Environment:      e.cfg.Environment,
	}
	payload, err := json.Marshal(execReq)
	if err != nil {
		return Result{}, fmt.Errorf("isolated: marshal execute request: %w", ErrCommunicationError)
	}
	if err := channel.SendToChild(ipc.Execute, payload, false); err != nil {
		return Result{}, fmt.Errorf("isolated: send execute request: %w: %w", err, ErrCommunicationError)
	}

	return e.pump(runCtx, channel, mon, onProgress, onLog)
}

// Cancel requests the in-flight Execute call stop by cancelling its run
// context. Execute's message loop then sends a Cancel message, waits up to
// CancelGrace for a reply and returns ErrCancelled; the child is killed if
// it has not exited within ChildExitGrace.
func (e *Executor) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Executor) pump(ctx context.Context, channel *ipc.BidirectionalChannel, mon *memoryMonitor, onProgress ProgressFunc, onLog LogFunc) (Result, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.sendCancel(channel)
			if ctx.Err() == context.DeadlineExceeded {
				return Result{Err: ErrTimeout}, ErrTimeout
			}
			return Result{Err: ErrCancelled}, ErrCancelled
		case <-mon.exceeded:
			e.sendCancel(channel)
			return Result{PeakMemoryBytes: mon.peak(), Err: ErrMemoryLimitExceeded}, ErrMemoryLimitExceeded
		case <-ticker.C:
			if !channel.HasDataFromChild() {
				continue
			}
			msg, err := channel.ReceiveFromChild(PollInterval)
			if err != nil {
				if err == ipc.ErrTimeout {
					continue
				}
				return Result{Err: ErrCommunicationError}, fmt.Errorf("isolated: %w: %w", ErrCommunicationError, err)
			}
			switch msg.Header.Type {
			case ipc.Result:
				var r ipc.ExecuteResult
				if err := json.Unmarshal(msg.Payload, &r); err != nil {
					return Result{Err: ErrCommunicationError}, fmt.Errorf("isolated: decode result: %w: %w", err, ErrCommunicationError)
				}
				return Result{
					Success:         r.Success,
					Result:          r.Result,
					Output:          r.Output,
					ErrorOutput:     r.ErrorOutput,
					Exception:       r.Exception,
					ExceptionType:   r.ExceptionType,
					Traceback:       r.Traceback,
					ExecutionTimeMs: r.ExecutionTimeMs,
					PeakMemoryBytes: mon.peak(),
				}, nil
			case ipc.ErrorMsg:
				var ep ipc.ErrorPayload
				_ = json.Unmarshal(msg.Payload, &ep)
				return Result{Success: false, ErrorOutput: ep.Message, Err: ErrCommunicationError}, fmt.Errorf("isolated: worker reported error: %s", ep.Message)
			case ipc.Progress:
				if onProgress != nil {
					var p ipc.ProgressUpdate
					if err := json.Unmarshal(msg.Payload, &p); err == nil {
						onProgress(p.Percentage, p.Message, p.CurrentStep, p.ElapsedMs, p.EstRemainingMs)
					}
				}
			case ipc.Log:
				if onLog != nil {
					var l ipc.LogEntry
					if err := json.Unmarshal(msg.Payload, &l); err == nil {
						onLog(l.Level, l.Message)
					}
				}
			}
		}
	}
}

func (e *Executor) sendCancel(channel *ipc.BidirectionalChannel) {
	_ = channel.SendToChild(ipc.Cancel, nil, false)
	_, _ = channel.ReceiveFromChild(CancelGrace)
}

func (e *Executor) reapChild(cmd *exec.Cmd, waitDone chan error) {
	select {
	case <-waitDone:
	case <-time.After(ChildExitGrace):
		cmd.Process.Kill()
		<-waitDone
	}
}

func pickWorkDir(cfg Config, req Request) string {
	if req.WorkingDirectory != "" {
		return req.WorkingDirectory
	}
	return cfg.WorkingDirectory
}

func buildEnv(cfg Config) []string {
	var env []string
	if cfg.InheritEnvironment {
		env = append(env, os.Environ()...)
	}
	for k, v := range cfg.Environment {
		env = append(env, k+"="+v)
	}
	return env
}
