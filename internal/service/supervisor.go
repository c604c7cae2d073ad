package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

var (
	// ErrHandshakeTimeout means the worker never sent HELLO in time.
	ErrHandshakeTimeout = errors.New("worker handshake timed out")
	// ErrSessionInconsistent means protocol loops are still marked running
	// while the worker process is gone. Reported as a bug signal, never
	// silently repaired.
	ErrSessionInconsistent = errors.New("protocol loops running without a live worker")
)

// LaunchError wraps a failure to start the worker process.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching worker %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// LaunchConfig describes how to start the headless host instance.
type LaunchConfig struct {
	Binary     string // host application binary
	Script     string // worker entry point script
	Catalog    string // catalog file path, passed after the arg separator
	Categories string // categories file path, passed after the arg separator

	ShutdownGrace time.Duration // bounded wait before force-terminating
}

// LaunchArgs builds the fixed worker argument list: headless background
// mode with factory defaults, the worker script, then the two worker
// specific arguments after the conventional "--" separator.
func (c LaunchConfig) LaunchArgs() []string {
	return []string{
		"--background",
		"--factory-startup",
		"--python", c.Script,
		"--",
		c.Catalog,
		c.Categories,
	}
}

const defaultShutdownGrace = 5 * time.Second

// Supervisor owns the worker process handle and its two protocol pipes.
// The protocol rides on the child's stderr (child to parent) and stdin
// (parent to child); the child's stdout carries ordinary worker logging
// and is drained into debug logs so it cannot desynchronize the protocol.
//
// Pipes are closed only by the Supervisor, and regular shutdown closes
// them only after reaping the exit status.
type Supervisor struct {
	cfg LaunchConfig

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    io.ReadCloser
	exitState *os.ProcessState
	waitCh    chan struct{}
	waitErr   error
}

// Launch starts the worker. It fails with *LaunchError when the worker
// entry point is missing or process creation fails.
func Launch(ctx context.Context, cfg LaunchConfig) (*Supervisor, error) {
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = defaultShutdownGrace
	}

	if _, err := os.Stat(cfg.Script); err != nil {
		return nil, &LaunchError{Path: cfg.Binary, Err: fmt.Errorf("worker script: %w", err)}
	}

	cmd := exec.CommandContext(ctx, cfg.Binary, cfg.LaunchArgs()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Path: cfg.Binary, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Path: cfg.Binary, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Path: cfg.Binary, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: cfg.Binary, Err: err}
	}

	s := &Supervisor{
		cfg:    cfg,
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		waitCh: make(chan struct{}),
	}

	go s.drainStdout(ctx, stdout)
	go s.reap()

	slog.DebugContext(ctx, "worker launched", "binary", cfg.Binary, "pid", cmd.Process.Pid)
	return s, nil
}

// drainStdout forwards ordinary worker log lines to slog.
func (s *Supervisor) drainStdout(ctx context.Context, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		slog.DebugContext(ctx, "worker stdout", "line", scanner.Text())
	}
}

// reap is the single goroutine allowed to wait on the process. Everyone
// else observes the published exit state.
func (s *Supervisor) reap() {
	err := s.cmd.Wait()

	s.mu.Lock()
	s.exitState = s.cmd.ProcessState
	s.waitErr = err
	s.mu.Unlock()
	close(s.waitCh)
}

// Alive is a non-blocking poll of the worker's exit status.
func (s *Supervisor) Alive() bool {
	select {
	case <-s.waitCh:
		return false
	default:
		return true
	}
}

// ExitState returns the collected status, nil while the worker runs.
func (s *Supervisor) ExitState() *os.ProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitState
}

// Protocol returns the child-to-parent protocol stream.
func (s *Supervisor) Protocol() io.Reader { return s.stderr }

// Input returns the parent-to-child protocol stream.
func (s *Supervisor) Input() io.Writer { return s.stdin }

// Shutdown waits for the worker to exit within the configured grace,
// force-terminates it otherwise, and always collects the final status so
// no zombie is left behind. Pipes are closed after reaping.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.ShutdownGrace)
	defer timer.Stop()

	select {
	case <-s.waitCh:
	case <-ctx.Done():
		_ = s.cmd.Process.Kill()
		<-s.waitCh
	case <-timer.C:
		slog.WarnContext(ctx, "worker did not exit in time, killing", "pid", s.cmd.Process.Pid)
		_ = s.cmd.Process.Kill()
		<-s.waitCh
	}

	s.ClosePipes()

	state := s.ExitState()
	if state != nil && !state.Success() {
		slog.DebugContext(ctx, "worker exited", "code", state.ExitCode())
	}
	return nil
}

// ClosePipes force-closes both protocol streams. Safe to call repeatedly;
// used directly only on the child-death path to unblock the Listener.
func (s *Supervisor) ClosePipes() {
	_ = s.stdin.Close()
	_ = s.stderr.Close()
}
