package service

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Worker is the session's view of one supervised child process. Supervisor
// is the production implementation; tests substitute in-memory pipes.
type Worker interface {
	// Alive reports whether the process is still running. It never blocks.
	Alive() bool
	// Protocol is the stream the worker emits framed commands on.
	Protocol() io.Reader
	// Input is the stream the worker reads framed commands from.
	Input() io.Writer
	// Shutdown asks the process to stop and reaps it.
	Shutdown(ctx context.Context) error
	// ClosePipes force-closes both streams, unblocking any reader.
	ClosePipes()
}

// Counters is the per-batch job accounting snapshot.
type Counters struct {
	Queued    int
	Succeeded int
	Failed    int
}

// Session is the shared state of one worker lifetime: the two command
// queues, the readiness event, the cancellation flag and the batch
// counters. Listener, Sender and Client each hold the same Session; the
// Session itself never starts goroutines.
type Session struct {
	// Outbound carries commands toward the worker, drained by the Sender.
	Outbound *CommandQueue
	// Acks carries acknowledgment-class commands routed by the Listener
	// to the Sender's in-flight wait.
	Acks *CommandQueue

	// ready receives exactly one token when the worker's handshake
	// arrives. Buffered so SignalReady never blocks the Listener.
	ready chan struct{}

	cancel          atomic.Bool
	listenerRunning atomic.Bool
	senderRunning   atomic.Bool

	mu       sync.Mutex
	counters Counters
}

func NewSession() *Session {
	return &Session{
		Outbound: NewCommandQueue(),
		Acks:     NewCommandQueue(),
		ready:    make(chan struct{}, 1),
	}
}

// SignalReady records the worker's handshake. Safe to call more than once.
func (s *Session) SignalReady() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// AwaitReady blocks until the handshake arrives, the timeout expires or
// ctx is done. Timeout is reported as ErrHandshakeTimeout.
func (s *Session) AwaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-s.ready:
		return nil
	case <-deadline.C:
		return ErrHandshakeTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestCancel flags the in-flight batch for cancellation.
func (s *Session) RequestCancel() { s.cancel.Store(true) }

// CancelRequested reports whether cancellation is pending.
func (s *Session) CancelRequested() bool { return s.cancel.Load() }

// ClearCancel resets the flag once the Sender has drained the batch.
func (s *Session) ClearCancel() { s.cancel.Store(false) }

// LoopsRunning reports whether either protocol loop is still active.
func (s *Session) LoopsRunning() bool {
	return s.listenerRunning.Load() || s.senderRunning.Load()
}

func (s *Session) AddQueued() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Queued++
}

func (s *Session) AddSucceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Succeeded++
}

func (s *Session) AddFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Failed++
}

// Counters returns the current batch snapshot.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// ResetCounters zeroes the batch accounting for the next batch.
func (s *Session) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = Counters{}
}
