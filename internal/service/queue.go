package service

import (
	"sync"
	"time"

	"github.com/forge3d/assetsync/internal/protocol"
)

// CommandQueue is an unbounded FIFO of protocol commands shared between
// the producer side (Client, Listener) and a single consuming loop. Pop
// waits are bounded so the consumer can interleave queue draining with
// cancellation and liveness checks.
type CommandQueue struct {
	mu    sync.Mutex
	items []protocol.Command

	// notify wakes at most one waiter per Push. Capacity one is enough:
	// a waiter that misses the signal re-checks the slice anyway.
	notify chan struct{}
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{notify: make(chan struct{}, 1)}
}

// Push appends cmd and wakes a waiting Pop, if any.
func (q *CommandQueue) Push(cmd protocol.Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest command, waiting up to timeout for
// one to arrive. The second result is false when the wait expired empty.
func (q *CommandQueue) Pop(timeout time.Duration) (protocol.Command, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if cmd, ok := q.tryPop(); ok {
			return cmd, true
		}
		select {
		case <-q.notify:
		case <-deadline.C:
			return protocol.Command{}, false
		}
	}
}

func (q *CommandQueue) tryPop() (protocol.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return protocol.Command{}, false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, true
}

// Flush discards all queued commands and reports how many were dropped.
func (q *CommandQueue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	return n
}

// Len reports the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
