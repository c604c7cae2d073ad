package service

import "github.com/forge3d/assetsync/internal/protocol"

// Collector receives protocol events. The Prometheus implementation lives
// in prometheus.go; the loops default to the no-op one.
type Collector interface {
	// CommandSent records a transmitted command, retransmissions included.
	CommandSent(code protocol.Code)
	// Retransmitted records a CMD_ERROR driven resend.
	Retransmitted(code protocol.Code)
	// AckTimeout records an exhausted acknowledgment wait.
	AckTimeout()
	// FrameCorrupted records a discarded frame or undecodable payload.
	FrameCorrupted()
	// JobFinished records one ASSET_OK (true) or ASSET_ERROR (false).
	JobFinished(ok bool)
	// BatchCompleted records a drained batch with its final counters.
	BatchCompleted(c Counters)
	// BatchCancelled records a cancelled batch and how many queued
	// commands were dropped.
	BatchCancelled(dropped int)
	// WorkerLaunched records a worker process start.
	WorkerLaunched()
	// WorkerLost records an unexpected worker death.
	WorkerLost()
}

type noopCollector struct{}

func (noopCollector) CommandSent(protocol.Code)   {}
func (noopCollector) Retransmitted(protocol.Code) {}
func (noopCollector) AckTimeout()                 {}
func (noopCollector) FrameCorrupted()             {}
func (noopCollector) JobFinished(bool)            {}
func (noopCollector) BatchCompleted(Counters)     {}
func (noopCollector) BatchCancelled(int)          {}
func (noopCollector) WorkerLaunched()             {}
func (noopCollector) WorkerLost()                 {}

// NewNoopCollector returns a Collector that drops everything.
func NewNoopCollector() Collector { return noopCollector{} }
