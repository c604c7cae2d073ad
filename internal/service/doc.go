package service

// Package service implements the asset-sync worker supervisor and its
// reliable command protocol.
//
// Overview
// A Client owns at most one worker session at a time: a second, headless
// instance of the host application launched with the worker script. Jobs
// (one ASSET command per catalog asset) are queued on the session's
// outbound queue; the worker answers on its stderr, which carries the
// protocol so ordinary worker logging on stdout cannot desynchronize it.
//
// Three loops cooperate per session:
//   - the caller, entering through Client (EnsureReady / QueueAsset /
//     CancelBatch), serialized by a coarse start lock;
//   - the Listener, which frames and decodes the worker's stream and
//     routes acknowledgments to the ack queue and everything else to its
//     handlers;
//   - the Sender, which drains the outbound queue one command at a time
//     and blocks on acknowledgment with bounded retries.
//
// Data flow:
//
//	Client                 Sender                  worker process
//	  |                      |                         |
//	  | QueueAsset --------->| outbound queue          |
//	  |                      | frame + write stdin --->|
//	  |                      |                         | job runs
//	  |                      |<-- ack queue <-- Listener <-- stderr frames
//	  |<-- counters/refresh--|                         |
//
// Invariants:
//   - Exactly one Listener and one Sender per session, never reused
//     across worker launches.
//   - One command in flight: no pipelining, so acknowledgments need no
//     sequence numbers.
//   - Queue waits are bounded by the poll interval; cancellation is
//     visible within one interval (or after the in-flight exchange's
//     retry ceiling at worst).
//   - Only the Supervisor closes the worker's pipes, after reaping its
//     exit status.
//   - Per-batch failures (ack exhaustion) cancel the batch, not the
//     session; worker death ends the session.
