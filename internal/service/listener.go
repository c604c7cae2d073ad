package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/forge3d/assetsync/internal/model"
	"github.com/forge3d/assetsync/internal/protocol"
)

// Listener is the single loop reading the worker's protocol stream for the
// lifetime of one session. It frames and decodes incoming bytes and routes
// commands: acknowledgments to the ack queue, everything else to its
// side-effecting handler. Only one Listener runs per session.
type Listener struct {
	session  *Session
	worker   Worker
	reporter model.Reporter
	metrics  Collector
}

func NewListener(session *Session, worker Worker, reporter model.Reporter, metrics Collector) *Listener {
	if metrics == nil {
		metrics = NewNoopCollector()
	}
	return &Listener{
		session:  session,
		worker:   worker,
		reporter: reporter,
		metrics:  metrics,
	}
}

// Run blocks until the stream ends or EXIT_ACK arrives. A read failure
// caused by the peer closing its end is a normal termination signal, not
// an error.
func (l *Listener) Run(ctx context.Context) error {
	l.session.listenerRunning.Store(true)
	defer l.session.listenerRunning.Store(false)

	scanner := bufio.NewScanner(l.worker.Protocol())
	// Asset payloads can exceed the default 64K token limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	ex := protocol.NewExtractor()

	for scanner.Scan() {
		ex.Feed(scanner.Bytes())

		for {
			payload, err := ex.Next()
			if errors.Is(err, protocol.ErrIncomplete) {
				break
			}
			if errors.Is(err, protocol.ErrCorrupted) {
				l.metrics.FrameCorrupted()
				slog.WarnContext(ctx, "corrupted frame discarded, requesting retransmission")
				l.session.Outbound.Push(protocol.New(protocol.CodeCmdError))
				continue
			}

			done, err := l.handle(ctx, payload)
			if err != nil {
				// Structurally invalid payload: ask the peer to resend,
				// never crash the loop.
				l.metrics.FrameCorrupted()
				slog.WarnContext(ctx, "undecodable frame", "error", err)
				l.session.Outbound.Push(protocol.New(protocol.CodeCmdError))
				continue
			}
			if done {
				return nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		slog.DebugContext(ctx, "protocol stream closed", "error", err)
	}
	return nil
}

// handle routes one decoded command. The bool result is true once the
// session is over (EXIT_ACK observed).
func (l *Listener) handle(ctx context.Context, payload []byte) (bool, error) {
	cmd, err := protocol.Decode(payload)
	if err != nil {
		return false, err
	}

	switch cmd.Code {
	case protocol.CodeCmdError, protocol.CodeCmdDone:
		// Acknowledgment classes are forwarded verbatim; the Sender
		// distinguishes their meaning.
		l.session.Acks.Push(cmd)

	case protocol.CodeAssetOK:
		l.session.AddSucceeded()
		l.metrics.JobFinished(true)
		// A finished job acknowledges the ASSET command that started it.
		l.session.Acks.Push(protocol.New(protocol.CodeCmdDone))

	case protocol.CodeAssetError:
		l.session.AddFailed()
		l.metrics.JobFinished(false)
		l.report(ctx, model.SeverityWarning, "asset job failed", fmt.Errorf("worker: %v", cmd.Data["error"]))
		l.session.Acks.Push(protocol.New(protocol.CodeCmdDone))

	case protocol.CodeExitAck:
		slog.DebugContext(ctx, "worker confirmed exit")
		if err := l.worker.Shutdown(ctx); err != nil {
			l.report(ctx, model.SeverityError, "worker shutdown", err)
		}
		return true, nil

	case protocol.CodeHello:
		l.session.SignalReady()
		l.session.Outbound.Push(protocol.New(protocol.CodeHelloOK))

	default:
		// Structurally valid but flowing in the wrong direction.
		slog.WarnContext(ctx, "unexpected command dropped", "code", cmd.Code)
	}
	return false, nil
}

// report forwards to the Reporter, swallowing anything it does wrong.
// Reporting failures must never propagate back into the loop.
func (l *Listener) report(ctx context.Context, severity model.Severity, msg string, err error) {
	if l.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "reporter panicked", "panic", r)
		}
	}()
	l.reporter.Report(ctx, severity, msg, err)
}
