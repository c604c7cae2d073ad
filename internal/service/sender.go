package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forge3d/assetsync/internal/model"
	"github.com/forge3d/assetsync/internal/protocol"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultIdleBudget   = 60 * time.Second
	defaultMaxRetries   = 60
)

// SenderConfig are the Sender timing knobs. Zero values select the
// defaults: 1s poll, 60s idle budget, 60 retries.
type SenderConfig struct {
	// PollInterval bounds every queue wait; cancellation becomes visible
	// within one interval.
	PollInterval time.Duration
	// IdleBudget is how long an empty outbound queue is tolerated before
	// the worker is reclaimed with an EXIT.
	IdleBudget time.Duration
	// MaxRetries caps both retransmissions and ack-wait polls for one
	// in-flight command.
	MaxRetries int
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.IdleBudget == 0 {
		c.IdleBudget = defaultIdleBudget
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// Sender is the single loop draining the outbound queue for the lifetime
// of one session. The protocol is strictly one command in flight: a
// non-fire-and-forget command blocks the loop until acknowledged or until
// retries run out. Only one Sender runs per session.
type Sender struct {
	cfg      SenderConfig
	session  *Session
	worker   Worker
	reporter model.Reporter
	notifier model.Notifier
	metrics  Collector

	// onComplete fires once per drained or cancelled batch with the final
	// counter snapshot, taken before the counters reset.
	onComplete func(Counters)
	// onRefresh fires after every completed exchange so the UI layer can
	// redraw counters.
	onRefresh func()
}

func NewSender(cfg SenderConfig, session *Session, worker Worker, opts ...SenderOption) *Sender {
	s := &Sender{
		cfg:     cfg.withDefaults(),
		session: session,
		worker:  worker,
		metrics: NewNoopCollector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SenderOption configures optional Sender collaborators.
type SenderOption func(*Sender)

func WithSenderReporter(r model.Reporter) SenderOption {
	return func(s *Sender) { s.reporter = r }
}

func WithSenderNotifier(n model.Notifier) SenderOption {
	return func(s *Sender) { s.notifier = n }
}

func WithOnComplete(fn func(Counters)) SenderOption {
	return func(s *Sender) { s.onComplete = fn }
}

func WithOnRefresh(fn func()) SenderOption {
	return func(s *Sender) { s.onRefresh = fn }
}

func WithSenderCollector(c Collector) SenderOption {
	return func(s *Sender) {
		if c != nil {
			s.metrics = c
		}
	}
}

// Run drains the outbound queue until the idle budget expires or the
// worker dies. It returns nil in both cases; failures inside a batch
// cancel the batch, not the session.
func (s *Sender) Run(ctx context.Context) error {
	s.session.senderRunning.Store(true)
	defer s.session.senderRunning.Store(false)

	idleLeft := s.cfg.IdleBudget

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Stale acknowledgments from a prior exchange must not satisfy
		// the next one.
		s.session.Acks.Flush()

		if s.session.CancelRequested() {
			dropped := s.session.Outbound.Flush()
			slog.InfoContext(ctx, "batch cancelled", "dropped", dropped)
			s.metrics.BatchCancelled(dropped)
			s.notify(ctx, model.Notification{
				Severity: model.SeverityWarning,
				Title:    "Asset sync batch cancelled",
				Detail:   fmt.Sprintf("%d queued jobs were dropped.", dropped),
			})
			s.complete(ctx, s.session.Counters())
			s.session.ClearCancel()
			s.session.ResetCounters()
			idleLeft = s.cfg.IdleBudget
			continue
		}

		cmd, ok := s.session.Outbound.Pop(s.cfg.PollInterval)
		if !ok {
			idleLeft -= s.cfg.PollInterval
			if idleLeft <= 0 {
				// Reclaim the unused worker. EXIT_ACK will drive the
				// Listener into the shutdown sequence. If the write
				// fails the Listener only ends on pipe close, so the
				// failure is worth a record.
				if err := s.transmit(ctx, protocol.New(protocol.CodeExit)); err != nil {
					slog.WarnContext(ctx, "exit send failed", "error", err)
				}
				slog.DebugContext(ctx, "idle budget exhausted, exit sent")
				return nil
			}
			continue
		}
		idleLeft = s.cfg.IdleBudget

		if !s.workerAlive(ctx) {
			return nil
		}

		if err := s.transmit(ctx, cmd); err != nil {
			s.lostWorker(ctx, err)
			return nil
		}

		if cmd.Code.FireAndForget() {
			continue
		}

		if !s.awaitAck(ctx, cmd) {
			// Worker died mid-exchange; lostWorker already fired, no
			// further send attempts.
			return nil
		}
		s.refresh(ctx)

		if s.session.Outbound.Len() == 0 && !s.session.CancelRequested() {
			final := s.session.Counters()
			s.metrics.BatchCompleted(final)
			s.complete(ctx, final)
			s.session.ResetCounters()
		}
	}
}

// workerAlive short-circuits protocol work once the child died. It reports
// the unexpected exit, notifies the UI layer and force-closes the protocol
// stream to unblock the Listener.
func (s *Sender) workerAlive(ctx context.Context) bool {
	if s.worker.Alive() {
		return true
	}
	s.lostWorker(ctx, fmt.Errorf("worker process exited unexpectedly"))
	return false
}

func (s *Sender) lostWorker(ctx context.Context, err error) {
	s.metrics.WorkerLost()
	s.report(ctx, model.SeverityError, "lost worker", err)
	s.notify(ctx, model.Notification{
		Severity: model.SeverityError,
		Title:    "Asset sync lost its worker",
		Detail:   "The headless worker process exited; queued jobs were not sent.",
	})
	s.worker.ClosePipes()
}

func (s *Sender) transmit(ctx context.Context, cmd protocol.Command) error {
	framed, err := protocol.Frame(cmd)
	if err != nil {
		return err
	}
	if _, err := s.worker.Input().Write(framed); err != nil {
		return fmt.Errorf("writing %s frame: %w", cmd.Code, err)
	}
	s.metrics.CommandSent(cmd.Code)
	slog.DebugContext(ctx, "command sent", "code", cmd.Code)
	return nil
}

// awaitAck blocks on the ack queue for the outcome of the in-flight
// command: SENT -> (WAIT_ACK <-> RETRANSMIT) -> DONE | CANCELLED. Both
// terminal failures mark the whole batch cancelled; the session lives on.
// The false result means the worker was lost mid-exchange and the whole
// session is over.
func (s *Sender) awaitAck(ctx context.Context, cmd protocol.Command) bool {
	waits := s.cfg.MaxRetries
	retries := s.cfg.MaxRetries

	for {
		if ctx.Err() != nil {
			return true
		}

		ack, ok := s.session.Acks.Pop(s.cfg.PollInterval)
		if !ok {
			waits--
			if waits > 0 {
				continue // transient
			}
			s.metrics.AckTimeout()
			s.session.RequestCancel()
			s.report(ctx, model.SeverityError, "ack timeout",
				fmt.Errorf("no acknowledgment for %s after %d polls", cmd.Code, s.cfg.MaxRetries))
			return true
		}

		switch ack.Code {
		case protocol.CodeCmdDone:
			return true

		case protocol.CodeCmdError:
			if retries <= 0 {
				s.session.RequestCancel()
				s.report(ctx, model.SeverityError, "retry max reached",
					fmt.Errorf("%s rejected %d times", cmd.Code, s.cfg.MaxRetries))
				return true
			}
			retries--
			waits = s.cfg.MaxRetries
			s.metrics.Retransmitted(cmd.Code)
			slog.DebugContext(ctx, "retransmitting", "code", cmd.Code, "retries_left", retries)
			if err := s.transmit(ctx, cmd); err != nil {
				s.lostWorker(ctx, err)
				return false
			}

		default:
			// Not an acknowledgment class; the Listener should never
			// route these here.
			slog.WarnContext(ctx, "non-ack on ack queue dropped", "code", ack.Code)
		}
	}
}

func (s *Sender) complete(ctx context.Context, final Counters) {
	if s.onComplete == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "completion callback panicked", "panic", r)
		}
	}()
	s.onComplete(final)
}

func (s *Sender) refresh(ctx context.Context) {
	if s.onRefresh == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "refresh callback panicked", "panic", r)
		}
	}()
	s.onRefresh()
}

func (s *Sender) report(ctx context.Context, severity model.Severity, msg string, err error) {
	if s.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "reporter panicked", "panic", r)
		}
	}()
	s.reporter.Report(ctx, severity, msg, err)
}

func (s *Sender) notify(ctx context.Context, n model.Notification) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "notifier panicked", "panic", r)
		}
	}()
	s.notifier.Notify(ctx, n)
}
