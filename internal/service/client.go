package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forge3d/assetsync/internal/model"
	"github.com/forge3d/assetsync/internal/protocol"
)

// ErrNotReady means QueueAsset was called before EnsureReady succeeded.
var ErrNotReady = errors.New("no worker session, call EnsureReady first")

const defaultHandshakeTimeout = 10 * time.Second

// WorkerFactory creates and launches one worker per session.
type WorkerFactory func(ctx context.Context) (Worker, error)

// NewSupervisorFactory returns the production factory launching the real
// host process.
func NewSupervisorFactory(cfg LaunchConfig) WorkerFactory {
	return func(ctx context.Context) (Worker, error) {
		return Launch(ctx, cfg)
	}
}

// Client is the surface consumed by the panel layer: ensure a worker
// session is ready, enqueue asset jobs, cancel the in-flight batch. A
// coarse mutex serializes session starts so only one can be launching at
// a time.
type Client struct {
	factory          WorkerFactory
	senderCfg        SenderConfig
	handshakeTimeout time.Duration
	reporter         model.Reporter
	notifier         model.Notifier
	metrics          Collector
	onComplete       func(Counters)
	onRefresh        func()

	mu         sync.Mutex
	session    *Session
	worker     Worker
	loops      *errgroup.Group
	loopCancel context.CancelFunc
}

// ClientOption configures optional Client collaborators.
type ClientOption func(*Client)

func WithReporter(r model.Reporter) ClientOption {
	return func(c *Client) { c.reporter = r }
}

func WithNotifier(n model.Notifier) ClientOption {
	return func(c *Client) { c.notifier = n }
}

func WithCollector(m Collector) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithSenderTiming(cfg SenderConfig) ClientOption {
	return func(c *Client) { c.senderCfg = cfg }
}

func WithHandshakeTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.handshakeTimeout = d }
}

// WithCompletion registers the callback fired once per drained or
// cancelled batch, with the batch's final counters.
func WithCompletion(fn func(Counters)) ClientOption {
	return func(c *Client) { c.onComplete = fn }
}

// WithRefresh registers the callback fired after every completed exchange.
func WithRefresh(fn func()) ClientOption {
	return func(c *Client) { c.onRefresh = fn }
}

func NewClient(factory WorkerFactory, opts ...ClientOption) *Client {
	c := &Client{
		factory:          factory,
		handshakeTimeout: defaultHandshakeTimeout,
		metrics:          NewNoopCollector(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureReady launches a worker session if none is alive and waits for its
// handshake. With a live worker it only enqueues a STILL_THERE ping. If
// the previous session's loops are still marked running while the process
// is gone, that inconsistency is returned as ErrSessionInconsistent.
func (c *Client) EnsureReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker != nil {
		if c.worker.Alive() {
			c.session.Outbound.Push(protocol.New(protocol.CodeStillThere))
			return nil
		}
		if c.session.LoopsRunning() {
			c.report(ctx, model.SeverityError, "session state inconsistent", ErrSessionInconsistent)
			return ErrSessionInconsistent
		}
		// Dead and fully stopped: discard and relaunch below.
		c.worker = nil
		c.session = nil
	}

	worker, err := c.factory(ctx)
	if err != nil {
		c.report(ctx, model.SeverityError, "worker launch failed", err)
		return err
	}

	session := NewSession()
	listener := NewListener(session, worker, c.reporter, c.metrics)
	sender := NewSender(c.senderCfg, session, worker,
		WithSenderReporter(c.reporter),
		WithSenderNotifier(c.notifier),
		WithSenderCollector(c.metrics),
		WithOnComplete(c.onComplete),
		WithOnRefresh(c.onRefresh),
	)

	// Loops outlive the EnsureReady call; they stop with the session.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, loopCtx := errgroup.WithContext(loopCtx)
	g.Go(func() error { return listener.Run(loopCtx) })
	g.Go(func() error { return sender.Run(loopCtx) })

	if err := session.AwaitReady(ctx, c.handshakeTimeout); err != nil {
		cancel()
		_ = worker.Shutdown(ctx)
		_ = g.Wait()
		c.report(ctx, model.SeverityError, "worker handshake failed", err)
		return err
	}

	c.metrics.WorkerLaunched()
	c.session = session
	c.worker = worker
	c.loops = g
	c.loopCancel = cancel
	slog.InfoContext(ctx, "worker session ready")
	return nil
}

// QueueAsset enqueues one synchronization job. The command is sent in FIFO
// order relative to other queued jobs.
func (c *Client) QueueAsset(job model.AssetJob) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return ErrNotReady
	}
	if job.Name == "" {
		return fmt.Errorf("queueing asset job: name is empty")
	}

	session.Outbound.Push(protocol.NewAsset(job.Data(), job.ParamsMap()))
	session.AddQueued()
	return nil
}

// CancelBatch flags the in-flight batch for cancellation. The Sender
// observes the flag within one poll interval, or after the current
// exchange's retry ceiling at worst.
func (c *Client) CancelBatch() {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session != nil {
		session.RequestCancel()
	}
}

// Counters returns the job counter snapshot of the current session.
func (c *Client) Counters() Counters {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return Counters{}
	}
	return session.Counters()
}

// Close tears the session down: it stops both loops, sends a best-effort
// EXIT, reaps the worker and waits for the loops to drain. Safe without a
// session.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil {
		return nil
	}

	c.loopCancel()
	if c.worker.Alive() {
		if framed, err := protocol.Frame(protocol.New(protocol.CodeExit)); err == nil {
			_, _ = c.worker.Input().Write(framed)
		}
	}

	err := c.worker.Shutdown(ctx)
	_ = c.loops.Wait()

	c.session = nil
	c.worker = nil
	c.loops = nil
	c.loopCancel = nil
	return err
}

func (c *Client) report(ctx context.Context, severity model.Severity, msg string, err error) {
	if c.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "reporter panicked", "panic", r)
		}
	}()
	c.reporter.Report(ctx, severity, msg, err)
}
