package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forge3d/assetsync/internal/model"
	"github.com/forge3d/assetsync/internal/protocol"
)

// fakeWorker stands in for a supervised child process. The protocol
// stream is an in-memory pipe the test writes frames into; everything
// the loops send toward the worker is captured in a buffer.
type fakeWorker struct {
	protoR *io.PipeReader
	protoW *io.PipeWriter

	inMu sync.Mutex
	in   bytes.Buffer

	alive     atomic.Bool
	shutdowns atomic.Int32
	closeOnce sync.Once
}

func newFakeWorker() *fakeWorker {
	r, w := io.Pipe()
	fw := &fakeWorker{protoR: r, protoW: w}
	fw.alive.Store(true)
	return fw
}

func (w *fakeWorker) Alive() bool         { return w.alive.Load() }
func (w *fakeWorker) Protocol() io.Reader { return w.protoR }
func (w *fakeWorker) Input() io.Writer    { return w }

func (w *fakeWorker) Write(p []byte) (int, error) {
	if !w.alive.Load() {
		return 0, io.ErrClosedPipe
	}
	w.inMu.Lock()
	defer w.inMu.Unlock()
	return w.in.Write(p)
}

func (w *fakeWorker) Shutdown(context.Context) error {
	w.alive.Store(false)
	w.shutdowns.Add(1)
	w.ClosePipes()
	return nil
}

func (w *fakeWorker) ClosePipes() {
	w.closeOnce.Do(func() {
		_ = w.protoW.Close()
		_ = w.protoR.Close()
	})
}

// emit writes one framed command onto the protocol stream, as the child
// would. Blocks until a Listener reads it.
func (w *fakeWorker) emit(t *testing.T, cmd protocol.Command) {
	t.Helper()
	framed, err := protocol.Frame(cmd)
	require.NoError(t, err)
	_, err = w.protoW.Write(framed)
	require.NoError(t, err)
}

// emitRaw writes unframed bytes onto the protocol stream.
func (w *fakeWorker) emitRaw(t *testing.T, raw string) {
	t.Helper()
	_, err := w.protoW.Write([]byte(raw))
	require.NoError(t, err)
}

// sentCodes re-frames everything written to the worker's input so far.
func (w *fakeWorker) sentCodes(t *testing.T) []protocol.Code {
	t.Helper()
	w.inMu.Lock()
	raw := append([]byte(nil), w.in.Bytes()...)
	w.inMu.Unlock()

	ex := protocol.NewExtractor()
	ex.Feed(raw)

	var out []protocol.Code
	for {
		payload, err := ex.Next()
		if errors.Is(err, protocol.ErrIncomplete) {
			return out
		}
		require.NoError(t, err)
		cmd, err := protocol.Decode(payload)
		require.NoError(t, err)
		out = append(out, cmd.Code)
	}
}

func countCode(codes []protocol.Code, c protocol.Code) int {
	n := 0
	for _, got := range codes {
		if got == c {
			n++
		}
	}
	return n
}

// memReporter records reported issues for assertions.
type memReporter struct {
	mu      sync.Mutex
	entries []string
}

func (r *memReporter) Report(_ context.Context, severity model.Severity, msg string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, string(severity)+": "+msg)
}

func (r *memReporter) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if bytes.Contains([]byte(e), []byte(msg)) {
			n++
		}
	}
	return n
}

// memNotifier counts UI banner notifications.
type memNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (n *memNotifier) Notify(_ context.Context, note model.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

func (n *memNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *memNotifier) last() model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return model.Notification{}
	}
	return n.sent[len(n.sent)-1]
}
