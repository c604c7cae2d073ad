package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forge3d/assetsync/internal/service"
)

func TestSessionHandshake(t *testing.T) {
	t.Parallel()

	s := service.NewSession()

	// Repeated signals collapse into one readiness token.
	s.SignalReady()
	s.SignalReady()
	require.NoError(t, s.AwaitReady(context.Background(), time.Second))

	err := s.AwaitReady(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, service.ErrHandshakeTimeout)
}

func TestSessionHandshakeContext(t *testing.T) {
	t.Parallel()

	s := service.NewSession()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.AwaitReady(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSessionCancelFlag(t *testing.T) {
	t.Parallel()

	s := service.NewSession()
	require.False(t, s.CancelRequested())
	s.RequestCancel()
	require.True(t, s.CancelRequested())
	s.ClearCancel()
	require.False(t, s.CancelRequested())
}

func TestSessionCounters(t *testing.T) {
	t.Parallel()

	s := service.NewSession()
	require.False(t, s.LoopsRunning())

	s.AddQueued()
	s.AddQueued()
	s.AddSucceeded()
	s.AddFailed()
	require.Equal(t, service.Counters{Queued: 2, Succeeded: 1, Failed: 1}, s.Counters())

	s.ResetCounters()
	require.Equal(t, service.Counters{}, s.Counters())
}
