package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forge3d/assetsync/internal/protocol"
	"github.com/forge3d/assetsync/internal/service"
)

func TestCommandQueueOrder(t *testing.T) {
	t.Parallel()

	q := service.NewCommandQueue()
	q.Push(protocol.New(protocol.CodeHello))
	q.Push(protocol.New(protocol.CodeAsset))
	q.Push(protocol.New(protocol.CodeExit))
	require.Equal(t, 3, q.Len())

	for _, want := range []protocol.Code{protocol.CodeHello, protocol.CodeAsset, protocol.CodeExit} {
		cmd, ok := q.Pop(10 * time.Millisecond)
		require.True(t, ok)
		require.Equal(t, want, cmd.Code)
	}

	_, ok := q.Pop(10 * time.Millisecond)
	require.False(t, ok)
	require.Equal(t, 0, q.Len())
}

func TestCommandQueuePopWaits(t *testing.T) {
	t.Parallel()

	q := service.NewCommandQueue()
	got := make(chan protocol.Command, 1)
	go func() {
		cmd, ok := q.Pop(2 * time.Second)
		if ok {
			got <- cmd
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(protocol.New(protocol.CodeCmdDone))

	select {
	case cmd := <-got:
		require.Equal(t, protocol.CodeCmdDone, cmd.Code)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}

func TestCommandQueueFlush(t *testing.T) {
	t.Parallel()

	q := service.NewCommandQueue()
	for range 3 {
		q.Push(protocol.New(protocol.CodeAsset))
	}
	require.Equal(t, 3, q.Flush())
	require.Equal(t, 0, q.Len())
	require.Equal(t, 0, q.Flush())

	_, ok := q.Pop(10 * time.Millisecond)
	require.False(t, ok)
}
