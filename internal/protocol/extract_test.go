package protocol_test

import (
	"testing"

	"github.com/forge3d/assetsync/internal/protocol"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, cmd protocol.Command) []byte {
	t.Helper()
	b, err := protocol.Frame(cmd)
	require.NoError(t, err)
	return b
}

func TestExtractorRoundTrip(t *testing.T) {
	t.Parallel()

	first := frame(t, protocol.New(protocol.CodeHello))
	second := frame(t, protocol.NewAsset(map[string]any{"id": "a1"}, nil))
	stream := append(append([]byte(nil), first...), second...)

	// Any chunking of the concatenated stream must yield the same two
	// commands in order.
	for _, chunk := range []int{1, 2, 3, 7, len(stream)} {
		ex := protocol.NewExtractor()
		var got []protocol.Command
		for at := 0; at < len(stream); at += chunk {
			to := min(at+chunk, len(stream))
			ex.Feed(stream[at:to])
			for {
				payload, err := ex.Next()
				if err != nil {
					require.ErrorIs(t, err, protocol.ErrIncomplete)
					break
				}
				cmd, err := protocol.Decode(payload)
				require.NoError(t, err)
				got = append(got, cmd)
			}
		}
		require.Len(t, got, 2, "chunk size %d", chunk)
		require.Equal(t, protocol.CodeHello, got[0].Code)
		require.Equal(t, protocol.CodeAsset, got[1].Code)
		require.Equal(t, "a1", got[1].Data["id"])
	}
}

func TestExtractorIncomplete(t *testing.T) {
	t.Parallel()

	ex := protocol.NewExtractor()
	ex.Feed([]byte(protocol.MarkerStart + `{"code":"HELLO"}`))

	_, err := ex.Next()
	require.ErrorIs(t, err, protocol.ErrIncomplete)
	require.NotZero(t, ex.Buffered())

	ex.Feed([]byte(protocol.MarkerEnd))
	payload, err := ex.Next()
	require.NoError(t, err)
	require.JSONEq(t, `{"code":"HELLO"}`, string(payload))
}

func TestExtractorCorruption(t *testing.T) {
	t.Parallel()

	ex := protocol.NewExtractor()
	// End marker with no start marker before it: the garbage region is
	// dropped, the healthy frame after it survives.
	ex.Feed([]byte("garbage" + protocol.MarkerEnd))
	ex.Feed(frame(t, protocol.New(protocol.CodeStillThere)))

	_, err := ex.Next()
	require.ErrorIs(t, err, protocol.ErrCorrupted)

	payload, err := ex.Next()
	require.NoError(t, err)
	cmd, err := protocol.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, protocol.CodeStillThere, cmd.Code)

	_, err = ex.Next()
	require.ErrorIs(t, err, protocol.ErrIncomplete)
}

func TestExtractorForwardProgress(t *testing.T) {
	t.Parallel()

	ex := protocol.NewExtractor()
	f := frame(t, protocol.New(protocol.CodeExit))
	ex.Feed(f)

	_, err := ex.Next()
	require.NoError(t, err)

	// Consumed region is gone; only the trailing newline remains.
	require.Equal(t, 1, ex.Buffered())
	_, err = ex.Next()
	require.ErrorIs(t, err, protocol.ErrIncomplete)
}
