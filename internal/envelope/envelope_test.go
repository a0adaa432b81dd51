package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamcore/kissbridge/internal/msgbus"
)

func newLoopbackSocket(t *testing.T, host string) *Socket {
	t.Helper()
	url := "inproc://envelope-test-" + t.Name() + "-" + host
	pub, err := msgbus.NewPub(url)
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })
	sub, err := msgbus.NewSub(url)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })
	time.Sleep(20 * time.Millisecond)
	sock, err := NewSocket(host, DelimDot, pub, sub)
	require.NoError(t, err)
	return sock
}

func TestSendRecvSinglePart(t *testing.T) {
	sock := newLoopbackSocket(t, "alice")

	env := Envelope{Session: "s1", Command: "msg"}
	require.NoError(t, sock.Send("alice", env, []byte("hello")))

	got, data, ok, err := sock.Recv()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", got.Remote) // own host, looped back to itself
	require.Equal(t, "s1", got.Session)
	require.Equal(t, "msg", got.Command)
	require.Equal(t, []byte("hello"), data)
}

// TestRecvTargetMismatchDrains checks that a message addressed to a
// different target is fully drained and reported as ok=false rather
// than corrupting the next Recv, exercising the target check in
// RecvStream (the SUB has no transport-level prefix filter to rely on
// here: see NewSocket's doc comment).
func TestRecvTargetMismatchDrains(t *testing.T) {
	sock := newLoopbackSocket(t, "bob")

	env := Envelope{Session: "s1", Command: "msg"}
	require.NoError(t, sock.Send("someone-else", env, []byte("hello")))

	_, ok, err := sock.RecvStream(func(part []byte, more bool) error { return nil })
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSendStreamMultiPartPreservesOrderAndFlags(t *testing.T) {
	sock := newLoopbackSocket(t, "multi")

	parts := [][]byte{[]byte("ab"), []byte("cd")}
	idx := 0
	env := Envelope{Remote: "ignored-on-send", Session: "s1", Command: "msg"}
	err := sock.SendStream("multi", env, func() ([]byte, bool, error) {
		part := parts[idx]
		more := idx < len(parts)-1
		idx++
		return part, more, nil
	})
	require.NoError(t, err)

	var got [][]byte
	var moreFlags []bool
	_, ok, err := sock.RecvStream(func(part []byte, more bool) error {
		cp := append([]byte(nil), part...)
		got = append(got, cp)
		moreFlags = append(moreFlags, more)
		return nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, parts, got)
	require.Equal(t, []bool{true, false}, moreFlags)
}

func TestRecvMultiPartViaRecvIsFramingError(t *testing.T) {
	sock := newLoopbackSocket(t, "single")

	idx := 0
	parts := [][]byte{[]byte("a"), []byte("b")}
	env := Envelope{Session: "s1", Command: "msg"}
	require.NoError(t, sock.SendStream("single", env, func() ([]byte, bool, error) {
		part := parts[idx]
		more := idx < len(parts)-1
		idx++
		return part, more, nil
	}))

	_, _, _, err := sock.Recv()
	require.Error(t, err)
}
