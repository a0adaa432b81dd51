package bridge

import (
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/hamcore/kissbridge/internal/kiss"
	"github.com/hamcore/kissbridge/internal/msgbus"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func testConfig(t *testing.T, variantB bool) Config {
	t.Helper()
	cfg := Config{
		ClientRxURL:   "inproc://bridge-test-client-rx-" + t.Name(),
		ClientTxURL:   "inproc://bridge-test-client-tx-" + t.Name(),
		MaxPacketSize: 0x10000,
	}
	if variantB {
		cfg.ServerRxURL = "inproc://bridge-test-server-rx-" + t.Name()
		cfg.ServerTxURL = "inproc://bridge-test-server-tx-" + t.Name()
	}
	return cfg
}

// TestLoopbackSendObservedUnchanged: with no serial device, a send on
// the server-facing socket (here, the single collapsed client/server
// pair) is observed on the client-facing socket unchanged.
func TestLoopbackSendObservedUnchanged(t *testing.T) {
	cfg := testConfig(t, false)
	b, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer b.Close()

	// Test harness dials the opposite end of each bridge-bound socket.
	txPub, err := msgbus.DialPub(cfg.ClientTxURL)
	require.NoError(t, err)
	defer txPub.Close()
	rxSub, err := msgbus.DialSub(cfg.ClientRxURL)
	require.NoError(t, err)
	defer rxSub.Close()
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, txPub.Send(msgbus.EncodeMore([]byte("ping"), false)))

	result := <-b.clientRecv
	require.NoError(t, result.err)
	require.NoError(t, b.Handle("client_recv", reflect.ValueOf(result), true))

	raw, err := rxSub.Recv()
	require.NoError(t, err)
	payload, more := msgbus.DecodeMore(raw)
	require.False(t, more)
	require.Equal(t, []byte("ping"), payload)
}

// TestDecodeAndRouteSplitsByReplyFlag exercises the flag-routing
// invariant: in variant B, REPLY=1 routes to the client-facing socket
// and REPLY=0 to the server-facing socket.
func TestDecodeAndRouteSplitsByReplyFlag(t *testing.T) {
	cfg := testConfig(t, true)
	b, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer b.Close()

	clientSub, err := msgbus.DialSub(cfg.ClientRxURL)
	require.NoError(t, err)
	defer clientSub.Close()
	serverSub, err := msgbus.DialSub(cfg.ServerRxURL)
	require.NoError(t, err)
	defer serverSub.Close()
	time.Sleep(30 * time.Millisecond)

	toClient := append([]byte{flagReply}, []byte("for-client")...)
	toServer := append([]byte{0}, []byte("for-server")...)
	raw := append(kiss.EncodePacketBytes(toClient), kiss.EncodePacketBytes(toServer)...)

	b.decodeAndRoute(raw)

	gotClient, err := clientSub.Recv()
	require.NoError(t, err)
	payload, _ := msgbus.DecodeMore(gotClient)
	require.Equal(t, []byte("for-client"), payload)

	gotServer, err := serverSub.Recv()
	require.NoError(t, err)
	payload, _ = msgbus.DecodeMore(gotServer)
	require.Equal(t, []byte("for-server"), payload)
}

// TestMultiPartPreservesMoreFlag: a multi-part message's MORE flags
// survive the serial round trip.
func TestMultiPartPreservesMoreFlag(t *testing.T) {
	cfg := testConfig(t, true)
	b, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer b.Close()

	clientSub, err := msgbus.DialSub(cfg.ClientRxURL)
	require.NoError(t, err)
	defer clientSub.Close()
	time.Sleep(30 * time.Millisecond)

	part1 := append([]byte{flagReply | flagMore}, []byte("ab")...)
	part2 := append([]byte{flagReply}, []byte("cd")...)
	raw := append(kiss.EncodePacketBytes(part1), kiss.EncodePacketBytes(part2)...)

	b.decodeAndRoute(raw)

	got1, err := clientSub.Recv()
	require.NoError(t, err)
	p1, more1 := msgbus.DecodeMore(got1)
	require.Equal(t, []byte("ab"), p1)
	require.True(t, more1)

	got2, err := clientSub.Recv()
	require.NoError(t, err)
	p2, more2 := msgbus.DecodeMore(got2)
	require.Equal(t, []byte("cd"), p2)
	require.False(t, more2)
}
