package signalbus

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := Record{Signo: int(syscall.SIGINT)}
	decoded, ok := decode(encode(rec))
	require.True(t, ok)
	require.Equal(t, rec, decoded)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, ok := decode([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		signo  syscall.Signal
		action Action
	}{
		{syscall.SIGINT, ActionTerminate},
		{syscall.SIGTERM, ActionTerminate},
		{syscall.SIGQUIT, ActionExit},
		{syscall.SIGUSR1, ActionReload},
		{syscall.SIGUSR2, ActionIgnore},
	}
	for _, c := range cases {
		require.Equal(t, c.action, classify(int(c.signo)))
	}
}

// TestDispatcherFanoutToSubscription exercises NewDispatcher/Subscribe
// end to end against the package's fixed inproc address. It injects
// directly into the Dispatcher's signal channel rather than sending a
// real process signal, since the process-wide os/signal registration
// in NewDispatcher would otherwise race with any other test in this
// binary that also calls NewDispatcher.
func TestDispatcherFanoutToSubscription(t *testing.T) {
	d, err := NewDispatcher()
	require.NoError(t, err)
	defer d.Stop()
	go d.Run()

	sub, err := Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	time.Sleep(20 * time.Millisecond)
	d.sigCh <- syscall.SIGQUIT

	select {
	case action := <-sub.C():
		require.Equal(t, ActionExit, action)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fanout signal")
	}
}
