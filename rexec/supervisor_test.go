package rexec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/trifectatechfoundation/sudo-rs-sub002/sig"
)

func TestRelaySignalForwardsSigcontToMonitor(t *testing.T) {
	parent, monitor, err := NewBackchannelPair()
	require.NoError(t, err)
	defer parent.Close()
	defer monitor.Close()

	s := &Supervisor{}
	s.relaySignal(sig.Event{Signo: unix.SIGCONT}, parent, 0, nil)

	got, err := monitor.Recv()
	require.NoError(t, err)
	require.Equal(t, KindSignal, got.Kind)
	require.Equal(t, int32(unix.SIGCONT), got.Payload)
}

func TestRelaySignalIgnoresSigchld(t *testing.T) {
	parent, monitor, err := NewBackchannelPair()
	require.NoError(t, err)
	defer parent.Close()
	defer monitor.Close()

	s := &Supervisor{}
	s.relaySignal(sig.Event{Signo: unix.SIGCHLD}, parent, 0, nil)

	// SIGCHLD must not itself produce a backchannel write (the reader
	// goroutine drains the real exit record instead); confirm the first
	// record the monitor receives is a marker the parent sends afterward.
	require.NoError(t, parent.Send(Message{Kind: KindExecCommand}))
	got, err := monitor.Recv()
	require.NoError(t, err)
	require.Equal(t, KindExecCommand, got.Kind)
}
