package rexec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trifectatechfoundation/sudo-rs-sub002/sig"
)

func TestBackchannelRoundtrip(t *testing.T) {
	parent, monitor, err := NewBackchannelPair()
	require.NoError(t, err)
	defer parent.Close()
	defer monitor.Close()

	require.NoError(t, parent.Send(Message{Kind: KindCommandPid, Payload: 4242}))

	got, err := monitor.Recv()
	require.NoError(t, err)
	require.Equal(t, KindCommandPid, got.Kind)
	require.Equal(t, int32(4242), got.Payload)
}

func TestBackchannelRoundtripCommandStopped(t *testing.T) {
	parent, monitor, err := NewBackchannelPair()
	require.NoError(t, err)
	defer parent.Close()
	defer monitor.Close()

	require.NoError(t, monitor.Send(Message{Kind: KindCommandStopped}))

	got, err := parent.Recv()
	require.NoError(t, err)
	require.Equal(t, KindCommandStopped, got.Kind)
}

func TestRecvRejectsUnknownDiscriminant(t *testing.T) {
	parent, monitor, err := NewBackchannelPair()
	require.NoError(t, err)
	defer parent.Close()
	defer monitor.Close()

	_, rawErr := parent.f.Write([]byte{0xff, 0, 0, 0, 0})
	require.NoError(t, rawErr)

	_, err = monitor.Recv()
	require.Error(t, err)
}

func TestIsSelfTerminatingMatchesCommandPid(t *testing.T) {
	require.True(t, isSelfTerminating(sig.Event{Pid: 100}, 100))
}
