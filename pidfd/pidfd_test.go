package pidfd

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenSelfAndSignalZero(t *testing.T) {
	fd, err := Open(os.Getpid(), 0)
	if err != nil {
		t.Skipf("pidfd_open unsupported on this kernel: %v", err)
	}
	defer fd.Close()

	// Signal 0 sends nothing but still validates the target exists,
	// mirroring kill(pid, 0)'s liveness-check idiom.
	require.NoError(t, fd.SendSignal(syscall.Signal(0), 0))
}

func TestOpenInvalidPid(t *testing.T) {
	_, err := Open(-1, 0)
	require.Error(t, err)
}

func TestCloseInvalid(t *testing.T) {
	var fd PidFd = -1
	require.Error(t, fd.Close())
}
