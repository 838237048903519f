package sig

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAddSignalSetsExpectedBit(t *testing.T) {
	var mask unix.Sigset_t
	addSignal(&mask, unix.SIGTERM)

	n := uint(unix.SIGTERM) - 1
	require.NotZero(t, mask.Val[n/64]&(1<<(n%64)))
}

func TestSupervisedSetExcludesUncatchableSignals(t *testing.T) {
	excluded := []unix.Signal{unix.SIGKILL, unix.SIGSTOP, unix.SIGILL, unix.SIGFPE, unix.SIGSEGV}
	for _, e := range excluded {
		for _, s := range Set {
			require.NotEqual(t, e, s)
		}
	}
}
