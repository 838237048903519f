package term

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTerminalFalseForRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	require.NoError(t, err)
	defer f.Close()

	require.False(t, IsTerminal(int(f.Fd())))
}

func TestPtsPathFormatsDeviceNumber(t *testing.T) {
	require.Equal(t, "/dev/pts/0", ptsPath(0))
	require.Equal(t, "/dev/pts/42", ptsPath(42))
}
