package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapString(t *testing.T) {
	require.Equal(t, "chown", CAP_CHOWN.String())
	require.Equal(t, "sys_admin", CAP_SYS_ADMIN.String())
	require.Equal(t, "unknown", Cap(9999).String())
}
