package identity

import (
	"os/user"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/require"
)

func TestParseHashToken(t *testing.T) {
	tests := []struct {
		in      string
		wantOk  bool
		wantVal uint32
	}{
		{"#0", true, 0},
		{"#1000", true, 1000},
		{"root", false, 0},
		{"#-1", false, 0},
		{"", false, 0},
		{"#4294967295", false, 0}, // 0xffffffff, outside DefaultIDRange
	}

	for _, tt := range tests {
		got, ok := parseHashToken(tt.in)
		require.Equal(t, tt.wantOk, ok, tt.in)
		if ok {
			require.Equal(t, tt.wantVal, got, tt.in)
		}
	}
}

func TestLookupUserCurrent(t *testing.T) {
	cur, err := user.Current()
	require.NoError(t, err)

	u, err := LookupUser(cur.Username)
	require.NoError(t, err)
	require.Equal(t, cur.Username, u.Name)
	require.NotEmpty(t, u.Home)
}

func TestLookupUserNotFound(t *testing.T) {
	_, err := LookupUser("no-such-user-sudo-rs-sub002")
	require.Error(t, err)
	var nf *ErrNotFound
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "user", nf.Kind)
}

func TestHasGroup(t *testing.T) {
	u := &User{Gid: 10, Groups: []uint32{10, 20, 30}}
	require.True(t, u.HasGroup(10))
	require.True(t, u.HasGroup(20))
	require.False(t, u.HasGroup(99))
}

func TestValidateIDRange(t *testing.T) {
	m := specs.LinuxIDMapping{HostID: 1000, Size: 1000}
	require.NoError(t, ValidateIDRange(1000, m))
	require.NoError(t, ValidateIDRange(1999, m))
	require.Error(t, ValidateIDRange(999, m))
	require.Error(t, ValidateIDRange(2000, m))
}
