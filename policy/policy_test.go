package policy

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func writeSudoers(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o440))
	require.NoError(t, fs.Chmod(path, 0o440))
}

func TestLoadSimpleUserSpec(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", "alice ALL=(ALL:ALL) ALL\n")

	p, warnings, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, p.specs, 1)

	dec := p.Evaluate(Request{
		InvokerName: "alice",
		Host:        "box1",
		TargetUser:  "root",
		Command:     "/usr/bin/id",
	})
	require.True(t, dec.Allowed)
}

func TestLastMatchWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", ""+
		"bob ALL=(ALL) ALL\n"+
		"bob ALL=(ALL) !/usr/bin/passwd\n",
	)

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	allowed := p.Evaluate(Request{InvokerName: "bob", Host: "h", TargetUser: "root", Command: "/usr/bin/id"})
	require.True(t, allowed.Allowed)

	denied := p.Evaluate(Request{InvokerName: "bob", Host: "h", TargetUser: "root", Command: "/usr/bin/passwd"})
	require.False(t, denied.Allowed)
}

func TestAliasExpansion(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", ""+
		"User_Alias ADMINS = alice, bob\n"+
		"Host_Alias WEB = web1, web2\n"+
		"ADMINS WEB=(root) /usr/bin/systemctl\n",
	)

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	dec := p.Evaluate(Request{InvokerName: "bob", Host: "web2", TargetUser: "root", Command: "/usr/bin/systemctl"})
	require.True(t, dec.Allowed)

	dec = p.Evaluate(Request{InvokerName: "bob", Host: "db1", TargetUser: "root", Command: "/usr/bin/systemctl"})
	require.False(t, dec.Allowed)
}

func TestWildcardNeverCrossesSlash(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", "carol ALL=(root) /usr/bin/*\n")

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	ok := p.Evaluate(Request{InvokerName: "carol", Host: "h", TargetUser: "root", Command: "/usr/bin/ls"})
	require.True(t, ok.Allowed)

	nested := p.Evaluate(Request{InvokerName: "carol", Host: "h", TargetUser: "root", Command: "/usr/bin/sub/ls"})
	require.False(t, nested.Allowed)
}

func TestNopasswdTag(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", "dave ALL=(root) NOPASSWD: /usr/bin/uptime\n")

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	dec := p.Evaluate(Request{InvokerName: "dave", Host: "h", TargetUser: "root", Command: "/usr/bin/uptime"})
	require.True(t, dec.Allowed)
	require.False(t, dec.MustAuthenticate)
}

func TestStickyTagsCarryForward(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", "erin ALL=(root) NOPASSWD: /usr/bin/uptime, /usr/bin/df\n")

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	dec := p.Evaluate(Request{InvokerName: "erin", Host: "h", TargetUser: "root", Command: "/usr/bin/df"})
	require.True(t, dec.Allowed)
	require.False(t, dec.MustAuthenticate)
}

func TestDefaultsSecurePathAndEnvKeep(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", ""+
		"Defaults secure_path=/usr/local/bin:/usr/bin:/bin\n"+
		"Defaults env_keep += \"LANG LC_ALL\"\n"+
		"frank ALL=(root) ALL\n",
	)

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	dec := p.Evaluate(Request{InvokerName: "frank", Host: "h", TargetUser: "root", Command: "/bin/true"})
	require.True(t, dec.Allowed)
	require.Equal(t, "/usr/local/bin:/usr/bin:/bin", dec.SecurePath)
	require.True(t, dec.EnvKeep.Contains("LANG"))
	require.True(t, dec.EnvKeep.Contains("LC_ALL"))
}

func TestEnvEditorDisabledByDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", ""+
		"Defaults !env_editor\n"+
		"frank ALL=(root) ALL\n",
	)

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)
	require.False(t, p.EnvEditorEnabled("frank", "h"))
}

func TestEnvEditorEnabledByDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", "frank ALL=(root) ALL\n")

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)
	require.True(t, p.EnvEditorEnabled("frank", "h"))
}

func TestInsecureModeRejected(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/sudoers", []byte("ALL ALL=(ALL) ALL\n"), 0o666))

	_, _, err := LoadFS(fs, "/etc/sudoers")
	require.Error(t, err)
	require.IsType(t, &InsecureError{}, err)
}

func TestNoMatchIsForbidden(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", "grace ALL=(root) /usr/bin/ls\n")

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	dec := p.Evaluate(Request{InvokerName: "random", Host: "h", TargetUser: "root", Command: "/usr/bin/ls"})
	require.False(t, dec.Allowed)
	require.False(t, dec.Matched)
}

func TestMatchedButDeniedSetsMatched(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", ""+
		"bob ALL=(ALL) ALL\n"+
		"bob ALL=(ALL) !/usr/bin/passwd\n",
	)

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	dec := p.Evaluate(Request{InvokerName: "bob", Host: "h", TargetUser: "root", Command: "/usr/bin/passwd"})
	require.False(t, dec.Allowed)
	require.True(t, dec.Matched)
}

func TestEmptyRunasListAllowsOnlySelf(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSudoers(t, fs, "/etc/sudoers", "alice ALL=(:operator) /bin/ls\n")

	p, _, err := LoadFS(fs, "/etc/sudoers")
	require.NoError(t, err)

	asSelf := p.Evaluate(Request{InvokerName: "alice", Host: "h", TargetUser: "alice", Command: "/bin/ls"})
	require.True(t, asSelf.Allowed)

	asRoot := p.Evaluate(Request{InvokerName: "alice", Host: "h", TargetUser: "root", Command: "/bin/ls"})
	require.False(t, asRoot.Allowed)
}
