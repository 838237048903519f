package env

import (
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"
)

func findVar(entries []string, name string) (string, bool) {
	prefix := name + "="
	for _, e := range entries {
		if strings.HasPrefix(e, prefix) {
			return strings.TrimPrefix(e, prefix), true
		}
	}
	return "", false
}

func TestBuildKeepsEnvKeepVars(t *testing.T) {
	out := Build(Input{
		Invoker:    map[string]string{"LANG": "en_US.UTF-8", "SECRET": "x"},
		EnvKeep:    mapset.NewSet("LANG"),
		EnvCheck:   mapset.NewSet[string](),
		EnvDelete:  mapset.NewSet[string](),
		InvokerUser: TargetUser{Name: "alice", Uid: 1000, Gid: 1000},
		Target:      TargetUser{Name: "root", Home: "/root", Shell: "/bin/bash"},
		Command:     "/usr/bin/ls",
	})

	v, ok := findVar(out, "LANG")
	require.True(t, ok)
	require.Equal(t, "en_US.UTF-8", v)

	_, ok = findVar(out, "SECRET")
	require.False(t, ok)
}

func TestBuildEnvCheckRejectsPathValue(t *testing.T) {
	out := Build(Input{
		Invoker:     map[string]string{"TERM": "xterm/evil"},
		EnvKeep:     mapset.NewSet[string](),
		EnvCheck:    mapset.NewSet("TERM"),
		EnvDelete:   mapset.NewSet[string](),
		InvokerUser: TargetUser{Name: "alice"},
		Target:      TargetUser{Name: "root", Home: "/root", Shell: "/bin/bash"},
		Command:     "/usr/bin/ls",
	})

	_, ok := findVar(out, "TERM")
	require.False(t, ok)
}

func TestBuildSudoCommandTruncation(t *testing.T) {
	longArg := strings.Repeat("a", 5000)
	out := Build(Input{
		Invoker:     map[string]string{},
		EnvKeep:     mapset.NewSet[string](),
		EnvCheck:    mapset.NewSet[string](),
		EnvDelete:   mapset.NewSet[string](),
		InvokerUser: TargetUser{Name: "alice"},
		Target:      TargetUser{Name: "root", Home: "/root", Shell: "/bin/bash"},
		Command:     "/usr/bin/echo",
		Arguments:   []string{longArg},
	})

	v, ok := findVar(out, "SUDO_COMMAND")
	require.True(t, ok)
	require.LessOrEqual(t, len(v), maxCommandLen)
}

func TestBuildSecurePathOverridesRetainedPath(t *testing.T) {
	out := Build(Input{
		Invoker:     map[string]string{"PATH": "/home/alice/bin"},
		EnvKeep:     mapset.NewSet("PATH"),
		EnvCheck:    mapset.NewSet[string](),
		EnvDelete:   mapset.NewSet[string](),
		SecurePath:  "/usr/bin:/bin",
		InvokerUser: TargetUser{Name: "alice"},
		Target:      TargetUser{Name: "root", Home: "/root", Shell: "/bin/bash"},
		Command:     "/usr/bin/ls",
	})

	v, ok := findVar(out, "PATH")
	require.True(t, ok)
	require.Equal(t, "/usr/bin:/bin", v)
}

func TestBuildRenamesSudoPs1(t *testing.T) {
	out := Build(Input{
		Invoker:     map[string]string{"SUDO_PS1": "$ "},
		EnvKeep:     mapset.NewSet[string](),
		EnvCheck:    mapset.NewSet[string](),
		EnvDelete:   mapset.NewSet[string](),
		InvokerUser: TargetUser{Name: "alice"},
		Target:      TargetUser{Name: "root", Home: "/root", Shell: "/bin/bash"},
		Command:     "/usr/bin/ls",
	})

	_, ok := findVar(out, "SUDO_PS1")
	require.False(t, ok)
	v, ok := findVar(out, "PS1")
	require.True(t, ok)
	require.Equal(t, "$ ", v)
}

func TestBuildShellshockGuardHonorsWildcardEnvKeep(t *testing.T) {
	out := Build(Input{
		Invoker:     map[string]string{"SSH_FUNC": "() { :; }"},
		EnvKeep:     mapset.NewSet("SSH_*"),
		EnvCheck:    mapset.NewSet[string](),
		EnvDelete:   mapset.NewSet[string](),
		InvokerUser: TargetUser{Name: "alice"},
		Target:      TargetUser{Name: "root", Home: "/root", Shell: "/bin/bash"},
		Command:     "/usr/bin/ls",
	})

	v, ok := findVar(out, "SSH_FUNC")
	require.True(t, ok)
	require.Equal(t, "() { :; }", v)
}

func TestWildcardMatchWithValueConstraint(t *testing.T) {
	require.True(t, envPatternMatch("LC_*", "LC_ALL", "en_US.UTF-8"))
	require.True(t, envPatternMatch("TZ=US/*", "TZ", "US/Eastern"))
	require.False(t, envPatternMatch("TZ=US/*", "TZ", "Europe/Paris"))
}
