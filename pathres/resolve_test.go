package pathres

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0755))
	return p
}

func TestResolveFindsFirstMatch(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeExecutable(t, dirB, "tool")

	res, err := Resolve("tool", dirA+":"+dirB)
	require.NoError(t, err)
	require.True(t, res.Resolved)
	require.Equal(t, filepath.Join(dirB, "tool"), res.Path)
}

func TestResolveSkipsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))

	_, err := Resolve("data", dir)
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResolveDefersDotAndEmptyEntries(t *testing.T) {
	cwd := t.TempDir()
	other := t.TempDir()

	writeExecutable(t, cwd, "dup")
	writeExecutable(t, other, "dup")

	oldwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(oldwd)
	require.NoError(t, os.Chdir(cwd))

	// "." comes first in the list but must be tried last.
	res, err := Resolve("dup", ".:"+other)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(other, "dup"), res.Path)
}

func TestResolveWithSlashSkipsSearch(t *testing.T) {
	dir := t.TempDir()
	p := writeExecutable(t, dir, "tool")

	res, err := Resolve(p, "/nonexistent")
	require.NoError(t, err)
	require.True(t, res.Resolved)
}

func TestRealpathFollowsSymlinkChain(t *testing.T) {
	dir := t.TempDir()
	target := writeExecutable(t, dir, "real")

	link1 := filepath.Join(dir, "link1")
	require.NoError(t, os.Symlink(target, link1))
	link2 := filepath.Join(dir, "link2")
	require.NoError(t, os.Symlink(link1, link2))

	res, err := Resolve(link2, "")
	require.NoError(t, err)
	require.True(t, res.Resolved)
	require.Equal(t, target, res.Path)
}

func TestRealpathDetectsLoop(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.Symlink(b, a))
	require.NoError(t, os.Symlink(a, b))

	_, err := realpath(a)
	require.Error(t, err)
	var tm *TooManySymlinksError
	require.ErrorAs(t, err, &tm)
}
