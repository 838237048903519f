package visudo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesMissingTargetWithMode0640(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sudoers")

	s, err := Open(target)
	require.NoError(t, err)
	defer s.Close()

	fi, err := os.Stat(target)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o640), fi.Mode().Perm())
}

func TestOpenFailsWhenAlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sudoers")
	require.NoError(t, os.WriteFile(target, []byte("root ALL=(ALL) ALL\n"), 0o640))

	first, err := Open(target)
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(target)
	require.Error(t, err)
	require.IsType(t, &BusyError{}, err)
}

func TestValidateRejectsMalformedSibling(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sudoers")
	require.NoError(t, os.WriteFile(target, []byte("root ALL=(ALL) ALL\n"), 0o640))

	s, err := Open(target)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.WriteFile(s.sibling, []byte("this is not valid sudoers syntax ===\n"), 0o640))
	err = s.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedSibling(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sudoers")
	require.NoError(t, os.WriteFile(target, []byte("root ALL=(ALL) ALL\n"), 0o640))

	s, err := Open(target)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.WriteFile(s.sibling, []byte("root ALL=(ALL) ALL\nalice ALL=(ALL) NOPASSWD: ALL\n"), 0o640))
	require.NoError(t, s.Validate())
}

func TestCommitRenamesSiblingOverTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sudoers")
	require.NoError(t, os.WriteFile(target, []byte("root ALL=(ALL) ALL\n"), 0o640))

	s, err := Open(target)
	require.NoError(t, err)
	defer s.Close()

	edited := []byte("root ALL=(ALL) ALL\nalice ALL=(ALL) NOPASSWD: ALL\n")
	require.NoError(t, os.WriteFile(s.sibling, edited, 0o640))
	require.NoError(t, s.Commit(false))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, edited, got)

	_, err = os.Stat(s.sibling)
	require.True(t, os.IsNotExist(err))
}

func TestCommitAbandonDiscardsSiblingAndLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sudoers")
	original := []byte("root ALL=(ALL) ALL\n")
	require.NoError(t, os.WriteFile(target, original, 0o640))

	s, err := Open(target)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.WriteFile(s.sibling, []byte("garbage\n"), 0o640))
	require.NoError(t, s.Commit(true))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, original, got)

	_, err = os.Stat(s.sibling)
	require.True(t, os.IsNotExist(err))
}

func TestChooseEditorPrefersSudoEditorOverOthers(t *testing.T) {
	t.Setenv("SUDO_EDITOR", "my-editor")
	t.Setenv("VISUAL", "other-editor")
	t.Setenv("EDITOR", "fallback-editor")

	require.Equal(t, "my-editor", chooseEditor(true, Prefs{}))
}

func TestChooseEditorFallsBackToDefaultWhenEnvEditorDisabled(t *testing.T) {
	t.Setenv("SUDO_EDITOR", "my-editor")

	require.Equal(t, defaultEditor, chooseEditor(false, Prefs{}))
}

func TestChooseEditorFallsBackToDefaultWhenUnset(t *testing.T) {
	t.Setenv("SUDO_EDITOR", "")
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "")

	require.Equal(t, defaultEditor, chooseEditor(true, Prefs{}))
}

func TestChooseEditorPrefersPrefsOverEnvironment(t *testing.T) {
	t.Setenv("SUDO_EDITOR", "my-editor")

	require.Equal(t, "pref-editor", chooseEditor(true, Prefs{Editor: "pref-editor"}))
}

func TestLoadPrefsReturnsZeroValueWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	p, err := LoadPrefs()
	require.NoError(t, err)
	require.Equal(t, Prefs{}, p)
}

func TestLoadPrefsParsesYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "sudo-rs-sub002")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visudo.yaml"), []byte("diff_mode: true\neditor: nano\n"), 0o644))

	p, err := LoadPrefs()
	require.NoError(t, err)
	require.True(t, p.DiffMode)
	require.Equal(t, "nano", p.Editor)
}

func TestSplitEditorCommandHandlesArguments(t *testing.T) {
	require.Equal(t, []string{"emacs", "-nw"}, splitEditorCommand("emacs -nw"))
	require.Equal(t, []string{"vi"}, splitEditorCommand("vi"))
}

func TestParsePromptAnswerAcceptsKnownLettersOnly(t *testing.T) {
	answer, ok := ParsePromptAnswer('e')
	require.True(t, ok)
	require.Equal(t, AnswerReedit, answer)

	_, ok = ParsePromptAnswer('z')
	require.False(t, ok)
}
