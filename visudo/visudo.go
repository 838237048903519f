// Package visudo implements the visudo state machine (§4.V):
// Locked → Edited → Validated → Committed, with a Prompt(error) detour on
// a validation failure. Locking uses github.com/gofrs/flock (an exclusive
// advisory lock on a sibling file) and the commit step uses
// github.com/google/renameio/v2 for the atomic rename-over-target, the
// same two libraries the rest of this repo's go.mod carries for "take a
// lock, edit a copy, atomically publish" workflows with no teacher
// precedent of its own (the teacher never edits a shared system file).
package visudo

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trifectatechfoundation/sudo-rs-sub002/policy"
)

// State names the visudo state machine's nodes (§4.V).
type State int

const (
	StateLocked State = iota
	StateEdited
	StateValidated
	StatePrompt
	StateCommitted
)

// BusyError is returned when the sibling lock file is already held.
type BusyError struct {
	Path string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: already being edited", e.Path)
}

// Session drives one visudo run against a single target file.
type Session struct {
	Target  string
	sibling string
	lock    *flock.Flock
}

// defaultEditor is used when no SUDO_EDITOR/VISUAL/EDITOR is set, or when
// env_editor is disabled in the active policy.
const defaultEditor = "vi"

// Open implements the Locked state: acquire the exclusive lock, creating
// the target with mode 0640 if it doesn't exist.
func Open(target string) (*Session, error) {
	sibling := target + ".tmp"

	if _, err := os.Stat(target); os.IsNotExist(err) {
		if werr := os.WriteFile(target, nil, 0o640); werr != nil {
			return nil, errors.Wrap(werr, "creating target policy file")
		}
	}

	lock := flock.New(sibling)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "acquiring lock")
	}
	if !locked {
		return nil, &BusyError{Path: sibling}
	}

	return &Session{Target: target, sibling: sibling, lock: lock}, nil
}

// Close releases the lock, regardless of how the session ended.
func (s *Session) Close() error {
	return s.lock.Unlock()
}

// Edit implements the Edited state: copy the target to the sibling and
// run the chosen editor over it, the sibling path as the editor's last
// argument.
func (s *Session) Edit(envEditorEnabled bool) error {
	data, err := os.ReadFile(s.Target)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "reading target")
	}
	if err := os.WriteFile(s.sibling, data, 0o640); err != nil {
		return errors.Wrap(err, "copying target to scratch file")
	}

	prefs, _ := LoadPrefs()
	editor := chooseEditor(envEditorEnabled, prefs)
	args := splitEditorCommand(editor)
	args = append(args, s.sibling)

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "running editor")
	}
	return nil
}

func chooseEditor(envEditorEnabled bool, prefs Prefs) string {
	if !envEditorEnabled {
		return defaultEditor
	}
	if prefs.Editor != "" {
		return prefs.Editor
	}
	for _, name := range []string{"SUDO_EDITOR", "VISUAL", "EDITOR"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return defaultEditor
}

func splitEditorCommand(editor string) []string {
	var out []string
	cur := ""
	for _, r := range editor {
		if r == ' ' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	if len(out) == 0 {
		out = []string{defaultEditor}
	}
	return out
}

// Validate implements the Validated state: re-parse the sibling. On
// failure it returns the parse error for the caller to drive Prompt.
func (s *Session) Validate() error {
	_, _, err := policy.LoadFS(afero.NewOsFs(), s.sibling)
	return err
}

// Commit implements the Committed state: atomically rename the sibling
// over the target, or, if abandon is true, discard the sibling.
func (s *Session) Commit(abandon bool) error {
	if abandon {
		return os.Remove(s.sibling)
	}

	data, err := os.ReadFile(s.sibling)
	if err != nil {
		return errors.Wrap(err, "reading scratch file")
	}
	if err := renameio.WriteFile(s.Target, data, 0o440); err != nil {
		return errors.Wrap(err, "committing edited policy")
	}
	return os.Remove(s.sibling)
}

// PromptAnswer is the operator's single-character reply to Prompt(error)
// (§4.V).
type PromptAnswer byte

const (
	AnswerReedit    PromptAnswer = 'e'
	AnswerAbandon   PromptAnswer = 'x'
	AnswerForceSave PromptAnswer = 'Q'
)

// ParsePromptAnswer validates one operator keystroke; any other input
// means "re-prompt" (§4.V).
func ParsePromptAnswer(b byte) (PromptAnswer, bool) {
	switch PromptAnswer(b) {
	case AnswerReedit, AnswerAbandon, AnswerForceSave:
		return PromptAnswer(b), true
	}
	return 0, false
}

// IncludedFiles returns the @include/@includedir paths the target
// references, for the interactive "offer each included file for editing
// in sequence" behavior (§4.V). -f restricts editing to a single path
// instead, which callers implement by skipping this entirely.
func (s *Session) IncludedFiles() ([]string, error) {
	_, warnings, err := policy.LoadFS(afero.NewOsFs(), s.Target)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, w := range warnings {
		files = append(files, w.File)
	}
	return files, nil
}
