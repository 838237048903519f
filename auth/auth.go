package auth

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	xterm "golang.org/x/term"

	"github.com/trifectatechfoundation/sudo-rs-sub002/term"
)

// maxPasswordLen matches the reference backend's fixed-size response
// buffer (§4.A).
const maxPasswordLen = 512

// ErrInteractionRequired is returned when -n forbids prompting and no
// valid cache record exists.
var ErrInteractionRequired = errors.New("a password is required but interaction is not allowed")

// ErrAuthFailed covers a wrong password, an oversize response, or an
// exhausted retry budget.
var ErrAuthFailed = errors.New("authentication attempt failed")

// Verifier checks a candidate password for authUser, returning nil on
// success. It is the pluggable "backend" the spec's §4.A leaves abstract
// (PAM, shadow, etc. in a real deployment).
type Verifier func(authUser string, password []byte) error

// Authenticator drives §4.A's interactive/cache/ask-pass flow.
type Authenticator struct {
	Cache          *Cache
	Verify         Verifier
	PasswdTries    uint16
	Validity       time.Duration
	NonInteractive bool // -n

	// PromptOverride replaces the default "[sudo] password for USER: "
	// wording when set (-p, already %-substituted by the caller).
	PromptOverride string

	// ReadPassword replaces the default tty-reading strategy when set
	// (-S reads from stdin, -A runs SUDO_ASKPASS).
	ReadPassword func(prompt string) ([]byte, error)
}

// Authenticate runs the full §4.A algorithm for authUser, consulting the
// cache first and falling back to interactive/ask-pass prompting.
func (a *Authenticator) Authenticate(authUser string, authUid uint32, sess Session) error {
	rec, err := a.Cache.Load(authUid)
	if err != nil {
		return err
	}
	if Valid(rec, a.Validity, sess, time.Now()) {
		return nil
	}

	if a.NonInteractive {
		return ErrInteractionRequired
	}

	tries := a.PasswdTries
	if tries == 0 {
		tries = 3
	}

	prompt := a.PromptOverride
	if prompt == "" {
		prompt = fmt.Sprintf("[sudo] password for %s: ", authUser)
	}

	readPasswordFn := a.ReadPassword
	if readPasswordFn == nil {
		readPasswordFn = readPassword
	}

	var lastErr error
	for i := uint16(0); i < tries; i++ {
		password, err := readPasswordFn(prompt)
		if err != nil {
			return errors.Wrap(err, "reading password")
		}
		if len(password) > maxPasswordLen {
			lastErr = ErrAuthFailed
			continue
		}

		if err := a.Verify(authUser, password); err != nil {
			zero(password)
			lastErr = ErrAuthFailed
			continue
		}
		zero(password)

		now := time.Now().UnixNano()
		rec := &Record{AuthUser: authUid, Target: authUid, CreatedAt: now}
		if sess.TtyDeviceID != nil {
			rec.TtyDeviceID = sess.TtyDeviceID
		}
		return a.Cache.Store(rec)
	}

	return lastErr
}

// readPassword opens /dev/tty for the prompt, falling back to
// stdin/stderr, with echo disabled but ECHONL preserved (§4.A).
func readPassword(prompt string) ([]byte, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err == nil {
		defer tty.Close()
		return readPasswordFrom(tty, tty, prompt)
	}
	return readPasswordFrom(os.Stdin, os.Stderr, prompt)
}

// ReadPasswordFromStdin implements -S. When stdin is itself a terminal
// (an interactive shell redirecting its own tty in), x/term.ReadPassword
// is used for the no-echo read; otherwise (the common case: a pipe) the
// password is just the next line, since there is no echo to suppress.
func ReadPasswordFromStdin(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if xterm.IsTerminal(fd) {
		return xterm.ReadPassword(fd)
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return []byte(strings.TrimRight(string(line), "\r\n")), nil
}

func readPasswordFrom(in *os.File, out *os.File, prompt string) ([]byte, error) {
	fmt.Fprint(out, prompt)

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		saved, err := term.SaveTermios(fd)
		if err == nil {
			defer saved.Restore()
			term.SetEcho(fd, false)
		}
	}

	reader := bufio.NewReader(in)
	line, err := reader.ReadBytes('\n')
	fmt.Fprintln(out)
	if err != nil && len(line) == 0 {
		return nil, err
	}

	return []byte(strings.TrimRight(string(line), "\r\n")), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// AskPass spawns SUDO_ASKPASS (which must be an absolute path) with the
// prompt string as argv[1]; its stdout's first line, minus the trailing
// newline, is the password (§4.A).
func AskPass(program, prompt string) ([]byte, error) {
	if !filepath.IsAbs(program) {
		return nil, errors.New("SUDO_ASKPASS must be an absolute path")
	}

	cmd := exec.Command(program, prompt)
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "running askpass program")
	}

	line := out
	if idx := indexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return line, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
