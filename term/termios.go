package term

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// State is a saved termios snapshot (§4.T "scoped acquisition").
type State struct {
	fd     int
	saved  unix.Termios
	active bool
}

// SaveTermios captures the current terminal attributes at fd.
func SaveTermios(fd int) (*State, error) {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, errors.Wrap(err, "save termios")
	}
	return &State{fd: fd, saved: *t, active: true}, nil
}

// Restore reapplies the saved attributes. Safe to call more than once; a
// second call is a no-op, matching the "restore on all exit paths" rule
// without risking a double-restore race.
func (s *State) Restore() error {
	if s == nil || !s.active {
		return nil
	}
	s.active = false
	if err := unix.IoctlSetTermios(s.fd, unix.TCSETS, &s.saved); err != nil {
		return errors.Wrap(err, "restore termios")
	}
	return nil
}

// SetEcho toggles ECHO and always turns ECHONL on, so the user's Enter
// keypress is still echoed during password entry (§4.A).
func SetEcho(fd int, enabled bool) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return errors.Wrap(err, "get termios")
	}
	if enabled {
		t.Lflag |= unix.ECHO
	} else {
		t.Lflag &^= unix.ECHO
	}
	t.Lflag |= unix.ECHONL
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return errors.Wrap(err, "set termios")
	}
	return nil
}
