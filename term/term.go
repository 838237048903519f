// Package term implements the pseudo-terminal and controlling-terminal
// operations the execution supervisor (§4.X) and authenticator (§4.A) rely
// on (§4.T). There is no teacher precedent for pty handling; the ioctl
// calling convention (typed wrappers around golang.org/x/sys/unix, one
// function per concern, errors wrapped with github.com/pkg/errors) follows
// the style the teacher uses throughout linuxUtils and idMap for its own
// raw-syscall wrappers.
package term

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Pty is an owned pseudo-terminal pair (§3 "Pseudo-terminal pair").
type Pty struct {
	Path     string
	Leader   *os.File
	Follower *os.File
}

// Close releases both descriptors. Safe to call more than once.
func (p *Pty) Close() error {
	var err error
	if p.Leader != nil {
		err = p.Leader.Close()
		p.Leader = nil
	}
	if p.Follower != nil {
		if ferr := p.Follower.Close(); err == nil {
			err = ferr
		}
		p.Follower = nil
	}
	return err
}

// OpenPty allocates a new pty pair via /dev/ptmx, unlocks it, and opens the
// follower device named by TIOCGPTN.
func OpenPty() (*Pty, error) {
	leader, err := os.OpenFile("/dev/ptmx", os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open /dev/ptmx")
	}

	if err := unix.IoctlSetPointerInt(int(leader.Fd()), unix.TIOCSPTLCK, 0); err != nil {
		leader.Close()
		return nil, errors.Wrap(err, "unlock pty")
	}

	n, err := unix.IoctlGetInt(int(leader.Fd()), unix.TIOCGPTN)
	if err != nil {
		leader.Close()
		return nil, errors.Wrap(err, "query pty number")
	}

	path := ptsPath(n)
	follower, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		leader.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}

	return &Pty{Path: path, Leader: leader, Follower: follower}, nil
}

func ptsPath(n int) string {
	return "/dev/pts/" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// IsTerminal reports whether fd names a character device AND the isatty
// ioctl succeeds (§4.T: the character-device check is mandatory before
// issuing the ioctl to an untrusted descriptor).
func IsTerminal(fd int) bool {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return false
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return false
	}
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}

// Tcgetpgrp returns the foreground process group of the terminal at fd.
func Tcgetpgrp(fd int) (int, error) {
	pgrp, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil {
		return 0, errors.Wrap(err, "tcgetpgrp")
	}
	return pgrp, nil
}

// Tcsetpgrp sets the foreground process group of the terminal at fd.
func Tcsetpgrp(fd int, pgrp int) error {
	p := int32(pgrp)
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, int(p)); err != nil {
		return errors.Wrap(err, "tcsetpgrp")
	}
	return nil
}

// MakeControllingTerminal installs fd as the calling (session-leader)
// process's controlling terminal. Must be called after a successful
// setsid.
func MakeControllingTerminal(fd int) error {
	if err := unix.IoctlSetInt(fd, unix.TIOCSCTTY, 0); err != nil {
		return errors.Wrap(err, "make controlling terminal")
	}
	return nil
}

// GetWinsize reads the terminal window size at fd.
func GetWinsize(fd int) (*unix.Winsize, error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return nil, errors.Wrap(err, "get window size")
	}
	return ws, nil
}

// SetWinsize propagates a window size to fd (used to mirror the user's
// tty size onto the pty leader on SIGWINCH, §4.X).
func SetWinsize(fd int, ws *unix.Winsize) error {
	if err := unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, ws); err != nil {
		return errors.Wrap(err, "set window size")
	}
	return nil
}
