// Package sig implements the signal layer (§4.S): a process-wide stream of
// signal arrivals carrying sender pid/uid, delivered over a pollable file
// descriptor instead of conventional Go signal channels, so the supervisor
// never loses the metadata needed for the self-terminating-signal check in
// §4.X. Shaped like the teacher's pidmonitor package (Cfg/New, a command
// channel, a buffered event channel, one background goroutine) but the
// event source is unix.Signalfd rather than a polling loop.
package sig

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type cmd int

const (
	stop cmd = iota
)

// Event is one decoded signalfd_siginfo record (§3 "Signal handler
// state").
type Event struct {
	Signo unix.Signal
	Pid   int32
	Uid   uint32
	Code  int32
}

// Set is the supervised signal set running signal handling installs
// (§4.S). SIGKILL, SIGSTOP, SIGILL, SIGFPE, SIGSEGV are deliberately
// excluded.
var Set = []unix.Signal{
	unix.SIGINT, unix.SIGQUIT, unix.SIGTSTP, unix.SIGTERM, unix.SIGHUP,
	unix.SIGALRM, unix.SIGPIPE, unix.SIGUSR1, unix.SIGUSR2, unix.SIGCHLD,
	unix.SIGCONT, unix.SIGWINCH,
}

// Stream is a running signalfd-backed signal layer instance.
type Stream struct {
	mu      sync.Mutex
	fd      int
	oldMask unix.Sigset_t
	cmdCh   chan cmd
	EventCh chan Event
	closed  bool
}

// New blocks every signal in set via sigprocmask, opens a signalfd over
// the resulting mask, and starts a reader goroutine.
func New(set []unix.Signal) (*Stream, error) {
	var mask unix.Sigset_t
	for _, s := range set {
		addSignal(&mask, s)
	}

	var oldMask unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &mask, &oldMask); err != nil {
		return nil, errors.Wrap(err, "block supervised signal set")
	}

	fd, err := unix.Signalfd(-1, &mask, unix.SFD_CLOEXEC)
	if err != nil {
		unix.PthreadSigmask(unix.SIG_SETMASK, &oldMask, nil)
		return nil, errors.Wrap(err, "create signalfd")
	}

	st := &Stream{
		fd:      fd,
		oldMask: oldMask,
		cmdCh:   make(chan cmd),
		EventCh: make(chan Event, 32),
	}

	go st.reader()

	return st, nil
}

func (s *Stream) reader() {
	buf := make([]byte, unsafe.Sizeof(unix.SignalfdSiginfo{}))
	for {
		select {
		case <-s.cmdCh:
			return
		default:
		}

		n, err := unix.Read(s.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return
		}
		if n != len(buf) {
			continue
		}

		info := (*unix.SignalfdSiginfo)(unsafe.Pointer(&buf[0]))
		s.EventCh <- Event{
			Signo: unix.Signal(info.Signo),
			Pid:   int32(info.Pid),
			Uid:   info.Uid,
			Code:  info.Code,
		}
	}
}

// Close restores the prior signal mask and closes the signalfd (§4.S:
// dispositions must not leak back to the calling shell).
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	close(s.cmdCh)
	err := unix.Close(s.fd)
	if merr := unix.PthreadSigmask(unix.SIG_SETMASK, &s.oldMask, nil); err == nil {
		err = merr
	}
	return err
}

// addSignal sets the bit for s in a Linux kernel sigset_t (64 signals per
// word), since x/sys/unix exposes the raw bitmask but no accessor.
func addSignal(mask *unix.Sigset_t, s unix.Signal) {
	n := uint(s) - 1
	mask.Val[n/64] |= 1 << (n % 64)
}
