package rexec

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MessageKind is the backchannel wire discriminant (§3 "Backchannel
// message").
type MessageKind byte

const (
	KindIoError MessageKind = iota
	KindCommandExit
	KindCommandSignal
	KindCommandPid
	KindExecCommand
	KindSignal
	// KindCommandStopped reports that C was stopped by a job-control signal
	// (WUNTRACED), not that it exited (§4.X step 4, SIGTSTP handling).
	KindCommandStopped
)

// Message is one decoded backchannel record: a 1-byte discriminant
// followed by a 4-byte native-endian payload.
type Message struct {
	Kind    MessageKind
	Payload int32
}

const wireSize = 1 + 4

// Backchannel is one end of the non-blocking AF_UNIX SOCK_STREAM socket
// pair P and M communicate over.
type Backchannel struct {
	f *os.File
}

// NewBackchannelPair creates the socket pair used to connect P and M.
func NewBackchannelPair() (parent, monitor *Backchannel, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "socketpair")
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		return nil, nil, errors.Wrap(err, "set nonblocking")
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		return nil, nil, errors.Wrap(err, "set nonblocking")
	}
	return &Backchannel{f: os.NewFile(uintptr(fds[0]), "backchannel-parent")},
		&Backchannel{f: os.NewFile(uintptr(fds[1]), "backchannel-monitor")}, nil
}

// Fd returns the underlying file descriptor, for use in a poll/select
// loop.
func (b *Backchannel) Fd() int {
	return int(b.f.Fd())
}

// Close closes this end.
func (b *Backchannel) Close() error {
	return b.f.Close()
}

// Send writes one message. May return a transient EAGAIN-shaped error the
// caller's event loop should retry once the fd is writable again.
func (b *Backchannel) Send(m Message) error {
	var buf [wireSize]byte
	buf[0] = byte(m.Kind)
	binary.NativeEndian.PutUint32(buf[1:], uint32(m.Payload))

	_, err := b.f.Write(buf[:])
	return err
}

// Recv reads one message, blocking (within the caller's nonblocking fd
// semantics — EAGAIN propagates to the caller) until a full record is
// available.
func (b *Backchannel) Recv() (Message, error) {
	var buf [wireSize]byte
	if _, err := readFull(b.f, buf[:]); err != nil {
		return Message{}, err
	}

	kind := MessageKind(buf[0])
	if kind > KindCommandStopped {
		return Message{}, errors.Errorf("backchannel protocol violation: unknown discriminant %d", buf[0])
	}

	payload := int32(binary.NativeEndian.Uint32(buf[1:]))
	return Message{Kind: kind, Payload: payload}, nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
