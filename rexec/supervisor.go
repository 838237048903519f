package rexec

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/trifectatechfoundation/sudo-rs-sub002/identity"
	"github.com/trifectatechfoundation/sudo-rs-sub002/sig"
	"github.com/trifectatechfoundation/sudo-rs-sub002/sudolog"
	"github.com/trifectatechfoundation/sudo-rs-sub002/term"
)

// Request describes one command invocation for the supervisor (§4.X).
type Request struct {
	Path   string
	Args   []string
	Env    []string
	Target identity.User
	UsePty bool

	// NoExec, set from the policy's NOEXEC tag, tells the command process
	// to trim its capability bounding set to empty before execve so it
	// cannot regain privileged operations through a re-exec of its own
	// (§4.X design notes; §5 privilege-discipline).
	NoExec bool
}

// Result is the truthful exit status the supervisor reports (§4.X "exit
// reason computation").
type Result struct {
	ExitCode   int
	Signal     unix.Signal
	Signaled   bool
	ExecFailed bool
}

// Supervisor runs one command to completion under the parent/monitor/
// command two-process split.
type Supervisor struct {
	log *logrus.Entry
}

func New() *Supervisor {
	return &Supervisor{log: sudolog.For("rexec")}
}

// Run executes req, choosing pty or no-pty mode per req.UsePty and
// /dev/tty availability (§4.X startup sequence step 1).
func (s *Supervisor) Run(req Request) (Result, error) {
	if req.UsePty {
		if userTty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
			userTty.Close()
			if pty, err := term.OpenPty(); err == nil {
				return s.runPty(req, pty)
			}
		}
		s.log.Warn("no user tty or pty unavailable, downgrading to no-pty mode")
	}
	return s.runNoPty(req)
}

func (s *Supervisor) runNoPty(req Request) (Result, error) {
	parentCh, monitorCh, err := NewBackchannelPair()
	if err != nil {
		return Result{}, err
	}
	defer parentCh.Close()

	signals, err := sig.New(sig.Set)
	if err != nil {
		return Result{}, err
	}
	defer signals.Close()

	cmd, err := spawnMonitor(monitorCh, req, nil)
	if err != nil {
		return Result{}, err
	}
	monitorCh.Close()
	defer cmd.Wait()

	// §5: P sends ExecCommand exactly once after the fork, unblocking M.
	if err := parentCh.Send(Message{Kind: KindExecCommand}); err != nil {
		return Result{}, err
	}

	return s.eventLoop(req, parentCh, signals, nil)
}

func (s *Supervisor) runPty(req Request, pty *term.Pty) (Result, error) {
	defer pty.Close()

	parentCh, monitorCh, err := NewBackchannelPair()
	if err != nil {
		return Result{}, err
	}
	defer parentCh.Close()

	signals, err := sig.New(sig.Set)
	if err != nil {
		return Result{}, err
	}
	defer signals.Close()

	cmd, err := spawnMonitor(monitorCh, req, pty)
	if err != nil {
		return Result{}, err
	}
	monitorCh.Close()
	pty.Follower.Close()
	defer cmd.Wait()

	if err := parentCh.Send(Message{Kind: KindExecCommand}); err != nil {
		return Result{}, err
	}

	if userTty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		pump := newIOPump(userTty, pty.Leader)
		go pump.run()
		defer pump.stop()
	}

	return s.eventLoop(req, parentCh, signals, pty)
}

// eventLoop implements P's half of §4.X's backchannel + signal-relay
// protocol.
func (s *Supervisor) eventLoop(req Request, ch *Backchannel, signals *sig.Stream, pty *term.Pty) (Result, error) {
	var commandPid int32
	pending := make(chan Message, 8)

	go func() {
		for {
			m, err := ch.Recv()
			if err != nil {
				close(pending)
				return
			}
			pending <- m
			if m.Kind == KindCommandExit || m.Kind == KindCommandSignal || m.Kind == KindIoError {
				return
			}
			// KindCommandStopped and KindCommandPid don't end the command's
			// life; keep reading for the eventual exit record.
		}
	}()

	for {
		select {
		case m, ok := <-pending:
			if !ok {
				return Result{}, errors.New("backchannel closed before command completion")
			}
			switch m.Kind {
			case KindCommandPid:
				commandPid = m.Payload
			case KindCommandExit:
				return Result{ExitCode: int(m.Payload)}, nil
			case KindCommandSignal:
				return Result{Signal: unix.Signal(m.Payload), Signaled: true}, nil
			case KindIoError:
				return Result{ExecFailed: true}, errors.Errorf("monitor could not exec: errno %d", m.Payload)
			case KindCommandStopped:
				// §4.X step 4: suspend P itself so the shell's job control
				// sees sudo stop along with the command; blocks right here
				// until the shell delivers SIGCONT.
				unix.Kill(os.Getpid(), unix.SIGSTOP)
			}

		case ev, ok := <-signals.EventCh:
			if !ok {
				continue
			}
			s.relaySignal(ev, ch, commandPid, pty)
		}
	}
}

// relaySignal implements §4.X's signal-relay table.
func (s *Supervisor) relaySignal(ev sig.Event, ch *Backchannel, commandPid int32, pty *term.Pty) {
	switch ev.Signo {
	case unix.SIGCHLD:
		return // the backchannel reader drains any pending exit record
	case unix.SIGWINCH:
		if pty != nil {
			propagateWinsize(pty)
		}
		return
	case unix.SIGCONT:
		// Resume the previously stopped command along with P itself
		// (§4.X step 4).
		ch.Send(Message{Kind: KindSignal, Payload: int32(unix.SIGCONT)})
		return
	}

	if isUserGenerated(ev) && isSelfTerminating(ev, commandPid) {
		return
	}

	ch.Send(Message{Kind: KindSignal, Payload: int32(ev.Signo)})
}

func propagateWinsize(pty *term.Pty) {
	userTty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return
	}
	defer userTty.Close()
	ws, err := term.GetWinsize(int(userTty.Fd()))
	if err != nil {
		return
	}
	term.SetWinsize(int(pty.Leader.Fd()), ws)
}

// isUserGenerated reports whether a signal's sender code indicates a real
// process rather than the kernel (SI_USER/SI_QUEUE family).
func isUserGenerated(ev sig.Event) bool {
	return ev.Code <= 0
}

// isSelfTerminating implements §4.X's loop-prevention rule: sender pid
// equals the command pid, OR sender's process group equals the command's
// process group, OR sender's process group equals P's own pid.
func isSelfTerminating(ev sig.Event, commandPid int32) bool {
	if commandPid == 0 {
		return false
	}
	if ev.Pid == commandPid {
		return true
	}
	pgrp, err := unix.Getpgid(int(ev.Pid))
	if err != nil {
		return false
	}
	if int32(pgrp) == commandPid {
		return true
	}
	return pgrp == os.Getpid()
}

const escalationWait = 2 * time.Second
