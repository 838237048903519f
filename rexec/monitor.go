package rexec

import (
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/trifectatechfoundation/sudo-rs-sub002/capability"
	"github.com/trifectatechfoundation/sudo-rs-sub002/identity"
	"github.com/trifectatechfoundation/sudo-rs-sub002/pidfd"
	"github.com/trifectatechfoundation/sudo-rs-sub002/term"
)

// runMonitor is M's entire body (§4.X startup sequence step 4). It never
// returns: it either calls unix.Exit itself or falls through to the
// process exiting naturally after the final unix.Exit call below.
func runMonitor(ch *Backchannel, req Request, pty *term.Pty) {
	unix.Setsid()

	if pty != nil {
		term.MakeControllingTerminal(int(pty.Follower.Fd()))
	}

	// §5 ordering guarantee: M blocks on recv() before forking/exec'ing C,
	// so P learns C's pid before C's first instruction executes.
	for {
		m, err := ch.Recv()
		if err != nil {
			unix.Exit(1)
		}
		if m.Kind == KindExecCommand {
			break
		}
	}

	commandPid, err := forkProcess(func() {
		runCommand(req, pty)
	})
	if err != nil {
		ch.Send(Message{Kind: KindIoError, Payload: int32(errnoOf(err))})
		unix.Exit(1)
	}

	unix.Setpgid(commandPid, commandPid)
	ch.Send(Message{Kind: KindCommandPid, Payload: int32(commandPid)})

	// M is spawned without P's pty leader (§4.X: the leader stays with P
	// for the I/O pump); only close it here if this process happens to
	// hold one.
	if pty != nil && pty.Leader != nil {
		pty.Leader.Close()
	}

	// Captured immediately after CommandPid is known and before the event
	// loop below can observe any forwarded signal: a pidfd pins the kernel
	// to this exact process instance, so a pid recycled after the command
	// exits can never be mistaken for it (§4.X design notes).
	cmdFd, pfdErr := pidfd.Open(commandPid, 0)
	if pfdErr != nil {
		monitorLoop(ch, commandPid, nil)
	} else {
		monitorLoop(ch, commandPid, &cmdFd)
		cmdFd.Close()
	}
	unix.Exit(0)
}

// monitorLoop waits on the command, relays P's forwarded signals, and
// escalates on SIGALRM per §4.X ("HUP, then TERM, wait 2s, then KILL, sent
// to the command's process group"). cmdFd, when non-nil, routes forwarded
// signals through pidfd_send_signal instead of kill(2).
func monitorLoop(ch *Backchannel, commandPid int, cmdFd *pidfd.PidFd) {
	done := make(chan unix.WaitStatus, 1)
	go func() {
		for {
			var ws unix.WaitStatus
			_, err := unix.Wait4(commandPid, &ws, unix.WUNTRACED, nil)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return
			}
			done <- ws
			if ws.Exited() || ws.Signaled() {
				return
			}
		}
	}()

	recv := make(chan Message, 8)
	go func() {
		for {
			m, err := ch.Recv()
			if err != nil {
				return
			}
			recv <- m
		}
	}()

	for {
		select {
		case ws := <-done:
			if ws.Stopped() {
				ch.Send(Message{Kind: KindCommandStopped})
				continue
			}
			reportExit(ch, ws)
			return

		case m := <-recv:
			if m.Kind != KindSignal {
				continue
			}
			signo := unix.Signal(m.Payload)
			switch signo {
			case unix.SIGALRM:
				escalate(commandPid)
			case unix.SIGCONT:
				// Resume the whole stopped job, not just its leader
				// (§4.X step 4: "forward a SIGCONT-equivalent to C").
				unix.Kill(-commandPid, unix.SIGCONT)
			default:
				if cmdFd == nil || cmdFd.SendSignal(signo, 0) != nil {
					unix.Kill(commandPid, signo)
				}
			}
		}
	}
}

func escalate(commandPid int) {
	unix.Kill(-commandPid, unix.SIGHUP)
	unix.Kill(-commandPid, unix.SIGTERM)
	time.Sleep(escalationWait)
	unix.Kill(-commandPid, unix.SIGKILL)
}

func reportExit(ch *Backchannel, ws unix.WaitStatus) {
	switch {
	case ws.Exited():
		ch.Send(Message{Kind: KindCommandExit, Payload: int32(ws.ExitStatus())})
	case ws.Signaled():
		ch.Send(Message{Kind: KindCommandSignal, Payload: int32(ws.Signal())})
	default:
		ch.Send(Message{Kind: KindCommandExit, Payload: -1})
	}
}

func errnoOf(err error) unix.Errno {
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	if pe, ok := err.(*os.SyscallError); ok {
		if errno, ok := pe.Err.(unix.Errno); ok {
			return errno
		}
	}
	return unix.EIO
}

// runCommand is C's entire body: restore default dispositions, drop to
// the target identity, set up stdio, and execve the resolved command
// (§4.X step 4; §5 privilege-drop ordering).
func runCommand(req Request, pty *term.Pty) {
	restoreDefaultSignalDispositions()

	if pty != nil {
		if pty.Leader != nil {
			unix.Close(int(pty.Leader.Fd()))
		}
		unix.Dup2(int(pty.Follower.Fd()), 0)
		unix.Dup2(int(pty.Follower.Fd()), 1)
		unix.Dup2(int(pty.Follower.Fd()), 2)
	}

	if err := dropPrivileges(req.Target); err != nil {
		unix.Exit(127)
	}

	if req.NoExec {
		// NOEXEC: leave the command no bounding-set capability it could use
		// to regain privilege through a re-exec of its own (§4.X design
		// notes). keep=nil drops the entire bounding set.
		if err := capability.BoundingSetDrop(nil); err != nil {
			unix.Exit(127)
		}
	}

	argv := append([]string{req.Path}, req.Args...)
	if err := unix.Exec(req.Path, argv, req.Env); err != nil {
		unix.Exit(126)
	}
}

// dropPrivileges implements §5's ordering: supplementary groups, then
// gid, then uid, so the process never holds a combination of the old uid
// with the new gid set.
func dropPrivileges(target identity.User) error {
	if err := unix.Setgroups(toIntSlice(target.Groups)); err != nil {
		return err
	}
	if err := unix.Setgid(int(target.Gid)); err != nil {
		return err
	}
	if err := unix.Setuid(int(target.Uid)); err != nil {
		return err
	}
	return nil
}

func toIntSlice(gids []uint32) []int {
	out := make([]int, len(gids))
	for i, g := range gids {
		out[i] = int(g)
	}
	return out
}

// restoreDefaultSignalDispositions clears the signal mask the supervisor's
// sig package installed via sigprocmask (inherited across clone) and
// resets every disposition to SIG_DFL (§4.X step 4).
func restoreDefaultSignalDispositions() {
	var empty unix.Sigset_t
	unix.PthreadSigmask(unix.SIG_SETMASK, &empty, nil)
	signal.Reset()
}
