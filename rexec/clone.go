// Package rexec implements the execution supervisor (§4.X): the
// parent/monitor/command two-process split, the backchannel wire
// protocol, the pty I/O pump, signal relay, and exit-reason computation.
//
// The monitor→command fork uses a raw syscall.Syscall6(SYS_CLONE, ...)
// exactly as the teacher's linuxUtils.CreateUsernsProcess does — Go's
// runtime does not support a safe fork() once goroutines/threads exist,
// so a raw clone with only the calling thread replicated (no
// CLONE_VM/CLONE_THREAD) is the same technique the teacher reaches for,
// generalized here from "fork into a new user namespace" to "fork into a
// new process that execs a target command." This is only safe because,
// exactly as in the teacher's forked child, the post-fork code here
// (runCommand) does nothing but sequential raw syscalls before execve —
// no goroutines, no channels, no poller I/O. The parent→monitor spawn
// does none of that: M runs Go-runtime machinery for its whole life, so
// it is started by re-exec'ing the binary instead (see reexec.go).
package rexec

import (
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// forkProcess performs a raw clone(2) with only SIGCHLD as the exit
// signal (no namespace flags), running childFunc in the new process and
// never returning from it — childFunc must end in an os.Exit-equivalent.
// Returns the child's pid to the parent. Only safe when childFunc is
// limited to sequential raw syscalls ending in execve or os.Exit; see the
// package doc comment.
func forkProcess(childFunc func()) (int, error) {
	pid, _, errno := syscall.Syscall6(uintptr(unix.SYS_CLONE), uintptr(unix.SIGCHLD), 0, 0, 0, 0, 0)
	if errno != 0 {
		return -1, errors.Wrap(errno, "clone")
	}

	if pid == 0 {
		childFunc()
		unix.Exit(127) // childFunc must not return; this is a defensive backstop
	}

	return int(pid), nil
}
