package rexec

import (
	"encoding/json"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/trifectatechfoundation/sudo-rs-sub002/term"
)

// reexecArg is argv[1] a supervisor-spawned monitor process is started
// with; MaybeRunMonitor recognizes it before any front-end flag parsing
// runs.
const reexecArg = "rexec-monitor"

// MaybeRunMonitor must be the first call in every front-end main() that
// constructs a Supervisor (cmd/sudo, cmd/su). If this process is M,
// freshly re-exec'd by spawnMonitor rather than invoked by a user, it runs
// M's body here and never returns. Otherwise it returns immediately so
// the caller's ordinary CLI flow proceeds untouched.
//
// M cannot be a raw clone(2) child of P the way C is: monitorLoop spends
// M's entire life on goroutines, channels and poller-backed backchannel
// reads, none of which are safe in a process that was cloned without
// CLONE_VM/CLONE_THREAD and so shares no OS threads with the Go runtime
// that created it (see clone.go's forkProcess, still used for the M→C
// fork, where C only runs sequential raw syscalls before execve). Re-
// exec'ing the binary instead — the same /proc/self/exe technique
// Docker/runc and Teleport's lib/srv/reexec.go use for privilege-
// separated children — makes M a fresh, fully-functional Go process
// instead of a crippled fork of one.
func MaybeRunMonitor() {
	if len(os.Args) < 2 || os.Args[1] != reexecArg {
		return
	}
	runMonitorReexec()
}

// monitorHandoff is the JSON payload spawnMonitor writes across the
// handoff pipe to give the re-exec'd monitor its request, mirroring the
// ExecCommand struct Teleport's reexec.go marshals across its own cmdfd.
type monitorHandoff struct {
	Req    Request
	UsePty bool
}

// File descriptor numbers spawnMonitor's ExtraFiles are assigned to in
// the re-exec'd child (ExtraFiles always starts at fd 3).
const (
	fdBackchannel = 3
	fdHandoff     = 4
	fdPtyFollower = 5
)

// spawnMonitor starts M as a freshly exec'd process: it re-execs the
// running binary with reexecArg as argv[1], handing across the monitor's
// backchannel end, the JSON-encoded request, and — in pty mode — the pty
// follower, over inherited descriptors. Unlike forkProcess's raw clone,
// this goes through the ordinary os/exec fork+exec path the Go runtime
// supports safely.
func spawnMonitor(monitorCh *Backchannel, req Request, pty *term.Pty) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "resolve own executable for monitor re-exec")
	}

	payloadR, payloadW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "create monitor handoff pipe")
	}

	extraFiles := []*os.File{monitorCh.f, payloadR}
	if pty != nil {
		extraFiles = append(extraFiles, pty.Follower)
	}

	cmd := &exec.Cmd{
		Path:       exe,
		Args:       []string{exe, reexecArg},
		ExtraFiles: extraFiles,
		// In no-pty mode C's stdio is never explicitly set up (runCommand
		// only dups the pty follower when one exists) — it must be the
		// same stdin/stdout/stderr P itself was invoked with, inherited
		// down through M, exactly as the old raw-clone spawn inherited
		// them automatically.
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	if err := cmd.Start(); err != nil {
		payloadR.Close()
		payloadW.Close()
		return nil, errors.Wrap(err, "start monitor process")
	}
	payloadR.Close()

	payload, err := json.Marshal(monitorHandoff{Req: req, UsePty: pty != nil})
	if err != nil {
		payloadW.Close()
		return nil, errors.Wrap(err, "encode monitor handoff")
	}
	if _, err := payloadW.Write(payload); err != nil {
		payloadW.Close()
		return nil, errors.Wrap(err, "send monitor handoff")
	}
	payloadW.Close()

	return cmd, nil
}

// runMonitorReexec reconstructs M's inputs from the descriptors
// spawnMonitor passed across the exec and runs M's body; like runMonitor,
// it never returns.
func runMonitorReexec() {
	ch := &Backchannel{f: os.NewFile(fdBackchannel, "backchannel-monitor")}

	payloadFile := os.NewFile(fdHandoff, "monitor-handoff")
	payload, err := io.ReadAll(payloadFile)
	payloadFile.Close()
	if err != nil {
		os.Exit(1)
	}

	var handoff monitorHandoff
	if err := json.Unmarshal(payload, &handoff); err != nil {
		os.Exit(1)
	}

	var pty *term.Pty
	if handoff.UsePty {
		pty = &term.Pty{Follower: os.NewFile(fdPtyFollower, "pty-follower")}
	}

	runMonitor(ch, handoff.Req, pty)
}
