// Command su is a thin wrapper over the same policy/auth/rexec core as
// cmd/sudo, running the target user's shell (a login shell with -l) with no
// command arguments required — the teacher corpus's other CLIs
// (canonical-snapd's cmd/snap, cmd/snap-preseed) are similarly thin
// shells around a shared library, not reimplementations of it.
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/trifectatechfoundation/sudo-rs-sub002/auth"
	"github.com/trifectatechfoundation/sudo-rs-sub002/env"
	"github.com/trifectatechfoundation/sudo-rs-sub002/identity"
	"github.com/trifectatechfoundation/sudo-rs-sub002/policy"
	"github.com/trifectatechfoundation/sudo-rs-sub002/rexec"
	"github.com/trifectatechfoundation/sudo-rs-sub002/sudolog"
)

type options struct {
	Login bool `short:"l" long:"login" description:"start a login shell"`
}

const sudoersPath = "/etc/sudoers"
const cacheDir = "/var/run/sudo-rs-sub002/ts"

func main() {
	rexec.MaybeRunMonitor()
	sudolog.Init(sudolog.Options{})
	os.Exit(run())
}

func run() int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	args, err := parser.Parse()
	if err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	targetName := "root"
	if len(args) > 0 {
		targetName = args[0]
	}

	invoker, err := identity.LookupUserByUid(uint32(os.Getuid()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	target, err := identity.LookupUser(targetName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	pol, _, err := policy.Load(sudoersPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	host, _ := os.Hostname()

	shell := target.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	req := policy.Request{
		InvokerName: invoker.Name,
		InvokerUid:  invoker.Uid,
		Host:        host,
		TargetUser:  target.Name,
		TargetUid:   target.Uid,
		Command:     shell,
	}
	dec := pol.Evaluate(req)
	if !dec.Allowed {
		fmt.Fprintf(os.Stderr, "su: Sorry, user %s is not allowed to execute '%s' as %s on %s.\n",
			invoker.Name, shell, target.Name, host)
		return 1
	}

	if dec.MustAuthenticate {
		authr := &auth.Authenticator{
			Cache:       auth.NewCache(cacheDir),
			Verify:      func(string, []byte) error { return fmt.Errorf("no authentication backend configured") },
			PasswdTries: dec.AllowedAttempts,
			Validity:    dec.CredentialValidity,
		}
		sess := auth.Session{Pid: int32(os.Getpid())}
		if err := authr.Authenticate(invoker.Name, invoker.Uid, sess); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	invokerEnv := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				invokerEnv[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	builtEnv := env.Build(env.Input{
		Invoker:     invokerEnv,
		EnvKeep:     dec.EnvKeep,
		EnvCheck:    dec.EnvCheck,
		SecurePath:  dec.SecurePath,
		Login:       opts.Login,
		InvokerUser: env.TargetUser{Name: invoker.Name, Uid: invoker.Uid, Gid: invoker.Gid, Home: invoker.Home, Shell: invoker.Shell},
		Target:      env.TargetUser{Name: target.Name, Uid: target.Uid, Gid: target.Gid, Home: target.Home, Shell: target.Shell},
		Command:     shell,
	})

	sup := rexec.New()
	result, err := sup.Run(rexec.Request{
		Path:   shell,
		Args:   loginArgs(opts.Login),
		Env:    builtEnv,
		Target: *target,
		UsePty: dec.UsePty,
		NoExec: dec.NoExec,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if result.Signaled {
		return 128 + int(result.Signal)
	}
	return result.ExitCode
}

func loginArgs(login bool) []string {
	if login {
		return []string{"-l"}
	}
	return nil
}
