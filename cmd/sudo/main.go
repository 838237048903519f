// Command sudo is the execution front-end (§6 "CLI surface"): it
// resolves identities, evaluates the policy, authenticates, builds the
// target environment, and hands the resolved command to the rexec
// supervisor. Flag parsing follows the teacher corpus's use of
// github.com/jessevdk/go-flags (canonical-snapd's cmd/snap-preseed and
// cmd/snap carry the identical pinned version in go.mod) rather than the
// standard library's flag package, which has no long/short flag pairing
// or repeated-flag counting (needed for `-l -l` verbose listing).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/trifectatechfoundation/sudo-rs-sub002/auth"
	"github.com/trifectatechfoundation/sudo-rs-sub002/env"
	"github.com/trifectatechfoundation/sudo-rs-sub002/identity"
	"github.com/trifectatechfoundation/sudo-rs-sub002/pathres"
	"github.com/trifectatechfoundation/sudo-rs-sub002/policy"
	"github.com/trifectatechfoundation/sudo-rs-sub002/rexec"
	"github.com/trifectatechfoundation/sudo-rs-sub002/sudolog"
)

type options struct {
	User              string `short:"u" long:"user" description:"target user" default:"root"`
	Group             string `short:"g" long:"group" description:"target group"`
	Login             bool   `short:"i" long:"login" description:"run target user's login shell as a login shell"`
	Shell             bool   `short:"s" long:"shell" description:"run $SHELL with the remaining args as -c ARGS"`
	Chdir             string `short:"D" long:"chdir" description:"requested working directory; checked against the policy's CWD=, the directory is not changed"`
	NonInteractive    bool   `short:"n" long:"non-interactive" description:"never prompt"`
	Stdin             bool   `short:"S" long:"stdin" description:"read password from stdin"`
	Askpass           bool   `short:"A" long:"askpass" description:"use SUDO_ASKPASS"`
	Prompt            string `short:"p" long:"prompt" description:"override password prompt"`
	ResetTimestamp    bool   `short:"k" long:"reset-timestamp" description:"invalidate the cached credential"`
	RemoveTimestamp   bool   `short:"K" long:"remove-timestamp" description:"remove the cache file entirely"`
	List              []bool `short:"l" long:"list" description:"listing mode; repeat for verbose"`
	ListUser          string `short:"U" long:"list-user" description:"list another user's entries"`
	Validate          bool   `short:"v" long:"validate" description:"refresh the cache without running a command"`
}

const sudoersPath = "/etc/sudoers"
const cacheDir = "/var/run/sudo-rs-sub002/ts"

func main() {
	rexec.MaybeRunMonitor()
	sudolog.Init(sudolog.Options{Debug: os.Getenv("SUDO_RS_DEBUG") != ""})
	os.Exit(run())
}

func run() int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default|flags.PassAfterNonOption)
	args, err := parser.Parse()
	if err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := sudolog.For("cmd/sudo")

	invoker, err := currentInvoker()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cache := auth.NewCache(cacheDir)

	if opts.ResetTimestamp {
		if err := cache.Invalidate(invoker.Uid); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if len(args) == 0 {
			return 0
		}
	}
	if opts.RemoveTimestamp {
		if err := cache.Remove(invoker.Uid); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	pol, warnings, err := policy.Load(sudoersPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, w := range warnings {
		log.Warnf("%s: %s", w.File, w.Message)
	}

	host, _ := os.Hostname()

	if len(opts.List) > 0 {
		who := opts.ListUser
		if who == "" {
			who = invoker.Name
		}
		return runList(pol, who, host, len(opts.List))
	}

	target, targetGroup, err := resolveTarget(opts.User, opts.Group)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	command, cmdArgs, err := resolveCommand(opts, args, target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	req := policy.Request{
		InvokerName:   invoker.Name,
		InvokerUid:    invoker.Uid,
		InvokerGroups: invokerGroupNames(invoker),
		Host:          host,
		TargetUser:    target.Name,
		TargetUid:     target.Uid,
		TargetGroup:   targetGroupName(targetGroup),
		TargetGid:     targetGid(target, targetGroup),
		Command:       command,
		Arguments:     cmdArgs,
	}

	dec := pol.Evaluate(req)
	if !dec.Allowed {
		fmt.Fprintln(os.Stderr, forbiddenMessage(invoker.Name, command, target.Name, host, dec))
		return 1
	}

	if opts.Validate {
		dec.MustAuthenticate = true
	}

	if dec.MustAuthenticate {
		authr := &auth.Authenticator{
			Cache:          cache,
			Verify:         systemVerify,
			PasswdTries:    dec.AllowedAttempts,
			Validity:       dec.CredentialValidity,
			NonInteractive: opts.NonInteractive,
		}
		if opts.Prompt != "" {
			authr.PromptOverride = substitutePrompt(opts.Prompt, invoker.Name, target.Name, command, host)
		}
		switch {
		case opts.Stdin:
			authr.ReadPassword = auth.ReadPasswordFromStdin
		case opts.Askpass:
			askpassProgram := os.Getenv("SUDO_ASKPASS")
			authr.ReadPassword = func(prompt string) ([]byte, error) {
				return auth.AskPass(askpassProgram, prompt)
			}
		}
		sess := auth.Session{Pid: int32(os.Getpid())}
		if err := authr.Authenticate(invoker.Name, invoker.Uid, sess); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	if opts.Validate {
		return 0
	}

	if opts.Chdir != "" && !chdirAllowed(dec, opts.Chdir) {
		fmt.Fprintf(os.Stderr, "sudo: chdir to %s is not permitted for the command you are running\n", opts.Chdir)
		return 1
	}

	invokerEnv := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			invokerEnv[kv[:i]] = kv[i+1:]
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
		Command:     command,
		Arguments:   cmdArgs,
	})

	sup := rexec.New()
	result, err := sup.Run(rexec.Request{
		Path:   command,
		Args:   cmdArgs,
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

func currentInvoker() (*identity.User, error) {
	return identity.LookupUserByUid(uint32(os.Getuid()))
}

func invokerGroupNames(u *identity.User) []string {
	names := make([]string, 0, len(u.Groups))
	for _, gid := range u.Groups {
		g, err := identity.LookupGroupByGid(gid)
		if err != nil {
			continue
		}
		names = append(names, g.Name)
	}
	return names
}

func resolveTarget(user, group string) (*identity.User, *identity.Group, error) {
	if user == "" {
		user = "root"
	}
	u, err := identity.LookupUser(user)
	if err != nil {
		return nil, nil, err
	}
	if group == "" {
		return u, nil, nil
	}
	g, err := identity.LookupGroup(group)
	if err != nil {
		return nil, nil, err
	}
	return u, g, nil
}

func targetGroupName(g *identity.Group) string {
	if g == nil {
		return ""
	}
	return g.Name
}

func targetGid(u *identity.User, g *identity.Group) uint32 {
	if g != nil {
		return g.Gid
	}
	return u.Gid
}

func resolveCommand(opts options, args []string, target *identity.User) (string, []string, error) {
	if opts.Shell {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		return shell, []string{"-c", strings.Join(args, " ")}, nil
	}
	if opts.Login {
		shell := target.Shell
		if shell == "" {
			shell = "/bin/sh"
		}
		if len(args) == 0 {
			return shell, []string{"-l"}, nil
		}
		return shell, []string{"-l", "-c", strings.Join(args, " ")}, nil
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("sudo: a command is required unless -s or -i is given")
	}
	res, err := pathres.Resolve(args[0], os.Getenv("PATH"))
	if err != nil {
		return "", nil, err
	}
	return res.Path, args[1:], nil
}

func chdirAllowed(dec policy.Decision, dir string) bool {
	switch dec.Chdir.Kind {
	case policy.DirChangeAny:
		return true
	case policy.DirChangeStrict:
		return dec.Chdir.Path == dir
	default:
		return false
	}
}

// forbiddenMessage reproduces the two verbatim wordings §6 requires: the
// short form when no rule applied at all, the detailed form when a rule
// applied but denied.
func forbiddenMessage(user, command, target, host string, dec policy.Decision) string {
	if !dec.Matched {
		return fmt.Sprintf("Sorry, user %s may not run sudo on %s.", user, host)
	}
	return fmt.Sprintf("Sorry, user %s is not allowed to execute '%s' as %s on %s.", user, command, target, host)
}

func runList(pol *policy.Policy, who, host string, verbosity int) int {
	entries := pol.List(who)
	fmt.Printf("User %s may run the following commands on %s:\n", who, host)
	for _, e := range entries {
		printListEntry(e, verbosity)
	}
	return 0
}

func printListEntry(e policy.ListEntry, verbosity int) {
	runas := "(" + strings.Join(e.RunasU, ",") + ")"
	if len(e.RunasG) > 0 {
		runas = "(" + strings.Join(e.RunasU, ",") + ":" + strings.Join(e.RunasG, ",") + ")"
	}
	tags := ""
	if len(e.Tags) > 0 {
		tags = strings.Join(e.Tags, " ") + ": "
	}
	fmt.Printf("    %s %s%s\n", runas, tags, strings.Join(e.Commands, " "))
	if verbosity > 1 {
		fmt.Printf("        (line %d)\n", e.Line)
	}
}

// systemVerify is the pluggable backend auth.Authenticator calls; a real
// deployment wires this to PAM. Exercised only through the Verifier type,
// since the core packages never assume a specific backend.
func systemVerify(authUser string, password []byte) error {
	return fmt.Errorf("no authentication backend configured for %s", authUser)
}

func substitutePrompt(template, invoker, target, command, host string) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' || i == len(template)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch template[i] {
		case 'H', 'h':
			b.WriteString(host)
		case 'u':
			b.WriteString(invoker)
		case 'U':
			b.WriteString(target)
		case 'p':
			b.WriteString(command)
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(template[i])
		}
	}
	return b.String()
}
