// Package env builds the target process environment from the invoker's
// environment and a policy Decision (§4.E), mirroring the teacher's
// idShiftUtils/overlayUtils use of mapset.Set for the keep/check/delete
// name patterns (held as pattern strings and matched on use) instead of
// plain string slices.
package env

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// defaultPath is installed when neither a policy secure_path nor a
// retained PATH is available.
const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// maxCommandLen bounds SUDO_COMMAND (§4.E step 3).
const maxCommandLen = 4096

// checkedVars never legitimately contain a path and so are the classic
// env_check targets subjected to the sanity predicate.
var checkedVars = mapset.NewSet("TERM", "LANG", "LANGUAGE", "LC_ALL", "LC_COLLATE", "LC_CTYPE",
	"LC_MESSAGES", "LC_MONETARY", "LC_NUMERIC", "LC_TIME")

// TargetUser carries the fields the environment builder copies onto a
// login shell.
type TargetUser struct {
	Name  string
	Uid   uint32
	Gid   uint32
	Home  string
	Shell string
}

// Input bundles everything Build needs.
type Input struct {
	Invoker map[string]string

	EnvKeep    mapset.Set[string]
	EnvCheck   mapset.Set[string]
	EnvDelete  mapset.Set[string]
	SecurePath string

	Login bool // -i was requested

	InvokerUser TargetUser
	Target      TargetUser
	Command     string
	Arguments   []string
}

// Build implements §4.E's algorithm, returning the environment as
// "NAME=value" entries in no particular order.
func Build(in Input) []string {
	out := map[string]string{}

	for name, value := range in.Invoker {
		if !shouldRetain(name, value, in.EnvKeep, in.EnvCheck, in.EnvDelete) {
			continue
		}
		out[name] = value
	}

	out["SUDO_COMMAND"] = truncateCommand(in.Command, in.Arguments)
	out["SUDO_USER"] = in.InvokerUser.Name
	out["SUDO_UID"] = fmt.Sprintf("%d", in.InvokerUser.Uid)
	out["SUDO_GID"] = fmt.Sprintf("%d", in.InvokerUser.Gid)

	if in.Login || !hasLoginVars(out) {
		out["HOME"] = in.Target.Home
		out["SHELL"] = in.Target.Shell
		out["LOGNAME"] = in.Target.Name
		out["USER"] = in.Target.Name
		out["MAIL"] = "/var/mail/" + in.Target.Name
	}

	switch {
	case in.SecurePath != "":
		out["PATH"] = in.SecurePath
	case out["PATH"] == "":
		out["PATH"] = defaultPath
	}

	if ps1, ok := in.Invoker["SUDO_PS1"]; ok {
		delete(out, "SUDO_PS1")
		if !in.Login {
			out["PS1"] = ps1
		} else {
			delete(out, "PS1")
		}
	}

	for name, value := range out {
		if strings.HasPrefix(value, "() ") && !matchesAny(in.EnvKeep, name, value) {
			delete(out, name)
		}
	}

	entries := make([]string, 0, len(out))
	for name, value := range out {
		entries = append(entries, name+"="+value)
	}
	return entries
}

func hasLoginVars(out map[string]string) bool {
	_, home := out["HOME"]
	_, shell := out["SHELL"]
	return home && shell
}

func shouldRetain(name, value string, keep, check, del mapset.Set[string]) bool {
	if matchesAny(del, name, value) {
		return false
	}
	if matchesAny(keep, name, value) {
		return true
	}
	if matchesAny(check, name, value) {
		return sanityCheck(name, value)
	}
	return false
}

// sanityCheck is the §4.E env_check predicate: no embedded '%', no
// leading "()", no '/' for the classical path-free variables, no newline.
func sanityCheck(name, value string) bool {
	if strings.ContainsAny(value, "\n") {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(value), "()") {
		return false
	}
	if strings.Contains(value, "%") {
		return false
	}
	if checkedVars.Contains(name) && strings.Contains(value, "/") {
		return false
	}
	return true
}

func truncateCommand(command string, args []string) string {
	full := command
	if len(args) > 0 {
		full += " " + strings.Join(args, " ")
	}
	if len(full) > maxCommandLen {
		full = full[:maxCommandLen]
	}
	return full
}
