// Package pathres resolves a bare command name against a PATH-like search
// list (§4.P). The symlink-following canonicalization step is adapted
// directly from the teacher's own path-resolution walk
// (pathres.procPathAccess's component loop): same bounded symlink-chase,
// same "stop at symlinkMax" rule, same distinction between a component that
// must be a directory and the final component. The teacher used that walk
// to decide whether a *caller* could access each component; here it is
// reused purely to canonicalize a path, since §4.P's executability
// predicate is far simpler than the teacher's DAC+capability permission
// model (a sudoers PATH search has no notion of "the invoker's
// capabilities bypass file permission checks" — the target is simply
// "is this a regular, executable file").
package pathres

import (
	"os"
	"path/filepath"
	"strings"
)

const symlinkMax = 40

// Result is the outcome of resolving a bare command name.
type Result struct {
	Path     string // the resolved (and possibly canonicalized) absolute path
	Resolved bool   // false if canonicalization failed; Path is then the un-canonicalized resolved path
}

// Resolve searches pathList (a colon-separated list, as PATH is) for name
// and returns the first candidate that is a regular file with any
// executable bit set. Entries equal to "" or "." are deferred and tried
// only after every other entry, per §4.P. If name already contains a "/",
// the search is skipped entirely and only canonicalization is attempted.
func Resolve(name string, pathList string) (Result, error) {
	if strings.Contains(name, "/") {
		return canonicalizeOrPassthrough(name), nil
	}

	var normal, deferred []string
	for _, entry := range strings.Split(pathList, ":") {
		if entry == "" || entry == "." {
			deferred = append(deferred, entry)
		} else {
			normal = append(normal, entry)
		}
	}

	for _, dir := range append(normal, deferred...) {
		candidateDir := dir
		if candidateDir == "" {
			candidateDir = "."
		}
		candidate := filepath.Join(candidateDir, name)

		if isExecutableRegularFile(candidate) {
			return canonicalizeOrPassthrough(candidate), nil
		}
	}

	return Result{}, &NotFoundError{Name: name}
}

// NotFoundError is returned when no PATH entry yields an executable match.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "command not found: " + e.Name
}

func isExecutableRegularFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	return fi.Mode().Perm()&0111 != 0
}

// canonicalizeOrPassthrough canonicalizes path, following symlinks the way
// the teacher's procPathAccess walk does (bounded at symlinkMax). A
// canonicalization failure is non-fatal per §4.P: the original resolved
// path is returned with Resolved=false rather than an error, so callers
// (policy matching in particular) can still proceed on an
// un-canonicalized path.
func canonicalizeOrPassthrough(path string) Result {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{Path: path, Resolved: false}
	}

	real, err := realpath(abs)
	if err != nil {
		return Result{Path: abs, Resolved: false}
	}
	return Result{Path: real, Resolved: true}
}

// realpath resolves every symlink component of an already-absolute,
// already-clean-able path, exactly as the teacher's procPathAccess inner
// loop does: walk component by component, and whenever a component is
// itself a symlink, follow the chain (bounded by symlinkMax) before
// continuing to the next component.
func realpath(path string) (string, error) {
	remaining := strings.Split(filepath.Clean(path), string(filepath.Separator))

	cur := string(filepath.Separator)
	linkCnt := 0

	for len(remaining) > 0 {
		c := remaining[0]
		remaining = remaining[1:]

		if c == "" {
			continue
		}

		next := filepath.Join(cur, c)

		fi, err := os.Lstat(next)
		if err != nil {
			return "", err
		}

		if fi.Mode()&os.ModeSymlink == 0 {
			cur = next
			continue
		}

		if linkCnt >= symlinkMax {
			return "", &TooManySymlinksError{Path: path}
		}
		linkCnt++

		target, err := os.Readlink(next)
		if err != nil {
			return "", err
		}

		// Expand the symlink's target back onto the front of the queue so
		// any symlinked directory components within it are themselves
		// followed, rather than just the final component.
		targetComponents := strings.Split(filepath.Clean(target), string(filepath.Separator))
		if filepath.IsAbs(target) {
			cur = string(filepath.Separator)
		} else {
			// relative targets resolve against the symlink's own directory
		}
		remaining = append(targetComponents, remaining...)
	}

	return cur, nil
}

// TooManySymlinksError mirrors the ELOOP the teacher's walk returns when a
// symlink chain exceeds symlinkMax.
type TooManySymlinksError struct {
	Path string
}

func (e *TooManySymlinksError) Error() string {
	return "too many levels of symbolic links: " + e.Path
}
