//go:build linux

package identity

import (
	"bufio"
	"os"
	"os/user"
	"strings"
)

// loginShell resolves a user's login shell. The Go standard library's
// os/user does not expose it (it is not part of NSS's portable surface), so
// this reads /etc/passwd directly the same way the teacher's
// utils/linux.go scans os-release: line by line, splitting on a fixed
// delimiter, skipping anything malformed rather than failing the caller.
func loginShell(u *user.User) string {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return "/bin/sh"
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		fields := strings.Split(s.Text(), ":")
		if len(fields) < 7 {
			continue
		}
		if fields[0] == u.Username {
			return fields[6]
		}
	}

	return "/bin/sh"
}
