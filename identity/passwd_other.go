//go:build !linux

package identity

import "os/user"

func loginShell(u *user.User) string {
	return "/bin/sh"
}
