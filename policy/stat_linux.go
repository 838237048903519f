//go:build linux

package policy

import (
	"os"
	"syscall"
)

func statUid(fi os.FileInfo) (uint32, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return st.Uid, true
}
