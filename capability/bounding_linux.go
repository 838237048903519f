//go:build linux

package capability

import (
	"bufio"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	lastCapOnce sync.Once
	lastCap     = CAP_LAST_CAP
)

// runtimeLastCap returns the highest capability the running kernel knows
// about, read once from /proc/sys/kernel/cap_last_cap the way the teacher's
// capability_linux.go initLastCap does, falling back to the compiled-in
// CAP_LAST_CAP floor if the file is absent (e.g. inside some chroots).
func runtimeLastCap() Cap {
	lastCapOnce.Do(func() {
		f, err := os.Open("/proc/sys/kernel/cap_last_cap")
		if err != nil {
			return
		}
		defer f.Close()

		s := bufio.NewScanner(f)
		if s.Scan() {
			if n, err := strconv.Atoi(s.Text()); err == nil {
				lastCap = Cap(n)
			}
		}
	})
	return lastCap
}

// BoundingSetDrop removes every capability NOT in keep from the calling
// process's bounding set via repeated PR_CAPBSET_DROP prctls. It must run
// in the command process after setuid/setgid/setgroups and before execve
// (§4.X, §5): dropping from the bounding set after the UID switch still
// works because CAP_SETPCAP is not required for PR_CAPBSET_DROP, only
// CAP_SYS_ADMIN in old kernels or nothing at all on modern ones when
// operating on one's own bounding set.
func BoundingSetDrop(keep []Cap) error {
	keepSet := make(map[Cap]bool, len(keep))
	for _, c := range keep {
		keepSet[c] = true
	}

	last := runtimeLastCap()
	for c := Cap(0); c <= last; c++ {
		if keepSet[c] {
			continue
		}
		has, err := boundingSetHas(c)
		if err != nil {
			return errors.Wrapf(err, "reading bounding set bit %s", c)
		}
		if !has {
			continue
		}
		if err := unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(c), 0, 0, 0); err != nil {
			return errors.Wrapf(err, "dropping capability %s from bounding set", c)
		}
	}
	return nil
}

// boundingSetHas reports whether c is currently set in the bounding set.
func boundingSetHas(c Cap) (bool, error) {
	ret, err := unix.PrctlRetInt(unix.PR_CAPBSET_READ, uintptr(c), 0, 0, 0)
	if err != nil {
		return false, err
	}
	return ret == 1, nil
}
