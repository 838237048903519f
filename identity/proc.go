//go:build linux

package identity

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ProcCredentials is the subset of /proc/[pid]/status this package cares
// about: the effective uid and gid (second field of the Uid and Gid
// quadruplets) and the supplementary group list. Adapted from the teacher's
// pathres.getProcInfo, which reads the identical fields to build its own
// procInfo for permission checks; here the same scan is reused to learn
// the invoker's credentials rather than to check file access.
type ProcCredentials struct {
	Uid  uint32
	Gid  uint32
	Sgid []uint32
}

var spaceRE = regexp.MustCompile(`\s+`)

// ProcessCredentials reads /proc/[pid]/status and returns its effective
// uid/gid/supplementary-groups triplet.
func ProcessCredentials(pid int) (*ProcCredentials, error) {
	fields, err := readProcStatus(pid, []string{"Uid", "Gid", "Groups"})
	if err != nil {
		return nil, err
	}

	euid, err := quadrupletField(fields["Uid"], 1)
	if err != nil {
		return nil, errors.Wrap(err, "parsing Uid")
	}
	egid, err := quadrupletField(fields["Gid"], 1)
	if err != nil {
		return nil, errors.Wrap(err, "parsing Gid")
	}

	sgid := []uint32{}
	str := strings.TrimSpace(spaceRE.ReplaceAllString(fields["Groups"], " "))
	if str != "" {
		for _, g := range strings.Split(str, " ") {
			v, err := strconv.ParseUint(g, 10, 32)
			if err != nil {
				continue
			}
			sgid = append(sgid, uint32(v))
		}
	}

	return &ProcCredentials{Uid: uint32(euid), Gid: uint32(egid), Sgid: sgid}, nil
}

func quadrupletField(raw string, idx int) (uint64, error) {
	str := strings.TrimSpace(spaceRE.ReplaceAllString(raw, " "))
	parts := strings.Split(str, " ")
	if len(parts) <= idx {
		return 0, fmt.Errorf("malformed status line %q", raw)
	}
	return strconv.ParseUint(parts[idx], 10, 32)
}

func readProcStatus(pid int, wanted []string) (map[string]string, error) {
	filename := fmt.Sprintf("/proc/%d/status", pid)
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer f.Close()

	out := make(map[string]string)
	s := bufio.NewScanner(f)
	for s.Scan() {
		parts := strings.SplitN(s.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		for _, w := range wanted {
			if parts[0] == w {
				out[w] = parts[1]
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return out, nil
}

