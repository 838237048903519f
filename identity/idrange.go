package identity

import (
	"fmt"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// ValidateIDRange checks a #uid/#gid token against the host's valid id
// range using the same ContainerID/HostID/Size shape the teacher's
// linuxUtils.CreateUsernsProcess and idMap use to describe a uid/gid
// mapping window; here "ContainerID" is unused (no namespace is involved)
// and the struct purely documents the accepted [HostID, HostID+Size) range,
// which keeps the id-mapping vocabulary consistent between this repo and
// its teacher.
func ValidateIDRange(id uint32, mapping specs.LinuxIDMapping) error {
	if id < mapping.HostID || id >= mapping.HostID+mapping.Size {
		return fmt.Errorf("id %d outside of accepted range [%d, %d)", id, mapping.HostID, mapping.HostID+mapping.Size)
	}
	return nil
}

// DefaultIDRange is the conventional full 32-bit id space minus the
// wrap-around sentinel (0xffffffff, "no id"/nobody on some systems).
var DefaultIDRange = specs.LinuxIDMapping{ContainerID: 0, HostID: 0, Size: 0xffffffff}
