// Package identity resolves the invoking and target user/group identities
// used throughout the policy, environment, and execution layers. It is the
// single place that turns a name, a "#uid" token, or a raw uid/gid into the
// fully-populated User/Group records the rest of the system needs.
package identity

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// User mirrors the identity record carried through policy decisions,
// environment construction, and privilege drop.
type User struct {
	Uid    uint32
	Gid    uint32
	Name   string
	Home   string
	Shell  string
	Groups []uint32 // supplementary group ids, including Gid
}

// Group is a resolved group name/id pair.
type Group struct {
	Gid  uint32
	Name string
}

// ErrNotFound is returned when a name or id has no corresponding entry.
type ErrNotFound struct {
	Kind string // "user" or "group"
	Key  string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// LookupUser resolves a user by name, or by "#uid" token per §6 CLI surface.
func LookupUser(name string) (*User, error) {
	var u *user.User
	var err error

	if uid, ok := parseHashToken(name); ok {
		u, err = user.LookupId(strconv.FormatUint(uint64(uid), 10))
	} else {
		u, err = user.Lookup(name)
	}
	if err != nil {
		if _, ok := err.(user.UnknownUserError); ok {
			return nil, &ErrNotFound{Kind: "user", Key: name}
		}
		return nil, errors.Wrapf(err, "looking up user %q", name)
	}

	return fromOSUser(u)
}

// LookupUserByUid resolves a user from a numeric uid.
func LookupUserByUid(uid uint32) (*User, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		if _, ok := err.(user.UnknownUserIdError); ok {
			return nil, &ErrNotFound{Kind: "user", Key: strconv.FormatUint(uint64(uid), 10)}
		}
		return nil, errors.Wrapf(err, "looking up uid %d", uid)
	}
	return fromOSUser(u)
}

// LookupGroup resolves a group by name, or by "#gid" token.
func LookupGroup(name string) (*Group, error) {
	var g *user.Group
	var err error

	if gid, ok := parseHashToken(name); ok {
		g, err = user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	} else {
		g, err = user.LookupGroup(name)
	}
	if err != nil {
		if _, ok := err.(user.UnknownGroupError); ok {
			return nil, &ErrNotFound{Kind: "group", Key: name}
		}
		return nil, errors.Wrapf(err, "looking up group %q", name)
	}

	gid, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid gid for group %q", name)
	}
	return &Group{Gid: uint32(gid), Name: g.Name}, nil
}

// LookupGroupByGid resolves a group from a numeric gid, used to turn an
// invoker's supplementary group id list into names for %group matching.
func LookupGroupByGid(gid uint32) (*Group, error) {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		if _, ok := err.(user.UnknownGroupIdError); ok {
			return nil, &ErrNotFound{Kind: "group", Key: strconv.FormatUint(uint64(gid), 10)}
		}
		return nil, errors.Wrapf(err, "looking up gid %d", gid)
	}
	return &Group{Gid: gid, Name: g.Name}, nil
}

// parseHashToken recognizes the "#n" form accepted by -u/-g per §6 (the
// leading "%" of a policy Runas_Group token is stripped by the caller
// before this is invoked).
func parseHashToken(s string) (uint32, bool) {
	if !strings.HasPrefix(s, "#") {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 32)
	if err != nil {
		return 0, false
	}
	if ValidateIDRange(uint32(n), DefaultIDRange) != nil {
		return 0, false
	}
	return uint32(n), true
}

func fromOSUser(u *user.User) (*User, error) {
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid uid %q", u.Uid)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid gid %q", u.Gid)
	}

	gids, err := u.GroupIds()
	if err != nil {
		return nil, errors.Wrapf(err, "listing groups for %q", u.Username)
	}

	groups := make([]uint32, 0, len(gids))
	for _, g := range gids {
		n, err := strconv.ParseUint(g, 10, 32)
		if err != nil {
			continue
		}
		groups = append(groups, uint32(n))
	}

	return &User{
		Uid:    uint32(uid),
		Gid:    uint32(gid),
		Name:   u.Username,
		Home:   u.HomeDir,
		Shell:  loginShell(u),
		Groups: groups,
	}, nil
}

// HasGroup reports whether gid is among the user's primary or supplementary
// groups.
func (u *User) HasGroup(gid uint32) bool {
	if u.Gid == gid {
		return true
	}
	for _, g := range u.Groups {
		if g == gid {
			return true
		}
	}
	return false
}
