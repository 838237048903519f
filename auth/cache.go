// Package auth implements the interactive authenticator (§4.A): tty
// password prompting, a persisted credential cache, retry budget, and
// ask-pass program support. Cache validity's session half is grounded on
// gopsutil/v3/process.NewProcess(pid).CreateTime(), mirroring the teacher's
// own use of gopsutil elsewhere in the retrieval pack for process
// introspection that /proc parsing alone can't give a portable answer to
// (process start time requires the same clock-tick arithmetic gopsutil
// already encapsulates).
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// Record is the on-disk credential cache record (§3).
type Record struct {
	AuthUser     uint32 `json:"auth_user"`
	Target       uint32 `json:"target"`
	TtyDeviceID  *uint64 `json:"tty_device_id,omitempty"`
	SessionPid   *int32  `json:"session_pid,omitempty"`
	CreatedAt    int64   `json:"created_at"` // unix nanos, monotonic-ish within one host
	SessionStart *int64  `json:"session_start,omitempty"`
}

// Cache is the credential cache store rooted at dir (conventionally
// /var/run/sudo-rs-sub002/ts, one file per auth_user).
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) path(authUser uint32) string {
	return filepath.Join(c.dir, itoa(authUser))
}

// Load reads the record for authUser, if any.
func (c *Cache) Load(authUser uint32) (*Record, error) {
	data, err := os.ReadFile(c.path(authUser))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading credential cache")
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "parsing credential cache record")
	}
	return &rec, nil
}

// Store persists rec, creating the cache directory if needed, with
// owner-only permissions.
func (c *Cache) Store(rec *Record) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return errors.Wrap(err, "creating credential cache directory")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encoding credential cache record")
	}
	return os.WriteFile(c.path(rec.AuthUser), data, 0o600)
}

// Invalidate clears the timestamp on a record without removing the file
// (`sudo -k`, §4.A).
func (c *Cache) Invalidate(authUser uint32) error {
	rec, err := c.Load(authUser)
	if err != nil || rec == nil {
		return err
	}
	rec.CreatedAt = 0
	return c.Store(rec)
}

// Remove deletes the cache file outright (`sudo -K`, §4.A).
func (c *Cache) Remove(authUser uint32) error {
	err := os.Remove(c.path(authUser))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing credential cache record")
	}
	return nil
}

// Session describes the invoker's current tty/session, used to validate a
// cache Record per §3/§4.A.
type Session struct {
	TtyDeviceID *uint64
	Pid         int32
}

// Valid implements §3's record-validity predicate.
func Valid(rec *Record, validity time.Duration, sess Session, now time.Time) bool {
	if rec == nil {
		return false
	}
	if now.Sub(time.Unix(0, rec.CreatedAt)) > validity {
		return false
	}

	if rec.TtyDeviceID != nil && sess.TtyDeviceID != nil {
		return *rec.TtyDeviceID == *sess.TtyDeviceID
	}

	if rec.SessionPid != nil && rec.SessionStart != nil {
		p, err := process.NewProcess(sess.Pid)
		if err != nil {
			return false
		}
		start, err := p.CreateTime()
		if err != nil {
			return false
		}
		return *rec.SessionPid == sess.Pid && *rec.SessionStart == start
	}

	return false
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
