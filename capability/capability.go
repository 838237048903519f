//
// Copyright 2019-2021 Nestybox, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package capability provides the POSIX capability bits the execution
// supervisor needs to shape the bounding set of the command process before
// it execs under the target identity (§4.X, §5's privilege-discipline
// requirement). Only the bounding-set half of the teacher's capability
// package is carried forward — sudo has no notion of file capabilities or
// of an inheritable/permitted/effective set independent of the kernel's own
// setuid-transition rules, so capsFile and the multi-set Capabilities
// interface that served the teacher's container-sandboxing use case are not
// reused here.
package capability

// Cap identifies a single POSIX capability bit.
//
// Defined in https://github.com/torvalds/linux/blob/master/include/uapi/linux/capability.h
type Cap int

const (
	CAP_CHOWN              = Cap(0)
	CAP_DAC_OVERRIDE       = Cap(1)
	CAP_DAC_READ_SEARCH    = Cap(2)
	CAP_FOWNER             = Cap(3)
	CAP_FSETID             = Cap(4)
	CAP_KILL               = Cap(5)
	CAP_SETGID             = Cap(6)
	CAP_SETUID             = Cap(7)
	CAP_SETPCAP            = Cap(8)
	CAP_LINUX_IMMUTABLE    = Cap(9)
	CAP_NET_BIND_SERVICE   = Cap(10)
	CAP_NET_BROADCAST      = Cap(11)
	CAP_NET_ADMIN          = Cap(12)
	CAP_NET_RAW            = Cap(13)
	CAP_IPC_LOCK           = Cap(14)
	CAP_IPC_OWNER          = Cap(15)
	CAP_SYS_MODULE         = Cap(16)
	CAP_SYS_RAWIO          = Cap(17)
	CAP_SYS_CHROOT         = Cap(18)
	CAP_SYS_PTRACE         = Cap(19)
	CAP_SYS_PACCT          = Cap(20)
	CAP_SYS_ADMIN          = Cap(21)
	CAP_SYS_BOOT           = Cap(22)
	CAP_SYS_NICE           = Cap(23)
	CAP_SYS_RESOURCE       = Cap(24)
	CAP_SYS_TIME           = Cap(25)
	CAP_SYS_TTY_CONFIG     = Cap(26)
	CAP_MKNOD              = Cap(27)
	CAP_LEASE              = Cap(28)
	CAP_AUDIT_WRITE        = Cap(29)
	CAP_AUDIT_CONTROL      = Cap(30)
	CAP_SETFCAP            = Cap(31)
	CAP_MAC_OVERRIDE       = Cap(32)
	CAP_MAC_ADMIN          = Cap(33)
	CAP_SYSLOG             = Cap(34)
	CAP_WAKE_ALARM         = Cap(35)
	CAP_BLOCK_SUSPEND      = Cap(36)
	CAP_AUDIT_READ         = Cap(37)
	CAP_PERFMON            = Cap(38)
	CAP_BPF                = Cap(39)
	CAP_CHECKPOINT_RESTORE = Cap(40)

	// CAP_LAST_CAP is a compile-time floor; the runtime ceiling is read
	// from /proc/sys/kernel/cap_last_cap on first use (see runtimeLastCap in
	// bounding_linux.go).
	CAP_LAST_CAP = Cap(40)
)

var capNames = map[Cap]string{
	CAP_CHOWN:              "chown",
	CAP_DAC_OVERRIDE:       "dac_override",
	CAP_DAC_READ_SEARCH:    "dac_read_search",
	CAP_FOWNER:             "fowner",
	CAP_FSETID:             "fsetid",
	CAP_KILL:               "kill",
	CAP_SETGID:             "setgid",
	CAP_SETUID:             "setuid",
	CAP_SETPCAP:            "setpcap",
	CAP_LINUX_IMMUTABLE:    "linux_immutable",
	CAP_NET_BIND_SERVICE:   "net_bind_service",
	CAP_NET_BROADCAST:      "net_broadcast",
	CAP_NET_ADMIN:          "net_admin",
	CAP_NET_RAW:            "net_raw",
	CAP_IPC_LOCK:           "ipc_lock",
	CAP_IPC_OWNER:          "ipc_owner",
	CAP_SYS_MODULE:         "sys_module",
	CAP_SYS_RAWIO:          "sys_rawio",
	CAP_SYS_CHROOT:         "sys_chroot",
	CAP_SYS_PTRACE:         "sys_ptrace",
	CAP_SYS_PACCT:          "sys_pacct",
	CAP_SYS_ADMIN:          "sys_admin",
	CAP_SYS_BOOT:           "sys_boot",
	CAP_SYS_NICE:           "sys_nice",
	CAP_SYS_RESOURCE:       "sys_resource",
	CAP_SYS_TIME:           "sys_time",
	CAP_SYS_TTY_CONFIG:     "sys_tty_config",
	CAP_MKNOD:              "mknod",
	CAP_LEASE:              "lease",
	CAP_AUDIT_WRITE:        "audit_write",
	CAP_AUDIT_CONTROL:      "audit_control",
	CAP_SETFCAP:            "setfcap",
	CAP_MAC_OVERRIDE:       "mac_override",
	CAP_MAC_ADMIN:          "mac_admin",
	CAP_SYSLOG:             "syslog",
	CAP_WAKE_ALARM:         "wake_alarm",
	CAP_BLOCK_SUSPEND:      "block_suspend",
	CAP_AUDIT_READ:         "audit_read",
	CAP_PERFMON:            "perfmon",
	CAP_BPF:                "bpf",
	CAP_CHECKPOINT_RESTORE: "checkpoint_restore",
}

func (c Cap) String() string {
	if s, ok := capNames[c]; ok {
		return s
	}
	return "unknown"
}
