// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"errors"
	"fmt"

	"github.com/syndtr/gocapability/capability"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// CheckPrivilege confirms the calling process holds CAP_SYS_ADMIN in its
// user namespace. Without it every mount in the root swap fails with
// EPERM; checking first turns that into one clear diagnostic.
func CheckPrivilege(set Set) error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return &NamespaceError{Op: "read capabilities", Set: set, Err: err}
	}
	if err := caps.Load(); err != nil {
		return &NamespaceError{Op: "read capabilities", Set: set, Err: err}
	}
	if !caps.Get(capability.EFFECTIVE, capability.CAP_SYS_ADMIN) {
		return &NamespaceError{
			Op:  "check privilege",
			Set: set,
			Err: errors.New("CAP_SYS_ADMIN not in effective set (is the user namespace mapping missing?)"),
		}
	}
	return nil
}

// SetHostname sets the hostname of a freshly created UTS namespace.
func SetHostname(set Set, hostname string) error {
	if !set.UTS {
		return &NamespaceError{Op: "set hostname", Set: set, Err: fmt.Errorf("hostname %q needs a uts namespace", hostname)}
	}
	if err := unix.Sethostname([]byte(hostname)); err != nil {
		return &NamespaceError{Op: "set hostname", Set: set, Err: err}
	}
	return nil
}

// LoopbackUp brings up the loopback interface of a freshly created
// network namespace, which starts with lo down.
func LoopbackUp(set Set) error {
	link, err := netlink.LinkByName("lo")
	if err != nil {
		return &NamespaceError{Op: "find loopback", Set: set, Err: err}
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return &NamespaceError{Op: "loopback up", Set: set, Err: err}
	}
	return nil
}
