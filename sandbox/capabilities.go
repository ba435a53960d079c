// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/moby/sys/reexec"
	"github.com/syndtr/gocapability/capability"

	"github.com/bureau-foundation/rootswap/lib/idmap"
	"github.com/bureau-foundation/rootswap/lib/mount"
	"github.com/bureau-foundation/rootswap/lib/namespace"
	"github.com/bureau-foundation/rootswap/lib/process"
)

// probeName is the reexec name of the capability probe.
const probeName = "rootswap-probe"

func init() {
	reexec.Register(probeName, func() {
		if err := mount.MakePrivate("/"); err != nil {
			process.Fatal(err)
		}
		os.Exit(0)
	})
}

// Capabilities describes what launch features are available on this
// system.
type Capabilities struct {
	// UserNamespacesAllowed is false when a sysctl forbids unprivileged
	// user namespaces.
	UserNamespacesAllowed bool

	// SysctlReason names the sysctl that forbids them.
	SysctlReason string

	// RootlessLaunch is true if a probe process cloned into new user and
	// mount namespaces could change mount propagation, the first
	// privileged step of every launch.
	RootlessLaunch bool

	// ProbeError describes why the probe failed.
	ProbeError string

	// HostSysAdmin is true if this process holds CAP_SYS_ADMIN in the
	// initial user namespace, so launches without a user namespace can
	// work.
	HostSysAdmin bool
}

// userNamespaceSysctls are the knobs that can forbid unprivileged user
// namespaces, with the value that forbids them.
var userNamespaceSysctls = []struct {
	path      string
	forbidden string
	hint      string
}{
	{"/proc/sys/kernel/unprivileged_userns_clone", "0", "set kernel.unprivileged_userns_clone=1"},
	{"/proc/sys/user/max_user_namespaces", "0", "set user.max_user_namespaces above 0"},
	{"/proc/sys/kernel/apparmor_restrict_unprivileged_userns", "1", "set kernel.apparmor_restrict_unprivileged_userns=0"},
}

// DetectCapabilities checks what launch features are available. The
// probe re-executes this binary, which must call reexec.Init first
// thing in main (or TestMain).
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{UserNamespacesAllowed: true}

	for _, sysctl := range userNamespaceSysctls {
		data, err := os.ReadFile(sysctl.path)
		if err != nil {
			// Absent knobs do not restrict anything.
			continue
		}
		if strings.TrimSpace(string(data)) == sysctl.forbidden {
			caps.UserNamespacesAllowed = false
			caps.SysctlReason = sysctl.hint
			break
		}
	}

	if caps.UserNamespacesAllowed {
		if err := probeRootless(); err != nil {
			caps.ProbeError = err.Error()
		} else {
			caps.RootlessLaunch = true
		}
	}

	if host, err := capability.NewPid2(0); err == nil && host.Load() == nil {
		caps.HostSysAdmin = host.Get(capability.EFFECTIVE, capability.CAP_SYS_ADMIN)
	}

	return caps
}

// probeRootless clones the probe with the default namespaces and
// identity mapping and waits for it.
func probeRootless() error {
	var stderr bytes.Buffer
	cmd := reexec.Command(probeName)
	cmd.Env = []string{}
	cmd.Stderr = &stderr
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	namespace.Default.Apply(cmd.SysProcAttr)
	idmap.ForCaller().Apply(cmd.SysProcAttr)

	if err := cmd.Run(); err != nil {
		if message := strings.TrimSpace(stderr.String()); message != "" {
			return fmt.Errorf("%w: %s", err, message)
		}
		return err
	}
	return nil
}

// CanLaunch returns true if a default (rootless) launch is possible.
func (c *Capabilities) CanLaunch() bool {
	return c.UserNamespacesAllowed && c.RootlessLaunch
}

// SkipReason returns a human-readable reason why launching isn't
// available, or empty string if it is available.
func (c *Capabilities) SkipReason() string {
	if !c.UserNamespacesAllowed {
		return "unprivileged user namespaces not enabled (" + c.SysctlReason + ")"
	}
	if !c.RootlessLaunch {
		return "cannot mount in a new user namespace: " + c.ProbeError
	}
	return ""
}
