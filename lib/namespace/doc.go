// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package namespace describes the set of Linux namespaces a launch runs
// in and configures the ones that need setup from the inside.
//
// A [Set] is requested exactly once, as the clone flags of the stage
// process ([Set.Apply]). The Go runtime is multithreaded, and the kernel
// refuses unshare(CLONE_NEWUSER) from a multithreaded process, so the
// namespaces are created atomically by clone(2) when the stage process is
// started rather than by unsharing the current one. Either every
// requested namespace exists in the child or the clone fails and none do.
//
// Inside the stage, [CheckPrivilege] confirms the process holds
// CAP_SYS_ADMIN in its new user namespace, [SetHostname] configures a new
// UTS namespace and [LoopbackUp] brings up lo in a new network namespace.
//
// Kind names follow the OCI runtime specification (user, mount, pid, uts,
// network, ipc, cgroup).
package namespace
