// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Rootswap runs a command inside an extracted root filesystem. It
// creates user and mount namespaces (optionally pid, uts, network, ipc
// and cgroup), applies bind mounts, pivots into the rootfs, removes every
// trace of the host root, and execs the command with exactly the given
// environment. No privileges are needed on the host.
//
// The exit status is the command's, or 125 when the launch failed, 126
// when the command is not executable and 127 when it is not found.
package main
