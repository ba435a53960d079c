// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox launches a command inside an extracted root filesystem
// using Linux namespaces and pivot_root, without privileges on the host.
//
// The central type is [Sandbox]. [Sandbox.Run] re-executes the current
// binary as a stage process (via github.com/moby/sys/reexec), created by
// clone with the requested namespaces and the identity mapping already
// in place, and streams it the launch description as CBOR over an
// inherited pipe. The stage then walks the root swap state machine:
//
//	unprivileged -> namespaced-private -> rootfs-bound -> mounts-applied
//	  -> pivoted -> old-root-detached -> cleaned
//
// making / private, binding the rootfs onto itself, applying the caller's
// [MountSpec] list in order, pivoting into the rootfs with the old root
// parked in a uniquely named scratch directory, and detaching and
// removing that directory. Only then does it exec the command with
// exactly the configured [Environment]. Transitions run strictly in
// order; any failure is fatal and reported as a [TransitionError].
//
// Run waits for the command and returns an [ExitError] carrying its exit
// status. Launcher failures use [ExitSetupFailure], [ExitNotExecutable]
// and [ExitNotFound].
//
// Binaries using this package must call reexec.Init at the start of main
// (and TestMain) and return if it reports true; that is how the stage
// and the capability probe gain control in the child.
//
// [Validator] performs pre-flight checks (user namespace sysctls, a
// rootless probe, rootfs and mount paths, command resolution) and
// [Capabilities] reports what this host supports.
package sandbox
