// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mount wraps the raw mount(2) and umount2(2) calls used during a
// root swap with a typed flag set and a single error type.
//
// Three operations cover everything the launcher needs: [BindMount] creates a
// bind mount (and applies restriction flags with a follow-up remount),
// [MakePrivate] stops propagation of mount events between the new mount
// namespace and the host, and [DetachUnmount] lazily detaches a subtree
// that may still be referenced by an open working directory.
//
// Every failure is returned as a [*MountError] carrying the operation,
// paths, flags and the underlying errno. Nothing is retried: a half
// applied mount sequence is not safe to repeat.
//
// [Table], [Enclosing] and [IsMountPoint] read /proc/self/mountinfo for
// preflight checks and tests.
package mount
