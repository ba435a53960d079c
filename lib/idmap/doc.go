// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package idmap builds and checks the user namespace identity mapping
// that makes an unprivileged caller appear as root inside the namespace.
//
// The mapping is always a single range of size one: container id 0 maps to
// the caller's host uid (and gid). [Mapping.Apply] hands it to the
// process-creation request; the Go runtime writes /proc/<pid>/uid_map and
// gid_map in a single write each (the kernel rejects a second write) and
// writes "deny" to setgroups before gid_map, which the kernel requires
// before an unprivileged process may write a gid map. The child is held
// until the maps are in place, so nothing it runs observes an unmapped
// identity.
//
// [Verify] runs inside the namespace and compares the map files with the
// expected single line.
package idmap
