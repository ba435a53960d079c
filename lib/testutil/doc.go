// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for rootswap packages.
//
// [Rootfs] builds a minimal root filesystem in a temporary directory.
// Commands inside it come from the host: the host's /usr (and the
// merged-usr links beside it) is bind-mounted in by the caller using
// the returned [HostBind] list, so tests can run /bin/sh and
// /usr/bin/env without shipping a static userland.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) for tests that wait on concurrent
// launches.
//
// [UniqueID] generates monotonically increasing identifiers for
// marker files and hostnames that must not collide across parallel
// tests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no rootswap-internal dependencies.
package testutil
