// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers shared by the host-side
// command and the stage process it re-executes:
//
//   - [Fatal] reports an unrecoverable error on stderr as a single line
//     and exits, using the error's own exit code when it carries one.
//   - [NewLogger] builds the structured logger both processes use.
//
// Fatal is one of the few places allowed to write raw text to stderr; all
// other diagnostics go through the slog logger.
package process
