// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec carries the launch description from the host-side
// process to the stage process across the re-exec boundary.
//
// A message is one CBOR item written with Core Deterministic Encoding
// (RFC 8949 §4.2) and terminated by the writer closing the pipe. The
// decoder rejects unknown fields, duplicate map keys, and
// indefinite-length items: both ends of the pipe are the same binary,
// so anything unexpected means a mismatched build or a corrupted pipe.
//
//	host:  codec.WriteMessage(pipe, description); pipe.Close()
//	stage: codec.ReadMessage(pipe, &description)
package codec
