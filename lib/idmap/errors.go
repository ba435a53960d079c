// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idmap

import "fmt"

// IdentityMapError reports an identity mapping that was rejected or did
// not take effect.
type IdentityMapError struct {
	Op  string
	Err error
}

func (e *IdentityMapError) Error() string {
	return fmt.Sprintf("identity map: %s: %v", e.Op, e.Err)
}

func (e *IdentityMapError) Unwrap() error { return e.Err }
