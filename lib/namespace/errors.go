// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import "fmt"

// NamespaceError reports that namespaces could not be created or
// configured: an unsupported kind, missing privilege, a disabled sysctl.
type NamespaceError struct {
	Op  string
	Set Set
	Err error
}

func (e *NamespaceError) Error() string {
	return fmt.Sprintf("namespace: %s [%s]: %v", e.Op, e.Set, e.Err)
}

func (e *NamespaceError) Unwrap() error { return e.Err }
