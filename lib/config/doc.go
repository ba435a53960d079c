// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the rootswap configuration file.
//
// The file is named by the --config flag or the ROOTSWAP_CONFIG
// environment variable. There is no search path and no implicit
// discovery: without either, the built-in [Default] applies. This keeps
// a launch reproducible from its command line and environment alone.
//
// YAML is the native format. Files ending in .json or .jsonc are accepted
// too; comments and trailing commas are stripped before decoding.
//
// Mount host paths and environment values support ${VAR} and
// ${VAR:-default} expansion against the caller's environment.
package config
