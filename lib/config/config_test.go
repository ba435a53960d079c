// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Launch.DefaultShell != "/bin/sh" {
		t.Errorf("expected default_shell=/bin/sh, got %s", cfg.Launch.DefaultShell)
	}
	if strings.Join(cfg.Launch.Namespaces, ",") != "user,mount" {
		t.Errorf("expected namespaces=user,mount, got %v", cfg.Launch.Namespaces)
	}
	if cfg.Log.Format != "auto" {
		t.Errorf("expected log.format=auto, got %s", cfg.Log.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoad_NoFileUsesDefault(t *testing.T) {
	t.Setenv(EnvVariable, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Launch.DefaultShell != "/bin/sh" {
		t.Errorf("expected defaults, got %+v", cfg.Launch)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	path := writeConfig(t, "rootswap.yaml", `
launch:
  default_shell: /bin/bash
  namespaces: [user, mount, pid]
  hostname: box
  environment:
    PATH: /usr/bin:/bin
  mounts:
    - host: /srv/data
      container: /data
      options: ro,nodev
log:
  level: debug
`)
	t.Setenv(EnvVariable, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Launch.DefaultShell != "/bin/bash" {
		t.Errorf("default_shell = %s", cfg.Launch.DefaultShell)
	}
	if strings.Join(cfg.Launch.Namespaces, ",") != "user,mount,pid" {
		t.Errorf("namespaces = %v, want the file's list to replace the default", cfg.Launch.Namespaces)
	}
	if cfg.Launch.Hostname != "box" {
		t.Errorf("hostname = %s", cfg.Launch.Hostname)
	}
	if cfg.Launch.Environment["PATH"] != "/usr/bin:/bin" {
		t.Errorf("environment = %v", cfg.Launch.Environment)
	}
	if len(cfg.Launch.Mounts) != 1 || cfg.Launch.Mounts[0].Options != "ro,nodev" {
		t.Errorf("mounts = %+v", cfg.Launch.Mounts)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %s", cfg.Log.Level)
	}
	// Unset fields keep their defaults.
	if cfg.Log.Format != "auto" {
		t.Errorf("log.format = %s, want default auto", cfg.Log.Format)
	}
}

func TestLoad_ExplicitPathWins(t *testing.T) {
	envPath := writeConfig(t, "env.yaml", "launch:\n  default_shell: /bin/env-shell\n")
	flagPath := writeConfig(t, "flag.yaml", "launch:\n  default_shell: /bin/flag-shell\n")
	t.Setenv(EnvVariable, envPath)

	cfg, err := Load(flagPath)
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", flagPath, err)
	}
	if cfg.Launch.DefaultShell != "/bin/flag-shell" {
		t.Errorf("default_shell = %s, want the --config file's value", cfg.Launch.DefaultShell)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "rootswap.jsonc", `{
  // Comments are allowed.
  "launch": {
    "namespaces": ["user", "mount", "net"],
    "mounts": [
      {"host": "/srv", "container": "/srv"}, // trailing comma
    ],
  },
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if strings.Join(cfg.Launch.Namespaces, ",") != "user,mount,net" {
		t.Errorf("namespaces = %v", cfg.Launch.Namespaces)
	}
	if len(cfg.Launch.Mounts) != 1 || cfg.Launch.Mounts[0].Host != "/srv" {
		t.Errorf("mounts = %+v", cfg.Launch.Mounts)
	}
}

func TestLoadFile_ExpandsVariables(t *testing.T) {
	t.Setenv("ROOTSWAP_TEST_DATA", "/var/lib/data")
	t.Setenv("ROOTSWAP_TEST_UNSET", "")
	path := writeConfig(t, "rootswap.yaml", `
launch:
  environment:
    HOME: ${ROOTSWAP_TEST_UNSET:-/root}
  mounts:
    - host: ${ROOTSWAP_TEST_DATA}/cache
      container: /cache
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Launch.Mounts[0].Host != "/var/lib/data/cache" {
		t.Errorf("mount host = %s", cfg.Launch.Mounts[0].Host)
	}
	if cfg.Launch.Environment["HOME"] != "/root" {
		t.Errorf("HOME = %s, want the ${VAR:-default} fallback", cfg.Launch.Environment["HOME"])
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}

	malformed := writeConfig(t, "bad.yaml", "launch: [not, a, map\n")
	if _, err := LoadFile(malformed); err == nil {
		t.Error("expected error for malformed YAML")
	}

	invalid := writeConfig(t, "invalid.yaml", `
launch:
  mounts:
    - host: relative/path
      container: /x
log:
  format: xml
`)
	_, err := LoadFile(invalid)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"must be absolute", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Launch.DefaultShell = ""
	cfg.Launch.Mounts = []MountConfig{{Host: "/a"}}
	cfg.Launch.Environment = map[string]string{"A=B": "x"}
	cfg.Log.Level = "chatty"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"default_shell", "host and container", "invalid variable name", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
