// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVariable names the config file when --config is not given.
const EnvVariable = "ROOTSWAP_CONFIG"

// Config is the rootswap configuration.
type Config struct {
	// Launch holds defaults merged under each command-line invocation.
	Launch LaunchConfig `yaml:"launch"`

	// Log configures diagnostic output.
	Log LogConfig `yaml:"log"`
}

// LaunchConfig holds launch defaults.
type LaunchConfig struct {
	// DefaultShell runs when no COMMAND is given.
	// Default: /bin/sh
	DefaultShell string `yaml:"default_shell"`

	// Namespaces lists the namespace kinds to create.
	// Default: [user, mount]
	Namespaces []string `yaml:"namespaces"`

	// Hostname is set in the UTS namespace when uts is requested.
	Hostname string `yaml:"hostname"`

	// Environment is the base environment of every launched command.
	// Variables given on the command line override these.
	Environment map[string]string `yaml:"environment"`

	// Mounts are applied before those given on the command line.
	Mounts []MountConfig `yaml:"mounts"`
}

// MountConfig is one bind mount from the host into the rootfs.
type MountConfig struct {
	Host      string `yaml:"host"`
	Container string `yaml:"container"`

	// Options is a comma list of ro, nosuid, nodev, noexec.
	Options string `yaml:"options,omitempty"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is auto, text or json. Auto picks text on a terminal.
	// Default: auto
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given, and the
// base that a loaded file is decoded over.
func Default() *Config {
	return &Config{
		Launch: LaunchConfig{
			DefaultShell: "/bin/sh",
			Namespaces:   []string{"user", "mount"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by path, or by ROOTSWAP_CONFIG when path is
// empty. With neither set it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVariable)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file, decoded over
// Default, then expands variables.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	for i := range c.Launch.Mounts {
		c.Launch.Mounts[i].Host = expandVars(c.Launch.Mounts[i].Host)
	}
	for name, value := range c.Launch.Environment {
		c.Launch.Environment[name] = expandVars(value)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Launch.DefaultShell == "" {
		errs = append(errs, errors.New("launch.default_shell is required"))
	}
	for i, m := range c.Launch.Mounts {
		if m.Host == "" || m.Container == "" {
			errs = append(errs, fmt.Errorf("launch.mounts[%d]: host and container are required", i))
			continue
		}
		if !filepath.IsAbs(m.Host) {
			errs = append(errs, fmt.Errorf("launch.mounts[%d]: host path %q must be absolute", i, m.Host))
		}
	}
	for name := range c.Launch.Environment {
		if name == "" || strings.Contains(name, "=") {
			errs = append(errs, fmt.Errorf("launch.environment: invalid variable name %q", name))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be auto, text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}
