// Package config loads launchdeck's YAML configuration. Every field has a
// working default; a missing config file is not an error.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config is the on-disk shape. Durations are strings ("30s", "2m") so the
// file stays hand-editable.
type Config struct {
	LogLevel       string `yaml:"log_level"`
	LabelPrefix    string `yaml:"label_prefix"`
	LaunchctlPath  string `yaml:"launchctl_path"`
	CommandTimeout string `yaml:"command_timeout"`
	PollInterval   string `yaml:"poll_interval"`

	// UserAgentDir overrides the default ~/Library/LaunchAgents, mainly for
	// tests and sandboxed setups.
	UserAgentDir string `yaml:"user_agent_dir"`

	// IncludeSystem adds /Library/LaunchAgents and /Library/LaunchDaemons to
	// the scan set.
	IncludeSystem bool `yaml:"include_system"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:       "info",
		LabelPrefix:    "local.launchdeck.",
		LaunchctlPath:  "launchctl",
		CommandTimeout: "10s",
		PollInterval:   "5s",
		IncludeSystem:  true,
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// any other read or decode failure is an error with path context.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// CommandTimeoutDuration parses the command timeout, falling back to def
// when unset.
func (c Config) CommandTimeoutDuration(def time.Duration) (time.Duration, error) {
	return durationField("command_timeout", c.CommandTimeout, def)
}

// PollIntervalDuration parses the watch poll interval, falling back to def
// when unset.
func (c Config) PollIntervalDuration(def time.Duration) (time.Duration, error) {
	return durationField("poll_interval", c.PollInterval, def)
}

func durationField(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
