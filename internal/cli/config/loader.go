package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Merge.
const (
	EnvServer  = "PREVIEWSHARE_CLI_SERVER"
	EnvAPIKey  = "PREVIEWSHARE_CLI_API_KEY"
	EnvOutput  = "PREVIEWSHARE_CLI_OUTPUT"
	EnvTimeout = "PREVIEWSHARE_CLI_TIMEOUT"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".previewshare", "cli.yaml")
}

// Load loads CLI configuration from file.
// A missing file yields the default configuration.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// Overrides are connection values taken from outside the config file.
type Overrides struct {
	Server  string
	APIKey  string
	Output  string
	Timeout time.Duration
}

// EnvOverrides reads overrides from PREVIEWSHARE_CLI_* variables.
func EnvOverrides(getenv func(string) string) (Overrides, error) {
	o := Overrides{
		Server: getenv(EnvServer),
		APIKey: getenv(EnvAPIKey),
		Output: getenv(EnvOutput),
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return o, fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		o.Timeout = d
	}
	return o, nil
}

// Resolved is the effective connection for one invocation.
type Resolved struct {
	Server  string
	APIKey  string
	Output  string
	Timeout time.Duration
}

// Merge resolves the connection for profile, applying each override layer
// in order so later layers win.
func Merge(cfg *CLIConfig, profile string, layers ...Overrides) (Resolved, error) {
	p, err := cfg.Profile(profile)
	if err != nil {
		return Resolved{}, err
	}

	r := Resolved{
		Server:  p.Server,
		APIKey:  p.APIKey,
		Output:  cfg.Output,
		Timeout: cfg.Timeout,
	}
	for _, o := range layers {
		if o.Server != "" {
			r.Server = o.Server
		}
		if o.APIKey != "" {
			r.APIKey = o.APIKey
		}
		if o.Output != "" {
			r.Output = o.Output
		}
		if o.Timeout > 0 {
			r.Timeout = o.Timeout
		}
	}
	return r, nil
}
