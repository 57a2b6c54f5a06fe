package config

import (
	"fmt"
	"sort"
	"time"
)

// Defaults for a fresh configuration.
const (
	DefaultServer  = "http://127.0.0.1:5080"
	DefaultOutput  = "table"
	DefaultTimeout = 30 * time.Second
)

// CLIConfig is the configuration for previewshare-cli.
type CLIConfig struct {
	// Output is the default output format: table, json or yaml.
	Output string `yaml:"output"`

	// Timeout bounds every request.
	Timeout time.Duration `yaml:"timeout"`

	// Profiles are the saved connections, by name.
	Profiles map[string]Profile `yaml:"profiles"`

	// Current names the profile used when no --profile is given.
	Current string `yaml:"current,omitempty"`
}

// Profile stores saved connection details.
type Profile struct {
	Server string `yaml:"server"`
	APIKey string `yaml:"api_key,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Output:   DefaultOutput,
		Timeout:  DefaultTimeout,
		Profiles: make(map[string]Profile),
	}
}

// Profile returns the named profile, or the current one when name is empty.
// A configuration without profiles yields a profile for DefaultServer.
func (c *CLIConfig) Profile(name string) (Profile, error) {
	if name == "" {
		name = c.Current
	}
	if name == "" {
		return Profile{Server: DefaultServer}, nil
	}
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// SetProfile stores p under name. The first saved profile becomes current.
func (c *CLIConfig) SetProfile(name string, p Profile) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.Server == "" {
		return fmt.Errorf("profile %q: server is required", name)
	}
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	c.Profiles[name] = p
	if c.Current == "" {
		c.Current = name
	}
	return nil
}

// Use makes name the current profile.
func (c *CLIConfig) Use(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	c.Current = name
	return nil
}

// ProfileNames returns the saved profile names in sorted order.
func (c *CLIConfig) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration.
func (c *CLIConfig) Validate() error {
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("output: unknown format %q", c.Output)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Current != "" {
		if _, ok := c.Profiles[c.Current]; !ok {
			return fmt.Errorf("current profile %q not found", c.Current)
		}
	}
	for name, p := range c.Profiles {
		if p.Server == "" {
			return fmt.Errorf("profile %q: server is required", name)
		}
	}
	return nil
}
