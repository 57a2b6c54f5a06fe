package connection

import (
	"github.com/yndnr/previewshare-go/internal/cli/config"
)

// Manager resolves connections from the local CLI configuration.
type Manager struct {
	cfg  *config.CLIConfig
	path string
}

// NewManager creates a manager over cfg, persisted at path.
func NewManager(cfg *config.CLIConfig, path string) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Manager{cfg: cfg, path: path}
}

// Config returns the managed configuration.
func (m *Manager) Config() *config.CLIConfig {
	return m.cfg
}

// Save persists the configuration.
func (m *Manager) Save() error {
	return config.Save(m.cfg, m.path)
}

// Path returns the configuration file path.
func (m *Manager) Path() string {
	if m.path == "" {
		return config.DefaultConfigPath()
	}
	return m.path
}

// Resolve merges profile with the override layers and returns a client
// for the result.
func (m *Manager) Resolve(profile string, layers ...config.Overrides) (*HTTPClient, config.Resolved, error) {
	r, err := config.Merge(m.cfg, profile, layers...)
	if err != nil {
		return nil, config.Resolved{}, err
	}
	return NewHTTPClient(r.Server, r.APIKey, r.Timeout), r, nil
}
