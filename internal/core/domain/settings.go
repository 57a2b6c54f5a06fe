package domain

import "fmt"

// ReissueStrategy selects what issuing a token does to the resource's
// current valid token.
type ReissueStrategy string

const (
	// ReissueReplace revokes the current token and mints a new one with the
	// effective TTL.
	ReissueReplace ReissueStrategy = "replace"

	// ReissueRefresh revokes the current token and mints a new one that keeps
	// the previous token's lifetime unless a TTL is given explicitly.
	ReissueRefresh ReissueStrategy = "refresh"
)

// Valid reports whether s is a known strategy.
func (s ReissueStrategy) Valid() bool {
	return s == ReissueReplace || s == ReissueRefresh
}

// Settings defaults.
const (
	DefaultTTLHours        = 24
	DefaultEnableLogging   = false
	DefaultEnableCaching   = true
	DefaultReissueStrategy = ReissueReplace
)

// MaxTTLHours caps every TTL (100 years). Larger values would overflow
// time.Duration.
const MaxTTLHours = 100 * 365 * 24

// CheckTTLHours validates a TTL in hours; field names the value in errors.
func CheckTTLHours(field string, h int) error {
	if h < 0 {
		return ErrInvalidArgument.WithDetails(field + " must not be negative")
	}
	if h > MaxTTLHours {
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("%s must not exceed %d", field, MaxTTLHours))
	}
	return nil
}

// Settings are the runtime tunables of the preview engine.
type Settings struct {
	DefaultTTLHours int             `json:"default_ttl_hours" yaml:"default_ttl_hours" koanf:"default_ttl_hours"`
	EnableLogging   bool            `json:"enable_logging" yaml:"enable_logging" koanf:"enable_logging"`
	EnableCaching   bool            `json:"enable_caching" yaml:"enable_caching" koanf:"enable_caching"`
	ReissueStrategy ReissueStrategy `json:"reissue_strategy" yaml:"reissue_strategy" koanf:"reissue_strategy"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		DefaultTTLHours: DefaultTTLHours,
		EnableLogging:   DefaultEnableLogging,
		EnableCaching:   DefaultEnableCaching,
		ReissueStrategy: DefaultReissueStrategy,
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if err := CheckTTLHours("default_ttl_hours", s.DefaultTTLHours); err != nil {
		return err
	}
	if !s.ReissueStrategy.Valid() {
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown reissue_strategy %q", s.ReissueStrategy))
	}
	return nil
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	DefaultTTLHours *int             `json:"default_ttl_hours,omitempty"`
	EnableLogging   *bool            `json:"enable_logging,omitempty"`
	EnableCaching   *bool            `json:"enable_caching,omitempty"`
	ReissueStrategy *ReissueStrategy `json:"reissue_strategy,omitempty"`
}

// Apply returns s with the patch applied and validated.
func (p SettingsPatch) Apply(s Settings) (Settings, error) {
	if p.DefaultTTLHours != nil {
		s.DefaultTTLHours = *p.DefaultTTLHours
	}
	if p.EnableLogging != nil {
		s.EnableLogging = *p.EnableLogging
	}
	if p.EnableCaching != nil {
		s.EnableCaching = *p.EnableCaching
	}
	if p.ReissueStrategy != nil {
		s.ReissueStrategy = *p.ReissueStrategy
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
