package service

import (
	"context"
	"log/slog"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// SettingsService exposes the preview settings.
type SettingsService struct {
	store  SettingsStore
	logger *slog.Logger
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(store SettingsStore, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{store: store, logger: logger}
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	return s.store.Settings(ctx)
}

// Update applies a partial update and returns the new settings.
func (s *SettingsService) Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	st, err := s.store.Update(ctx, patch)
	if err != nil {
		return domain.Settings{}, err
	}
	s.logger.Info("preview settings updated",
		"default_ttl_hours", st.DefaultTTLHours,
		"enable_logging", st.EnableLogging,
		"enable_caching", st.EnableCaching,
		"reissue_strategy", st.ReissueStrategy,
	)
	return st, nil
}
