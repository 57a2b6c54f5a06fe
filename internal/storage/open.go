package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/previewshare-go/internal/core/service"
	"github.com/yndnr/previewshare-go/internal/storage/memory"
	"github.com/yndnr/previewshare-go/internal/storage/postgres"
)

// Open creates the token store selected by cfg.Driver, wrapped with the
// configured per-call timeout. registry may be nil.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, registry prometheus.Registerer) (service.TokenStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var store service.TokenStore
	switch cfg.Driver {
	case "", DriverMemory:
		logger.Warn("using volatile in-memory token store")
		store = memory.New()
	case DriverBadger:
		s, err := NewBadgerStore(cfg.Badger, logger.With("component", "badger"))
		if err != nil {
			return nil, err
		}
		if registry != nil {
			s.RegisterMetrics(registry)
		}
		store = s
	case DriverPostgres:
		s, err := postgres.Open(ctx, cfg.Postgres, logger.With("component", "postgres"))
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}

	return WithTimeout(store, cfg.Timeout), nil
}
