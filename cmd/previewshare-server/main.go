package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/yndnr/previewshare-go/internal/authz"
	"github.com/yndnr/previewshare-go/internal/cache/lru"
	"github.com/yndnr/previewshare-go/internal/cache/rediscache"
	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
	"github.com/yndnr/previewshare-go/internal/events/natsbus"
	"github.com/yndnr/previewshare-go/internal/infra/buildinfo"
	"github.com/yndnr/previewshare-go/internal/infra/confloader"
	"github.com/yndnr/previewshare-go/internal/infra/shutdown"
	"github.com/yndnr/previewshare-go/internal/infra/tlscert"
	"github.com/yndnr/previewshare-go/internal/resource"
	"github.com/yndnr/previewshare-go/internal/server/config"
	"github.com/yndnr/previewshare-go/internal/server/httpserver"
	"github.com/yndnr/previewshare-go/internal/server/httpserver/handler"
	"github.com/yndnr/previewshare-go/internal/settings"
	"github.com/yndnr/previewshare-go/internal/storage"
	"github.com/yndnr/previewshare-go/internal/telemetry/logger"
	"github.com/yndnr/previewshare-go/internal/telemetry/metric"
	"github.com/yndnr/previewshare-go/pkg/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		checkOnly   = flag.Bool("check", false, "Validate the configuration and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("previewshare-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkOnly {
		fmt.Println("configuration OK")
		return nil
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting previewshare-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, stop := context.WithCancelCause(context.Background())
	defer stop(nil)
	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)
	metrics := metric.NewRegistry()

	// Core dependencies
	hasher, err := token.NewHasher([]byte(cfg.Security.TokenSecret))
	if err != nil {
		return fmt.Errorf("init token hasher: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage, log, metrics.Registerer())
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		return store.Close()
	})

	cache, readyCache, err := openCache(ctx, cfg, shutdownHandler)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	settingsStore, err := openSettings(cfg)
	if err != nil {
		return fmt.Errorf("init settings: %w", err)
	}

	registry := resource.NewRegistry()
	if err := registry.Load(cfg.Resources); err != nil {
		return fmt.Errorf("load resources: %w", err)
	}

	authorizer := authz.NewRoleAuthorizer()
	opts := []service.PreviewOption{
		service.WithAuthorizer(authorizer),
		service.WithRecorder(metrics),
		service.WithLogger(log.With("component", "preview")),
		service.WithBaseURL(cfg.Server.PublicBaseURL),
		service.WithExpiryHook(func(ctx context.Context, resourceID int64) {
			log.DebugContext(ctx, "preview token expired", "resource_id", resourceID)
		}),
	}
	if cache != nil {
		opts = append(opts, service.WithCache(cache, cfg.Cache.TTL))
	}
	previews := service.NewPreviewService(store, registry, settingsStore, hasher, opts...)
	registry.Subscribe(previews.HandleResourceEvent)

	readyChecks := map[string]handler.ReadyCheck{
		"storage": func(ctx context.Context) error {
			_, _, err := store.List(ctx, 1, 1)
			return err
		},
	}
	if readyCache != nil {
		readyChecks["cache"] = readyCache
	}

	if cfg.Events.Enabled {
		bus, err := startEvents(ctx, cfg, registry, previews, log, shutdownHandler)
		if err != nil {
			return fmt.Errorf("init events: %w", err)
		}
		readyChecks["events"] = func(context.Context) error {
			if !bus.IsConnected() {
				return errors.New("nats not connected")
			}
			return nil
		}
	}

	// Reload preview settings and log level on file change or SIGHUP
	reload := func() {
		if err := reloadConfig(*configFile, settingsStore); err != nil {
			log.Error("configuration reload failed", "error", err)
			return
		}
		log.Info("configuration reloaded")
	}
	shutdownHandler.OnReload(reload)
	if *configFile != "" {
		watcher, err := confloader.NewWatcher(*configFile, reload,
			confloader.WithWatcherLogger(log.With("component", "config")))
		if err != nil {
			return fmt.Errorf("init config watcher: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error("config watcher stopped", "error", err)
			}
		}()
	}

	// HTTP transport
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: handler.Config{
			Previews:    previews,
			Settings:    service.NewSettingsService(settingsStore, log),
			Resources:   registry,
			Authorizer:  authorizer,
			ReadyChecks: readyChecks,
		},
		APIKeys:          httpserver.NewAPIKeys(cfg.Security.Principals()),
		Metrics:          metrics.Handler(),
		Observer:         metrics,
		Logger:           log.With("component", "http"),
		ResolveRateLimit: cfg.Server.RateLimit.PerSecond,
		ResolveBurst:     cfg.Server.RateLimit.Burst,
		AdminAllowList:   cfg.Server.AdminAllowList,
		TrustProxy:       cfg.Server.TrustProxy,
	})
	serverOpts := []httpserver.Option{
		httpserver.WithTimeouts(cfg.Server.HTTP.ReadTimeout, cfg.Server.HTTP.WriteTimeout),
	}
	useTLS := cfg.Server.HTTP.TLSCertFile != ""
	if useTLS {
		certs, err := tlscert.NewReloader(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			tlscert.WithLogger(log.With("component", "tls")))
		if err != nil {
			return err
		}
		go func() {
			if err := certs.Watch(ctx); err != nil {
				log.Error("certificate watcher stopped", "error", err)
			}
		}()
		serverOpts = append(serverOpts, httpserver.WithTLSConfig(certs.ServerConfig()))
	}
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router, serverOpts...)

	// Registered last so it runs first
	shutdownHandler.OnShutdown("http server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening",
			"addr", cfg.Server.HTTP.Addr,
			"tls", useTLS)

		var err error
		if useTLS {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			serveErr <- err
			stop(err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithStrict()}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// reloadConfig applies the reloadable parts of a fresh configuration.
func reloadConfig(configFile string, st *settings.Store) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if err := st.Replace(cfg.Preview.Settings); err != nil {
		return fmt.Errorf("apply preview settings: %w", err)
	}
	return logger.SetLevel(cfg.Log.Level)
}

// initLogger initializes the structured logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	logCfg := cfg.Log
	logCfg.Output = os.Stdout

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

// openCache builds the configured resolution cache. A nil cache disables
// caching regardless of the enable_caching setting.
func openCache(ctx context.Context, cfg *config.ServerConfig, sh *shutdown.Handler) (service.ResolutionCache, handler.ReadyCheck, error) {
	switch cfg.Cache.Driver {
	case config.CacheNone:
		return nil, nil, nil
	case config.CacheLRU:
		return lru.New(
			lru.WithCapacity(cfg.Cache.Capacity),
			lru.WithTombstoneTTL(cfg.Cache.TombstoneTTL),
		), nil, nil
	case config.CacheRedis:
		c, err := rediscache.Open(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, nil, err
		}
		sh.OnShutdown("redis cache", func(context.Context) error {
			return c.Close()
		})
		return c, c.Ping, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

// openSettings creates the settings store, persisted when a state file is
// configured.
func openSettings(cfg *config.ServerConfig) (*settings.Store, error) {
	if cfg.Preview.StateFile == "" {
		return settings.NewStore(cfg.Preview.Settings)
	}
	return settings.Open(cfg.Preview.StateFile, cfg.Preview.Settings)
}

// startEvents connects the resource event bus. Local registry changes are
// published to other instances, and their changes are applied to this
// instance's store and cache.
func startEvents(ctx context.Context, cfg *config.ServerConfig, registry *resource.Registry,
	previews *service.PreviewService, log *slog.Logger, sh *shutdown.Handler) (*natsbus.Bus, error) {
	bus, err := natsbus.Connect(cfg.Events.NATS, log.With("component", "natsbus"))
	if err != nil {
		return nil, err
	}
	sh.OnShutdown("event bus", func(context.Context) error {
		return bus.Close()
	})

	registry.Subscribe(func(ctx context.Context, ev domain.ResourceEvent) error {
		return bus.Publish(ctx, ev)
	})
	if _, err := bus.Subscribe(ctx, previews.HandleResourceEvent); err != nil {
		return nil, err
	}

	log.Info("resource events enabled", "subject", cfg.Events.NATS.Subject)
	return bus, nil
}
