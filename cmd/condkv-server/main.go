package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/condkv/internal/core/domain"
	"github.com/yndnr/condkv/internal/core/service"
	"github.com/yndnr/condkv/internal/infra/buildinfo"
	"github.com/yndnr/condkv/internal/infra/confloader"
	"github.com/yndnr/condkv/internal/infra/shutdown"
	"github.com/yndnr/condkv/internal/server/adminserver"
	"github.com/yndnr/condkv/internal/server/config"
	"github.com/yndnr/condkv/internal/server/kvserver"
	"github.com/yndnr/condkv/internal/storage/memory"
	"github.com/yndnr/condkv/internal/telemetry/logger"
	"github.com/yndnr/condkv/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

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
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("condkv-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting condkv-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx := context.Background()

	store := memory.New()
	registry := service.NewSessionRegistry(&service.RegistryConfig{
		MaxConcurrentSessions: cfg.Session.MaxConcurrent,
		Argon2: service.Argon2Params{
			Time:      cfg.Security.Argon2Time,
			MemoryKiB: cfg.Security.Argon2MemoryKiB,
			Threads:   cfg.Security.Argon2Threads,
		},
	})
	if err := seedAccounts(ctx, registry, cfg.Security.SeedAccounts); err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}
	if n := len(cfg.Security.SeedAccounts); n > 0 {
		log.Info("seed accounts registered", "count", n)
	}

	metrics := metric.NewRegistry()

	kv := kvserver.New(&kvserver.Config{
		Addr:         cfg.Server.Listen.Addr,
		LocalPath:    cfg.Server.Listen.LocalPath,
		IdleTimeout:  cfg.Server.IdleTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit:    cfg.Limits.RequestsPerSecond,
	}, store, registry, metrics, slogLogger)

	metrics.MustRegister(metric.NewStatsCollector(func() metric.Stats {
		st := store.Stats()
		return metric.Stats{
			Keys:           st.Keys,
			WaitPoints:     st.WaitPoints,
			BlockedWaiters: st.BlockedWaiters,
			ActiveSessions: registry.ActiveSessions(),
			WaitingLogins:  registry.WaitingLogins(),
			Accounts:       registry.AccountCount(),
			MaxSessions:    registry.MaxSessions(),
		}
	}))

	if err := kv.Start(ctx); err != nil {
		return fmt.Errorf("start protocol server: %w", err)
	}

	shutdownHandler := shutdown.NewHandler(shutdownTimeout)
	shutdownHandler.SetLogger(slogLogger)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Admin.Addr != "" {
		admin := adminserver.New(cfg.Server.Admin.Addr, adminserver.NewHandler(adminserver.HandlerConfig{
			Stats: func() adminserver.Stats {
				st := store.Stats()
				return adminserver.Stats{
					Keys:           st.Keys,
					WaitPoints:     st.WaitPoints,
					BlockedWaiters: st.BlockedWaiters,
					ActiveSessions: registry.ActiveSessions(),
					MaxSessions:    registry.MaxSessions(),
					WaitingLogins:  registry.WaitingLogins(),
					Accounts:       registry.AccountCount(),
					Connections:    kv.ConnCount(),
					ConnList:       connList(kv, registry),
				}
			},
			Ready:   kv.Running,
			Metrics: metrics.Handler(),
			Logger:  slogLogger,
		}), slogLogger)

		if err := admin.Listen(); err != nil {
			kv.Shutdown(ctx)
			return fmt.Errorf("start admin server: %w", err)
		}
		g.Go(admin.Serve)
		shutdownHandler.OnShutdown("admin server", admin.Shutdown)
	}

	// Registered last so it stops first.
	shutdownHandler.OnShutdown("protocol server", kv.Shutdown)

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, slogLogger)
		if err != nil {
			log.Warn("configuration reload disabled", "error", err)
		} else {
			g.Go(func() error {
				watcher.Run(gctx)
				return nil
			})
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	shutdownErr := shutdownHandler.Wait(gctx)

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		return errors.Join(err, shutdownErr)
	}
	if shutdownErr != nil {
		log.Error("shutdown error", "error", shutdownErr)
		return shutdownErr
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
// connList describes the open protocol connections, oldest first.
func connList(kv *kvserver.Server, registry *service.SessionRegistry) []adminserver.ConnInfo {
	conns := kv.Conns()
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].ConnectedAt().Before(conns[j].ConnectedAt())
	})
	out := make([]adminserver.ConnInfo, 0, len(conns))
	for _, c := range conns {
		user, _ := registry.AccountForConnection(c.ID())
		out = append(out, adminserver.ConnInfo{
			ID:     c.ID().String(),
			Remote: c.RemoteAddr(),
			User:   user,
			Age:    time.Since(c.ConnectedAt()).Truncate(time.Second).String(),
		})
	}
	return out
}

func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
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

// initLogger builds the process logger and installs it as the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stdout,
		Service: "condkv-server",
	})
	if err != nil {
		return nil, err
	}

	logger.SetDefault(log)
	return log, nil
}

func seedAccounts(ctx context.Context, registry *service.SessionRegistry, entries []string) error {
	for _, entry := range entries {
		creds, err := domain.ParseCredentials(entry)
		if err != nil {
			return err
		}
		if err := registry.CreateAccount(ctx, creds.Username, creds.Password); err != nil {
			return fmt.Errorf("%s: %w", creds.Username, err)
		}
	}
	return nil
}

// watchConfig re-applies log.level whenever the configuration file
// changes. An invalid file is reported and ignored.
func watchConfig(path string, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("configuration reload failed", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			if err := logger.SetLevel(cfg.Log.Level); err != nil {
				log.Warn("log level not changed", "error", err)
				return
			}
			log.Info("log level changed", "level", logger.GetLevel())
		}
	})
	return watcher, nil
}
