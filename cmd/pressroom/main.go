package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/pressroom/internal/analytics"
	"github.com/p-blackswan/pressroom/internal/api"
	"github.com/p-blackswan/pressroom/internal/autosave"
	"github.com/p-blackswan/pressroom/internal/config"
	"github.com/p-blackswan/pressroom/internal/costs"
	"github.com/p-blackswan/pressroom/internal/export"
	"github.com/p-blackswan/pressroom/internal/health"
	"github.com/p-blackswan/pressroom/internal/metrics"
	"github.com/p-blackswan/pressroom/internal/project"
	"github.com/p-blackswan/pressroom/internal/resume"
	"github.com/p-blackswan/pressroom/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	// Load config, optionally from a YAML file.
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv("PRESSROOM_CONFIG_FILE"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("backend", cfg.StorageBackend).
		Str("listen_addr", cfg.ListenAddr).
		Msg("starting pressroom")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	checker := health.NewChecker(logger)
	collector := metrics.New()

	// Storage backend selection: one store and one ledger, same backend.
	var (
		projectStore project.Store
		ledger       costs.Ledger
	)
	if cfg.UsesSQLite() {
		db, dbErr := store.New(cfg.SQLitePath, logger)
		if dbErr != nil {
			logger.Fatal().Err(dbErr).Msg("failed to open database")
		}
		defer db.Close()

		projectStore = project.NewSQLStore(db, logger)
		ledger = costs.NewSQLLedger(db, logger)

		checker.Register("sqlite", func(ctx context.Context) health.Status {
			if err := db.DB().PingContext(ctx); err != nil {
				return health.StatusDown
			}
			return health.StatusOK
		})
	} else {
		fs, fsErr := project.NewFileStore(cfg.DataDir, logger)
		if fsErr != nil {
			logger.Fatal().Err(fsErr).Msg("failed to init project store")
		}
		// Cost streams live beside, not inside, the project tree so they
		// survive permanent project deletes.
		fl, flErr := costs.NewFileLedger(filepath.Join(filepath.Dir(cfg.DataDir), "costs"), logger)
		if flErr != nil {
			logger.Fatal().Err(flErr).Msg("failed to init cost ledger")
		}

		projectStore = fs
		ledger = fl

		checker.Register("datadir", func(ctx context.Context) health.Status {
			if _, err := os.Stat(cfg.DataDir); err != nil {
				return health.StatusDown
			}
			return health.StatusOK
		})
	}
	defer projectStore.Close()
	defer ledger.Close()

	engine := analytics.NewEngine(ledger, logger)
	coordinator := resume.NewCoordinator(projectStore, ledger, logger)
	exporter := export.NewExporter(projectStore, ledger, logger)

	handlers := api.NewHandlers(projectStore, ledger, engine, coordinator, exporter, collector, logger)

	// Debounced snapshot export: bursts of milestone and section writes
	// collapse into one zip snapshot per project per window.
	var saver *autosave.Debouncer
	if cfg.AutoSaveDebounceMs > 0 {
		snapDir := filepath.Join(filepath.Dir(cfg.DataDir), "snapshots")
		if err := os.MkdirAll(snapDir, 0o755); err != nil {
			logger.Fatal().Err(err).Msg("failed to create snapshot dir")
		}
		saver = autosave.NewDebouncer(
			time.Duration(cfg.AutoSaveDebounceMs)*time.Millisecond,
			func(projectID string) {
				result, err := exporter.Export(context.Background(), projectID, export.FormatZip)
				if err != nil {
					logger.Warn().Err(err).Str("project_id", projectID).Msg("snapshot export failed")
					return
				}
				path := filepath.Join(snapDir, projectID+".zip")
				if err := os.WriteFile(path, result.Data, 0o644); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("snapshot write failed")
				}
			},
			logger,
		)
		handlers.SetAutosave(saver)
	}

	server := api.NewServer(api.ServerConfig{
		ListenAddr:  cfg.ListenAddr,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit: api.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
	}, handlers, checker, collector, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api server error")
		}
	}()

	// Prime the readiness cache.
	checker.RunAll(ctx)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	cancel()

	if saver != nil {
		saver.Stop()
	}
	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}
