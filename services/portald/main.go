package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	protocol "portalchain/config"
	"portalchain/core"
	"portalchain/core/events"
	"portalchain/observability"
	"portalchain/observability/logging"
	telemetry "portalchain/observability/otel"
	"portalchain/services/portald/auth"
	"portalchain/services/portald/config"
	"portalchain/services/portald/journal"
	"portalchain/services/portald/server"
	"portalchain/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/portald/config.yaml", "path to portald configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PORTAL_ENV"))
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("portald: load config: %v", err)
	}

	logOpts := logging.Options{Level: logging.ParseLevel(cfg.Log.Level)}
	if cfg.Log.File != "" {
		logOpts.File = &logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
	}
	logger := logging.SetupWithOptions("portald", env, logOpts)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("portald", env))
	if err != nil {
		log.Fatalf("portald: init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	protocolCfg, err := protocol.Load(cfg.ProtocolConfig)
	if err != nil {
		log.Fatalf("portald: load protocol config: %v", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(protocolCfg.DataDir, "state"))
	if err != nil {
		log.Fatalf("portald: open state database: %v", err)
	}
	defer db.Close()

	var store *journal.Journal
	if cfg.JournalDSN != "" {
		store, err = journal.OpenPostgres(cfg.JournalDSN, logger)
	} else {
		store, err = journal.Open(cfg.JournalPath, logger)
	}
	if err != nil {
		log.Fatalf("portald: open journal: %v", err)
	}
	defer store.Close()

	runtime, err := core.NewRuntime(db, protocolCfg,
		core.WithEmitter(events.Fanout{store, observability.EventCounter{}}),
		core.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("portald: start runtime: %v", err)
	}

	secret, err := cfg.Secret()
	if err != nil {
		log.Fatalf("portald: %v", err)
	}
	verifier, err := auth.NewVerifier(auth.Options{
		Secret:   secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway.Duration,
	})
	if err != nil {
		log.Fatalf("portald: configure auth: %v", err)
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		ReadTimeout:   cfg.ReadTimeout.Duration,
		WriteTimeout:  cfg.WriteTimeout.Duration,
		ShutdownGrace: cfg.ShutdownGrace.Duration,
		RateLimit: server.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
	}, runtime, store, verifier, logger)
	if err != nil {
		log.Fatalf("portald: build server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("portald starting",
		slog.String("listen", cfg.ListenAddress),
		slog.Any("portals", runtime.Assets()))
	if err := srv.Run(ctx); err != nil {
		logger.Error("portald stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("portald stopped")
}
