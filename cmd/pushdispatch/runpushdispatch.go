package main

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-push-dispatch/internal/platform/apns"
	"github.com/tinywideclouds/go-push-dispatch/internal/platform/fcm"
	"github.com/tinywideclouds/go-push-dispatch/internal/storage/cache"
	"github.com/tinywideclouds/go-push-dispatch/internal/storage/supabase"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch/pushdispatch"
	"github.com/tinywideclouds/go-push-dispatch/pushdispatch/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-push-dispatch")
	slog.SetDefault(logger)

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Device Registry (Decorated) ---
	// A missing Supabase env is deliberately not fatal: the notify handler
	// reports it per request instead.
	var registry dispatch.DeviceRegistry
	var audit dispatch.AuditSink
	if cfg.Supabase.URL != "" && cfg.Supabase.ServiceKey != "" {
		sb := supabase.NewRegistry(supabase.Config{
			URL:        cfg.Supabase.URL,
			ServiceKey: cfg.Supabase.ServiceKey,
		}, logger)
		registry = sb
		audit = sb
		logger.Info("DeviceRegistry initialized", "type", "supabase")

		if cfg.Redis.Enabled {
			logger.Info("Initializing Redis cache layer...", "addr", cfg.Redis.Addr)
			redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				logger.Error("Failed to connect to Redis", "err", err)
				os.Exit(1)
			}
			defer redisClient.Close()
			registry = cache.NewCachedRegistry(registry, redisClient, 5*time.Minute)
			logger.Info("DeviceRegistry upgraded", "type", "redis_cached_supabase")
		}
	} else {
		logger.Warn("Supabase env missing; dispatch requests will fail with missing_supabase_env")
	}

	// --- Provider Clients ---

	// A. APNs (signer + dispatcher). A malformed key is a deploy error and
	// fails fast; an absent key just disables the signer.
	signer, err := apns.NewSigner(apns.SignerConfig{
		KeyID:        cfg.APNS.KeyID,
		TeamID:       cfg.APNS.TeamID,
		P8KeyContent: cfg.APNS.P8KeyContent,
	})
	if err != nil {
		logger.Error("Failed to create APNs signer", "err", err)
		os.Exit(1)
	}
	apnsClient := apns.NewDispatcher(apns.Config{BundleID: cfg.APNS.BundleID}, signer, logger)

	// B. FCM (legacy server key)
	if cfg.FCM.ServerKey == "" {
		logger.Warn("FCM server key missing; Android deliveries will count as failed")
	}
	fcmClient := fcm.NewDispatcher(fcm.Config{ServerKey: cfg.FCM.ServerKey}, logger)

	// --- Service ---
	service, err := pushdispatch.New(cfg, registry, audit, apnsClient, fcmClient, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- service.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("Service failed", "err", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		os.Exit(1)
	}
}
