package config

import (
	"log/slog"
	"os"
	"strconv"
)

type SupabaseConfig struct {
	URL        string
	ServiceKey string
}

type FCMConfig struct {
	ServerKey string
}

type APNSConfig struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the PEM content of the .p8 signing key.
	P8KeyContent string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ListenAddr         string
	NumDispatchWorkers int

	Supabase SupabaseConfig
	FCM      FCMConfig
	APNS     APNSConfig
	Redis    RedisConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final
// validation. Missing provider or registry credentials are NOT validation
// failures here: an unconfigured provider surfaces per-endpoint as a failed
// count, and a missing registry surfaces per-request as a 500.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("NUM_DISPATCH_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_DISPATCH_WORKERS", "source", "env")
			cfg.NumDispatchWorkers = workers
		}
	}

	// Registry overrides
	if val := os.Getenv("SUPABASE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "SUPABASE_URL", "source", "env")
		cfg.Supabase.URL = val
	}
	if val := os.Getenv("SUPABASE_SERVICE_ROLE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "SUPABASE_SERVICE_ROLE_KEY", "source", "env")
		cfg.Supabase.ServiceKey = val
	}

	// FCM overrides
	if val := os.Getenv("FCM_SERVER_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_SERVER_KEY", "source", "env")
		cfg.FCM.ServerKey = val
	}

	// APNs overrides
	if val := os.Getenv("APNS_KEY_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_KEY_ID", "source", "env")
		cfg.APNS.KeyID = val
	}
	if val := os.Getenv("APNS_TEAM_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_TEAM_ID", "source", "env")
		cfg.APNS.TeamID = val
	}
	if val := os.Getenv("APNS_BUNDLE_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_BUNDLE_ID", "source", "env")
		cfg.APNS.BundleID = val
	}
	if val := os.Getenv("APNS_PRIVATE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_PRIVATE_KEY", "source", "env")
		cfg.APNS.P8KeyContent = val
	}

	// Redis overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// Final validation: only structural defaults.
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumDispatchWorkers <= 0 {
		cfg.NumDispatchWorkers = 20
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
