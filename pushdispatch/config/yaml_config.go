package config

import (
	"log/slog"
)

type YamlSupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

type YamlFCMConfig struct {
	ServerKey string `yaml:"server_key"`
}

type YamlAPNSConfig struct {
	KeyID        string `yaml:"key_id"`
	TeamID       string `yaml:"team_id"`
	BundleID     string `yaml:"bundle_id"`
	P8KeyContent string `yaml:"p8_key"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ListenAddr         string             `yaml:"listen_addr"`
	NumDispatchWorkers int                `yaml:"num_dispatch_workers"`
	SupabaseConfig     YamlSupabaseConfig `yaml:"supabase"`
	FCMConfig          YamlFCMConfig      `yaml:"fcm"`
	APNSConfig         YamlAPNSConfig     `yaml:"apns"`
	RedisConfig        YamlRedisConfig    `yaml:"redis"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ListenAddr:         baseCfg.ListenAddr,
		NumDispatchWorkers: baseCfg.NumDispatchWorkers,
		Supabase: SupabaseConfig{
			URL:        baseCfg.SupabaseConfig.URL,
			ServiceKey: baseCfg.SupabaseConfig.ServiceKey,
		},
		FCM: FCMConfig{
			ServerKey: baseCfg.FCMConfig.ServerKey,
		},
		APNS: APNSConfig{
			KeyID:        baseCfg.APNSConfig.KeyID,
			TeamID:       baseCfg.APNSConfig.TeamID,
			BundleID:     baseCfg.APNSConfig.BundleID,
			P8KeyContent: baseCfg.APNSConfig.P8KeyContent,
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
	}

	logger.Debug("YAML config mapping complete",
		"listen_addr", cfg.ListenAddr,
		"num_dispatch_workers", cfg.NumDispatchWorkers,
	)

	return cfg, nil
}
