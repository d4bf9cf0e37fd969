package bootstrap

import (
	"fmt"
	"time"

	"github.com/viralforge/socmed/platform/config"
)

type Config struct {
	ServiceID string
	HTTPPort  int
	GRPCPort  int
	LogLevel  string

	Database  config.Database
	Messaging config.Messaging
	Cache     config.Cache

	ConsumerLanes   int
	TombstoneTTL    time.Duration
	EventDedupTTL   time.Duration
	JanitorInterval time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Database   config.Database  `yaml:"database"`
	Messaging  config.Messaging `yaml:"messaging"`
	Cache      config.Cache     `yaml:"cache"`
	Projection struct {
		ConsumerLanes   int           `yaml:"consumer_lanes"`
		TombstoneTTL    time.Duration `yaml:"tombstone_ttl"`
		EventDedupTTL   time.Duration `yaml:"event_dedup_ttl"`
		JanitorInterval time.Duration `yaml:"janitor_interval"`
	} `yaml:"projection"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:       "search-service",
		HTTPPort:        8081,
		GRPCPort:        9091,
		LogLevel:        "info",
		Database:        config.DefaultDatabase(),
		Messaging:       config.DefaultMessaging(),
		Cache:           config.DefaultCache(),
		ConsumerLanes:   4,
		TombstoneTTL:    7 * 24 * time.Hour,
		EventDedupTTL:   7 * 24 * time.Hour,
		JanitorInterval: time.Hour,
	}

	var f configFile
	found, err := config.LoadFile(path, &f)
	if err != nil {
		return Config{}, err
	}
	if found {
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Service.LogLevel != "" {
			cfg.LogLevel = f.Service.LogLevel
		}
		cfg.Database.Merge(f.Database)
		cfg.Messaging.Merge(f.Messaging)
		cfg.Cache.Merge(f.Cache)
		if f.Projection.ConsumerLanes > 0 {
			cfg.ConsumerLanes = f.Projection.ConsumerLanes
		}
		if f.Projection.TombstoneTTL > 0 {
			cfg.TombstoneTTL = f.Projection.TombstoneTTL
		}
		if f.Projection.EventDedupTTL > 0 {
			cfg.EventDedupTTL = f.Projection.EventDedupTTL
		}
		if f.Projection.JanitorInterval > 0 {
			cfg.JanitorInterval = f.Projection.JanitorInterval
		}
	}

	cfg.ServiceID = config.EnvOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = config.EnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = config.EnvInt("GRPC_PORT", cfg.GRPCPort)
	cfg.LogLevel = config.EnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Database.ApplyEnv()
	cfg.Messaging.ApplyEnv()
	cfg.Cache.ApplyEnv()
	cfg.ConsumerLanes = config.EnvInt("CONSUMER_LANES", cfg.ConsumerLanes)
	cfg.TombstoneTTL = config.EnvDuration("TOMBSTONE_TTL", cfg.TombstoneTTL)
	cfg.EventDedupTTL = config.EnvDuration("EVENT_DEDUP_TTL", cfg.EventDedupTTL)
	cfg.JanitorInterval = config.EnvDuration("JANITOR_INTERVAL", cfg.JanitorInterval)

	if err := cfg.Database.Validate(); err != nil {
		return Config{}, fmt.Errorf("database config: %w", err)
	}
	if err := cfg.Messaging.Validate(); err != nil {
		return Config{}, fmt.Errorf("messaging config: %w", err)
	}
	if err := cfg.Cache.Validate(); err != nil {
		return Config{}, fmt.Errorf("cache config: %w", err)
	}
	if cfg.ConsumerLanes < 1 {
		return Config{}, fmt.Errorf("projection config: consumer_lanes must be positive")
	}
	return cfg, nil
}
