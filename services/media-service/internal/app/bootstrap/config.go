package bootstrap

import (
	"fmt"
	"time"

	"github.com/viralforge/socmed/platform/config"
)

const (
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
)

type Config struct {
	ServiceID string
	HTTPPort  int
	GRPCPort  int
	LogLevel  string

	Database  config.Database
	Messaging config.Messaging

	StorageDriver string
	StorageRoot   string

	ConsumerLanes   int
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
	Database  config.Database  `yaml:"database"`
	Messaging config.Messaging `yaml:"messaging"`
	Storage   struct {
		Driver string `yaml:"driver"`
		Root   string `yaml:"root"`
	} `yaml:"storage"`
	Cleanup struct {
		ConsumerLanes   int           `yaml:"consumer_lanes"`
		EventDedupTTL   time.Duration `yaml:"event_dedup_ttl"`
		JanitorInterval time.Duration `yaml:"janitor_interval"`
	} `yaml:"cleanup"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:       "media-service",
		HTTPPort:        8082,
		GRPCPort:        9092,
		LogLevel:        "info",
		Database:        config.DefaultDatabase(),
		Messaging:       config.DefaultMessaging(),
		StorageDriver:   StorageFilesystem,
		StorageRoot:     "data/media",
		ConsumerLanes:   2,
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
		if f.Storage.Driver != "" {
			cfg.StorageDriver = f.Storage.Driver
		}
		if f.Storage.Root != "" {
			cfg.StorageRoot = f.Storage.Root
		}
		if f.Cleanup.ConsumerLanes > 0 {
			cfg.ConsumerLanes = f.Cleanup.ConsumerLanes
		}
		if f.Cleanup.EventDedupTTL > 0 {
			cfg.EventDedupTTL = f.Cleanup.EventDedupTTL
		}
		if f.Cleanup.JanitorInterval > 0 {
			cfg.JanitorInterval = f.Cleanup.JanitorInterval
		}
	}

	cfg.ServiceID = config.EnvOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = config.EnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = config.EnvInt("GRPC_PORT", cfg.GRPCPort)
	cfg.LogLevel = config.EnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Database.ApplyEnv()
	cfg.Messaging.ApplyEnv()
	cfg.StorageDriver = config.EnvOrDefault("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.StorageRoot = config.EnvOrDefault("STORAGE_ROOT", cfg.StorageRoot)
	cfg.ConsumerLanes = config.EnvInt("CONSUMER_LANES", cfg.ConsumerLanes)
	cfg.EventDedupTTL = config.EnvDuration("EVENT_DEDUP_TTL", cfg.EventDedupTTL)
	cfg.JanitorInterval = config.EnvDuration("JANITOR_INTERVAL", cfg.JanitorInterval)

	if err := cfg.Database.Validate(); err != nil {
		return Config{}, fmt.Errorf("database config: %w", err)
	}
	if err := cfg.Messaging.Validate(); err != nil {
		return Config{}, fmt.Errorf("messaging config: %w", err)
	}
	switch cfg.StorageDriver {
	case StorageFilesystem:
		if cfg.StorageRoot == "" {
			return Config{}, fmt.Errorf("storage config: missing STORAGE_ROOT")
		}
	case StorageMemory:
	default:
		return Config{}, fmt.Errorf("storage config: unknown driver %q", cfg.StorageDriver)
	}
	if cfg.ConsumerLanes < 1 {
		return Config{}, fmt.Errorf("cleanup config: consumer_lanes must be positive")
	}
	return cfg, nil
}
