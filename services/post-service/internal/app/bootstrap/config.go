package bootstrap

import (
	"fmt"

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
	Cache     config.Cache     `yaml:"cache"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID: "post-service",
		HTTPPort:  8080,
		GRPCPort:  9090,
		LogLevel:  "info",
		Database:  config.DefaultDatabase(),
		Messaging: config.DefaultMessaging(),
		Cache:     config.DefaultCache(),
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
	}

	cfg.ServiceID = config.EnvOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = config.EnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = config.EnvInt("GRPC_PORT", cfg.GRPCPort)
	cfg.LogLevel = config.EnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Database.ApplyEnv()
	cfg.Messaging.ApplyEnv()
	cfg.Cache.ApplyEnv()

	if err := cfg.Database.Validate(); err != nil {
		return Config{}, fmt.Errorf("database config: %w", err)
	}
	if err := cfg.Messaging.Validate(); err != nil {
		return Config{}, fmt.Errorf("messaging config: %w", err)
	}
	if err := cfg.Cache.Validate(); err != nil {
		return Config{}, fmt.Errorf("cache config: %w", err)
	}
	return cfg, nil
}
