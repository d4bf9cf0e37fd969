package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/platform/config"
	"github.com/viralforge/socmed/platform/messaging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "eventctl",
	Short:         "Operate the socmed event bus and read caches",
	Long:          `Replay dead-lettered events and invalidate cached read models.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/eventctl.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log bus and cache activity to stderr")
}

// newDialer and openStore are swapped in tests to share an in-memory bus and store.
var (
	newDialer = func(m config.Messaging) messaging.Dialer { return m.Dialer() }
	openStore = func(ctx context.Context, c config.Cache) (cache.Store, func() error, error) { return c.OpenStore(ctx) }
)

type settings struct {
	Messaging config.Messaging
	Cache     config.Cache
}

type settingsFile struct {
	Messaging config.Messaging `yaml:"messaging"`
	Cache     config.Cache     `yaml:"cache"`
}

func loadSettings(path string) (settings, error) {
	s := settings{Messaging: config.DefaultMessaging(), Cache: config.DefaultCache()}
	var f settingsFile
	found, err := config.LoadFile(path, &f)
	if err != nil {
		return settings{}, err
	}
	if found {
		s.Messaging.Merge(f.Messaging)
		s.Cache.Merge(f.Cache)
	}
	s.Messaging.ApplyEnv()
	s.Cache.ApplyEnv()
	return s, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	w := cmd.ErrOrStderr()
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func connectBus(ctx context.Context, cmd *cobra.Command, s settings) (*messaging.ConnectionManager, error) {
	if err := s.Messaging.Validate(); err != nil {
		return nil, fmt.Errorf("messaging config: %w", err)
	}
	conn := messaging.NewConnectionManager(s.Messaging.BusConfig(), newDialer(s.Messaging), newLogger(cmd))
	if _, err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("message bus unreachable: %w", err)
	}
	return conn, nil
}
