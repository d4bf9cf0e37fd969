package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigReadsProjectionSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: memory
messaging:
  driver: memory
cache:
  driver: memory
projection:
  consumer_lanes: 2
  tombstone_ttl: 48h
`), 0o600))
	t.Setenv("JANITOR_INTERVAL", "10m")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "search-service", cfg.ServiceID)
	require.Equal(t, 2, cfg.ConsumerLanes)
	require.Equal(t, 48*time.Hour, cfg.TombstoneTTL)
	require.Equal(t, 7*24*time.Hour, cfg.EventDedupTTL)
	require.Equal(t, 10*time.Minute, cfg.JanitorInterval)
}

func TestLoadConfigRejectsZeroLanes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: {driver: memory}\nmessaging: {driver: memory}\ncache: {driver: memory}\n"), 0o600))
	t.Setenv("CONSUMER_LANES", "0")

	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "consumer_lanes")
}

func TestRuntimeRunsOnMemoryDrivers(t *testing.T) {
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("GRPC_PORT", "0")
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: memory
messaging:
  driver: memory
cache:
  driver: memory
`), 0o600))

	rt, err := NewRuntime(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
}
