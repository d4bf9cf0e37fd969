package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/viralforge/socmed/platform/messaging"
)

type sample struct {
	Messaging Messaging `yaml:"messaging"`
	Cache     Cache     `yaml:"cache"`
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	var out sample
	found, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
messaging:
  driver: kafka
  kafka_brokers: [" kafka-1:9092 ", ""]
  handler_timeout: 10s
  delivery: direct
  relay_max_attempts: 8
cache:
  redis_url: redis://cache:6379/0
  invalidation: pattern
  list_ttl: 5m
`), 0o600))

	var f sample
	found, err := LoadFile(path, &f)
	require.NoError(t, err)
	require.True(t, found)

	msg := DefaultMessaging()
	msg.Merge(f.Messaging)
	c := DefaultCache()
	c.Merge(f.Cache)

	require.Equal(t, []string{"kafka-1:9092"}, msg.Brokers)
	require.Equal(t, 10*time.Second, msg.HandlerTimeout)
	require.Equal(t, DeliveryDirect, msg.Delivery)
	require.Equal(t, 8, msg.RelayMaxAttempts)
	require.Equal(t, 5*time.Minute, c.ListTTL)
	require.Equal(t, 60*time.Minute, c.DetailTTL)

	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("CACHE_LIST_TTL", "120")
	t.Setenv("MESSAGING_DURABLE_QUEUES", "yes")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "0")
	msg.ApplyEnv()
	c.ApplyEnv()

	require.Equal(t, []string{"a:9092", "b:9092"}, msg.Brokers)
	require.True(t, msg.DurableQueues)
	require.Zero(t, msg.RelayMaxAttempts)
	require.Equal(t, 2*time.Minute, c.ListTTL)
	require.NoError(t, msg.Validate())
	require.NoError(t, c.Validate())

	bus := msg.BusConfig()
	require.Equal(t, "socmed_events", bus.Exchange)
	require.True(t, bus.DurableQueues)
}

func TestValidateRejectsIncompleteSettings(t *testing.T) {
	msg := DefaultMessaging()
	require.Error(t, msg.Validate())
	msg.Driver = DriverMemory
	require.NoError(t, msg.Validate())

	c := DefaultCache()
	require.Error(t, c.Validate())
	c.Driver = DriverMemory
	c.Invalidation = "lru"
	require.Error(t, c.Validate())
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "x")
	t.Setenv("SOME_BOOL", "maybe")
	t.Setenv("SOME_DURATION", "soon")
	require.Equal(t, 3, EnvInt("SOME_INT", 3))
	require.True(t, EnvBool("SOME_BOOL", true))
	require.Equal(t, time.Second, EnvDuration("SOME_DURATION", time.Second))
}

func TestDatabaseSection(t *testing.T) {
	db := DefaultDatabase()
	require.Error(t, db.Validate())

	db.Merge(Database{URL: "postgres://socmed@db/posts"})
	require.NoError(t, db.Validate())

	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("DATABASE_MAX_CONNS", "4")
	db.ApplyEnv()
	require.Equal(t, DriverMemory, db.Driver)
	require.Equal(t, 4, db.MaxConns)

	db.Driver = "sqlite"
	require.Error(t, db.Validate())
}

func TestMemoryDriversOpenWithoutNetwork(t *testing.T) {
	c := DefaultCache()
	c.Driver = DriverMemory
	store, closeFn, err := c.OpenStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), time.Minute))
	require.NoError(t, closeFn())

	msg := DefaultMessaging()
	msg.Driver = DriverMemory
	_, isMemory := msg.Dialer().(*messaging.MemoryBus)
	require.True(t, isMemory)
}
