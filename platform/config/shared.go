package config

import (
	"fmt"
	"time"

	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/platform/messaging"
)

const (
	DriverKafka  = "kafka"
	DriverMemory = "memory"
	DriverRedis  = "redis"

	DeliveryOutbox = "outbox"
	DeliveryDirect = "direct"
)

// Messaging is the `messaging:` section every service shares.
type Messaging struct {
	Driver           string        `yaml:"driver"`
	Brokers          []string      `yaml:"kafka_brokers"`
	Exchange         string        `yaml:"exchange"`
	DurableExchange  bool          `yaml:"durable_exchange"`
	DurableQueues    bool          `yaml:"durable_queues"`
	Partitions       int           `yaml:"partitions"`
	ConnectAttempts  int           `yaml:"connect_attempts"`
	HandlerTimeout   time.Duration `yaml:"handler_timeout"`
	MaxAttempts      int           `yaml:"max_attempts"`
	Delivery         string        `yaml:"delivery"`
	RelayInterval    time.Duration `yaml:"relay_interval"`
	RelayBatchSize   int           `yaml:"relay_batch_size"`
	RelayMaxAttempts int           `yaml:"relay_max_attempts"`
}

func DefaultMessaging() Messaging {
	return Messaging{
		Driver:           DriverKafka,
		Exchange:         messaging.DefaultExchange,
		Partitions:       3,
		ConnectAttempts:  5,
		HandlerTimeout:   30 * time.Second,
		MaxAttempts:      5,
		Delivery:         DeliveryOutbox,
		RelayInterval:    2 * time.Second,
		RelayBatchSize:   100,
		RelayMaxAttempts: messaging.DefaultRelayMaxAttempts,
	}
}

// Merge copies the non-zero fields of f over m.
func (m *Messaging) Merge(f Messaging) {
	if f.Driver != "" {
		m.Driver = f.Driver
	}
	if len(f.Brokers) > 0 {
		m.Brokers = TrimNonEmpty(f.Brokers)
	}
	if f.Exchange != "" {
		m.Exchange = f.Exchange
	}
	m.DurableExchange = m.DurableExchange || f.DurableExchange
	m.DurableQueues = m.DurableQueues || f.DurableQueues
	if f.Partitions > 0 {
		m.Partitions = f.Partitions
	}
	if f.ConnectAttempts > 0 {
		m.ConnectAttempts = f.ConnectAttempts
	}
	if f.HandlerTimeout > 0 {
		m.HandlerTimeout = f.HandlerTimeout
	}
	if f.MaxAttempts > 0 {
		m.MaxAttempts = f.MaxAttempts
	}
	if f.Delivery != "" {
		m.Delivery = f.Delivery
	}
	if f.RelayInterval > 0 {
		m.RelayInterval = f.RelayInterval
	}
	if f.RelayBatchSize > 0 {
		m.RelayBatchSize = f.RelayBatchSize
	}
	if f.RelayMaxAttempts > 0 {
		m.RelayMaxAttempts = f.RelayMaxAttempts
	}
}

func (m *Messaging) ApplyEnv() {
	m.Driver = EnvOrDefault("MESSAGING_DRIVER", m.Driver)
	m.Brokers = EnvCSV("KAFKA_BROKERS", m.Brokers)
	m.Exchange = EnvOrDefault("MESSAGING_EXCHANGE", m.Exchange)
	m.DurableExchange = EnvBool("MESSAGING_DURABLE_EXCHANGE", m.DurableExchange)
	m.DurableQueues = EnvBool("MESSAGING_DURABLE_QUEUES", m.DurableQueues)
	m.Partitions = EnvInt("MESSAGING_PARTITIONS", m.Partitions)
	m.ConnectAttempts = EnvInt("MESSAGING_CONNECT_ATTEMPTS", m.ConnectAttempts)
	m.HandlerTimeout = EnvDuration("MESSAGING_HANDLER_TIMEOUT", m.HandlerTimeout)
	m.MaxAttempts = EnvInt("MESSAGING_MAX_ATTEMPTS", m.MaxAttempts)
	m.Delivery = EnvOrDefault("EVENTS_DELIVERY", m.Delivery)
	m.RelayInterval = EnvDuration("OUTBOX_POLL_INTERVAL", m.RelayInterval)
	m.RelayBatchSize = EnvInt("OUTBOX_BATCH_SIZE", m.RelayBatchSize)
	m.RelayMaxAttempts = EnvInt("OUTBOX_MAX_ATTEMPTS", m.RelayMaxAttempts)
}

func (m Messaging) Validate() error {
	switch m.Driver {
	case DriverKafka:
		if len(m.Brokers) == 0 {
			return fmt.Errorf("missing KAFKA_BROKERS")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown messaging driver %q", m.Driver)
	}
	switch m.Delivery {
	case DeliveryOutbox, DeliveryDirect:
	default:
		return fmt.Errorf("unknown events delivery %q", m.Delivery)
	}
	return nil
}

func (m Messaging) BusConfig() messaging.Config {
	return messaging.Config{
		Brokers:         m.Brokers,
		Exchange:        m.Exchange,
		Durable:         m.DurableExchange,
		Partitions:      m.Partitions,
		ConnectAttempts: m.ConnectAttempts,
		DurableQueues:   m.DurableQueues,
		HandlerTimeout:  m.HandlerTimeout,
		MaxAttempts:     m.MaxAttempts,
	}
}

// Cache is the `cache:` section.
type Cache struct {
	Driver       string        `yaml:"driver"`
	RedisURL     string        `yaml:"redis_url"`
	Namespace    string        `yaml:"namespace"`
	Invalidation string        `yaml:"invalidation"`
	ListTTL      time.Duration `yaml:"list_ttl"`
	DetailTTL    time.Duration `yaml:"detail_ttl"`
	SearchTTL    time.Duration `yaml:"search_ttl"`
}

func DefaultCache() Cache {
	return Cache{
		Driver:       DriverRedis,
		Namespace:    "socmed",
		Invalidation: string(cache.ModeVersioned),
		ListTTL:      cache.DefaultListTTL,
		DetailTTL:    cache.DefaultDetailTTL,
		SearchTTL:    cache.DefaultSearchTTL,
	}
}

func (c *Cache) Merge(f Cache) {
	if f.Driver != "" {
		c.Driver = f.Driver
	}
	if f.RedisURL != "" {
		c.RedisURL = f.RedisURL
	}
	if f.Namespace != "" {
		c.Namespace = f.Namespace
	}
	if f.Invalidation != "" {
		c.Invalidation = f.Invalidation
	}
	if f.ListTTL > 0 {
		c.ListTTL = f.ListTTL
	}
	if f.DetailTTL > 0 {
		c.DetailTTL = f.DetailTTL
	}
	if f.SearchTTL > 0 {
		c.SearchTTL = f.SearchTTL
	}
}

func (c *Cache) ApplyEnv() {
	c.Driver = EnvOrDefault("CACHE_DRIVER", c.Driver)
	c.RedisURL = EnvOrDefault("REDIS_URL", c.RedisURL)
	c.Namespace = EnvOrDefault("CACHE_NAMESPACE", c.Namespace)
	c.Invalidation = EnvOrDefault("CACHE_INVALIDATION", c.Invalidation)
	c.ListTTL = EnvDuration("CACHE_LIST_TTL", c.ListTTL)
	c.DetailTTL = EnvDuration("CACHE_DETAIL_TTL", c.DetailTTL)
	c.SearchTTL = EnvDuration("CACHE_SEARCH_TTL", c.SearchTTL)
}

func (c Cache) Validate() error {
	switch c.Driver {
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("missing REDIS_URL")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown cache driver %q", c.Driver)
	}
	_, err := cache.ParseMode(c.Invalidation)
	return err
}

const DriverPostgres = "postgres"

// Database is the `database:` section. The memory driver keeps state in
// process and is meant for local runs and tests.
type Database struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"postgres_url"`
	MaxConns int    `yaml:"max_conns"`
}

func DefaultDatabase() Database {
	return Database{Driver: DriverPostgres, MaxConns: 20}
}

func (d *Database) Merge(f Database) {
	if f.Driver != "" {
		d.Driver = f.Driver
	}
	if f.URL != "" {
		d.URL = f.URL
	}
	if f.MaxConns > 0 {
		d.MaxConns = f.MaxConns
	}
}

func (d *Database) ApplyEnv() {
	d.Driver = EnvOrDefault("DATABASE_DRIVER", d.Driver)
	d.URL = EnvOrDefault("DATABASE_URL", d.URL)
	d.MaxConns = EnvInt("DATABASE_MAX_CONNS", d.MaxConns)
}

func (d Database) Validate() error {
	switch d.Driver {
	case DriverPostgres:
		if d.URL == "" {
			return fmt.Errorf("missing DATABASE_URL")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", d.Driver)
	}
	return nil
}
