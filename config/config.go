package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "STOREFRONT_CONFIG_FILE"
	envPrefix         = "STOREFRONT"
	defaultConfigFile = "/config.yaml"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

type retry struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
	Backoff     string        `mapstructure:"backoff"`
}

type tlsFiles struct {
	CA   string `mapstructure:"ca"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

type storage struct {
	Backend   string        `mapstructure:"backend"`
	SQLDB     string        `mapstructure:"sql_db"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisTTL  time.Duration `mapstructure:"redis_ttl"`
	RedisTLS  tlsFiles      `mapstructure:"redis_tls"`
	Retry     retry         `mapstructure:"retry"`
}

type topics struct {
	Orders            string `mapstructure:"orders"`
	SearchEvents      string `mapstructure:"search_events"`
	Partitions        int32  `mapstructure:"partitions"`
	ReplicationFactor int16  `mapstructure:"replication_factor"`
}

type consumers struct {
	OrdersLedgerGroup string `mapstructure:"orders_ledger_group"`
}

type broker struct {
	Enabled            bool      `mapstructure:"enabled"`
	SeedBrokers        []string  `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string  `mapstructure:"schema_registry_urls"`
	Topics             topics    `mapstructure:"topics"`
	Consumers          consumers `mapstructure:"consumers"`
	TLS                tlsFiles  `mapstructure:"tls"`
}

type Config struct {
	LogLevel       slog.Level    `mapstructure:"log_level"`
	HTTPServerAddr string        `mapstructure:"http_server_addr"`
	CatalogFile    string        `mapstructure:"catalog_file"`
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	Storage        storage       `mapstructure:"storage"`
	Broker         broker        `mapstructure:"broker"`
}

// Load reads the file named by STOREFRONT_CONFIG_FILE or the --config flag
// and exits the process when the config is unusable.
func Load() Config {
	cfg, err := LoadFile(getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

// LoadFile reads and validates a config file. Every key can be overridden
// by an environment variable, e.g. STOREFRONT_STORAGE_BACKEND.
func LoadFile(path string) (Config, error) {
	const op = "config.LoadFile"

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("http_server_addr", ":8080")
	v.SetDefault("catalog_file", "")
	v.SetDefault("session_idle_ttl", "30m")
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.sql_db", "")
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_ttl", "0s")
	v.SetDefault("storage.redis_tls.ca", "")
	v.SetDefault("storage.redis_tls.cert", "")
	v.SetDefault("storage.redis_tls.key", "")
	v.SetDefault("storage.retry.max_attempts", 3)
	v.SetDefault("storage.retry.delay", "50ms")
	v.SetDefault("storage.retry.backoff", BackoffLinear)
	v.SetDefault("broker.enabled", false)
	v.SetDefault("broker.seed_brokers", []string{})
	v.SetDefault("broker.schema_registry_urls", []string{})
	v.SetDefault("broker.topics.orders", "orders")
	v.SetDefault("broker.topics.search_events", "search-events")
	v.SetDefault("broker.topics.partitions", 3)
	v.SetDefault("broker.topics.replication_factor", 3)
	v.SetDefault("broker.consumers.orders_ledger_group", "orders-ledger")
	v.SetDefault("broker.tls.ca", "")
	v.SetDefault("broker.tls.cert", "")
	v.SetDefault("broker.tls.key", "")
}

// Validate reports every setting that cannot work together.
func (c Config) Validate() error {
	var errs []error

	if c.SessionIdleTTL < 0 {
		errs = append(errs, errors.New("session_idle_ttl: must not be negative"))
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.SQLDB == "" {
			errs = append(errs, errors.New("storage.sql_db: required for postgres"))
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr: required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown %q", c.Storage.Backend))
	}

	if c.Storage.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("storage.retry.max_attempts: must be positive"))
	}
	switch c.Storage.Retry.Backoff {
	case BackoffLinear, BackoffExponential:
	default:
		errs = append(errs, fmt.Errorf("storage.retry.backoff: unknown %q", c.Storage.Retry.Backoff))
	}

	if c.Broker.Enabled {
		if len(c.Broker.SeedBrokers) == 0 {
			errs = append(errs, errors.New("broker.seed_brokers: required"))
		}
		if len(c.Broker.SchemaRegistryURLs) == 0 {
			errs = append(errs, errors.New("broker.schema_registry_urls: required"))
		}
		if c.Broker.Topics.Orders == "" || c.Broker.Topics.SearchEvents == "" {
			errs = append(errs, errors.New("broker.topics: orders and search_events required"))
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	cmdLine.ParseErrorsWhitelist.UnknownFlags = true
	arg := cmdLine.String("config", defaultConfigFile, "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func (c Config) Print() {
	tamplate := `
	General:
	LogLevel=%q
	HTTPServerAddr=%q
	CatalogFile=%q
	SessionIdleTTL=%s

	Storage:
	Backend=%q
	RedisAddr=%q
	RedisTTL=%s
	RetryMaxAttempts=%d
	RetryDelay=%s
	RetryBackoff=%q

	BrokerConfig:
	Enabled=%t
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	TLS=%t
	Topics:
		Orders=%q
		SearchEvents=%q
	Consumers:
		OrdersLedgerGroup=%q

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.HTTPServerAddr,
		c.CatalogFile,
		c.SessionIdleTTL,
		c.Storage.Backend,
		c.Storage.RedisAddr,
		c.Storage.RedisTTL,
		c.Storage.Retry.MaxAttempts,
		c.Storage.Retry.Delay,
		c.Storage.Retry.Backoff,
		c.Broker.Enabled,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.TLS.CA != "",
		c.Broker.Topics.Orders,
		c.Broker.Topics.SearchEvents,
		c.Broker.Consumers.OrdersLedgerGroup,
	)
}
