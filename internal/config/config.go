package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/acme/click-to-call/pkg/errors"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Trunks    TrunksConfig    `mapstructure:"trunks"`
	Recording RecordingConfig `mapstructure:"recording"`
	Pending   PendingConfig   `mapstructure:"pending"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Scylla    ScyllaConfig    `mapstructure:"scylla"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	Version         string        `mapstructure:"version"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ProviderConfig selects and configures the telephony provider.
type ProviderConfig struct {
	Name           string        `mapstructure:"name"`
	Key            string        `mapstructure:"key"`
	Secret         string        `mapstructure:"secret"`
	Sandbox        bool          `mapstructure:"sandbox"`
	BaseURL        string        `mapstructure:"base_url"`
	PBXID          string        `mapstructure:"pbx_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// Timezone is the IANA zone of the account; event timestamps are local to it.
	Timezone       string        `mapstructure:"timezone"`
}

// Location resolves Timezone, defaulting to UTC.
func (c ProviderConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// TrunksConfig describes the trunk pool.
type TrunksConfig struct {
	Numbers             []string      `mapstructure:"numbers"`
	MaxChannels         int           `mapstructure:"max_channels"`
	Discover            bool          `mapstructure:"discover"`
	AcquirePollInterval time.Duration `mapstructure:"acquire_poll_interval"`
	AcquireTimeout      time.Duration `mapstructure:"acquire_timeout"`
}

type RecordingConfig struct {
	Cooldown        time.Duration `mapstructure:"cooldown"`
	RecordsPath     string        `mapstructure:"records_path"`
	StaticRoot      string        `mapstructure:"static_root"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	LedgerKey       string        `mapstructure:"ledger_key"`
}

type PendingConfig struct {
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	EvictAfter    time.Duration `mapstructure:"evict_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// StorageConfig selects the call record store: postgres, scylla or memory.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	InitSchema bool   `mapstructure:"init_schema"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type ScyllaConfig struct {
	Hosts       []string      `mapstructure:"hosts"`
	Port        int           `mapstructure:"port"`
	Keyspace    string        `mapstructure:"keyspace"`
	Consistency string        `mapstructure:"consistency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// KafkaConfig is optional; record events are skipped when no brokers are set.
type KafkaConfig struct {
	Brokers            []string      `mapstructure:"brokers"`
	ClientID           string        `mapstructure:"client_id"`
	CallCompletedTopic string        `mapstructure:"call_completed_topic"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	EnsureTopics       bool          `mapstructure:"ensure_topics"`
}

// RedisConfig is optional; the recording ledger stays in memory without it.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type TelemetryConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("CLICKCALL")
	v.SetEnvKeyReplacer(NewEnvReplacer())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "click-to-call")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.shutdown_timeout", 90*time.Second)
	v.SetDefault("http.port", 5000)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("provider.name", "zadarma")
	v.SetDefault("provider.request_timeout", 10*time.Second)
	v.SetDefault("provider.timezone", "UTC")
	v.SetDefault("trunks.max_channels", 3)
	v.SetDefault("trunks.acquire_poll_interval", 5*time.Second)
	v.SetDefault("recording.cooldown", 60*time.Second)
	v.SetDefault("recording.records_path", "/tmp")
	v.SetDefault("recording.download_timeout", 5*time.Minute)
	v.SetDefault("pending.stale_after", time.Hour)
	v.SetDefault("pending.sweep_interval", 5*time.Minute)
	v.SetDefault("storage.backend", "postgres")
	v.SetDefault("kafka.call_completed_topic", "call_completed")
	v.SetDefault("scylla.consistency", "quorum")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate reports configuration errors that must stop startup.
func (c *Config) Validate() error {
	if c.Trunks.MaxChannels <= 0 {
		return fmt.Errorf("config: %w: trunks.max_channels must be positive", apperrors.ErrConfiguration)
	}
	if !c.Trunks.Discover && len(c.Trunks.Numbers) == 0 {
		return fmt.Errorf("config: %w: trunks.numbers is empty and discovery is off", apperrors.ErrConfiguration)
	}
	switch c.Provider.Name {
	case "zadarma":
		if c.Provider.Key == "" || c.Provider.Secret == "" {
			return fmt.Errorf("config: %w: provider.key and provider.secret are required", apperrors.ErrConfiguration)
		}
	case "mock":
	default:
		return fmt.Errorf("config: %w: unknown provider %q", apperrors.ErrConfiguration, c.Provider.Name)
	}
	if _, err := c.Provider.Location(); err != nil {
		return fmt.Errorf("config: %w: provider.timezone %q: %v", apperrors.ErrConfiguration, c.Provider.Timezone, err)
	}
	switch c.Storage.Backend {
	case "postgres", "scylla", "memory":
	default:
		return fmt.Errorf("config: %w: unknown storage backend %q", apperrors.ErrConfiguration, c.Storage.Backend)
	}
	return nil
}
