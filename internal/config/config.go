// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Market    MarketConfig    `mapstructure:"market"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// MarketConfig selects which venues and currencies the aggregator tracks
// (spec.md §6 "Configuration").
type MarketConfig struct {
	Exchanges         []string `mapstructure:"exchanges"`          // "delta", "deribit"
	Currencies        []string `mapstructure:"currencies"`         // "BTC", "ETH", "SOL"
	BroadcastCapacity int      `mapstructure:"broadcast_capacity"` // fixed ring-buffer size, reference value 250000
}

// StreamConfig holds stream and catalog tuning (spec.md §4.4, §6).
// CatalogHTTPTimeout and DeribitRatePerMin are applied by cmd/mdagg.
// HeartbeatTimeout and InitialBackoff are loaded and defaulted here but are
// not passed to the venue clients, which build every Stream Supervisor with
// fixed values of 35s and 100ms.
type StreamConfig struct {
	HeartbeatTimeout   time.Duration `mapstructure:"heartbeat_timeout"`   // default 35s
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`     // default 100ms
	CatalogHTTPTimeout time.Duration `mapstructure:"catalog_http_timeout"`
	DeribitRatePerMin  int           `mapstructure:"deribit_rate_per_min"` // get_instruments fan-out pacing
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("MDAGG")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "MDAGG_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "MDAGG_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "MDAGG_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("market.exchanges", "MDAGG_EXCHANGES")
	v.BindEnv("market.currencies", "MDAGG_CURRENCIES")
	v.BindEnv("market.broadcast_capacity", "MDAGG_BROADCAST_CAPACITY")

	v.BindEnv("stream.heartbeat_timeout", "MDAGG_HEARTBEAT_TIMEOUT")
	v.BindEnv("stream.initial_backoff", "MDAGG_INITIAL_BACKOFF")
	v.BindEnv("stream.deribit_rate_per_min", "MDAGG_DERIBIT_RATE_PER_MIN")

	v.BindEnv("telemetry.enabled", "MDAGG_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "MDAGG_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "MDAGG_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mdagg")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("market.exchanges", []string{"delta", "deribit"})
	v.SetDefault("market.currencies", []string{"BTC", "ETH"})
	v.SetDefault("market.broadcast_capacity", 250000)

	v.SetDefault("stream.heartbeat_timeout", "35s")
	v.SetDefault("stream.initial_backoff", "100ms")
	v.SetDefault("stream.catalog_http_timeout", "10s")
	v.SetDefault("stream.deribit_rate_per_min", 300)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "mdagg")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Market.Exchanges) == 0 {
		return fmt.Errorf("market.exchanges cannot be empty")
	}
	if len(c.Market.Currencies) == 0 {
		return fmt.Errorf("market.currencies cannot be empty")
	}
	if c.Market.BroadcastCapacity <= 0 {
		return fmt.Errorf("market.broadcast_capacity must be positive")
	}
	return nil
}
