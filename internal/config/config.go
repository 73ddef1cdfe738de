// Package config handles service configuration with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Bus       BusConfig       `yaml:"bus"`
	Store     StoreConfig     `yaml:"store"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Publish   PublishConfig   `yaml:"publish"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Admin     AdminConfig     `yaml:"admin"`
	Health    HealthConfig    `yaml:"health"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LiveTap   LiveTapConfig   `yaml:"live_tap"`
	Alert     AlertConfig     `yaml:"alert"`
	Venues    VenuesConfig    `yaml:"venues"`
	Onchain   OnchainConfig   `yaml:"onchain"`
}

// ServiceConfig contains service-level settings
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// BusConfig contains the NATS connection and subjects
type BusConfig struct {
	URL              string `yaml:"url"`
	ConsumerSubject  string `yaml:"consumer_subject"`
	PublisherSubject string `yaml:"publisher_subject"`
	QueueGroup       string `yaml:"queue_group"`
	ConsumerName     string `yaml:"consumer_name"`
	MaxReconnects    int    `yaml:"max_reconnects"` // -1 retries forever
	ReconnectWaitMS  int    `yaml:"reconnect_wait_ms"`
}

// StoreConfig selects and configures the parameter store backend
type StoreConfig struct {
	Backend    string `yaml:"backend"` // mongo, sqlite or memory
	MongoURI   Secret `yaml:"mongo_uri"`
	Database   string `yaml:"database"`
	TimeoutMS  int    `yaml:"timeout_ms"`
	SQLitePath string `yaml:"sqlite_path"`
}

// StrategyConfig controls which strategies start enabled
type StrategyConfig struct {
	Enabled      map[string]bool `yaml:"enabled"` // absent ids default to on
	CacheTTLSec  int             `yaml:"cache_ttl_seconds"`
	SweepSeconds int             `yaml:"sweep_interval_seconds"`
}

// DispatchConfig contains dispatcher settings
type DispatchConfig struct {
	Workers           int `yaml:"workers"`
	EnqueueDeadlineMS int `yaml:"enqueue_deadline_ms"`
}

// PublishConfig contains egress queue and circuit breaker settings
type PublishConfig struct {
	QueueSize          int `yaml:"queue_size"`
	Workers            int `yaml:"workers"`
	FailureThreshold   int `yaml:"failure_threshold"`
	RecoveryTimeoutSec int `yaml:"recovery_timeout_seconds"`
}

// HeartbeatConfig contains heartbeat reporter settings
type HeartbeatConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	DetailedStats   bool `yaml:"detailed_stats"`
}

// TrackerConfig contains order-book tracker bounds
type TrackerConfig struct {
	WindowSeconds    int     `yaml:"window_seconds"`
	MaxSymbols       int     `yaml:"max_symbols"`
	MaxLevels        int     `yaml:"max_levels_per_symbol"`
	SamplesPerLevel  int     `yaml:"samples_per_level"`
	PriceStep        float64 `yaml:"price_step"`
}

// AdminConfig contains the admin HTTP API settings
type AdminConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Port      int      `yaml:"port"`
	APIKeys   []Secret `yaml:"api_keys"`
	RateLimit int      `yaml:"rate_limit"` // requests per second per key
}

// HealthConfig contains the health endpoint settings
type HealthConfig struct {
	Port int `yaml:"port"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing"`
}

// LiveTapConfig contains the optional websocket signal tap settings
type LiveTapConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AlertConfig contains webhook alerting settings
type AlertConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL Secret `yaml:"webhook_url"`
}

// VenuesConfig controls the external venue price poller feeding the
// cross-exchange strategy
type VenuesConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Symbols             []string `yaml:"symbols"`
	PollIntervalSeconds int      `yaml:"poll_interval_seconds"`
	RequestsPerSecond   float64  `yaml:"requests_per_second"`
	TimeoutSeconds      int      `yaml:"timeout_seconds"`
	CoinbaseURL         string   `yaml:"coinbase_url"`
}

// OnchainConfig points at the on-chain metrics aggregator
type OnchainConfig struct {
	MetricsURL     string `yaml:"metrics_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion, applying defaults before validation
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	for _, check := range []func() error{
		c.validateService,
		c.validateBus,
		c.validateStore,
		c.validateDispatch,
		c.validatePublish,
		c.validateHeartbeat,
		c.validateTracker,
		c.validateAdmin,
		c.validateVenues,
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateService() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.Service.LogLevel)) {
		return ValidationError{
			Field:   "service.log_level",
			Value:   c.Service.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateBus() error {
	if c.Bus.URL == "" {
		return ValidationError{Field: "bus.url", Message: "bus URL is required"}
	}
	if c.Bus.ConsumerSubject == "" {
		return ValidationError{Field: "bus.consumer_subject", Message: "consumer subject is required"}
	}
	if c.Bus.PublisherSubject == "" {
		return ValidationError{Field: "bus.publisher_subject", Message: "publisher subject is required"}
	}
	if c.Bus.QueueGroup == "" {
		return ValidationError{Field: "bus.queue_group", Message: "queue group is required"}
	}
	return nil
}

func (c *Config) validateStore() error {
	validBackends := []string{"mongo", "sqlite", "memory"}
	if !contains(validBackends, c.Store.Backend) {
		return ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validBackends, ", ")),
		}
	}
	if c.Store.Backend == "mongo" && c.Store.MongoURI == "" {
		return ValidationError{Field: "store.mongo_uri", Message: "mongo URI is required for the mongo backend"}
	}
	if c.Store.Backend == "sqlite" && c.Store.SQLitePath == "" {
		return ValidationError{Field: "store.sqlite_path", Message: "sqlite path is required for the sqlite backend"}
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if c.Dispatch.Workers < 1 || c.Dispatch.Workers > 64 {
		return ValidationError{
			Field:   "dispatch.workers",
			Value:   c.Dispatch.Workers,
			Message: "must be between 1 and 64",
		}
	}
	if c.Dispatch.EnqueueDeadlineMS < 1 {
		return ValidationError{
			Field:   "dispatch.enqueue_deadline_ms",
			Value:   c.Dispatch.EnqueueDeadlineMS,
			Message: "must be positive",
		}
	}
	return nil
}

func (c *Config) validatePublish() error {
	if c.Publish.QueueSize < 1 {
		return ValidationError{Field: "publish.queue_size", Value: c.Publish.QueueSize, Message: "must be positive"}
	}
	if c.Publish.Workers < 1 || c.Publish.Workers > 64 {
		return ValidationError{Field: "publish.workers", Value: c.Publish.Workers, Message: "must be between 1 and 64"}
	}
	if c.Publish.FailureThreshold < 1 {
		return ValidationError{Field: "publish.failure_threshold", Value: c.Publish.FailureThreshold, Message: "must be positive"}
	}
	if c.Publish.RecoveryTimeoutSec < 1 {
		return ValidationError{Field: "publish.recovery_timeout_seconds", Value: c.Publish.RecoveryTimeoutSec, Message: "must be positive"}
	}
	return nil
}

func (c *Config) validateHeartbeat() error {
	if c.Heartbeat.Enabled && c.Heartbeat.IntervalSeconds < 1 {
		return ValidationError{
			Field:   "heartbeat.interval_seconds",
			Value:   c.Heartbeat.IntervalSeconds,
			Message: "must be positive when heartbeat is enabled",
		}
	}
	return nil
}

func (c *Config) validateTracker() error {
	if c.Tracker.WindowSeconds < 1 {
		return ValidationError{Field: "tracker.window_seconds", Value: c.Tracker.WindowSeconds, Message: "must be positive"}
	}
	if c.Tracker.MaxSymbols < 1 {
		return ValidationError{Field: "tracker.max_symbols", Value: c.Tracker.MaxSymbols, Message: "must be positive"}
	}
	if c.Tracker.MaxLevels < 1 {
		return ValidationError{Field: "tracker.max_levels_per_symbol", Value: c.Tracker.MaxLevels, Message: "must be positive"}
	}
	if c.Tracker.SamplesPerLevel < 2 {
		return ValidationError{Field: "tracker.samples_per_level", Value: c.Tracker.SamplesPerLevel, Message: "must be at least 2"}
	}
	if c.Tracker.PriceStep <= 0 || c.Tracker.PriceStep > 10 {
		return ValidationError{Field: "tracker.price_step", Value: c.Tracker.PriceStep, Message: "must be in (0, 10]"}
	}
	return nil
}

func (c *Config) validateAdmin() error {
	if !c.Admin.Enabled {
		return nil
	}
	if c.Admin.Port < 1 || c.Admin.Port > 65535 {
		return ValidationError{Field: "admin.port", Value: c.Admin.Port, Message: "must be a valid port"}
	}
	return nil
}

func (c *Config) validateVenues() error {
	if !c.Venues.Enabled {
		return nil
	}
	if c.Venues.PollIntervalSeconds < 1 {
		return ValidationError{Field: "venues.poll_interval_seconds", Value: c.Venues.PollIntervalSeconds, Message: "must be positive"}
	}
	if c.Venues.TimeoutSeconds < 1 || c.Venues.TimeoutSeconds > 5 {
		return ValidationError{Field: "venues.timeout_seconds", Value: c.Venues.TimeoutSeconds, Message: "must be in [1, 5]"}
	}
	return nil
}

// String returns the configuration as YAML with secrets redacted via the
// Secret marshaler
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// expandEnvVars expands ${VAR} and ${VAR:-default} references
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		return ""
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the built-in defaults; LoadConfig overlays the YAML
// file on top of these
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "realtime-strategies",
			LogLevel: "INFO",
		},
		Bus: BusConfig{
			URL:              "nats://localhost:4222",
			ConsumerSubject:  "binance.websocket.data",
			PublisherSubject: "signals.trading",
			QueueGroup:       "realtime_strategies_workers",
			ConsumerName:     "realtime_strategies",
			MaxReconnects:    -1,
			ReconnectWaitMS:  2000,
		},
		Store: StoreConfig{
			Backend:    "memory",
			Database:   "trading_configs",
			TimeoutMS:  5000,
			SQLitePath: "strategy_configs.db",
		},
		Strategy: StrategyConfig{
			Enabled:      map[string]bool{},
			CacheTTLSec:  60,
			SweepSeconds: 60,
		},
		Dispatch: DispatchConfig{
			Workers:           1,
			EnqueueDeadlineMS: 500,
		},
		Publish: PublishConfig{
			QueueSize:          1000,
			Workers:            2,
			FailureThreshold:   5,
			RecoveryTimeoutSec: 60,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalSeconds: 60,
			DetailedStats:   false,
		},
		Tracker: TrackerConfig{
			WindowSeconds:    300,
			MaxSymbols:       100,
			MaxLevels:        200,
			SamplesPerLevel:  100,
			PriceStep:        0.01,
		},
		Admin: AdminConfig{
			Enabled:   true,
			Port:      8081,
			RateLimit: 20,
		},
		Health: HealthConfig{
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
			EnableTracing: false,
		},
		LiveTap: LiveTapConfig{
			Enabled: false,
			Port:    8082,
		},
		Alert: AlertConfig{
			Enabled: false,
		},
		Venues: VenuesConfig{
			Enabled:             true,
			Symbols:             []string{"BTCUSDT", "ETHUSDT"},
			PollIntervalSeconds: 10,
			RequestsPerSecond:   2,
			TimeoutSeconds:      5,
		},
		Onchain: OnchainConfig{
			TimeoutSeconds: 5,
		},
	}
}
