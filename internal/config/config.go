// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package config loads eventstats configuration with koanf.
//
// Configuration is layered, lowest priority first:
//
//  1. Struct defaults (defaultConfig)
//  2. YAML file from CONFIG_PATH or the default search paths
//  3. Environment variables, mapped explicitly by envTransformFunc
//
// All three binaries (collector, aggregator, analyzer) read the same
// Config and use the sections relevant to them.
package config

import (
	"time"

	"github.com/tomtom215/eventstats/internal/logging"
	"github.com/tomtom215/eventstats/internal/supervisor"
)

// Config is the complete eventstats configuration.
type Config struct {
	Broker     BrokerConfig     `koanf:"broker"`
	Topics     TopicsConfig     `koanf:"topics"`
	Consumer   ConsumerConfig   `koanf:"consumer"`
	Aggregator AggregatorConfig `koanf:"aggregator"`
	Database   DatabaseConfig   `koanf:"database"`
	Server     ServerConfig     `koanf:"server"`
	Cache      CacheConfig      `koanf:"cache"`
	Client     ClientConfig     `koanf:"client"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// BrokerConfig selects and configures the message broker.
type BrokerConfig struct {
	// Backend is "kafka" (default) or "nats".
	Backend string      `koanf:"backend"`
	Kafka   KafkaConfig `koanf:"kafka"`
	NATS    NATSConfig  `koanf:"nats"`
}

// KafkaConfig holds Kafka client settings.
type KafkaConfig struct {
	Brokers        []string      `koanf:"brokers"`
	ClientID       string        `koanf:"client_id"`
	ProducerLinger time.Duration `koanf:"producer_linger"`
}

// NATSConfig holds NATS JetStream settings.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	// ServerPort is the embedded server's client port; -1 picks a free one.
	ServerPort    int    `koanf:"server_port"`
	StoreDir      string `koanf:"store_dir"`
	MaxMemory     int64  `koanf:"max_memory"`
	MaxStore      int64  `koanf:"max_store"`
	StreamName    string `koanf:"stream_name"`
	RetentionDays int    `koanf:"retention_days"`
}

// TopicsConfig names the two topics connecting the pipeline.
type TopicsConfig struct {
	Actions      string `koanf:"actions"`
	Similarities string `koanf:"similarities"`
}

// ConsumerConfig holds settings shared by the three consume loops.
type ConsumerConfig struct {
	PollTimeout    time.Duration `koanf:"poll_timeout"`
	MaxPollRecords int           `koanf:"max_poll_records"`

	// Group ids. The aggregator and the interaction worker both read the
	// action topic and must use different groups so each sees every message.
	AggregatorGroup   string `koanf:"aggregator_group"`
	InteractionsGroup string `koanf:"interactions_group"`
	SimilaritiesGroup string `koanf:"similarities_group"`

	// SkipMalformed commits past undecodable records instead of failing the
	// poll cycle.
	SkipMalformed bool `koanf:"skip_malformed"`
}

// AggregatorConfig holds aggregator-only settings.
type AggregatorConfig struct {
	// ReplayFromStart rebuilds the similarity matrix from the earliest
	// retained action instead of resuming from the committed offset. The
	// matrix is not persisted, so without it a restarted aggregator starts
	// empty and overwrites stored scores with partial ones.
	ReplayFromStart bool `koanf:"replay_from_start"`
}

// DatabaseConfig configures the interaction/similarity store.
type DatabaseConfig struct {
	// Driver is "duckdb" (default), "sqlite3", or "memory".
	Driver    string `koanf:"driver"`
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// ServerConfig configures the HTTP surfaces.
type ServerConfig struct {
	CollectorAddr     string        `koanf:"collector_addr"`
	AnalyzerAddr      string        `koanf:"analyzer_addr"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// CacheConfig configures the interaction totals cache.
type CacheConfig struct {
	// Backend is "none", "memory" (default), or "redis".
	Backend  string        `koanf:"backend"`
	TTL      time.Duration `koanf:"ttl"`
	Capacity int           `koanf:"capacity"`
	Redis    RedisConfig   `koanf:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// ClientConfig configures statsclient for callers of the HTTP surfaces.
type ClientConfig struct {
	CollectorURL string        `koanf:"collector_url"`
	AnalyzerURL  string        `koanf:"analyzer_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

// SupervisorConfig tunes the suture restart policy.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional YAML file, and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Defaults returns the built-in configuration, before any file or
// environment overrides.
func Defaults() *Config {
	return defaultConfig()
}

// LoggingSettings converts the logging section for logging.Init.
func (c *Config) LoggingSettings() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}

// TreeSettings converts the supervisor section for supervisor.NewSupervisorTree.
func (c *Config) TreeSettings() supervisor.TreeConfig {
	return supervisor.TreeConfig{
		FailureThreshold: c.Supervisor.FailureThreshold,
		FailureDecay:     c.Supervisor.FailureDecay,
		FailureBackoff:   c.Supervisor.FailureBackoff,
		ShutdownTimeout:  c.Supervisor.ShutdownTimeout,
	}
}
