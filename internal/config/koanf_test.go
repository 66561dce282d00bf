// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Broker.Backend != "kafka" {
		t.Errorf("Broker.Backend = %q, want kafka", cfg.Broker.Backend)
	}
	if cfg.Consumer.SkipMalformed {
		t.Error("SkipMalformed should default to false")
	}
	if cfg.Aggregator.ReplayFromStart {
		t.Error("ReplayFromStart should default to false")
	}
}

func TestLoadWithKoanfFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
broker:
  backend: nats
  nats:
    url: nats://nats:4222
database:
  driver: sqlite3
  path: /tmp/stats.db
consumer:
  poll_timeout: 2s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("DB_DRIVER", "duckdb")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CONSUMER_SKIP_MALFORMED", "true")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}

	if cfg.Broker.Backend != "nats" || cfg.Broker.NATS.URL != "nats://nats:4222" {
		t.Errorf("file values not applied: %+v", cfg.Broker)
	}
	if cfg.Database.Driver != "duckdb" {
		t.Errorf("env should override file: driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.Path != "/tmp/stats.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Consumer.PollTimeout != 2*time.Second {
		t.Errorf("PollTimeout = %v, want 2s", cfg.Consumer.PollTimeout)
	}
	if len(cfg.Broker.Kafka.Brokers) != 2 || cfg.Broker.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Brokers = %v", cfg.Broker.Kafka.Brokers)
	}
	if !cfg.Consumer.SkipMalformed {
		t.Error("SkipMalformed should be set from env")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"KAFKA_BROKERS", "broker.kafka.brokers"},
		{"AGGREGATOR_REPLAY_FROM_START", "aggregator.replay_from_start"},
		{"LOG_LEVEL", "logging.level"},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Broker.Backend = "rabbit" }},
		{"no kafka brokers", func(c *Config) { c.Broker.Kafka.Brokers = nil }},
		{"same topics", func(c *Config) { c.Topics.Similarities = c.Topics.Actions }},
		{"shared group", func(c *Config) { c.Consumer.InteractionsGroup = c.Consumer.AggregatorGroup }},
		{"zero poll timeout", func(c *Config) { c.Consumer.PollTimeout = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.Redis.Addr = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestMemoryDriverNeedsNoPath(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Driver = "memory"
	cfg.Database.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("memory driver without path should validate: %v", err)
	}
}
