// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eventstats/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Backend: "kafka",
			Kafka: KafkaConfig{
				Brokers:        []string{"localhost:9092"},
				ClientID:       "eventstats",
				ProducerLinger: 5 * time.Millisecond,
			},
			NATS: NATSConfig{
				URL:            "nats://127.0.0.1:4222",
				EmbeddedServer: false,
				ServerPort:     4222,
				StoreDir:       "/data/nats/jetstream",
				MaxMemory:      1 << 30,  // 1GB
				MaxStore:       10 << 30, // 10GB
				StreamName:     "EVENTSTATS",
				RetentionDays:  30,
			},
		},
		Topics: TopicsConfig{
			Actions:      "stats.user-actions.v1",
			Similarities: "stats.events-similarity.v1",
		},
		Consumer: ConsumerConfig{
			PollTimeout:       5 * time.Second,
			MaxPollRecords:    500,
			AggregatorGroup:   "aggregator-user-actions",
			InteractionsGroup: "analyzer-user-actions",
			SimilaritiesGroup: "analyzer-events-similarity",
			SkipMalformed:     false,
		},
		Aggregator: AggregatorConfig{
			ReplayFromStart: false,
		},
		Database: DatabaseConfig{
			Driver:    "duckdb",
			Path:      "/data/eventstats.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = DuckDB default
		},
		Server: ServerConfig{
			CollectorAddr:   ":8081",
			AnalyzerAddr:    ":8082",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTL:      30 * time.Second,
			Capacity: 10000,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				DB:   0,
			},
		},
		Client: ClientConfig{
			CollectorURL: "http://localhost:8081",
			AnalyzerURL:  "http://localhost:8082",
			Timeout:      5 * time.Second,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration using the layered koanf providers.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"broker.kafka.brokers",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are ignored.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"broker_backend":        "broker.backend",
		"kafka_brokers":         "broker.kafka.brokers",
		"kafka_client_id":       "broker.kafka.client_id",
		"kafka_producer_linger": "broker.kafka.producer_linger",
		"nats_url":              "broker.nats.url",
		"nats_embedded":         "broker.nats.embedded_server",
		"nats_server_port":      "broker.nats.server_port",
		"nats_store_dir":        "broker.nats.store_dir",
		"nats_max_memory":       "broker.nats.max_memory",
		"nats_max_store":        "broker.nats.max_store",
		"nats_stream_name":      "broker.nats.stream_name",
		"nats_retention_days":   "broker.nats.retention_days",

		"topic_user_actions":      "topics.actions",
		"topic_events_similarity": "topics.similarities",

		"consumer_poll_timeout":       "consumer.poll_timeout",
		"consumer_max_poll_records":   "consumer.max_poll_records",
		"consumer_aggregator_group":   "consumer.aggregator_group",
		"consumer_interactions_group": "consumer.interactions_group",
		"consumer_similarities_group": "consumer.similarities_group",
		"consumer_skip_malformed":     "consumer.skip_malformed",

		"aggregator_replay_from_start": "aggregator.replay_from_start",

		"db_driver":     "database.driver",
		"db_path":       "database.path",
		"db_max_memory": "database.max_memory",
		"db_threads":    "database.threads",

		"collector_addr":      "server.collector_addr",
		"analyzer_addr":       "server.analyzer_addr",
		"http_read_timeout":   "server.read_timeout",
		"http_write_timeout":  "server.write_timeout",
		"rate_limit_requests": "server.rate_limit_requests",
		"rate_limit_window":   "server.rate_limit_window",
		"disable_rate_limit":  "server.rate_limit_disabled",

		"cache_backend":  "cache.backend",
		"cache_ttl":      "cache.ttl",
		"cache_capacity": "cache.capacity",
		"redis_addr":     "cache.redis.addr",
		"redis_password": "cache.redis.password",
		"redis_db":       "cache.redis.db",

		"collector_url":  "client.collector_url",
		"analyzer_url":   "client.analyzer_url",
		"client_timeout": "client.timeout",

		"supervisor_failure_threshold": "supervisor.failure_threshold",
		"supervisor_failure_decay":     "supervisor.failure_decay",
		"supervisor_failure_backoff":   "supervisor.failure_backoff",
		"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
