// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var (
	validBackends     = map[string]bool{"kafka": true, "nats": true}
	validDrivers      = map[string]bool{"duckdb": true, "sqlite3": true, "memory": true}
	validCacheBackend = map[string]bool{"none": true, "memory": true, "redis": true}
	validLogLevels    = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validLogFormats   = map[string]bool{"json": true, "console": true}
)

// Validate checks the configuration for values the binaries cannot run with.
func (c *Config) Validate() error {
	if err := c.validateBroker(); err != nil {
		return err
	}
	if err := c.validateConsumer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) validateBroker() error {
	if !validBackends[c.Broker.Backend] {
		return invalid("BROKER_BACKEND must be one of: kafka, nats (got %q)", c.Broker.Backend)
	}
	if c.Broker.Backend == "kafka" && len(c.Broker.Kafka.Brokers) == 0 {
		return invalid("KAFKA_BROKERS is required for the kafka backend")
	}
	if c.Broker.Backend == "nats" && c.Broker.NATS.URL == "" && !c.Broker.NATS.EmbeddedServer {
		return invalid("NATS_URL is required unless NATS_EMBEDDED is enabled")
	}
	if c.Topics.Actions == "" || c.Topics.Similarities == "" {
		return invalid("both topic names are required")
	}
	if c.Topics.Actions == c.Topics.Similarities {
		return invalid("action and similarity topics must differ")
	}
	return nil
}

func (c *Config) validateConsumer() error {
	if c.Consumer.PollTimeout <= 0 {
		return invalid("CONSUMER_POLL_TIMEOUT must be positive")
	}
	if c.Consumer.MaxPollRecords <= 0 {
		return invalid("CONSUMER_MAX_POLL_RECORDS must be positive")
	}
	groups := []string{c.Consumer.AggregatorGroup, c.Consumer.InteractionsGroup, c.Consumer.SimilaritiesGroup}
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g == "" {
			return invalid("consumer group ids are required")
		}
		if seen[g] {
			return invalid("consumer group %q is used by more than one loop", g)
		}
		seen[g] = true
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if !validDrivers[c.Database.Driver] {
		return invalid("DB_DRIVER must be one of: duckdb, sqlite3, memory (got %q)", c.Database.Driver)
	}
	if c.Database.Driver != "memory" && c.Database.Path == "" {
		return invalid("DB_PATH is required for the %s driver", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateCache() error {
	if !validCacheBackend[c.Cache.Backend] {
		return invalid("CACHE_BACKEND must be one of: none, memory, redis (got %q)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return invalid("REDIS_ADDR is required for the redis cache")
	}
	if c.Cache.Backend != "none" && c.Cache.TTL <= 0 {
		return invalid("CACHE_TTL must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return invalid("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return invalid("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
