// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultRedpandaImage is a Kafka-compatible single binary broker.
	DefaultRedpandaImage = "docker.redpanda.com/redpandadata/redpanda:v24.2.4"

	// DefaultRedpandaHostPort is bound on the host so the broker can
	// advertise an address reachable from the test process.
	DefaultRedpandaHostPort = "19092"
)

// RedpandaContainer is a running single-node Kafka API broker.
type RedpandaContainer struct {
	testcontainers.Container
	Brokers []string
}

// RedpandaOption customizes the container.
type RedpandaOption func(*redpandaConfig)

type redpandaConfig struct {
	image        string
	hostPort     string
	startTimeout time.Duration
}

// WithRedpandaImage overrides the image.
func WithRedpandaImage(image string) RedpandaOption {
	return func(c *redpandaConfig) { c.image = image }
}

// WithRedpandaHostPort overrides the fixed host port.
func WithRedpandaHostPort(port string) RedpandaOption {
	return func(c *redpandaConfig) { c.hostPort = port }
}

// NewRedpandaContainer starts Redpanda in dev-container mode.
func NewRedpandaContainer(ctx context.Context, opts ...RedpandaOption) (*RedpandaContainer, error) {
	cfg := &redpandaConfig{
		image:        DefaultRedpandaImage,
		hostPort:     DefaultRedpandaHostPort,
		startTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{cfg.hostPort + ":9092/tcp"},
		Cmd: []string{
			"redpanda", "start",
			"--mode", "dev-container",
			"--smp", "1",
			"--kafka-addr", "PLAINTEXT://0.0.0.0:9092",
			"--advertise-kafka-addr", "PLAINTEXT://localhost:" + cfg.hostPort,
		},
		WaitingFor: wait.ForLog("Successfully started Redpanda!").WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redpanda container: %w", err)
	}

	return &RedpandaContainer{
		Container: container,
		Brokers:   []string{"localhost:" + cfg.hostPort},
	}, nil
}
