// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package app assembles the eventstats processes. Each binary under cmd/
// runs one role; cmd/eventstats can run any combination in one process.
//
// Initialization order:
//
//  1. Supervisor tree (suture, logged through sutureslog)
//  2. Embedded NATS server, when broker.nats.embedded_server is set
//  3. Broker preparation (JetStream stream creation)
//  4. Per role: collector producer and HTTP surface; aggregator service;
//     store, cache, engine, store workers and HTTP surface for the analyzer
//
// Everything long-running is a suture.Service. Resources opened here are
// released by Close, in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventstats/internal/aggregator"
	"github.com/tomtom215/eventstats/internal/api"
	"github.com/tomtom215/eventstats/internal/cache"
	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/database"
	"github.com/tomtom215/eventstats/internal/eventprocessor"
	"github.com/tomtom215/eventstats/internal/logging"
	"github.com/tomtom215/eventstats/internal/middleware"
	"github.com/tomtom215/eventstats/internal/recommend"
	"github.com/tomtom215/eventstats/internal/supervisor"
	"github.com/tomtom215/eventstats/internal/supervisor/services"
)

// Role is one of the three eventstats processes.
type Role string

const (
	RoleCollector  Role = "collector"
	RoleAggregator Role = "aggregator"
	RoleAnalyzer   Role = "analyzer"
)

// AllRoles runs the whole pipeline in one process.
var AllRoles = []Role{RoleCollector, RoleAggregator, RoleAnalyzer}

// ErrUnknownRole is returned by ParseRoles.
var ErrUnknownRole = errors.New("unknown role")

// ParseRoles parses role names, accepting comma separated lists. No names
// means every role.
func ParseRoles(names []string) ([]Role, error) {
	var roles []Role
	seen := make(map[Role]bool)
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			role := Role(strings.ToLower(strings.TrimSpace(part)))
			if role == "" {
				continue
			}
			switch role {
			case RoleCollector, RoleAggregator, RoleAnalyzer:
			default:
				return nil, fmt.Errorf("%w: %q", ErrUnknownRole, part)
			}
			if !seen[role] {
				seen[role] = true
				roles = append(roles, role)
			}
		}
	}
	if len(roles) == 0 {
		return AllRoles, nil
	}
	return roles, nil
}

// slowQueryThreshold is the analyzer's slow request log threshold.
const slowQueryThreshold = 500 * time.Millisecond

// App is an assembled set of roles ready to Serve.
type App struct {
	cfg    *config.Config
	tree   *supervisor.SupervisorTree
	broker *eventprocessor.Broker
	logger zerolog.Logger

	collectorHandler http.Handler
	analyzerHandler  http.Handler

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// New builds the supervisor tree for roles. On error everything opened so
// far is closed.
func New(ctx context.Context, cfg *config.Config, roles ...Role) (*App, error) {
	if len(roles) == 0 {
		roles = AllRoles
	}
	a := &App{cfg: cfg, logger: logging.WithComponent("app")}
	if err := a.assemble(ctx, roles); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info().
		Str("broker", a.broker.Backend()).
		Str("roles", joinRoles(roles)).
		Msg("Application assembled")
	return a, nil
}

func (a *App) assemble(ctx context.Context, roles []Role) error {
	cfg := a.cfg
	var err error

	a.tree, err = supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.TreeSettings())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	a.broker, err = eventprocessor.NewBroker(cfg, logging.WithComponent("broker"))
	if err != nil {
		return err
	}
	if err := a.startEmbeddedNATS(); err != nil {
		return err
	}
	if err := a.broker.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare broker: %w", err)
	}

	for _, role := range roles {
		switch role {
		case RoleCollector:
			err = a.addCollector(ctx)
		case RoleAggregator:
			a.addAggregator()
		case RoleAnalyzer:
			err = a.addAnalyzer()
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		if err != nil {
			return fmt.Errorf("set up %s: %w", role, err)
		}
	}
	return nil
}

func (a *App) startEmbeddedNATS() error {
	nc := a.cfg.Broker.NATS
	if a.cfg.Broker.Backend != "nats" || !nc.EmbeddedServer {
		return nil
	}
	srvCfg := eventprocessor.DefaultServerConfig()
	srvCfg.Port = nc.ServerPort
	srvCfg.StoreDir = nc.StoreDir
	srvCfg.JetStreamMaxMem = nc.MaxMemory
	srvCfg.JetStreamMaxStore = nc.MaxStore

	srv, err := eventprocessor.NewEmbeddedServer(&srvCfg)
	if err != nil {
		return fmt.Errorf("start embedded NATS: %w", err)
	}
	a.onClose("embedded-nats", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	a.broker.UseNATSURL(srv.ClientURL())
	a.logger.Info().Str("url", srv.ClientURL()).Msg("Embedded NATS server started")
	return nil
}

func (a *App) addCollector(ctx context.Context) error {
	producer, err := a.broker.Producers()(ctx)
	if err != nil {
		return fmt.Errorf("open producer: %w", err)
	}
	a.onClose("collector-producer", producer.Close)

	checks := map[string]api.Pinger{}
	if p, ok := producer.(api.Pinger); ok {
		checks["broker"] = p
	}

	a.collectorHandler = api.NewCollectorRouter(
		api.NewCollectorHandler(producer, a.cfg.Topics.Actions),
		api.NewHealthHandler(string(RoleCollector), checks),
		api.NewChiMiddlewareFromConfig(&a.cfg.Server),
	)
	a.addHTTPServer("collector-http", a.cfg.Server.CollectorAddr, a.collectorHandler)
	return nil
}

func (a *App) addAggregator() {
	cc := a.cfg.Consumer
	svc := aggregator.NewService(
		aggregator.NewMatrix(),
		a.broker.Consumers(cc.AggregatorGroup, a.cfg.Topics.Actions, a.cfg.Aggregator.ReplayFromStart),
		a.broker.Producers(),
		aggregator.Config{
			SimilarityTopic: a.cfg.Topics.Similarities,
			SkipMalformed:   cc.SkipMalformed,
		},
		logging.Logger(),
	)
	a.tree.AddStreamService(svc)
	if a.cfg.Aggregator.ReplayFromStart {
		a.logger.Info().Msg("Aggregator rebuilds the similarity matrix from the start of the action log")
	}
}

func (a *App) addAnalyzer() error {
	store, err := database.Open(&a.cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.onClose("store", store.Close)

	totals, err := cache.New(&a.cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	if totals != nil {
		a.onClose("totals-cache", totals.Close)
	}

	// Workers write through the engine so that cached totals are evicted.
	engine := recommend.NewEngine(store, totals, logging.Logger())
	cc := a.cfg.Consumer
	a.tree.AddStreamService(eventprocessor.NewInteractionWorker(
		a.broker.Consumers(cc.InteractionsGroup, a.cfg.Topics.Actions, false),
		engine, cc.SkipMalformed, logging.Logger(),
	))
	a.tree.AddStreamService(eventprocessor.NewSimilarityWorker(
		a.broker.Consumers(cc.SimilaritiesGroup, a.cfg.Topics.Similarities, false),
		engine, cc.SkipMalformed, logging.Logger(),
	))

	a.analyzerHandler = api.NewAnalyzerRouter(
		api.NewAnalyzerHandler(engine),
		api.NewHealthHandler(string(RoleAnalyzer), map[string]api.Pinger{"store": store}),
		api.NewChiMiddlewareFromConfig(&a.cfg.Server),
		middleware.NewPerformanceMonitor(1000, slowQueryThreshold),
	)
	a.addHTTPServer("analyzer-http", a.cfg.Server.AnalyzerAddr, a.analyzerHandler)

	a.logger.Info().
		Str("driver", a.cfg.Database.Driver).
		Str("cache", a.cfg.Cache.Backend).
		Msg("Analyzer store ready")
	return nil
}

func (a *App) addHTTPServer(name, addr string, handler http.Handler) {
	server := api.NewServer(addr, handler, &a.cfg.Server)
	a.tree.AddAPIService(services.NewHTTPServerService(name, server, a.cfg.Supervisor.ShutdownTimeout))
	a.logger.Info().Str("service", name).Str("addr", addr).Msg("HTTP server registered")
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// CollectorHandler returns the collector router, or nil without that role.
func (a *App) CollectorHandler() http.Handler {
	return a.collectorHandler
}

// AnalyzerHandler returns the analyzer router, or nil without that role.
func (a *App) AnalyzerHandler() http.Handler {
	return a.analyzerHandler
}

// Serve runs the supervisor tree until ctx is cancelled. Cancellation is a
// normal stop and returns nil.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Info().Msg("Starting supervisor tree")
	err := a.tree.Serve(ctx)

	if unstopped, _ := a.tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		a.logger.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			a.logger.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	a.logger.Info().Msg("Supervisor tree stopped")
	return nil
}

// Close releases resources in reverse order of acquisition. Errors are
// logged.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn().Err(err).Str("resource", c.name).Msg("Close failed")
		}
	}
	a.closers = nil
}

// Run assembles roles, serves until ctx is cancelled, and closes.
func Run(ctx context.Context, cfg *config.Config, roles ...Role) error {
	a, err := New(ctx, cfg, roles...)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}

func joinRoles(roles []Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
