// Package server composes the Concierge service: configuration, shared
// breaker and limiters, worker pool, plugin registry, coordinator, and the
// HTTP surface.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hearthware/concierge/internal/api"
	"github.com/hearthware/concierge/internal/api/handlers"
	"github.com/hearthware/concierge/internal/automation"
	"github.com/hearthware/concierge/internal/boundary"
	"github.com/hearthware/concierge/internal/breaker"
	"github.com/hearthware/concierge/internal/cloud"
	"github.com/hearthware/concierge/internal/config"
	"github.com/hearthware/concierge/internal/coordinator"
	"github.com/hearthware/concierge/internal/diagnostics"
	"github.com/hearthware/concierge/internal/journal"
	"github.com/hearthware/concierge/internal/nlp"
	"github.com/hearthware/concierge/internal/permissions"
	"github.com/hearthware/concierge/internal/persona"
	"github.com/hearthware/concierge/internal/plugins"
	"github.com/hearthware/concierge/internal/ratelimit"
	"github.com/hearthware/concierge/internal/reasoning"
	"github.com/hearthware/concierge/internal/routing"
	"github.com/hearthware/concierge/internal/store"
	"github.com/hearthware/concierge/internal/telemetry"
	"github.com/hearthware/concierge/internal/workerpool"
	"github.com/hearthware/concierge/pkg/models"
)

// Server holds the initialized Concierge service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Coordinator is exposed for embedding callers that bypass HTTP.
	Coordinator *coordinator.Coordinator

	// Store is the persistence backend in use.
	Store store.Store

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry and drains the worker pool.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the service with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	telemetryShutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var dataStore store.Store
	if cfg.Database.URL != "" {
		dataStore, err = store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	} else {
		dataStore = store.NewMemoryStore()
		log.Info().Msg("using in-memory store")
	}

	// Shared state: circuit breaker and the four rate limiters. These are
	// the only objects mutated across concurrent requests.
	circuit := breaker.New(cfg.CircuitFailureThreshold, cfg.CircuitCooldown)
	requestLimiter := ratelimit.New(cfg.Limits.RequestLimit, cfg.Limits.RequestWindow)
	automationLimiter := ratelimit.New(cfg.Limits.AutomationLimit, cfg.Limits.AutomationWindow)
	pluginLimiter := ratelimit.New(cfg.Limits.PluginLimit, cfg.Limits.PluginWindow)
	cloudLimiter := ratelimit.New(cfg.Limits.CloudLimit, cfg.Limits.CloudWindow)

	eb := boundary.New(log.Logger)

	perms, err := permissions.NewManager(permissions.Options{
		Mode:            cfg.Mode,
		BlockedCommands: cfg.BlockedCommands,
		BlockedPlugins:  cfg.BlockedPlugins,
		DenyRules:       cfg.DenyRules,
	})
	if err != nil {
		return nil, fmt.Errorf("init permissions: %w", err)
	}

	manifest, err := plugins.LoadManifest(cfg.PluginManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load plugin manifest: %w", err)
	}
	registry := plugins.NewRegistry(manifest, eb)

	jrnl := journal.New()
	pool := workerpool.New(cfg.MaxWorkers)

	cloudClient := cloud.New(cfg.CloudEndpoint, cfg.ProviderTimeout, cloudLimiter)
	modelRouter := routing.NewModelRouter(circuit, cloudClient, cfg.CloudProvider)
	reasoner := reasoning.NewEngine(modelRouter)

	executor := automation.NewExecutor(perms, jrnl, eb, registry, cfg.PluginTimeout, automationLimiter, pluginLimiter)

	coord := coordinator.New(coordinator.Options{
		Mode:           cfg.Mode,
		Classifier:     nlp.NewClassifier(),
		Personality:    persona.NewPersonality(cfg.PersonalityLevel, cfg.FormalMode),
		Reasoner:       reasoner,
		Executor:       executor,
		Permissions:    perms,
		Circuit:        circuit,
		RequestLimiter: requestLimiter,
		Pool:           pool,
		Store:          dataStore,
		RequestTimeout: cfg.RequestTimeout,
	})

	diag := diagnostics.New(cfg, dataStore, registry, circuit)
	if report := diag.Run(ctx); report.Status != models.StatusSuccess {
		log.Warn().Float64("confidence", report.Confidence).Msg("startup diagnostics degraded")
	}

	h := handlers.New(coord, jrnl, diag, circuit, dataStore)

	return &Server{
		Handler:     api.NewRouter(cfg, h),
		Coordinator: coord,
		Store:       dataStore,
		Port:        cfg.Port,
		ShutdownFunc: func(shutdownCtx context.Context) error {
			pool.Shutdown(shutdownCtx)
			return telemetryShutdown(shutdownCtx)
		},
	}, nil
}
