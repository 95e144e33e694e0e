// Package diagnostics runs the startup and on-demand self-checks and
// reports them as a structured DiagnosticReport.
package diagnostics

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthware/concierge/internal/breaker"
	"github.com/hearthware/concierge/internal/config"
	"github.com/hearthware/concierge/internal/plugins"
	"github.com/hearthware/concierge/internal/store"
	"github.com/hearthware/concierge/pkg/models"
)

// Service runs self-diagnostics against the live components.
type Service struct {
	cfg      *config.Config
	store    store.Store
	registry *plugins.Registry
	circuit  *breaker.CircuitBreaker
}

// New creates the diagnostics service.
func New(cfg *config.Config, st store.Store, registry *plugins.Registry, cb *breaker.CircuitBreaker) *Service {
	return &Service{cfg: cfg, store: st, registry: registry, circuit: cb}
}

// Run executes all checks. Status is success when at least 80% pass,
// partial otherwise.
func (s *Service) Run(ctx context.Context) models.DiagnosticReport {
	checks := map[string]bool{
		"config_consistency": s.cfg.Validate() == nil,
		"store_reachable":    s.store.Ping(ctx) == nil,
		"plugins_loaded":     s.registry.Len() > 0,
		"cloud_connectivity": s.checkCloudConnectivity(),
		"circuit_closed":     !s.circuit.State().IsOpen,
	}

	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	confidence := float64(passed) / float64(len(checks))
	status := models.StatusSuccess
	if confidence < 0.8 {
		status = models.StatusPartial
	}

	log.Info().Interface("checks", checks).Msg("diagnostics complete")
	return models.DiagnosticReport{
		Status:     status,
		Confidence: confidence,
		Checks:     checks,
		Timestamp:  time.Now().UTC(),
	}
}

// checkCloudConnectivity dials the configured provider endpoint. Simulation
// mode (no endpoint) counts as reachable since no network is needed.
func (s *Service) checkCloudConnectivity() bool {
	if s.cfg.CloudEndpoint == "" {
		return true
	}
	u, err := url.Parse(s.cfg.CloudEndpoint)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = net.JoinHostPort(u.Hostname(), "443")
		default:
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	conn, err := net.DialTimeout("tcp", host, 1500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
