// Package config loads and validates the Concierge service configuration
// from environment variables. Out-of-range values are rejected at startup
// rather than clamped, so a misconfigured deployment fails loudly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hearthware/concierge/pkg/models"
)

// Config holds all configuration for the Concierge service.
type Config struct {
	Port    int
	Version string

	Mode models.Mode

	// Worker pool
	MaxWorkers int

	// Timeouts
	RequestTimeout  time.Duration
	PluginTimeout   time.Duration
	ProviderTimeout time.Duration

	// Rate limits, per tier
	Limits LimitsConfig

	// Circuit breaker
	CircuitFailureThreshold int
	CircuitCooldown         time.Duration

	// Cloud provider
	CloudEndpoint string
	CloudProvider string

	// Persona
	PersonalityLevel float64
	FormalMode       bool

	// Policy
	BlockedCommands []string
	BlockedPlugins  []string
	DenyRules       []string

	// Plugins
	PluginManifestPath string

	Database  DatabaseConfig
	Telemetry TelemetryConfig
}

// LimitsConfig is the per-tier rate limit table. Each tier allows Limit
// events per trailing Window.
type LimitsConfig struct {
	RequestLimit     int
	RequestWindow    time.Duration
	AutomationLimit  int
	AutomationWindow time.Duration
	PluginLimit      int
	PluginWindow     time.Duration
	CloudLimit       int
	CloudWindow      time.Duration
}

type DatabaseConfig struct {
	// URL enables the PostgreSQL store when non-empty; otherwise the
	// in-memory store is used.
	URL string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("CONCIERGE_PORT", 8080),
		Version: envStr("CONCIERGE_VERSION", "0.2.0"),

		Mode: models.Mode(envStr("CONCIERGE_MODE", string(models.ModeHybrid))),

		MaxWorkers: envInt("CONCIERGE_MAX_WORKERS", 4),

		RequestTimeout:  envDur("CONCIERGE_REQUEST_TIMEOUT", 10*time.Second),
		PluginTimeout:   envDur("CONCIERGE_PLUGIN_TIMEOUT", 5*time.Second),
		ProviderTimeout: envDur("CONCIERGE_PROVIDER_TIMEOUT", 8*time.Second),

		Limits: LimitsConfig{
			RequestLimit:     envInt("CONCIERGE_REQUEST_LIMIT", 60),
			RequestWindow:    envDur("CONCIERGE_REQUEST_WINDOW", time.Minute),
			AutomationLimit:  envInt("CONCIERGE_AUTOMATION_LIMIT", 30),
			AutomationWindow: envDur("CONCIERGE_AUTOMATION_WINDOW", time.Minute),
			PluginLimit:      envInt("CONCIERGE_PLUGIN_LIMIT", 20),
			PluginWindow:     envDur("CONCIERGE_PLUGIN_WINDOW", time.Minute),
			CloudLimit:       envInt("CONCIERGE_CLOUD_LIMIT", 30),
			CloudWindow:      envDur("CONCIERGE_CLOUD_WINDOW", time.Minute),
		},

		CircuitFailureThreshold: envInt("CONCIERGE_CIRCUIT_THRESHOLD", 3),
		CircuitCooldown:         envDur("CONCIERGE_CIRCUIT_COOLDOWN", 30*time.Second),

		CloudEndpoint: envStr("CONCIERGE_CLOUD_ENDPOINT", ""),
		CloudProvider: envStr("CONCIERGE_CLOUD_PROVIDER", "openai"),

		PersonalityLevel: envFloat("CONCIERGE_PERSONALITY_LEVEL", 0.5),
		FormalMode:       envBool("CONCIERGE_FORMAL_MODE", true),

		BlockedCommands: envList("CONCIERGE_BLOCKED_COMMANDS"),
		BlockedPlugins:  envList("CONCIERGE_BLOCKED_PLUGINS"),
		DenyRules:       envRules("CONCIERGE_DENY_RULES"),

		PluginManifestPath: envStr("CONCIERGE_PLUGIN_MANIFEST", "plugins.yaml"),

		Database: DatabaseConfig{
			URL: envStr("CONCIERGE_DATABASE_URL", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "concierge"),
		},
	}
}

// Validate rejects out-of-range configuration. Called once at startup.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.MaxWorkers < 1 || c.MaxWorkers > 64 {
		return fmt.Errorf("max workers %d outside [1,64]", c.MaxWorkers)
	}
	for name, d := range map[string]time.Duration{
		"request timeout":  c.RequestTimeout,
		"plugin timeout":   c.PluginTimeout,
		"provider timeout": c.ProviderTimeout,
		"circuit cooldown": c.CircuitCooldown,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	for name, n := range map[string]int{
		"request limit":    c.Limits.RequestLimit,
		"automation limit": c.Limits.AutomationLimit,
		"plugin limit":     c.Limits.PluginLimit,
		"cloud limit":      c.Limits.CloudLimit,
	} {
		if n < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, n)
		}
	}
	for name, w := range map[string]time.Duration{
		"request window":    c.Limits.RequestWindow,
		"automation window": c.Limits.AutomationWindow,
		"plugin window":     c.Limits.PluginWindow,
		"cloud window":      c.Limits.CloudWindow,
	} {
		if w <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, w)
		}
	}
	if c.CircuitFailureThreshold < 1 {
		return fmt.Errorf("circuit failure threshold must be at least 1, got %d", c.CircuitFailureThreshold)
	}
	if c.PersonalityLevel < 0 || c.PersonalityLevel > 1 {
		return fmt.Errorf("personality level %g outside [0,1]", c.PersonalityLevel)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList parses a comma-separated list.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envRules parses semicolon-separated expr deny rules; rules may contain commas.
func envRules(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
