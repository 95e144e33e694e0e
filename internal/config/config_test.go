package config_test

import (
	"testing"
	"time"

	"github.com/hearthware/concierge/internal/config"
	"github.com/hearthware/concierge/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Fatalf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Mode != models.ModeHybrid {
		t.Fatalf("Mode = %q, want hybrid", cfg.Mode)
	}
	if cfg.MaxWorkers != 4 {
		t.Fatalf("MaxWorkers = %d, want 4", cfg.MaxWorkers)
	}
	if cfg.Limits.RequestLimit != 60 || cfg.Limits.RequestWindow != time.Minute {
		t.Fatalf("request tier = %d/%s", cfg.Limits.RequestLimit, cfg.Limits.RequestWindow)
	}
	if cfg.PluginManifestPath != "plugins.yaml" {
		t.Fatalf("PluginManifestPath = %q", cfg.PluginManifestPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults = %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CONCIERGE_MODE", "offline")
	t.Setenv("CONCIERGE_MAX_WORKERS", "8")
	t.Setenv("CONCIERGE_REQUEST_TIMEOUT", "2s")
	t.Setenv("CONCIERGE_BLOCKED_COMMANDS", "rm, dd")
	t.Setenv("CONCIERGE_DENY_RULES", `command in ["mkfs", "shred"]; plugin == "developer_tools"`)
	t.Setenv("CONCIERGE_PERSONALITY_LEVEL", "0.9")
	t.Setenv("CONCIERGE_FORMAL_MODE", "false")

	cfg := config.Load()

	if cfg.Mode != models.ModeOffline {
		t.Fatalf("Mode = %q", cfg.Mode)
	}
	if cfg.MaxWorkers != 8 {
		t.Fatalf("MaxWorkers = %d", cfg.MaxWorkers)
	}
	if cfg.RequestTimeout != 2*time.Second {
		t.Fatalf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if len(cfg.BlockedCommands) != 2 || cfg.BlockedCommands[0] != "rm" || cfg.BlockedCommands[1] != "dd" {
		t.Fatalf("BlockedCommands = %v", cfg.BlockedCommands)
	}
	// Deny rules split on semicolons so commas stay inside expressions.
	if len(cfg.DenyRules) != 2 || cfg.DenyRules[0] != `command in ["mkfs", "shred"]` {
		t.Fatalf("DenyRules = %v", cfg.DenyRules)
	}
	if cfg.PersonalityLevel != 0.9 || cfg.FormalMode {
		t.Fatalf("persona = %v formal=%v", cfg.PersonalityLevel, cfg.FormalMode)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"invalid mode", func(c *config.Config) { c.Mode = "turbo" }},
		{"zero workers", func(c *config.Config) { c.MaxWorkers = 0 }},
		{"too many workers", func(c *config.Config) { c.MaxWorkers = 65 }},
		{"zero request timeout", func(c *config.Config) { c.RequestTimeout = 0 }},
		{"negative plugin timeout", func(c *config.Config) { c.PluginTimeout = -time.Second }},
		{"zero request limit", func(c *config.Config) { c.Limits.RequestLimit = 0 }},
		{"zero plugin window", func(c *config.Config) { c.Limits.PluginWindow = 0 }},
		{"zero circuit threshold", func(c *config.Config) { c.CircuitFailureThreshold = 0 }},
		{"personality above one", func(c *config.Config) { c.PersonalityLevel = 1.1 }},
		{"personality below zero", func(c *config.Config) { c.PersonalityLevel = -0.1 }},
	}
	for _, tc := range cases {
		cfg := config.Load()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: Validate() = nil, want error", tc.name)
		}
	}
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("CONCIERGE_MAX_WORKERS", "many")
	t.Setenv("CONCIERGE_REQUEST_TIMEOUT", "soon")

	cfg := config.Load()
	if cfg.MaxWorkers != 4 {
		t.Fatalf("MaxWorkers = %d, want default 4", cfg.MaxWorkers)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("RequestTimeout = %s, want default 10s", cfg.RequestTimeout)
	}
}
