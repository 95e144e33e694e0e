// Package plugins provides the sandboxed plugin capability consumed by the
// automation executor.
//
// Plugins are compiled in and enabled through a YAML manifest loaded at
// startup; there is no runtime code loading. Each plugin's Initialize runs
// inside the error boundary so one bad plugin cannot block the rest of the
// registry.
package plugins

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/hearthware/concierge/internal/boundary"
	"github.com/hearthware/concierge/pkg/models"
)

// Outcome is the structured result of one plugin invocation.
type Outcome struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Plugin is the capability interface every plugin implements. Handle must
// honor ctx cancellation and must not corrupt shared state on failure.
type Plugin interface {
	Name() string
	Initialize() error
	CanHandle(command string) bool
	Handle(ctx context.Context, payload string, meta map[string]interface{}) (Outcome, error)
}

// Manifest describes which plugins to enable at startup.
type Manifest struct {
	Plugins []ManifestEntry `yaml:"plugins"`
}

// ManifestEntry is one plugin line in the manifest.
type ManifestEntry struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// LoadManifest reads the plugin manifest from path. A missing file enables
// every built-in plugin.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Registry holds the initialized plugins, keyed by name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry initializes the built-in plugins selected by manifest (all of
// them when manifest is nil). Initialization faults are contained per
// plugin by eb: a plugin that fails to initialize is skipped, not fatal.
func NewRegistry(manifest *Manifest, eb *boundary.Boundary) *Registry {
	enabled := func(name string) bool { return true }
	if manifest != nil {
		set := make(map[string]bool, len(manifest.Plugins))
		for _, e := range manifest.Plugins {
			set[e.Name] = e.Enabled
		}
		enabled = func(name string) bool { return set[name] }
	}

	r := &Registry{plugins: make(map[string]Plugin)}
	for _, p := range builtins() {
		if !enabled(p.Name()) {
			continue
		}
		plugin := p
		ok := boundary.SafeCall(eb, func() (bool, error) {
			if err := plugin.Initialize(); err != nil {
				return false, err
			}
			return true, nil
		}, func(models.ErrorInfo) bool { return false })
		if !ok {
			log.Warn().Str("plugin", plugin.Name()).Msg("plugin failed to initialize, skipping")
			continue
		}
		r.plugins[plugin.Name()] = plugin
		log.Info().Str("plugin", plugin.Name()).Msg("plugin registered")
	}
	return r
}

// Register adds or replaces a plugin. Intended for embedding callers that
// ship their own capabilities beyond the built-in set.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Names lists registered plugin names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for n := range r.plugins {
		names = append(names, n)
	}
	return names
}

// Len reports how many plugins are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}
