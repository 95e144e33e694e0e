package plugins_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hearthware/concierge/internal/boundary"
	"github.com/hearthware/concierge/internal/plugins"
)

func newBoundary() *boundary.Boundary {
	return boundary.New(zerolog.Nop())
}

func TestNilManifestEnablesAllBuiltins(t *testing.T) {
	r := plugins.NewRegistry(nil, newBoundary())

	for _, name := range []string{"smart_reminders", "system_monitor", "weather", "developer_tools"} {
		if _, ok := r.Get(name); !ok {
			t.Fatalf("builtin %q not registered", name)
		}
	}
	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}
}

func TestManifestSelectsPlugins(t *testing.T) {
	m := &plugins.Manifest{Plugins: []plugins.ManifestEntry{
		{Name: "weather", Enabled: true},
		{Name: "smart_reminders", Enabled: false},
	}}
	r := plugins.NewRegistry(m, newBoundary())

	if _, ok := r.Get("weather"); !ok {
		t.Fatal("weather not registered")
	}
	if _, ok := r.Get("smart_reminders"); ok {
		t.Fatal("disabled plugin registered")
	}
	// Plugins absent from the manifest default to disabled.
	if _, ok := r.Get("system_monitor"); ok {
		t.Fatal("unlisted plugin registered")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	raw := `plugins:
  - name: weather
    enabled: true
  - name: developer_tools
    enabled: false
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := plugins.LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if len(m.Plugins) != 2 {
		t.Fatalf("entries = %d, want 2", len(m.Plugins))
	}
	if m.Plugins[0].Name != "weather" || !m.Plugins[0].Enabled {
		t.Fatalf("entry[0] = %+v", m.Plugins[0])
	}
	if m.Plugins[1].Name != "developer_tools" || m.Plugins[1].Enabled {
		t.Fatalf("entry[1] = %+v", m.Plugins[1])
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	m, err := plugins.LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadManifest(missing) error = %v", err)
	}
	if m != nil {
		t.Fatalf("LoadManifest(missing) = %+v, want nil", m)
	}
}

func TestLoadManifestMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	if err := os.WriteFile(path, []byte("plugins: {not a list"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := plugins.LoadManifest(path); err == nil {
		t.Fatal("LoadManifest(malformed) = nil error")
	}
}

func TestRemindersPlugin(t *testing.T) {
	p := &plugins.RemindersPlugin{}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !p.CanHandle("remind me later") || p.CanHandle("open the door") {
		t.Fatal("CanHandle misclassified")
	}

	out, err := p.Handle(context.Background(), "stretch at noon", nil)
	if err != nil || !out.Success {
		t.Fatalf("Handle() = %+v, %v", out, err)
	}
	saved := p.Reminders()
	if len(saved) != 1 || saved[0].Text != "stretch at noon" {
		t.Fatalf("Reminders() = %+v", saved)
	}
}

func TestSystemMonitorPlugin(t *testing.T) {
	p := &plugins.SystemMonitorPlugin{}
	out, err := p.Handle(context.Background(), "system status", nil)
	if err != nil || !out.Success {
		t.Fatalf("Handle() = %+v, %v", out, err)
	}
	if out.Data["goroutines"].(int) < 1 {
		t.Fatalf("Data = %+v", out.Data)
	}
}

func TestDeveloperToolsAllowlist(t *testing.T) {
	p := &plugins.DeveloperToolsPlugin{}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !p.CanHandle("dev: go version") || p.CanHandle("go version") {
		t.Fatal("CanHandle misclassified")
	}

	out, err := p.Handle(context.Background(), "dev: rm -rf /", nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if out.Success {
		t.Fatal("disallowed command executed")
	}
	if !strings.Contains(out.Message, "blocked") {
		t.Fatalf("message = %q", out.Message)
	}
}

type brokenPlugin struct{}

func (brokenPlugin) Name() string                  { return "broken" }
func (brokenPlugin) Initialize() error             { return errors.New("bad wiring") }
func (brokenPlugin) CanHandle(command string) bool { return false }
func (brokenPlugin) Handle(ctx context.Context, payload string, meta map[string]interface{}) (plugins.Outcome, error) {
	return plugins.Outcome{}, nil
}

func TestRegisterReplaces(t *testing.T) {
	r := plugins.NewRegistry(nil, newBoundary())
	before := r.Len()

	r.Register(brokenPlugin{})
	if r.Len() != before+1 {
		t.Fatalf("Len() = %d, want %d", r.Len(), before+1)
	}
	if _, ok := r.Get("broken"); !ok {
		t.Fatal("registered plugin not found")
	}
}
