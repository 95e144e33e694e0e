package plugins

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// builtins returns fresh instances of every compiled-in plugin.
func builtins() []Plugin {
	return []Plugin{
		&RemindersPlugin{},
		&SystemMonitorPlugin{},
		&WeatherPlugin{},
		&DeveloperToolsPlugin{},
	}
}

// ── Reminders ───────────────────────────────────────────────

// RemindersPlugin stores simple reminders in memory.
type RemindersPlugin struct {
	mu        sync.Mutex
	reminders []Reminder
}

// Reminder is one stored reminder.
type Reminder struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *RemindersPlugin) Name() string      { return "smart_reminders" }
func (p *RemindersPlugin) Initialize() error { return nil }

func (p *RemindersPlugin) CanHandle(command string) bool {
	lower := strings.ToLower(command)
	return strings.Contains(lower, "remind") || strings.Contains(lower, "schedule")
}

func (p *RemindersPlugin) Handle(ctx context.Context, payload string, meta map[string]interface{}) (Outcome, error) {
	reminder := Reminder{Text: payload, CreatedAt: time.Now().UTC()}
	p.mu.Lock()
	p.reminders = append(p.reminders, reminder)
	p.mu.Unlock()
	return Outcome{
		Success: true,
		Message: "Reminder saved.",
		Data:    map[string]interface{}{"reminder": reminder},
	}, nil
}

// Reminders returns a copy of the stored reminders.
func (p *RemindersPlugin) Reminders() []Reminder {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Reminder, len(p.reminders))
	copy(out, p.reminders)
	return out
}

// ── System Monitor ──────────────────────────────────────────

// SystemMonitorPlugin reports basic runtime stats.
type SystemMonitorPlugin struct{}

func (p *SystemMonitorPlugin) Name() string      { return "system_monitor" }
func (p *SystemMonitorPlugin) Initialize() error { return nil }

func (p *SystemMonitorPlugin) CanHandle(command string) bool {
	lower := strings.ToLower(command)
	return strings.Contains(lower, "system") || strings.Contains(lower, "cpu")
}

func (p *SystemMonitorPlugin) Handle(ctx context.Context, payload string, meta map[string]interface{}) (Outcome, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("%d goroutines, %d MiB heap", runtime.NumGoroutine(), mem.HeapAlloc/(1<<20)),
		Data: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"heap_bytes": mem.HeapAlloc,
			"num_cpu":    runtime.NumCPU(),
		},
	}, nil
}

// ── Weather ─────────────────────────────────────────────────

// WeatherPlugin is a stub weather lookup; it echoes the query so the plugin
// execution path stays exercisable offline.
type WeatherPlugin struct{}

func (p *WeatherPlugin) Name() string      { return "weather" }
func (p *WeatherPlugin) Initialize() error { return nil }

func (p *WeatherPlugin) CanHandle(command string) bool {
	return strings.Contains(strings.ToLower(command), "weather")
}

func (p *WeatherPlugin) Handle(ctx context.Context, payload string, meta map[string]interface{}) (Outcome, error) {
	return Outcome{Success: true, Message: fmt.Sprintf("Weather plugin received: %s", payload)}, nil
}

// ── Developer Tools ─────────────────────────────────────────

// DeveloperToolsPlugin runs a small allowlisted set of dev commands.
// Payloads use the "dev:" prefix, e.g. "dev: git status".
type DeveloperToolsPlugin struct {
	allowedPrefixes []string
}

func (p *DeveloperToolsPlugin) Name() string { return "developer_tools" }

func (p *DeveloperToolsPlugin) Initialize() error {
	p.allowedPrefixes = []string{"go version", "go env", "git status"}
	return nil
}

func (p *DeveloperToolsPlugin) CanHandle(command string) bool {
	return strings.HasPrefix(strings.ToLower(command), "dev:")
}

func (p *DeveloperToolsPlugin) Handle(ctx context.Context, payload string, meta map[string]interface{}) (Outcome, error) {
	cmd := strings.TrimSpace(strings.TrimPrefix(payload, "dev:"))
	allowed := false
	for _, prefix := range p.allowedPrefixes {
		if strings.HasPrefix(cmd, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return Outcome{Success: false, Message: "Command blocked by policy."}, nil
	}

	parts := strings.Fields(cmd)
	out, err := exec.CommandContext(ctx, parts[0], parts[1:]...).CombinedOutput()
	if err != nil {
		return Outcome{Success: false, Message: strings.TrimSpace(string(out)), Data: map[string]interface{}{"error": err.Error()}}, nil
	}
	return Outcome{Success: true, Message: strings.TrimSpace(string(out))}, nil
}
