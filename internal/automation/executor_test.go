package automation_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthware/concierge/internal/automation"
	"github.com/hearthware/concierge/internal/boundary"
	"github.com/hearthware/concierge/internal/journal"
	"github.com/hearthware/concierge/internal/permissions"
	"github.com/hearthware/concierge/internal/plugins"
	"github.com/hearthware/concierge/internal/ratelimit"
	"github.com/hearthware/concierge/pkg/models"
)

type fixture struct {
	exec     *automation.Executor
	journal  *journal.Journal
	registry *plugins.Registry
}

func newFixture(t *testing.T, opts permissions.Options, autoLimit, pluginLimit int) *fixture {
	t.Helper()
	if opts.Mode == "" {
		opts.Mode = models.ModeHybrid
	}
	perms, err := permissions.NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	eb := boundary.New(zerolog.Nop())
	jrnl := journal.New()
	registry := plugins.NewRegistry(nil, eb)
	exec := automation.NewExecutor(
		perms, jrnl, eb, registry,
		200*time.Millisecond,
		ratelimit.New(autoLimit, time.Minute),
		ratelimit.New(pluginLimit, time.Minute),
	)
	return &fixture{exec: exec, journal: jrnl, registry: registry}
}

func pluginPlan(name, payload string) models.ReasoningResult {
	return models.ReasoningResult{
		Status:     models.StatusSuccess,
		Confidence: 0.82,
		Steps:      []models.Step{{Type: models.StepPlugin, Name: name, Payload: payload}},
	}
}

func TestAutomationRateLimitCheckedFirst(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 1, 10)

	// Consume the single automation slot.
	f.exec.ExecutePlan(context.Background(), models.ReasoningResult{})

	// The second plan is rejected before its steps are inspected, so even a
	// plan full of unknown plugins reports the automation tier.
	res := f.exec.ExecutePlan(context.Background(), pluginPlan("ghost", "x"))
	if res.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if res.Error == nil || res.Error.Code != models.CodeAutomationRateLimit {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodeAutomationRateLimit)
	}
}

func TestEmptyPlanReportsNoSteps(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	res := f.exec.ExecutePlan(context.Background(), models.ReasoningResult{Status: models.StatusSuccess})
	if res.Error == nil || res.Error.Code != models.CodeNoSteps {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodeNoSteps)
	}
}

func TestResponseStepVerbatim(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	plan := models.ReasoningResult{
		Status:     models.StatusSuccess,
		Confidence: 0.48,
		Steps:      []models.Step{{Type: models.StepResponse, Message: "here is your answer"}},
	}
	res := f.exec.ExecutePlan(context.Background(), plan)
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %q, error = %+v", res.Status, res.Error)
	}
	if res.Message != "here is your answer" {
		t.Fatalf("message = %q, want step message verbatim", res.Message)
	}
	if res.Confidence != 0.48 {
		t.Fatalf("confidence = %v, want plan confidence 0.48", res.Confidence)
	}
}

func TestPluginNotFound(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	res := f.exec.ExecutePlan(context.Background(), pluginPlan("ghost", "x"))
	if res.Error == nil || res.Error.Code != models.CodePluginNotFound {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodePluginNotFound)
	}
}

func TestPluginRateLimitBeforeExistence(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 1)

	// Spend the plugin budget on a real plugin.
	f.exec.ExecutePlan(context.Background(), pluginPlan("smart_reminders", "remind me"))

	// An unknown plugin past the limit reports the rate limit, not NOT_FOUND.
	res := f.exec.ExecutePlan(context.Background(), pluginPlan("ghost", "x"))
	if res.Error == nil || res.Error.Code != models.CodePluginRateLimit {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodePluginRateLimit)
	}
}

func TestPluginBlockedByPolicy(t *testing.T) {
	f := newFixture(t, permissions.Options{BlockedPlugins: []string{"weather"}}, 10, 10)

	res := f.exec.ExecutePlan(context.Background(), pluginPlan("weather", "weather in Oslo"))
	if res.Error == nil || res.Error.Code != models.CodePluginBlocked {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodePluginBlocked)
	}
}

func TestPluginSuccess(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	res := f.exec.ExecutePlan(context.Background(), pluginPlan("smart_reminders", "remind me to stretch"))
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %q, error = %+v", res.Status, res.Error)
	}
	if res.Message != "Reminder saved." {
		t.Fatalf("message = %q", res.Message)
	}
	if res.Confidence != 0.7 {
		t.Fatalf("confidence = %v, want 0.7", res.Confidence)
	}
	if res.Metadata["plugin"] != "smart_reminders" {
		t.Fatalf("metadata = %+v", res.Metadata)
	}
}

type hangingPlugin struct{}

func (hangingPlugin) Name() string                 { return "tarpit" }
func (hangingPlugin) Initialize() error            { return nil }
func (hangingPlugin) CanHandle(command string) bool { return true }
func (hangingPlugin) Handle(ctx context.Context, payload string, meta map[string]interface{}) (plugins.Outcome, error) {
	time.Sleep(10 * time.Second) // deliberately ignores ctx
	return plugins.Outcome{Success: true}, nil
}

func TestHungPluginBoundedByTimeout(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)
	f.registry.Register(hangingPlugin{})

	start := time.Now()
	res := f.exec.ExecutePlan(context.Background(), pluginPlan("tarpit", "x"))
	elapsed := time.Since(start)

	if res.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if res.Error == nil || res.Error.Code != models.CodePluginExecution {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodePluginExecution)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("executor blocked %s on a hung plugin", elapsed)
	}
}

type panickyPlugin struct{}

func (panickyPlugin) Name() string                 { return "grenade" }
func (panickyPlugin) Initialize() error            { return nil }
func (panickyPlugin) CanHandle(command string) bool { return true }
func (panickyPlugin) Handle(ctx context.Context, payload string, meta map[string]interface{}) (plugins.Outcome, error) {
	panic("boom")
}

func TestPanickingPluginContained(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)
	f.registry.Register(panickyPlugin{})

	res := f.exec.ExecutePlan(context.Background(), pluginPlan("grenade", "x"))
	if res.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if res.Error == nil || res.Error.Code != models.CodePluginExecution {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodePluginExecution)
	}
}

func TestOpenAppBlockedByPolicy(t *testing.T) {
	f := newFixture(t, permissions.Options{BlockedCommands: []string{"terminal"}}, 10, 10)

	plan := models.ReasoningResult{
		Status: models.StatusSuccess,
		Steps:  []models.Step{{Type: models.StepSystem, Intent: "open_app", Text: "open terminal"}},
	}
	res := f.exec.ExecutePlan(context.Background(), plan)
	if res.Error == nil || res.Error.Code != models.CodePolicyBlock {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodePolicyBlock)
	}
	if len(f.journal.Entries()) != 0 {
		t.Fatal("blocked action was journaled")
	}
}

func TestOpenAppLaunchesAndJournals(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	plan := models.ReasoningResult{
		Status: models.StatusSuccess,
		Steps:  []models.Step{{Type: models.StepSystem, Intent: "open_app", Text: "open true"}},
	}
	res := f.exec.ExecutePlan(context.Background(), plan)
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %q, error = %+v", res.Status, res.Error)
	}
	if res.Message != "Opened true." {
		t.Fatalf("message = %q", res.Message)
	}

	entries := f.journal.Entries()
	if len(entries) != 1 || entries[0].Action != "open_app" || !entries[0].Reversible {
		t.Fatalf("journal entries = %+v, want one reversible open_app", entries)
	}
}

func TestOpenAppLaunchFailure(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	plan := models.ReasoningResult{
		Status: models.StatusSuccess,
		Steps:  []models.Step{{Type: models.StepSystem, Intent: "open_app", Text: "open no-such-binary-0b5c7d"}},
	}
	res := f.exec.ExecutePlan(context.Background(), plan)
	if res.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	// A launch error is a dependency failure, not a policy rejection.
	if res.Error == nil || res.Error.Code != models.CodeExecutionFailure {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodeExecutionFailure)
	}
	if len(f.journal.Entries()) != 0 {
		t.Fatal("failed launch was journaled")
	}
}

func TestOpenAppRollback(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	plan := models.ReasoningResult{
		Status: models.StatusSuccess,
		Steps:  []models.Step{{Type: models.StepSystem, Intent: "open_app", Text: "open sleep"}},
	}
	if res := f.exec.ExecutePlan(context.Background(), plan); res.Status != models.StatusSuccess {
		t.Fatalf("open_app = %+v", res)
	}

	// The launch registered a rollback handler that terminates the process.
	if !f.journal.RollbackLast() {
		t.Fatal("RollbackLast() = false after open_app")
	}
	if f.journal.RollbackLast() {
		t.Fatal("RollbackLast() = true with the stack drained")
	}
}

func TestCloseAppAcknowledged(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	plan := models.ReasoningResult{
		Status: models.StatusSuccess,
		Steps:  []models.Step{{Type: models.StepSystem, Intent: "close_app", Text: "close the editor"}},
	}
	res := f.exec.ExecutePlan(context.Background(), plan)
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %q, error = %+v", res.Status, res.Error)
	}
	if res.Message != "Close app action acknowledged." {
		t.Fatalf("message = %q", res.Message)
	}

	entries := f.journal.Entries()
	if len(entries) != 1 || entries[0].Action != "close_app" || entries[0].Reversible {
		t.Fatalf("journal entries = %+v, want one non-reversible close_app", entries)
	}
}

func TestUnsupportedSystemIntent(t *testing.T) {
	f := newFixture(t, permissions.Options{}, 10, 10)

	plan := models.ReasoningResult{
		Status: models.StatusSuccess,
		Steps:  []models.Step{{Type: models.StepSystem, Intent: "reboot_moon_base", Text: "x"}},
	}
	res := f.exec.ExecutePlan(context.Background(), plan)
	if res.Error == nil || res.Error.Code != models.CodeUnsupportedIntent {
		t.Fatalf("error = %+v, want %s", res.Error, models.CodeUnsupportedIntent)
	}
}
