// Package automation executes reasoning plans: response steps, in-process
// system actions, and plugin invocations under per-call timeout, rate
// limit, and permission checks.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthware/concierge/internal/boundary"
	"github.com/hearthware/concierge/internal/journal"
	"github.com/hearthware/concierge/internal/metrics"
	"github.com/hearthware/concierge/internal/permissions"
	"github.com/hearthware/concierge/internal/plugins"
	"github.com/hearthware/concierge/internal/ratelimit"
	"github.com/hearthware/concierge/pkg/models"
)

// Executor runs one plan at a time on behalf of the coordinator. Plans are
// expected to contain a single actionable step; only the first recognized
// step type is executed.
type Executor struct {
	permissions   *permissions.Manager
	journal       *journal.Journal
	boundary      *boundary.Boundary
	registry      *plugins.Registry
	pluginTimeout time.Duration
	autoLimiter   *ratelimit.SlidingWindowLimiter
	pluginLimiter *ratelimit.SlidingWindowLimiter
}

// NewExecutor creates the automation executor.
func NewExecutor(
	perms *permissions.Manager,
	jrnl *journal.Journal,
	eb *boundary.Boundary,
	registry *plugins.Registry,
	pluginTimeout time.Duration,
	autoLimiter, pluginLimiter *ratelimit.SlidingWindowLimiter,
) *Executor {
	return &Executor{
		permissions:   perms,
		journal:       jrnl,
		boundary:      eb,
		registry:      registry,
		pluginTimeout: pluginTimeout,
		autoLimiter:   autoLimiter,
		pluginLimiter: pluginLimiter,
	}
}

// ExecutePlan executes plan and returns a structured result. The
// automation-tier limiter is checked before any step is inspected.
func (e *Executor) ExecutePlan(ctx context.Context, plan models.ReasoningResult) models.ActionResult {
	if !e.autoLimiter.Allow() {
		metrics.RateLimitRejections.WithLabelValues("automation").Inc()
		return models.FailedResult(models.CodeAutomationRateLimit, "Automation rate limit exceeded.")
	}

	for _, step := range plan.Steps {
		switch step.Type {
		case models.StepResponse:
			return models.ActionResult{
				Status:     models.StatusSuccess,
				Confidence: plan.Confidence,
				Message:    step.Message,
				Metadata:   map[string]interface{}{"kind": "response"},
				Timestamp:  time.Now().UTC(),
			}
		case models.StepSystem:
			return e.executeSystem(step)
		case models.StepPlugin:
			return e.executePlugin(ctx, step)
		}
	}

	return models.FailedResult(models.CodeNoSteps, "Plan contained no executable steps.")
}

// executeSystem runs an in-process system action.
func (e *Executor) executeSystem(step models.Step) models.ActionResult {
	switch step.Intent {
	case "open_app":
		fields := strings.Fields(step.Text)
		if len(fields) == 0 {
			return models.FailedResult(models.CodePolicyBlock, "No target program named.")
		}
		app := fields[len(fields)-1]
		if !e.permissions.IsCommandAllowed(app) {
			return models.FailedResult(models.CodePolicyBlock, "Blocked by command policy.")
		}
		cmd := exec.Command(app)
		if err := cmd.Start(); err != nil {
			return models.FailedResult(models.CodeExecutionFailure, fmt.Sprintf("Failed to launch %s.", app))
		}
		e.journal.Record("open_app", map[string]interface{}{"app": app}, true)
		e.journal.RegisterRollback(processRollback{cmd: cmd})
		log.Info().Str("app", app).Msg("opened app")
		return models.ActionResult{
			Status:     models.StatusSuccess,
			Confidence: 0.8,
			Message:    fmt.Sprintf("Opened %s.", app),
			Timestamp:  time.Now().UTC(),
		}

	case "close_app":
		// Acknowledged no-op: we journal the request but do not terminate
		// anything. Turning this into real process termination is a product
		// decision, not an inference to make here.
		e.journal.Record("close_app", map[string]interface{}{"text": step.Text}, false)
		return models.ActionResult{
			Status:     models.StatusSuccess,
			Confidence: 0.75,
			Message:    "Close app action acknowledged.",
			Timestamp:  time.Now().UTC(),
		}
	}

	return models.FailedResult(models.CodeUnsupportedIntent, fmt.Sprintf("Unsupported system intent: %s", step.Intent))
}

// processRollback undoes an open_app by terminating the launched process.
type processRollback struct {
	cmd *exec.Cmd
}

// Rollback kills the process. A process that already exited counts as
// rolled back.
func (p processRollback) Rollback() bool {
	if p.cmd.Process == nil {
		return false
	}
	err := p.cmd.Process.Kill()
	go p.cmd.Wait() // reap
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		log.Info().Int("pid", p.cmd.Process.Pid).Msg("rolled back launched process")
		return true
	}
	log.Warn().Int("pid", p.cmd.Process.Pid).Err(err).Msg("process rollback failed")
	return false
}

// executePlugin invokes a plugin step. Check order is externally
// observable and pinned by tests: rate limit, then existence, then policy.
func (e *Executor) executePlugin(ctx context.Context, step models.Step) models.ActionResult {
	log.Info().Str("plugin", step.Name).Msg("plugin execute start")

	if !e.pluginLimiter.Allow() {
		metrics.RateLimitRejections.WithLabelValues("plugin").Inc()
		return models.FailedResult(models.CodePluginRateLimit, "Plugin rate limit exceeded.")
	}

	plugin, ok := e.registry.Get(step.Name)
	if !ok {
		return models.FailedResult(models.CodePluginNotFound, fmt.Sprintf("Plugin '%s' not found.", step.Name))
	}

	if !e.permissions.IsPluginAllowed(step.Name) {
		return models.FailedResult(models.CodePluginBlocked, fmt.Sprintf("Plugin '%s' blocked by policy.", step.Name))
	}

	outcome := e.invokeIsolated(ctx, plugin, step)

	label := "success"
	if !outcome.Success {
		label = "failure"
	}
	metrics.PluginExecutions.WithLabelValues(step.Name, label).Inc()
	log.Info().Str("plugin", step.Name).Bool("success", outcome.Success).Msg("plugin execute finish")

	result := models.ActionResult{
		Status:     models.StatusSuccess,
		Confidence: 0.7,
		Message:    outcome.Message,
		Metadata:   map[string]interface{}{"plugin": step.Name, "plugin_result": outcome},
		Timestamp:  time.Now().UTC(),
	}
	if !outcome.Success {
		result.Status = models.StatusFailed
		result.Confidence = 0
		result.Error = &models.ErrorInfo{
			Code:        models.CodePluginExecution,
			Message:     outcome.Message,
			Recoverable: true,
		}
	}
	if result.Message == "" {
		result.Message = "Plugin execution completed."
	}
	return result
}

// invokeIsolated runs the plugin handler in its own goroutine bounded by
// the plugin timeout, so a hung handler cannot starve the shared pool. Any
// panic, error, or timeout is contained by the error boundary and surfaces
// as a failed outcome.
func (e *Executor) invokeIsolated(ctx context.Context, plugin plugins.Plugin, step models.Step) plugins.Outcome {
	return boundary.SafeCall(e.boundary, func() (plugins.Outcome, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.pluginTimeout)
		defer cancel()

		type handled struct {
			outcome plugins.Outcome
			err     error
		}
		done := make(chan handled, 1)
		go func() {
			out, err := plugin.Handle(callCtx, step.Payload, map[string]interface{}{"step": step})
			done <- handled{out, err}
		}()

		select {
		case h := <-done:
			return h.outcome, h.err
		case <-callCtx.Done():
			return plugins.Outcome{}, fmt.Errorf("plugin %s: %w", plugin.Name(), callCtx.Err())
		}
	}, func(info models.ErrorInfo) plugins.Outcome {
		return plugins.Outcome{Success: false, Message: info.Message}
	})
}
