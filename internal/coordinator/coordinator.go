// Package coordinator sequences the lifecycle of one inbound text request:
// parse → tone → complexity → decide → plan → execute → style → record →
// report. Each stage runs under its own timeout through one uniform
// wrapper; any fault surfaces as a structured terminal report, never as an
// error or panic to the caller.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hearthware/concierge/internal/automation"
	"github.com/hearthware/concierge/internal/breaker"
	"github.com/hearthware/concierge/internal/metrics"
	"github.com/hearthware/concierge/internal/nlp"
	"github.com/hearthware/concierge/internal/permissions"
	"github.com/hearthware/concierge/internal/persona"
	"github.com/hearthware/concierge/internal/ratelimit"
	"github.com/hearthware/concierge/internal/reasoning"
	"github.com/hearthware/concierge/internal/routing"
	"github.com/hearthware/concierge/internal/store"
	"github.com/hearthware/concierge/internal/workerpool"
	"github.com/hearthware/concierge/pkg/models"
)

const tracerName = "concierge/coordinator"

// ErrRateLimited is returned by StreamText when the request-tier limiter
// rejects the call before any stage runs.
var ErrRateLimited = errors.New("coordinator: request rate limit exceeded")

// Coordinator orchestrates the per-request pipeline. All shared state
// (breaker, limiters) is injected and internally synchronized; everything
// else is owned by the request being handled.
type Coordinator struct {
	mode           models.Mode
	classifier     *nlp.Classifier
	toneDetector   persona.ToneDetector
	personality    persona.Personality
	reasoner       *reasoning.Engine
	decider        routing.DecisionEngine
	executor       *automation.Executor
	permissions    *permissions.Manager
	circuit        *breaker.CircuitBreaker
	requestLimiter *ratelimit.SlidingWindowLimiter
	pool           *workerpool.Pool
	store          store.Store
	requestTimeout time.Duration
}

// Options wires the coordinator's collaborators.
type Options struct {
	Mode           models.Mode
	Classifier     *nlp.Classifier
	Personality    persona.Personality
	Reasoner       *reasoning.Engine
	Executor       *automation.Executor
	Permissions    *permissions.Manager
	Circuit        *breaker.CircuitBreaker
	RequestLimiter *ratelimit.SlidingWindowLimiter
	Pool           *workerpool.Pool
	Store          store.Store
	RequestTimeout time.Duration
}

// New creates a request coordinator.
func New(opts Options) *Coordinator {
	return &Coordinator{
		mode:           opts.Mode,
		classifier:     opts.Classifier,
		personality:    opts.Personality,
		reasoner:       opts.Reasoner,
		decider:        routing.DecisionEngine{},
		executor:       opts.Executor,
		permissions:    opts.Permissions,
		circuit:        opts.Circuit,
		requestLimiter: opts.RequestLimiter,
		pool:           opts.Pool,
		store:          opts.Store,
		requestTimeout: opts.RequestTimeout,
	}
}

// HandleText runs the full lifecycle for one request. It never returns an
// error and never panics: every fault is converted into a terminal report.
func (c *Coordinator) HandleText(ctx context.Context, text string) models.ExecutionReport {
	if !c.requestLimiter.Allow() {
		metrics.RateLimitRejections.WithLabelValues("request").Inc()
		report := c.terminalReport(uuid.NewString(), time.Now().UTC(), "",
			models.FailedResult(models.CodeRequestRateLimit, "Request rate limit exceeded."))
		metrics.RequestsTotal.WithLabelValues(string(report.Status), string(report.Route)).Inc()
		return report
	}
	return c.handle(ctx, text)
}

// handle runs the pipeline for a request that already passed the request
// limiter. Both entry points funnel through here so the limiter slot is
// consumed exactly once.
func (c *Coordinator) handle(ctx context.Context, text string) (report models.ExecutionReport) {
	correlationID := uuid.NewString()
	startedAt := time.Now().UTC()

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "handle_text", trace.WithAttributes(
		attribute.String("correlation_id", correlationID),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("correlation_id", correlationID).Interface("panic", r).Msg("request handling crashed")
			report = c.terminalReport(correlationID, startedAt, "", models.FailedResult(
				models.CodeHandleTextFailure, "Request handling failed.",
			))
		}
		metrics.RequestsTotal.WithLabelValues(string(report.Status), string(report.Route)).Inc()
	}()

	// Parse intent off the caller's goroutine.
	intent, err := runStage(ctx, c, "parse", func(stageCtx context.Context) (models.IntentResult, error) {
		return workerpool.RunCPU(stageCtx, c.pool, func() (models.IntentResult, error) {
			return c.classifier.Parse(text), nil
		})
	})
	if err != nil {
		return c.terminalReport(correlationID, startedAt, "", c.stageFailure("parse", err))
	}

	// Tone detection is cheap; run it inline.
	tone := c.toneDetector.Detect(text)
	signals := c.toneDetector.DetectSignals(text)

	complexity, err := runStage(ctx, c, "complexity", func(stageCtx context.Context) (float64, error) {
		return workerpool.RunCPU(stageCtx, c.pool, func() (float64, error) {
			return c.reasoner.EstimateComplexity(text, intent), nil
		})
	})
	if err != nil {
		return c.terminalReport(correlationID, startedAt, "", c.stageFailure("complexity", err))
	}

	decision := c.decider.Decide(
		c.mode,
		intent,
		c.permissions.IsSensitiveIntent(intent.Intent),
		complexity,
		c.circuit.State(),
	)
	span.SetAttributes(
		attribute.String("intent", intent.Intent),
		attribute.String("route", string(decision.Route)),
		attribute.String("reason", decision.Reason),
	)

	// Planning may call the cloud router, so it runs as I/O work.
	plan, err := runStage(ctx, c, "plan", func(stageCtx context.Context) (models.ReasoningResult, error) {
		return workerpool.RunIO(stageCtx, c.pool, func(ioCtx context.Context) (models.ReasoningResult, error) {
			return c.reasoner.CreatePlan(ioCtx, text, intent, decision.Route), nil
		})
	})
	if err != nil {
		return c.terminalReport(correlationID, startedAt, decision.Route, c.stageFailure("plan", err))
	}
	if plan.Status == models.StatusFailed {
		result := models.FailedResult(models.CodeNoResponse, "Planning produced no executable result.")
		if plan.Error != nil {
			result.Error = plan.Error
			result.Message = plan.Error.Message
		}
		return c.terminalReport(correlationID, startedAt, decision.Route, result)
	}

	result, err := runStage(ctx, c, "execute", func(stageCtx context.Context) (models.ActionResult, error) {
		return workerpool.RunIO(stageCtx, c.pool, func(ioCtx context.Context) (models.ActionResult, error) {
			return c.executor.ExecutePlan(ioCtx, plan), nil
		})
	})
	if err != nil {
		return c.terminalReport(correlationID, startedAt, decision.Route, c.stageFailure("execute", err))
	}

	// Post-hoc amendment: the coordinator is the single writer of the
	// ActionResult between executor return and persistence.
	if result.Status == models.StatusSuccess {
		result.Message = c.personality.ApplyStyle(result.Message, tone)
	}
	if result.Metadata == nil {
		result.Metadata = make(map[string]interface{})
	}
	result.Metadata["tone"] = tone
	result.Metadata["urgent"] = signals.Urgent
	result.Metadata["stressed"] = signals.Stressed

	c.recordInteraction(text, intent, result)

	return c.terminalReport(correlationID, startedAt, decision.Route, result)
}

// StreamText mirrors HandleText for open-ended queries but returns the
// generated response as a sequence of growing prefixes. It is governed the
// same way: the request limiter is checked first and parse/complexity run
// under the per-stage budget. Automation intents fall back to the regular
// pipeline and stream the final message as one chunk.
func (c *Coordinator) StreamText(ctx context.Context, text string) (<-chan string, models.Decision, error) {
	if !c.requestLimiter.Allow() {
		metrics.RateLimitRejections.WithLabelValues("request").Inc()
		return nil, models.Decision{}, ErrRateLimited
	}

	intent, err := runStage(ctx, c, "parse", func(stageCtx context.Context) (models.IntentResult, error) {
		return workerpool.RunCPU(stageCtx, c.pool, func() (models.IntentResult, error) {
			return c.classifier.Parse(text), nil
		})
	})
	if err != nil {
		return nil, models.Decision{}, err
	}
	complexity, err := runStage(ctx, c, "complexity", func(stageCtx context.Context) (float64, error) {
		return workerpool.RunCPU(stageCtx, c.pool, func() (float64, error) {
			return c.reasoner.EstimateComplexity(text, intent), nil
		})
	})
	if err != nil {
		return nil, models.Decision{}, err
	}
	decision := c.decider.Decide(
		c.mode,
		intent,
		c.permissions.IsSensitiveIntent(intent.Intent),
		complexity,
		c.circuit.State(),
	)

	switch intent.Intent {
	case "open_app", "close_app", "create_reminder":
		out := make(chan string, 1)
		report := c.handle(ctx, text) // limiter slot already consumed above
		out <- report.Message
		close(out)
		return out, decision, nil
	}

	tone := c.toneDetector.Detect(text)
	src := c.reasoner.Stream(ctx, text, decision.Route)
	out := make(chan string)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("stream handling crashed")
			}
		}()

		var final string
		for chunk := range src {
			final = chunk
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		c.recordInteraction(text, intent, models.ActionResult{
			Status:     models.StatusSuccess,
			Confidence: intent.Confidence,
			Message:    final,
			Metadata:   map[string]interface{}{"tone": tone, "streamed": true},
			Timestamp:  time.Now().UTC(),
		})
	}()
	return out, decision, nil
}

// runStage applies the uniform per-stage contract: its own timeout budget,
// a child span, and a latency observation.
func runStage[T any](ctx context.Context, c *Coordinator, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	stageCtx, span := otel.Tracer(tracerName).Start(stageCtx, fmt.Sprintf("stage.%s", name))
	defer span.End()

	start := time.Now()
	out, err := fn(stageCtx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return out, err
}

// stageFailure converts a stage error into the terminal ActionResult for
// the request: Timeout for deadline, Cancelled for caller aborts,
// HANDLE_TEXT_FAILURE for anything unexpected.
func (c *Coordinator) stageFailure(stage string, err error) models.ActionResult {
	now := time.Now().UTC()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Str("stage", stage).Msg("stage timed out")
		return models.ActionResult{
			Status:  models.StatusTimeout,
			Message: fmt.Sprintf("Stage %s timed out.", stage),
			Error: &models.ErrorInfo{
				Code:        models.CodeStageTimeout,
				Message:     fmt.Sprintf("stage %s exceeded its budget", stage),
				Recoverable: true,
			},
			Timestamp: now,
		}
	case errors.Is(err, context.Canceled):
		return models.ActionResult{
			Status:  models.StatusCancelled,
			Message: "Request cancelled.",
			Error: &models.ErrorInfo{
				Code:        models.CodeCancelled,
				Message:     "request cancelled by caller",
				Recoverable: false,
			},
			Timestamp: now,
		}
	default:
		log.Error().Str("stage", stage).Err(err).Msg("stage failed unexpectedly")
		return models.FailedResult(models.CodeHandleTextFailure, "Request handling failed.")
	}
}

// recordInteraction persists the outcome; store errors are logged, never
// surfaced.
func (c *Coordinator) recordInteraction(text string, intent models.IntentResult, result models.ActionResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.store.RecordInteraction(ctx, &models.Interaction{
		Text:   text,
		Intent: intent.Intent,
		Result: result,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to record interaction")
	}
	if tone, ok := result.Metadata["tone"].(string); ok {
		if err := c.store.SetPreference(ctx, "last_tone", tone); err != nil {
			log.Warn().Err(err).Msg("failed to record tone preference")
		}
	}
}

// terminalReport assembles the write-once report for a finished request.
func (c *Coordinator) terminalReport(correlationID string, startedAt time.Time, route models.Route, result models.ActionResult) models.ExecutionReport {
	report := models.ExecutionReport{
		Status:        result.Status,
		Confidence:    result.Confidence,
		CorrelationID: correlationID,
		Route:         route,
		Message:       result.Message,
		Metadata:      result.Metadata,
		Error:         result.Error,
		StartedAt:     startedAt,
		FinishedAt:    time.Now().UTC(),
	}
	log.Info().
		Str("correlation_id", correlationID).
		Str("status", string(report.Status)).
		Str("route", string(route)).
		Dur("duration", report.FinishedAt.Sub(startedAt)).
		Msg("request finished")
	return report
}
