// Package reasoning turns classified input into an executable plan: a fixed
// rule for known automation intents, or a generated response step for
// open-ended queries.
package reasoning

import (
	"context"
	"strings"
	"time"

	"github.com/hearthware/concierge/internal/nlp"
	"github.com/hearthware/concierge/internal/routing"
	"github.com/hearthware/concierge/pkg/models"
)

// RemindersPlugin is the plugin targeted by create_reminder plans.
const RemindersPlugin = "smart_reminders"

// complexityWordSpan is the word count at which complexity saturates at 1.0.
const complexityWordSpan = 24

// Engine builds reasoning results for the coordinator.
type Engine struct {
	router *routing.ModelRouter
}

// NewEngine creates a reasoning engine that delegates open-ended queries to router.
func NewEngine(router *routing.ModelRouter) *Engine {
	return &Engine{router: router}
}

// EstimateComplexity scores text in [0,1] from its word count, floored at
// 0.7 for the general-reasoning catch-all.
func (e *Engine) EstimateComplexity(text string, intent models.IntentResult) float64 {
	score := float64(len(strings.Fields(text))) / complexityWordSpan
	if score > 1 {
		score = 1
	}
	if intent.Intent == nlp.GeneralReasoning && score < 0.7 {
		score = 0.7
	}
	return score
}

// Stream produces the generated response for text as growing prefixes.
func (e *Engine) Stream(ctx context.Context, text string, route models.Route) <-chan string {
	return e.router.StreamGenerate(ctx, text, route)
}

// CreatePlan builds the single-step plan for text on the decided route.
func (e *Engine) CreatePlan(ctx context.Context, text string, intent models.IntentResult, route models.Route) models.ReasoningResult {
	now := time.Now().UTC()

	switch intent.Intent {
	case "open_app", "close_app":
		return models.ReasoningResult{
			Status:     models.StatusSuccess,
			Confidence: intent.Confidence,
			PlanName:   intent.Intent,
			Steps: []models.Step{
				{Type: models.StepSystem, Intent: intent.Intent, Text: text},
			},
			Timestamp: now,
		}
	case "create_reminder":
		return models.ReasoningResult{
			Status:     models.StatusSuccess,
			Confidence: intent.Confidence,
			PlanName:   "create_reminder",
			Steps: []models.Step{
				{Type: models.StepPlugin, Name: RemindersPlugin, Payload: text},
			},
			Timestamp: now,
		}
	}

	answer := e.router.Generate(ctx, text, route)
	if answer == "" {
		return models.ReasoningResult{
			Status:   models.StatusFailed,
			PlanName: "respond_only",
			Error: &models.ErrorInfo{
				Code:        models.CodeNoResponse,
				Message:     "generation produced no response",
				Recoverable: true,
			},
			Timestamp: now,
		}
	}
	return models.ReasoningResult{
		Status:     models.StatusSuccess,
		Confidence: intent.Confidence,
		PlanName:   "respond_only",
		Steps: []models.Step{
			{Type: models.StepResponse, Message: answer},
		},
		Timestamp: now,
	}
}
