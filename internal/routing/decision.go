// Package routing decides where generation work executes (local vs cloud)
// and carries it out through the model router.
package routing

import (
	"github.com/rs/zerolog/log"

	"github.com/hearthware/concierge/pkg/models"
)

// Complexity and confidence cut-offs for the simple-task shortcut.
const (
	simpleComplexityMax = 0.45
	simpleConfidenceMin = 0.7
)

// DecisionEngine maps routing signals to a Decision. It is a pure function
// of its inputs; the only side effect is an audit log line.
type DecisionEngine struct{}

// Decide applies the routing policy in strict priority order; the first
// matching rule wins.
func (DecisionEngine) Decide(mode models.Mode, intent models.IntentResult, isSensitive bool, complexity float64, circuit models.CircuitState) models.Decision {
	d := decide(mode, intent, isSensitive, complexity, circuit)
	log.Info().
		Str("mode", string(mode)).
		Str("intent", intent.Intent).
		Bool("sensitive", isSensitive).
		Float64("complexity", complexity).
		Bool("circuit_open", circuit.IsOpen).
		Str("route", string(d.Route)).
		Str("reason", d.Reason).
		Msg("route decided")
	return d
}

func decide(mode models.Mode, intent models.IntentResult, isSensitive bool, complexity float64, circuit models.CircuitState) models.Decision {
	if mode == models.ModeOffline || mode == models.ModeSafeMode {
		return models.Decision{Route: models.RouteLocal, Reason: models.ReasonManualOrSafeMode}
	}
	if circuit.IsOpen {
		return models.Decision{Route: models.RouteLocal, Reason: models.ReasonCloudCircuitOpen}
	}
	if mode == models.ModeOnline && !isSensitive {
		return models.Decision{Route: models.RouteCloud, Reason: models.ReasonManualOnlineMode}
	}
	if isSensitive {
		return models.Decision{Route: models.RouteLocal, Reason: models.ReasonSensitiveTask}
	}
	if complexity < simpleComplexityMax && intent.Confidence >= simpleConfidenceMin {
		return models.Decision{Route: models.RouteLocal, Reason: models.ReasonSimpleTask}
	}
	return models.Decision{Route: models.RouteCloud, Reason: models.ReasonComplexOrLowConfidence}
}
