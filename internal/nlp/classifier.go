// Package nlp provides the rule-based intent classifier consumed by the
// coordinator. It is pure and fast: regex rules first, a low-confidence
// general-reasoning fallback otherwise.
package nlp

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hearthware/concierge/pkg/models"
)

// Confidence levels for rule matches and the fallback label.
const (
	ruleConfidence     = 0.82
	fallbackConfidence = 0.48
)

// GeneralReasoning is the catch-all intent label for open-ended queries.
const GeneralReasoning = "general_reasoning"

type rule struct {
	pattern *regexp.Regexp
	intent  string
}

// Classifier maps free text to an intent label with a confidence score.
type Classifier struct {
	rules []rule
}

// NewClassifier builds the classifier with the built-in rule table.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []rule{
			{regexp.MustCompile(`\b(open|launch)\b`), "open_app"},
			{regexp.MustCompile(`\b(close|quit)\b`), "close_app"},
			{regexp.MustCompile(`\b(weather)\b`), "weather_query"},
			{regexp.MustCompile(`\b(schedule|remind)\b`), "create_reminder"},
		},
	}
}

// Parse classifies text. It never fails and never blocks on I/O.
func (c *Classifier) Parse(text string) models.IntentResult {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, r := range c.rules {
		if r.pattern.MatchString(normalized) {
			log.Debug().Str("intent", r.intent).Msg("rule match")
			return models.IntentResult{Intent: r.intent, Confidence: ruleConfidence, RawText: text}
		}
	}
	log.Debug().Str("intent", GeneralReasoning).Msg("rule fallback")
	return models.IntentResult{Intent: GeneralReasoning, Confidence: fallbackConfidence, RawText: text}
}
