// Package persona detects emotional tone in user text and applies
// tone-aware styling to response messages.
package persona

import "strings"

// Tone labels produced by the detector.
const (
	TonePositive = "positive"
	ToneNegative = "negative"
	ToneNeutral  = "neutral"
)

var (
	positiveWords = wordSet("great", "awesome", "thanks", "love")
	negativeWords = wordSet("bad", "hate", "frustrated", "angry")
	urgentWords   = wordSet("urgent", "immediately", "asap", "now")
	stressWords   = wordSet("stressed", "overwhelmed", "panic", "anxious")
)

// ToneDetector classifies tone and urgency/stress hints from text.
type ToneDetector struct{}

// Detect returns the tone classification for text. Negative cues win over
// positive ones.
func (ToneDetector) Detect(text string) string {
	words := fields(text)
	if intersects(words, negativeWords) {
		return ToneNegative
	}
	if intersects(words, positiveWords) {
		return TonePositive
	}
	return ToneNeutral
}

// Signals carries urgency and stress markers detected in text.
type Signals struct {
	Urgent   bool
	Stressed bool
}

// DetectSignals returns urgency and stress markers for text.
func (ToneDetector) DetectSignals(text string) Signals {
	words := fields(text)
	return Signals{
		Urgent:   intersects(words, urgentWords),
		Stressed: intersects(words, stressWords),
	}
}

// Personality applies response style transformations based on tone.
type Personality struct {
	// Level in [0,1]; below 0.3 no styling is applied.
	Level float64
	// Formal selects the register of the injected prefixes.
	Formal bool
}

// NewPersonality clamps level into [0,1].
func NewPersonality(level float64, formal bool) Personality {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return Personality{Level: level, Formal: formal}
}

// ApplyStyle returns text styled for the detected tone.
func (p Personality) ApplyStyle(text, tone string) string {
	if p.Level < 0.3 {
		return text
	}
	prefix := ""
	switch tone {
	case ToneNegative:
		prefix = "I understand. "
	case TonePositive:
		prefix = "Excellent. "
	}
	styled := prefix + text
	if !p.Formal {
		styled = strings.ReplaceAll(styled, "I understand.", "Got it,")
		styled = strings.ReplaceAll(styled, "Excellent.", "Nice,")
	}
	return styled
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func fields(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

func intersects(a, b map[string]struct{}) bool {
	for w := range a {
		if _, ok := b[w]; ok {
			return true
		}
	}
	return false
}
