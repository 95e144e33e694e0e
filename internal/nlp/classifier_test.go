package nlp_test

import (
	"testing"

	"github.com/hearthware/concierge/internal/nlp"
)

func TestParseRuleMatches(t *testing.T) {
	c := nlp.NewClassifier()

	cases := []struct {
		text   string
		intent string
	}{
		{"open the editor", "open_app"},
		{"Launch Spotify please", "open_app"},
		{"close the browser", "close_app"},
		{"quit everything", "close_app"},
		{"what's the weather like", "weather_query"},
		{"remind me to stretch", "create_reminder"},
		{"schedule a standup for 9am", "create_reminder"},
	}
	for _, tc := range cases {
		got := c.Parse(tc.text)
		if got.Intent != tc.intent {
			t.Fatalf("Parse(%q).Intent = %q, want %q", tc.text, got.Intent, tc.intent)
		}
		if got.Confidence != 0.82 {
			t.Fatalf("Parse(%q).Confidence = %v, want 0.82", tc.text, got.Confidence)
		}
		if got.RawText != tc.text {
			t.Fatalf("Parse(%q).RawText = %q", tc.text, got.RawText)
		}
	}
}

func TestParseFallback(t *testing.T) {
	c := nlp.NewClassifier()

	got := c.Parse("explain the theory of relativity")
	if got.Intent != nlp.GeneralReasoning {
		t.Fatalf("Parse fallback intent = %q, want %q", got.Intent, nlp.GeneralReasoning)
	}
	if got.Confidence != 0.48 {
		t.Fatalf("Parse fallback confidence = %v, want 0.48", got.Confidence)
	}
}

func TestParseWordBoundaries(t *testing.T) {
	c := nlp.NewClassifier()

	// "opening" and "disclose" contain rule substrings but are not matches.
	for _, text := range []string{"the grand opening went well", "please disclose the report"} {
		if got := c.Parse(text); got.Intent != nlp.GeneralReasoning {
			t.Fatalf("Parse(%q).Intent = %q, want fallback", text, got.Intent)
		}
	}
}

func TestParseFirstRuleWins(t *testing.T) {
	c := nlp.NewClassifier()

	// Both open_app and close_app patterns match; rule order decides.
	if got := c.Parse("open one window and close another"); got.Intent != "open_app" {
		t.Fatalf("Parse().Intent = %q, want open_app", got.Intent)
	}
}
