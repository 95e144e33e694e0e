package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hearthware/concierge/internal/store"
	"github.com/hearthware/concierge/pkg/models"
)

func TestRecordAndListInteractions(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		err := s.RecordInteraction(ctx, &models.Interaction{Text: text, Intent: "general_reasoning"})
		if err != nil {
			t.Fatalf("RecordInteraction(%q) error = %v", text, err)
		}
	}

	got, err := s.ListInteractions(ctx, 2)
	if err != nil {
		t.Fatalf("ListInteractions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].Text != "third" || got[1].Text != "second" {
		t.Fatalf("order = [%q, %q], want newest first", got[0].Text, got[1].Text)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("interaction missing generated fields: %+v", got[0])
	}
}

func TestPreferences(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetPreference(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetPreference(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.SetPreference(ctx, "last_tone", "positive"); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}
	if err := s.SetPreference(ctx, "last_tone", "negative"); err != nil {
		t.Fatalf("SetPreference() overwrite error = %v", err)
	}

	got, err := s.GetPreference(ctx, "last_tone")
	if err != nil {
		t.Fatalf("GetPreference() error = %v", err)
	}
	if got != "negative" {
		t.Fatalf("GetPreference() = %q, want %q", got, "negative")
	}
}

func TestPingAndClose(t *testing.T) {
	s := store.NewMemoryStore()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
