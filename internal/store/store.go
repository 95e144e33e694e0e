// Package store provides the persistence interface for recorded
// interactions and user preferences. The coordinator treats recording as
// fire-and-forget: store errors are logged, never turned into request
// failures.
package store

import (
	"context"
	"errors"

	"github.com/hearthware/concierge/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store persists interactions and preferences. Implementations must be safe
// for concurrent use.
type Store interface {
	// RecordInteraction appends one request/result pair.
	RecordInteraction(ctx context.Context, in *models.Interaction) error

	// ListInteractions returns the most recent interactions, newest first,
	// capped at limit.
	ListInteractions(ctx context.Context, limit int) ([]models.Interaction, error)

	// SetPreference upserts a user preference.
	SetPreference(ctx context.Context, key, value string) error

	// GetPreference returns a preference value or ErrNotFound.
	GetPreference(ctx context.Context, key string) (string, error)

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}
