// Package journal keeps the append-only execution journal for automation
// actions, with soft delete and a rollback dispatch stack.
package journal

import (
	"sync"
	"time"

	"github.com/hearthware/concierge/pkg/models"
)

// Rollbackable is an action that can undo itself.
type Rollbackable interface {
	Rollback() bool
}

// Journal records executed actions for the process lifetime. Entries are
// never hard-removed; deletion only flips the Deleted flag.
type Journal struct {
	mu       sync.Mutex
	entries  []models.JournalEntry
	rollback []Rollbackable
	now      func() time.Time
}

// New creates an empty journal.
func New() *Journal {
	return &Journal{now: time.Now}
}

// Record appends an entry for an executed action.
func (j *Journal) Record(action string, payload map[string]interface{}, reversible bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, models.JournalEntry{
		Action:     action,
		Payload:    payload,
		Reversible: reversible,
		Timestamp:  j.now().UTC(),
	})
}

// RegisterRollback pushes a rollback handler for the most recent reversible action.
func (j *Journal) RegisterRollback(r Rollbackable) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rollback = append(j.rollback, r)
}

// SoftDeleteLast marks the newest entry deleted. Returns false when the
// journal is empty.
func (j *Journal) SoftDeleteLast() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == 0 {
		return false
	}
	j.entries[len(j.entries)-1].Deleted = true
	return true
}

// RollbackLast pops and runs the newest rollback handler. Returns false when
// there is nothing to roll back.
func (j *Journal) RollbackLast() bool {
	j.mu.Lock()
	if len(j.rollback) == 0 {
		j.mu.Unlock()
		return false
	}
	op := j.rollback[len(j.rollback)-1]
	j.rollback = j.rollback[:len(j.rollback)-1]
	j.mu.Unlock()

	return op.Rollback()
}

// Entries returns a copy of all journal entries, newest last.
func (j *Journal) Entries() []models.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}
