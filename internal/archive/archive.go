// Package archive defines the contract every backing store for string
// entries implements, together with the errors and change notifications
// shared by all backends.
package archive

import (
	"context"

	"github.com/vault-md/stringvault/internal/entry"
)

// Archive reconciles in-memory entries with a backing store.
//
// Implementations provide no locking: concurrent Save, Reload or Delete
// calls against the same entry race. Distinct entries may be handled from
// separate goroutines.
type Archive interface {
	// LoadAll scans root and returns every entry found. Entries in skip are
	// returned as-is instead of being parsed again, as long as their backing
	// location still exists. The result is complete or an error is returned.
	LoadAll(ctx context.Context, root string, skip []*entry.StringEntry) ([]*entry.StringEntry, error)
	// SaveAll flushes buffered changes.
	SaveAll(ctx context.Context) error
	// Save persists e.
	Save(ctx context.Context, e *entry.StringEntry) error
	// Reload reads the stored state of e into a new entry. e is not modified.
	Reload(ctx context.Context, e *entry.StringEntry) (*entry.StringEntry, error)
	// Delete removes the backing representation of e. Callers remove e from
	// their own collections.
	Delete(ctx context.Context, e *entry.StringEntry) error
	// HasUnsavedChanges reports whether buffered changes are pending.
	HasUnsavedChanges() bool
	// IsFileModified reports whether the backing representation of e is gone
	// or changed after e.ModificationDate.
	IsFileModified(e *entry.StringEntry) (bool, error)
	// Subscribe registers fn for change events and returns a function that
	// removes the subscription.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Creator is implemented by archives that can create new backing
// representations. Create fails if one already exists for e.
type Creator interface {
	Create(ctx context.Context, root string, e *entry.StringEntry) error
}

// Unmodified returns the entries of a whose backing representation has not
// changed since they were loaded, for use as the skip set of an incremental
// LoadAll.
func Unmodified(a Archive, entries []*entry.StringEntry) ([]*entry.StringEntry, error) {
	result := make([]*entry.StringEntry, 0, len(entries))
	for _, e := range entries {
		modified, err := a.IsFileModified(e)
		if err != nil {
			return nil, err
		}
		if !modified {
			result = append(result, e)
		}
	}
	return result, nil
}

// Index maps entries by key. Later duplicates win.
func Index(entries []*entry.StringEntry) map[string]*entry.StringEntry {
	index := make(map[string]*entry.StringEntry, len(entries))
	for _, e := range entries {
		index[e.Key] = e
	}
	return index
}
