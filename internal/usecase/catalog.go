// Package usecase coordinates catalog operations on top of an archive.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/vault-md/stringvault/internal/archive"
	"github.com/vault-md/stringvault/internal/entry"
)

var (
	// ErrNotFound is returned when no entry has the requested key.
	ErrNotFound = errors.New("entry not found")
	// ErrLocaleNotFound is returned when a trait targets a locale the entry lacks.
	ErrLocaleNotFound = errors.New("locale not found")
	// ErrModifiedExternally is returned when the backing representation
	// changed since the entry was loaded. Reload or rescan before editing.
	ErrModifiedExternally = errors.New("entry was modified outside stringvault; reload it first")
	// ErrCreateUnsupported is returned when the archive cannot create entries.
	ErrCreateUnsupported = errors.New("archive does not support creating entries")
)

// Catalog keeps the entries of one archive root indexed by key and routes
// every edit through the archive.
type Catalog struct {
	archive archive.Archive
	root    string
	logger  *zap.Logger

	mu          sync.Mutex
	entries     map[string]*entry.StringEntry
	loaded      bool
	unsubscribe func()
}

// NewCatalog creates a catalog over a. Call Close to drop its subscription.
func NewCatalog(a archive.Archive, root string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		archive: a,
		root:    root,
		logger:  logger.Named("catalog"),
		entries: make(map[string]*entry.StringEntry),
	}
	c.unsubscribe = a.Subscribe(c.onEvent)
	return c
}

// Close unsubscribes the catalog from archive notifications.
func (c *Catalog) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// onEvent drops keys deleted through the archive, whoever deleted them.
func (c *Catalog) onEvent(ev archive.Event) {
	if ev.Kind != archive.EventDeleted {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range ev.Keys {
		delete(c.entries, key)
	}
}

// Scan loads the root. After the first scan, entries whose backing
// representation is unchanged are reused instead of parsed again.
func (c *Catalog) Scan(ctx context.Context) ([]*entry.StringEntry, error) {
	c.mu.Lock()
	var skip []*entry.StringEntry
	if c.loaded {
		current := make([]*entry.StringEntry, 0, len(c.entries))
		for _, e := range c.entries {
			current = append(current, e)
		}
		c.mu.Unlock()

		var err error
		skip, err = archive.Unmodified(c.archive, current)
		if err != nil {
			return nil, err
		}
	} else {
		c.mu.Unlock()
	}

	loaded, err := c.archive.LoadAll(ctx, c.root, skip)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries = archive.Index(loaded)
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug("scanned", zap.String("root", c.root), zap.Int("entries", len(loaded)), zap.Int("reused", len(skip)))
	return c.Entries(), nil
}

// Entries returns the indexed entries sorted by key.
func (c *Catalog) Entries() []*entry.StringEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]*entry.StringEntry, 0, len(c.entries))
	for _, e := range c.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Find returns the indexed entry for key, or nil.
func (c *Catalog) Find(key string) *entry.StringEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// Get returns the entry for key, scanning first if nothing is loaded yet.
func (c *Catalog) Get(ctx context.Context, key string) (*entry.StringEntry, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if e := c.Find(key); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Add creates a new entry in the archive and indexes it.
func (c *Catalog) Add(ctx context.Context, e *entry.StringEntry) error {
	creator, ok := c.archive.(archive.Creator)
	if !ok {
		return ErrCreateUnsupported
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	if existing := c.Find(e.Key); existing != nil {
		return fmt.Errorf("entry already exists: %s", e.Key)
	}
	if err := creator.Create(ctx, c.root, e); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[e.Key] = e
	c.mu.Unlock()
	return nil
}

// SetText sets the text of locale, creating the locale when needed, and
// saves the entry if the text changed.
func (c *Catalog) SetText(ctx context.Context, key string, locale entry.Locale, text string, updateDate bool) (bool, error) {
	var changed bool
	err := c.edit(ctx, key, func(e *entry.StringEntry) (bool, error) {
		e.EnsureLocale(locale)
		changed = e.UpdateText(locale, text, updateDate)
		return changed, nil
	})
	return changed, err
}

// Translate stores text as the translation of from into locale and records
// the current text of from as the original.
func (c *Catalog) Translate(ctx context.Context, key string, locale, from entry.Locale, text string) error {
	return c.edit(ctx, key, func(e *entry.StringEntry) (bool, error) {
		if e.GetLocale(from) == nil {
			return false, fmt.Errorf("%w: %s has no %s text", ErrLocaleNotFound, key, from)
		}
		e.EnsureLocale(locale)
		e.UpdateTranslation(locale, text, from, e.GetText(from))
		return true, nil
	})
}

// AddTrait applies trait to an existing locale of the entry.
func (c *Catalog) AddTrait(ctx context.Context, key string, locale entry.Locale, trait string) error {
	return c.edit(ctx, key, func(e *entry.StringEntry) (bool, error) {
		if e.GetLocale(locale) == nil {
			return false, fmt.Errorf("%w: %s has no %s", ErrLocaleNotFound, key, locale)
		}
		e.AddTrait(locale, trait)
		return true, nil
	})
}

// RemoveTrait removes trait from a locale of the entry.
func (c *Catalog) RemoveTrait(ctx context.Context, key string, locale entry.Locale, trait string) error {
	return c.edit(ctx, key, func(e *entry.StringEntry) (bool, error) {
		if !e.HasTrait(locale, trait) {
			return false, nil
		}
		e.RemoveTrait(locale, trait)
		return true, nil
	})
}

// AddStringTrait applies an entry-scoped trait.
func (c *Catalog) AddStringTrait(ctx context.Context, key, trait string, isVirtual bool) error {
	return c.edit(ctx, key, func(e *entry.StringEntry) (bool, error) {
		e.AddStringTrait(trait, isVirtual)
		return true, nil
	})
}

// RemoveStringTrait removes an entry-scoped trait.
func (c *Catalog) RemoveStringTrait(ctx context.Context, key, trait string) error {
	return c.edit(ctx, key, func(e *entry.StringEntry) (bool, error) {
		if !e.HasStringTrait(trait) {
			return false, nil
		}
		e.RemoveStringTrait(trait)
		return true, nil
	})
}

// Reload replaces the indexed entry with its stored state.
func (c *Catalog) Reload(ctx context.Context, key string) (*entry.StringEntry, error) {
	e, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	fresh, err := c.archive.Reload(ctx, e)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = fresh
	c.mu.Unlock()
	return fresh, nil
}

// Delete removes the entry from the archive and the index.
func (c *Catalog) Delete(ctx context.Context, key string) error {
	e, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := c.archive.Delete(ctx, e); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Modified returns the indexed entries whose backing representation changed
// or vanished since they were loaded.
func (c *Catalog) Modified() ([]*entry.StringEntry, error) {
	var result []*entry.StringEntry
	for _, e := range c.Entries() {
		modified, err := c.archive.IsFileModified(e)
		if err != nil {
			return nil, err
		}
		if modified {
			result = append(result, e)
		}
	}
	return result, nil
}

func (c *Catalog) ensureLoaded(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := c.Scan(ctx)
	return err
}

// edit refuses to touch entries changed on disk, applies fn to a copy and
// persists it when fn reports a change. Buffering archives are flushed right
// away. The copy replaces the indexed entry only once it has been stored.
func (c *Catalog) edit(ctx context.Context, key string, fn func(e *entry.StringEntry) (bool, error)) error {
	current, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	modified, err := c.archive.IsFileModified(current)
	if err != nil {
		return err
	}
	if modified {
		return fmt.Errorf("%w: %s", ErrModifiedExternally, key)
	}

	e := current.Clone()
	changed, err := fn(e)
	if err != nil || !changed {
		return err
	}

	if err := c.archive.Save(ctx, e); err != nil {
		return err
	}
	if c.archive.HasUnsavedChanges() {
		if err := c.archive.SaveAll(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.entries[key] == current {
		c.entries[key] = e
	}
	c.mu.Unlock()
	return nil
}
