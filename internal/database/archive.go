package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vault-md/stringvault/internal/archive"
	"github.com/vault-md/stringvault/internal/codec"
	sqldb "github.com/vault-md/stringvault/internal/database/sqlc"
	"github.com/vault-md/stringvault/internal/entry"
	"github.com/vault-md/stringvault/internal/textnorm"
)

// Archive stores all entries as rows of one SQLite database. Save only
// buffers a snapshot of the entry; SaveAll writes every buffered snapshot in
// a single transaction.
type Archive struct {
	archive.Notifier

	ctx    *Context
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]pendingSave
}

type pendingSave struct {
	snapshot *entry.StringEntry
	target   *entry.StringEntry
}

var (
	_ archive.Archive = (*Archive)(nil)
	_ archive.Creator = (*Archive)(nil)
)

// NewArchive wraps an open database. A nil logger disables logging.
func NewArchive(dbCtx *Context, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{
		ctx:     dbCtx,
		logger:  logger.Named("database"),
		pending: make(map[string]pendingSave),
	}
}

// LoadAll returns every row whose locator lies under root; an empty root
// selects all rows. Entries in skip are reused by key while their row exists.
func (a *Archive) LoadAll(ctx context.Context, root string, skip []*entry.StringEntry) ([]*entry.StringEntry, error) {
	q, err := a.queries()
	if err != nil {
		return nil, err
	}

	rows, err := q.ListStrings(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, archive.Cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("failed to list strings: %w", err)
	}

	known := make(map[string]*entry.StringEntry, len(skip))
	for _, e := range skip {
		if e != nil {
			known[e.Key] = e
		}
	}

	prefix := strings.Trim(root, "/")
	result := make([]*entry.StringEntry, 0, len(rows))
	parsed := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, archive.Cancelled(err)
		}
		if prefix != "" && row.Locator != prefix && !strings.HasPrefix(row.Locator, prefix+"/") {
			continue
		}
		if e, ok := known[row.Key]; ok {
			result = append(result, e)
			continue
		}
		e, err := a.decode(row)
		if err != nil {
			return nil, err
		}
		parsed++
		result = append(result, e)
	}

	a.logger.Debug("loaded archive",
		zap.String("path", a.ctx.Path),
		zap.Int("rows", len(result)),
		zap.Int("parsed", parsed))

	keys := make([]string, 0, len(result))
	for _, e := range result {
		keys = append(keys, e.Key)
	}
	a.Publish(archive.Event{Kind: archive.EventLoaded, Keys: keys})
	return result, nil
}

// Save buffers a normalized snapshot of e. The row must still exist.
func (a *Archive) Save(ctx context.Context, e *entry.StringEntry) error {
	if _, err := a.row(ctx, "save", e); err != nil {
		return err
	}

	textnorm.NormalizeEntry(e)
	a.mu.Lock()
	a.pending[e.Key] = pendingSave{snapshot: e.Clone(), target: e}
	a.mu.Unlock()
	return nil
}

// SaveAll writes all buffered snapshots. Either every snapshot is written or
// none is, and the buffer is kept on failure.
func (a *Archive) SaveAll(ctx context.Context) error {
	keys, err := a.flush(ctx)
	if err != nil || len(keys) == 0 {
		return err
	}

	a.logger.Debug("flushed entries", zap.Int("count", len(keys)))
	a.Publish(archive.Event{Kind: archive.EventSaved, Keys: keys})
	return nil
}

func (a *Archive) flush(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.pending) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(a.pending))
	for key := range a.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	modifiedAt := toUnixNano(time.Now().UTC())
	err := a.withTx(ctx, func(q *sqldb.Queries) error {
		for _, key := range keys {
			p := a.pending[key]
			doc, err := codec.Encode(p.snapshot)
			if err != nil {
				return err
			}
			affected, err := q.UpdateString(ctx, sqldb.UpdateStringParams{
				Document:   doc,
				ModifiedAt: modifiedAt,
				Key:        key,
			})
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", key, err)
			}
			if affected == 0 {
				return &archive.MissingFileError{Op: "save", Path: a.location(p.target)}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stamped := fromUnixNano(modifiedAt)
	for _, key := range keys {
		a.pending[key].target.ModificationDate = stamped
	}
	a.pending = make(map[string]pendingSave)
	return keys, nil
}

// HasUnsavedChanges reports whether Save buffered snapshots that SaveAll has
// not written yet.
func (a *Archive) HasUnsavedChanges() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending) > 0
}

// Reload decodes the stored row of e into a new entry. Buffered snapshots are
// not consulted.
func (a *Archive) Reload(ctx context.Context, e *entry.StringEntry) (*entry.StringEntry, error) {
	row, err := a.row(ctx, "reload", e)
	if err != nil {
		return nil, err
	}
	fresh, err := a.decode(row)
	if err != nil {
		return nil, err
	}
	a.Publish(archive.Event{Kind: archive.EventReloaded, Keys: []string{fresh.Key}})
	return fresh, nil
}

// Delete removes the row of e and drops any buffered snapshot for it.
func (a *Archive) Delete(ctx context.Context, e *entry.StringEntry) error {
	q, err := a.queries()
	if err != nil {
		return err
	}
	affected, err := q.DeleteString(ctx, e.Key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", e.Key, err)
	}
	if affected == 0 {
		return &archive.MissingFileError{Op: "delete", Path: a.location(e)}
	}

	a.mu.Lock()
	delete(a.pending, e.Key)
	a.mu.Unlock()

	a.Publish(archive.Event{Kind: archive.EventDeleted, Keys: []string{e.Key}})
	return nil
}

// IsFileModified reports whether the row of e is gone or was written after
// e.ModificationDate.
func (a *Archive) IsFileModified(e *entry.StringEntry) (bool, error) {
	q, err := a.queries()
	if err != nil {
		return false, err
	}
	row, err := q.GetString(context.Background(), e.Key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, err
	}
	return fromUnixNano(row.ModifiedAt).After(e.ModificationDate), nil
}

// Create inserts a row for e. The locator is e.Origin.Locator, or
// StringPath/Key when unset, prefixed with root.
func (a *Archive) Create(ctx context.Context, root string, e *entry.StringEntry) error {
	q, err := a.queries()
	if err != nil {
		return err
	}

	if _, err := q.GetString(ctx, e.Key); err == nil {
		return fmt.Errorf("entry already exists: %s", e.Key)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	locator := e.Origin.Locator
	if locator == "" {
		locator = path.Join(e.StringPath, e.Key)
	}
	if root = strings.Trim(root, "/"); root != "" {
		locator = path.Join(root, locator)
	}

	textnorm.NormalizeEntry(e)
	doc, err := codec.Encode(e)
	if err != nil {
		return err
	}

	modifiedAt := toUnixNano(time.Now().UTC())
	if err := q.InsertString(ctx, sqldb.InsertStringParams{
		Key:        e.Key,
		Locator:    locator,
		Document:   doc,
		ModifiedAt: modifiedAt,
	}); err != nil {
		return fmt.Errorf("failed to insert %s: %w", e.Key, err)
	}

	e.Origin = entry.Origin{AbsolutePath: a.ctx.Path, Locator: locator}
	e.ModificationDate = fromUnixNano(modifiedAt)

	a.Publish(archive.Event{Kind: archive.EventCreated, Keys: []string{e.Key}})
	return nil
}

func (a *Archive) decode(row sqldb.String) (*entry.StringEntry, error) {
	e, err := codec.Decode(row.Document)
	if err != nil {
		return nil, &archive.ParseError{Path: a.ctx.Path + "#" + row.Key, Err: err}
	}
	if e.Key != row.Key {
		return nil, &archive.ParseError{
			Path: a.ctx.Path + "#" + row.Key,
			Err:  fmt.Errorf("document key %q does not match row", e.Key),
		}
	}
	e.Origin = entry.Origin{AbsolutePath: a.ctx.Path, Locator: row.Locator}
	e.ModificationDate = fromUnixNano(row.ModifiedAt)
	return e, nil
}

func (a *Archive) row(ctx context.Context, op string, e *entry.StringEntry) (sqldb.String, error) {
	q, err := a.queries()
	if err != nil {
		return sqldb.String{}, err
	}
	row, err := q.GetString(ctx, e.Key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sqldb.String{}, &archive.MissingFileError{Op: op, Path: a.location(e)}
		}
		return sqldb.String{}, err
	}
	return row, nil
}

func (a *Archive) location(e *entry.StringEntry) string {
	return a.ctx.Path + "#" + e.Key
}

func (a *Archive) queries() (*sqldb.Queries, error) {
	q := queriesFromContext(a.ctx)
	if q == nil {
		return nil, ErrMissingContext
	}
	return q, nil
}

func (a *Archive) withTx(ctx context.Context, fn func(q *sqldb.Queries) error) error {
	q, err := a.queries()
	if err != nil {
		return err
	}
	tx, err := a.ctx.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(q.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback error: %w)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
