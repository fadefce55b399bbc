// Package filesystem implements an archive that stores one YAML document per
// string entry in a directory tree.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vault-md/stringvault/internal/archive"
	"github.com/vault-md/stringvault/internal/codec"
	"github.com/vault-md/stringvault/internal/config"
	"github.com/vault-md/stringvault/internal/entry"
	"github.com/vault-md/stringvault/internal/textnorm"
)

// Archive is the one-file-per-entry backend.
type Archive struct {
	archive.Notifier

	cfg    config.Archive
	logger *zap.Logger
}

var (
	_ archive.Archive = (*Archive)(nil)
	_ archive.Creator = (*Archive)(nil)
)

// New creates a file archive. A nil logger disables logging.
func New(cfg config.Archive, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{
		cfg:    cfg.Normalized(),
		logger: logger.Named("filesystem"),
	}
}

// LoadAll enumerates every entry file under root in parallel, reuses the
// entries in skip whose file is still present, and parses the rest. Any
// parse failure or cancellation discards the whole result.
func (a *Archive) LoadAll(ctx context.Context, root string, skip []*entry.StringEntry) ([]*entry.StringEntry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	started := time.Now()
	files, err := a.enumerate(ctx, absRoot)
	if err != nil {
		return nil, err
	}

	known := make(map[string]*entry.StringEntry, len(skip))
	for _, e := range skip {
		if e != nil && e.Origin.AbsolutePath != "" {
			known[e.Origin.AbsolutePath] = e
		}
	}

	result := make([]*entry.StringEntry, 0, len(files))
	pending := make([]string, 0, len(files))
	for _, path := range files {
		if e, ok := known[path]; ok {
			result = append(result, e)
			continue
		}
		pending = append(pending, path)
	}
	reused := len(result)

	parsed := make([]*entry.StringEntry, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Parallelism)
	for i, path := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := a.parseFile(absRoot, path)
			if err != nil {
				return err
			}
			a.logger.Debug("parsed entry", zap.String("path", path))
			parsed[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, archive.Cancelled(ctx.Err())
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, archive.Cancelled(err)
	}

	result = append(result, parsed...)

	a.logger.Debug("loaded archive",
		zap.String("root", absRoot),
		zap.Int("files", len(files)),
		zap.Int("reused", reused),
		zap.Int("parsed", len(pending)),
		zap.Duration("elapsed", time.Since(started)))

	a.Publish(archive.Event{Kind: archive.EventLoaded, Keys: keysOf(result)})
	return result, nil
}

// enumerate walks root with one goroutine per directory, bounded by the
// configured parallelism for the actual directory reads.
func (a *Archive) enumerate(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	var (
		mu    sync.Mutex
		files []string
	)
	sem := make(chan struct{}, a.cfg.Parallelism)
	g, gctx := errgroup.WithContext(ctx)

	var walk func(dir string)
	walk = func(dir string) {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			entries, err := os.ReadDir(dir)
			<-sem
			if err != nil {
				return fmt.Errorf("failed to read directory %s: %w", dir, err)
			}
			a.logger.Debug("read directory", zap.String("dir", dir), zap.Int("entries", len(entries)))

			var local []string
			for _, de := range entries {
				if err := gctx.Err(); err != nil {
					return err
				}
				path := filepath.Join(dir, de.Name())
				switch {
				case de.IsDir():
					walk(path)
				case de.Type().IsRegular() && a.matches(de.Name()):
					local = append(local, path)
				}
			}

			mu.Lock()
			files = append(files, local...)
			mu.Unlock()
			return nil
		})
	}
	walk(root)

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, archive.Cancelled(ctx.Err())
		}
		return nil, err
	}
	return files, nil
}

func (a *Archive) matches(name string) bool {
	return strings.EqualFold(filepath.Ext(name), a.cfg.Extension)
}

// parseFile reads and decodes one entry and stamps its origin and mtime.
func (a *Archive) parseFile(root, path string) (*entry.StringEntry, error) {
	if err := a.checkPathLength(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &archive.ParseError{Path: path, Err: err}
	}

	//nolint:gosec // G304: path comes from enumerating the configured root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &archive.ParseError{Path: path, Err: err}
	}

	e, err := codec.Decode(data)
	if err != nil {
		return nil, &archive.ParseError{Path: path, Err: err}
	}

	locator, err := filepath.Rel(root, path)
	if err != nil {
		return nil, &archive.ParseError{Path: path, Err: err}
	}

	e.Origin = entry.Origin{
		AbsolutePath: path,
		Locator:      filepath.ToSlash(locator),
	}
	e.ModificationDate = info.ModTime()
	return e, nil
}

func (a *Archive) checkPathLength(path string) error {
	if len(path) > a.cfg.MaxPathLength {
		return &archive.PathTooLongError{Path: path, Limit: a.cfg.MaxPathLength}
	}
	return nil
}

// Save overwrites the backing file of e. The file must still exist; a
// vanished file is reported rather than recreated. Text is normalized in
// place before writing so e matches what a reload returns.
func (a *Archive) Save(_ context.Context, e *entry.StringEntry) error {
	path := e.Origin.AbsolutePath
	if path == "" {
		return &archive.MissingFileError{Op: "save", Path: path}
	}

	//nolint:gosec // G304: path was stamped by this archive
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &archive.MissingFileError{Op: "save", Path: path}
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	textnorm.NormalizeEntry(e)
	data, err := codec.Encode(e)
	if err != nil {
		_ = f.Close()
		return err
	}

	if err := writeAll(f, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := a.stamp(e); err != nil {
		return err
	}

	a.logger.Debug("saved entry", zap.String("key", e.Key), zap.String("path", path))
	a.Publish(archive.Event{Kind: archive.EventSaved, Keys: []string{e.Key}})
	return nil
}

// writeAll replaces the contents of f with data and closes it.
func writeAll(f *os.File, data []byte) error {
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Create writes a new file for e below root. The locator is derived from
// e.StringPath and the escaped key unless e.Origin.Locator is already set.
func (a *Archive) Create(_ context.Context, root string, e *entry.StringEntry) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	locator := e.Origin.Locator
	if locator == "" {
		locator = a.Locator(e)
	}
	if !filepath.IsLocal(filepath.FromSlash(locator)) {
		return &OutsideRootError{Root: absRoot, Locator: locator}
	}
	path := filepath.Join(absRoot, filepath.FromSlash(locator))
	if err := a.checkPathLength(path); err != nil {
		return err
	}

	textnorm.NormalizeEntry(e)
	data, err := codec.Encode(e)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	//nolint:gosec // G304: path is built from the configured root
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("entry file already exists: %s", path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	e.Origin = entry.Origin{AbsolutePath: path, Locator: filepath.ToSlash(locator)}
	if err := a.stamp(e); err != nil {
		return err
	}

	a.Publish(archive.Event{Kind: archive.EventCreated, Keys: []string{e.Key}})
	return nil
}

// OutsideRootError is returned by Create when an entry's locator would place
// its file outside the archive root.
type OutsideRootError struct {
	Root    string
	Locator string
}

func (e *OutsideRootError) Error() string {
	return fmt.Sprintf("locator %q escapes archive root %s", e.Locator, e.Root)
}

// Locator returns the default root-relative path for a new entry file.
func (a *Archive) Locator(e *entry.StringEntry) string {
	name := urlEncode(e.Key) + a.cfg.Extension
	if e.StringPath == "" {
		return name
	}
	return strings.Trim(filepath.ToSlash(e.StringPath), "/") + "/" + name
}

// Reload parses the current file of e into a new entry.
func (a *Archive) Reload(_ context.Context, e *entry.StringEntry) (*entry.StringEntry, error) {
	path := e.Origin.AbsolutePath
	if !FileExists(path) {
		return nil, &archive.MissingFileError{Op: "reload", Path: path}
	}

	root := rootOf(e.Origin)
	fresh, err := a.parseFile(root, path)
	if err != nil {
		return nil, err
	}

	a.Publish(archive.Event{Kind: archive.EventReloaded, Keys: []string{fresh.Key}})
	return fresh, nil
}

// Delete removes the backing file of e. Deleting an already missing file is
// an error.
func (a *Archive) Delete(_ context.Context, e *entry.StringEntry) error {
	path := e.Origin.AbsolutePath
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &archive.MissingFileError{Op: "delete", Path: path}
		}
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	a.logger.Debug("deleted entry", zap.String("key", e.Key), zap.String("path", path))
	a.Publish(archive.Event{Kind: archive.EventDeleted, Keys: []string{e.Key}})
	return nil
}

// IsFileModified reports whether the file of e is gone or has a modification
// time later than e.ModificationDate.
func (a *Archive) IsFileModified(e *entry.StringEntry) (bool, error) {
	info, err := os.Stat(e.Origin.AbsolutePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return info.ModTime().After(e.ModificationDate), nil
}

// SaveAll is not supported: every Save writes immediately.
func (a *Archive) SaveAll(context.Context) error {
	return archive.ErrSaveAllUnsupported
}

// HasUnsavedChanges is always false for this backend.
func (a *Archive) HasUnsavedChanges() bool {
	return false
}

func (a *Archive) stamp(e *entry.StringEntry) error {
	info, err := os.Stat(e.Origin.AbsolutePath)
	if err != nil {
		return err
	}
	e.ModificationDate = info.ModTime()
	return nil
}

// FileExists reports whether the given path exists.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// rootOf recovers the scan root from an origin by stripping the locator.
func rootOf(o entry.Origin) string {
	locator := filepath.FromSlash(o.Locator)
	if locator == "" || !strings.HasSuffix(o.AbsolutePath, locator) {
		return filepath.Dir(o.AbsolutePath)
	}
	return filepath.Clean(strings.TrimSuffix(o.AbsolutePath, locator))
}

func urlEncode(value string) string {
	// url.QueryEscape encodes spaces as '+', so convert to '%20' to match encodeURIComponent.
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

func keysOf(entries []*entry.StringEntry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys
}
