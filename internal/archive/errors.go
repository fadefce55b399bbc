package archive

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrMissingBackingFile indicates the stored representation of an entry
	// disappeared after it was loaded.
	ErrMissingBackingFile = errors.New("archive: backing file missing")
	// ErrCancelled is returned when a scan is cancelled. The error also
	// matches the context error that caused it.
	ErrCancelled = errors.New("archive: cancelled")
	// ErrSaveAllUnsupported is returned by backends that write on every Save.
	ErrSaveAllUnsupported = errors.New("archive: SaveAll is not supported by this backend")
)

// ParseError reports a backing file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PathTooLongError reports a path exceeding the host file system limit.
type PathTooLongError struct {
	Path  string
	Limit int
}

func (e *PathTooLongError) Error() string {
	return fmt.Sprintf("path exceeds %d characters: %s", e.Limit, e.Path)
}

// MissingFileError is returned by Save, Reload and Delete when the backing
// representation no longer exists. Nothing is recreated; the caller is
// expected to rescan.
type MissingFileError struct {
	Op   string
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s: %s no longer exists; it may have been moved or deleted by another tool, rescan the archive", e.Op, e.Path)
}

// Is lets errors.Is match both ErrMissingBackingFile and fs.ErrNotExist.
func (e *MissingFileError) Is(target error) bool {
	return target == ErrMissingBackingFile || target == fs.ErrNotExist
}

// Cancelled wraps a context error so it matches ErrCancelled as well.
func Cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
