// Package config resolves where stringvault keeps its data and how archives
// are configured.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/adrg/xdg"
)

const (
	// DefaultExtension is the file extension of per-entry documents.
	DefaultExtension = ".yaml"

	unixMaxPath    = 4096
	windowsMaxPath = 260
)

// Archive holds the settings injected into an archive constructor.
type Archive struct {
	// Root is the directory scanned for entry files.
	Root string
	// Extension selects which files under Root are entries.
	Extension string
	// Parallelism bounds concurrent directory reads and parses.
	Parallelism int
	// MaxPathLength is the longest absolute path the host accepts.
	MaxPathLength int
}

// GetDataDir resolves the base directory for stringvault state. It checks
// STRINGVAULT_DIR first, then XDG paths, and finally falls back to the
// user's home directory.
func GetDataDir() string {
	if explicit := os.Getenv("STRINGVAULT_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "stringvault")
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, "stringvault")
}

// GetDBPath returns the absolute path to the SQLite store used by `pack`.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "strings.db")
}

// DefaultArchive returns settings for root with host defaults applied.
func DefaultArchive(root string) Archive {
	maxPath := unixMaxPath
	if runtime.GOOS == "windows" {
		maxPath = windowsMaxPath
	}
	return Archive{
		Root:          root,
		Extension:     DefaultExtension,
		Parallelism:   runtime.GOMAXPROCS(0),
		MaxPathLength: maxPath,
	}
}

// LoadArchive builds archive settings from STRINGVAULT_ROOT and
// STRINGVAULT_PARALLELISM, falling back to the working directory and
// GOMAXPROCS. A non-empty root argument takes precedence over the
// environment.
func LoadArchive(root string) (Archive, error) {
	if root == "" {
		root = os.Getenv("STRINGVAULT_ROOT")
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Archive{}, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return Archive{}, fmt.Errorf("failed to resolve archive root: %w", err)
	}

	cfg := DefaultArchive(abs)
	if raw := os.Getenv("STRINGVAULT_PARALLELISM"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Archive{}, fmt.Errorf("invalid STRINGVAULT_PARALLELISM %q", raw)
		}
		cfg.Parallelism = n
	}
	return cfg, nil
}

// Normalized fills zero fields with host defaults.
func (a Archive) Normalized() Archive {
	def := DefaultArchive(a.Root)
	if a.Extension == "" {
		a.Extension = def.Extension
	}
	if a.Parallelism < 1 {
		a.Parallelism = def.Parallelism
	}
	if a.MaxPathLength < 1 {
		a.MaxPathLength = def.MaxPathLength
	}
	return a
}
