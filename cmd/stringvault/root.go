package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vault-md/stringvault/internal/archive"
	"github.com/vault-md/stringvault/internal/config"
	"github.com/vault-md/stringvault/internal/database"
	"github.com/vault-md/stringvault/internal/filesystem"
	"github.com/vault-md/stringvault/internal/usecase"
)

const (
	backendFiles  = "files"
	backendSQLite = "sqlite"
)

// app carries the persistent flags and the logger shared by all commands.
type app struct {
	root    string
	backend string
	dbPath  string
	verbose bool

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:          "stringvault",
		Short:        "stringvault - a repository for localized string entries",
		Long:         "stringvault stores localized strings with translation provenance and traits, one YAML file per entry or in a single SQLite store.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&a.root, "root", "", "Archive root (defaults to $STRINGVAULT_ROOT or the working directory)")
	cmd.PersistentFlags().StringVar(&a.backend, "backend", backendFiles, "Storage backend: files or sqlite")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite store path for the sqlite backend (defaults to the data directory)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newGetCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newSetCmd(a))
	cmd.AddCommand(newTranslateCmd(a))
	cmd.AddCommand(newTraitCmd(a))
	cmd.AddCommand(newEditCmd(a))
	cmd.AddCommand(newDeleteCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newStatsCmd(a))
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newPackCmd(a))
	cmd.AddCommand(newMCPCmd(a))

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// session is an opened archive with a catalog over its root.
type session struct {
	archive archive.Archive
	catalog *usecase.Catalog
	root    string
	close   func()
}

func (s *session) Close() {
	s.catalog.Close()
	if s.close != nil {
		s.close()
	}
}

func (a *app) open() (*session, error) {
	switch a.backend {
	case backendFiles:
		cfg, err := config.LoadArchive(a.root)
		if err != nil {
			return nil, err
		}
		fs := filesystem.New(cfg, a.logger)
		return &session{
			archive: fs,
			catalog: usecase.NewCatalog(fs, cfg.Root, a.logger),
			root:    cfg.Root,
		}, nil
	case backendSQLite:
		dbCtx, err := database.CreateDatabase(a.dbPath)
		if err != nil {
			return nil, err
		}
		db := database.NewArchive(dbCtx, a.logger)
		return &session{
			archive: db,
			catalog: usecase.NewCatalog(db, a.root, a.logger),
			root:    a.root,
			close: func() {
				_ = database.CloseDatabase(dbCtx)
			},
		}, nil
	default:
		return nil, fmt.Errorf("invalid backend: %s (valid values: files, sqlite)", a.backend)
	}
}
