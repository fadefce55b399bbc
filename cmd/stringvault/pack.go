package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/config"
	"github.com/vault-md/stringvault/internal/database"
	"github.com/vault-md/stringvault/internal/filesystem"
)

func newPackCmd(a *app) *cobra.Command {
	var (
		prefix  string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Copy the file tree under the root into a SQLite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadArchive(a.root)
			if err != nil {
				return err
			}

			ctx := context.Background()
			files := filesystem.New(cfg, a.logger)
			entries, err := files.LoadAll(ctx, cfg.Root, nil)
			if err != nil {
				return err
			}

			dbCtx, err := database.CreateDatabase(a.dbPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = database.CloseDatabase(dbCtx)
			}()

			if replace {
				if err := database.ClearDatabase(dbCtx); err != nil {
					return err
				}
			}

			store := database.NewArchive(dbCtx, a.logger)
			for _, e := range entries {
				packed := e.Clone()
				if err := store.Create(ctx, prefix, packed); err != nil {
					return fmt.Errorf("failed to pack %s: %w", e.Origin.Locator, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Packed %d entries into %s\n", len(entries), dbCtx.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Locator prefix for the packed rows")
	cmd.Flags().BoolVar(&replace, "replace", false, "Remove all rows from the store before packing")

	return cmd
}
