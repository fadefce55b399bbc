package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
)

func newTranslateCmd(a *app) *cobra.Command {
	var (
		from     string
		filePath string
	)

	cmd := &cobra.Command{
		Use:   "translate <key> <locale> [text]",
		Short: "Store a translation and record where it came from",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, locale := args[0], entry.Locale(args[1])

			text, err := textArg(cmd, args, 2, filePath)
			if err != nil {
				return err
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			source := entry.Locale(from)
			if source == "" {
				e, err := s.catalog.Get(ctx, key)
				if err != nil {
					return err
				}
				source = e.Source
			}

			if err := s.catalog.Translate(ctx, key, locale, source, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Translated %s [%s -> %s]\n", key, source, locale)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Locale the translation was made from (defaults to the source locale)")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read text from file instead of stdin")

	return cmd
}
