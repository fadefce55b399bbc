package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
)

func newSetCmd(a *app) *cobra.Command {
	var (
		filePath string
		keepDate bool
	)

	cmd := &cobra.Command{
		Use:   "set <key> <locale> [text]",
		Short: "Set the text of a locale",
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

			changed, err := s.catalog.SetText(context.Background(), key, locale, text, !keepDate)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes made")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s [%s]\n", key, locale)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read text from file instead of stdin")
	cmd.Flags().BoolVar(&keepDate, "keep-date", false, "Do not advance the locale's modification date")

	return cmd
}
