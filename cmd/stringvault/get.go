package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		locale string
		format string
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the text of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.catalog.Get(context.Background(), key)
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(cmd, listOutput([]*entry.StringEntry{e})[0])
			}

			show := entry.Locale(locale)
			if show == "" {
				show = e.Source
			}
			if e.GetLocale(show) == nil {
				return fmt.Errorf("locale %s not found in %s", show, key)
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.GetText(show))
			return nil
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale to print (defaults to the source locale)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
