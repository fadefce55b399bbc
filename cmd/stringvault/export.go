package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
	"github.com/vault-md/stringvault/internal/usecase"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		locale      string
		separator   string
		countedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a locale as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var comma rune
			switch separator {
			case "comma":
				comma = ','
			case "semicolon":
				comma = ';'
			case "tab":
				comma = '\t'
			default:
				return fmt.Errorf("invalid separator: %s (valid values: comma, semicolon, tab)", separator)
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.catalog.Scan(context.Background())
			if err != nil {
				return err
			}
			return usecase.ExportCSV(cmd.OutOrStdout(), entries, entry.Locale(locale), comma, countedOnly)
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale to export")
	cmd.Flags().StringVar(&separator, "sep", "comma", "Field separator: comma, semicolon, or tab")
	cmd.Flags().BoolVar(&countedOnly, "counted-only", false, "Leave out entries excluded from statistics")
	_ = cmd.MarkFlagRequired("locale")

	return cmd
}
