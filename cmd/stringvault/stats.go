package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/usecase"
)

func newStatsCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entry and word counts per locale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
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
			stats := usecase.Stats(entries)

			if format == "json" {
				return outputJSON(cmd, stats)
			}

			t := newTable(cmd)
			t.AppendHeader(table.Row{"Locale", "Entries", "Words", "Translated", "Missing"})
			for _, st := range stats {
				t.AppendRow(table.Row{st.Locale, st.Entries, st.Words, st.Translated, st.Missing})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}
