package main

import (
	"context"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/vault-md/stringvault/internal/entry"
)

func newListCmd(a *app) *cobra.Command {
	var (
		format string
		locale string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List string entries",
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

			filtered := entries[:0]
			for _, e := range entries {
				if prefix == "" || strings.HasPrefix(e.Key, prefix) {
					filtered = append(filtered, e)
				}
			}

			if format == "json" {
				return outputJSON(cmd, listOutput(filtered))
			}
			outputListTable(cmd, filtered, entry.Locale(locale))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale to show text for (defaults to each entry's source)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list keys with this prefix")

	return cmd
}

type listOutputEntry struct {
	Key      string            `json:"key"`
	Locator  string            `json:"locator"`
	Source   string            `json:"source"`
	Speaker  string            `json:"speaker,omitempty"`
	Comment  string            `json:"comment,omitempty"`
	Texts    map[string]string `json:"texts"`
	Modified string            `json:"modified"`
	Changed  string            `json:"changed,omitempty"`
}

func listOutput(entries []*entry.StringEntry) []listOutputEntry {
	output := make([]listOutputEntry, 0, len(entries))
	for _, e := range entries {
		item := listOutputEntry{
			Key:      e.Key,
			Locator:  e.Origin.Locator,
			Source:   string(e.Source),
			Speaker:  e.Speaker,
			Comment:  e.Comment,
			Texts:    make(map[string]string, len(e.Languages)),
			Modified: e.ModificationDate.Format(time.RFC3339),
		}
		for _, l := range e.Locales() {
			item.Texts[string(l)] = e.GetText(l)
		}
		if changed := e.LatestChange(); !changed.IsZero() {
			item.Changed = changed.Format(time.RFC3339)
		}
		output = append(output, item)
	}
	return output
}

// listColumnWidths fits the key column to the data and gives the text
// column whatever is left of the terminal.
func listColumnWidths(termWidth int, entries []*entry.StringEntry) (keyWidth, textWidth int) {
	const (
		borderPadding = 4 * 3
		localesWidth  = 16
	)

	for _, e := range entries {
		if w := runewidth.StringWidth(e.Key); w > keyWidth {
			keyWidth = w
		}
	}
	keyWidth = max(10, min(keyWidth, 60))

	textWidth = termWidth - borderPadding - localesWidth - keyWidth
	return keyWidth, max(textWidth, 15)
}

func outputListTable(cmd *cobra.Command, entries []*entry.StringEntry, locale entry.Locale) {
	t := newTable(cmd)
	keyWidth, textWidth := listColumnWidths(getTerminalWidth(), entries)

	t.AppendHeader(table.Row{"Key", "Locales", "Text", "Modified"})
	for _, e := range entries {
		show := locale
		if show == "" {
			show = e.Source
		}
		locales := make([]string, 0, len(e.Languages))
		for _, l := range e.Locales() {
			locales = append(locales, string(l))
		}
		t.AppendRow(table.Row{
			wrapString(e.Key, keyWidth),
			strings.Join(locales, ","),
			singleLine(e.GetText(show), textWidth),
			e.ModificationDate.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}
