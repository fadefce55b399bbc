package usecase

import (
	"encoding/csv"
	"io"

	"github.com/vault-md/stringvault/internal/entry"
)

// ExportCSV writes one key,source,translation row per entry. Entries without
// text in locale fall back to their source text. With countedOnly set,
// entries excluded from statistics are left out.
func ExportCSV(w io.Writer, entries []*entry.StringEntry, locale entry.Locale, comma rune, countedOnly bool) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}

	if err := cw.Write([]string{"key", "source", "translation"}); err != nil {
		return err
	}
	for _, e := range entries {
		if countedOnly && !e.ShouldCount {
			continue
		}
		source := e.SourceText()
		translation := source
		if l := e.GetLocale(locale); l != nil && l.Text != "" {
			translation = l.Text
		}
		if err := cw.Write([]string{e.Key, source, translation}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
