package usecase

import (
	"sort"
	"strings"

	"github.com/vault-md/stringvault/internal/entry"
)

// LocaleStats summarizes one locale across a set of entries.
type LocaleStats struct {
	Locale     entry.Locale `json:"locale"`
	Entries    int          `json:"entries"`
	Words      int          `json:"words"`
	Translated int          `json:"translated"`
	Missing    int          `json:"missing"`
}

// Stats counts entries and words per locale. Entries with ShouldCount unset
// are left out entirely. Missing counts entries that lack the locale.
func Stats(entries []*entry.StringEntry) []LocaleStats {
	byLocale := make(map[entry.Locale]*LocaleStats)
	counted := 0
	for _, e := range entries {
		if !e.ShouldCount {
			continue
		}
		counted++
		for _, locale := range e.Locales() {
			s, ok := byLocale[locale]
			if !ok {
				s = &LocaleStats{Locale: locale}
				byLocale[locale] = s
			}
			l := e.Languages[locale]
			s.Entries++
			s.Words += len(strings.Fields(l.Text))
			if l.IsTranslated() {
				s.Translated++
			}
		}
	}

	result := make([]LocaleStats, 0, len(byLocale))
	for _, s := range byLocale {
		s.Missing = counted - s.Entries
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Locale < result[j].Locale })
	return result
}
