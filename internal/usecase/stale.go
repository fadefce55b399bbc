package usecase

import (
	"sort"

	"github.com/vault-md/stringvault/internal/entry"
)

// StaleTrait is a trait whose text snapshot no longer matches the text it
// was applied to. Locale is empty for entry-scoped traits, which are
// compared against the source text.
type StaleTrait struct {
	Key      string       `json:"key"`
	Locale   entry.Locale `json:"locale,omitempty"`
	Trait    string       `json:"trait"`
	Snapshot string       `json:"snapshot"`
	Current  string       `json:"current"`
}

// StaleTraits reports every stale trait in entries, ordered by key, locale
// and trait name.
func StaleTraits(entries []*entry.StringEntry) []StaleTrait {
	var result []StaleTrait
	for _, e := range entries {
		source := e.SourceText()
		for _, t := range e.StringTraits {
			if t.IsStale(source) {
				result = append(result, StaleTrait{Key: e.Key, Trait: t.Trait, Snapshot: t.LocaleText, Current: source})
			}
		}
		for _, locale := range e.Locales() {
			l := e.Languages[locale]
			for _, t := range l.Traits {
				if t.IsStale(l.Text) {
					result = append(result, StaleTrait{Key: e.Key, Locale: locale, Trait: t.Trait, Snapshot: t.LocaleText, Current: l.Text})
				}
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Locale != b.Locale {
			return a.Locale < b.Locale
		}
		return a.Trait < b.Trait
	})
	return result
}
