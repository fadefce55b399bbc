// Package entry provides the in-memory model for localized string entries:
// the entry itself, its per-locale records, and the trait annotations
// attached at both levels.
package entry

import (
	"time"
)

// Locale identifies a language or language/region pair, e.g. "en" or "pt-BR".
type Locale string

// Now is the clock used for every timestamp the model writes. Values are UTC.
var Now = func() time.Time {
	return time.Now().UTC()
}

// TraitRecord is a named annotation together with a snapshot of the text it
// was applied to. The snapshot is never refreshed on text edits, so a trait
// whose LocaleText differs from the current text has gone stale.
type TraitRecord struct {
	Trait            string
	ModificationDate time.Time
	LocaleText       string
	// IsVirtual is only set on entry-scoped traits and is left to callers to interpret.
	IsVirtual bool
}

// IsStale reports whether the text the trait was applied to differs from current.
func (t TraitRecord) IsStale(current string) bool {
	return t.LocaleText != current
}

// LocaleEntry holds one locale's text and translation provenance.
type LocaleEntry struct {
	Locale            Locale
	Text              string
	ModificationDate  time.Time
	TranslatedFrom    *Locale
	TranslationDate   *time.Time
	OriginalText      string
	TranslatedComment string
	Traits            []TraitRecord
}

// IsTranslated reports whether the record carries translation provenance.
func (l *LocaleEntry) IsTranslated() bool {
	return l != nil && l.TranslatedFrom != nil
}

// Origin records where an entry was loaded from. It is stamped by the
// archive and is what Save, Reload and Delete operate on.
type Origin struct {
	// AbsolutePath is the backing location: a file path for the file
	// archive, the database path for the sqlite archive.
	AbsolutePath string
	// Locator is the root-relative, slash-separated logical path.
	Locator string
}

// StringEntry is a single translatable unit tracked across locales.
//
//nolint:revive // StringEntry reads better than entry.String at call sites
type StringEntry struct {
	Key            string
	Source         Locale
	Kind           string
	Speaker        string
	SpeakerGender  string
	ParentID       string
	OwnerLink      string
	StringPath     string
	AttachmentPath string
	Comment        string

	// ModificationDate is the last time the backing representation was
	// known to change.
	ModificationDate time.Time
	ShouldCount      bool

	Languages    map[Locale]*LocaleEntry
	StringTraits []TraitRecord

	Origin Origin
}

// New returns an empty entry that counts towards aggregates.
func New(key string, source Locale) *StringEntry {
	return &StringEntry{
		Key:         key,
		Source:      source,
		ShouldCount: true,
		Languages:   make(map[Locale]*LocaleEntry),
	}
}
