package entry

import (
	"sort"
	"time"
)

// EnsureLocale returns the record for locale, creating an empty one if needed.
func (e *StringEntry) EnsureLocale(locale Locale) *LocaleEntry {
	if e.Languages == nil {
		e.Languages = make(map[Locale]*LocaleEntry)
	}
	if l, ok := e.Languages[locale]; ok {
		return l
	}
	l := &LocaleEntry{Locale: locale}
	e.Languages[locale] = l
	return l
}

// GetLocale returns the record for locale or nil. It never creates one.
func (e *StringEntry) GetLocale(locale Locale) *LocaleEntry {
	if e == nil || e.Languages == nil {
		return nil
	}
	return e.Languages[locale]
}

// Locales returns the locales present on the entry in sorted order.
func (e *StringEntry) Locales() []Locale {
	locales := make([]Locale, 0, len(e.Languages))
	for locale := range e.Languages {
		locales = append(locales, locale)
	}
	sort.Slice(locales, func(i, j int) bool { return locales[i] < locales[j] })
	return locales
}

// GetText returns the text for locale, or "" if the locale is absent.
func (e *StringEntry) GetText(locale Locale) string {
	if l := e.GetLocale(locale); l != nil {
		return l.Text
	}
	return ""
}

// SourceText returns the text of the entry's source locale.
func (e *StringEntry) SourceText() string {
	return e.GetText(e.Source)
}

// UpdateText replaces the text of an existing locale and reports whether it
// changed. Absent locales are left alone; call EnsureLocale first to create
// one. When updateDate is set, a change also advances the locale's
// ModificationDate. Traits are not touched.
func (e *StringEntry) UpdateText(locale Locale, text string, updateDate bool) bool {
	l := e.GetLocale(locale)
	if l == nil {
		return false
	}
	if l.Text == text {
		return false
	}
	l.Text = text
	if updateDate {
		l.ModificationDate = Now()
	}
	return true
}

// UpdateTranslation sets the text of an existing locale together with its
// provenance. ModificationDate and traits are left as they are.
func (e *StringEntry) UpdateTranslation(locale Locale, text string, translatedFrom Locale, originalText string) {
	l := e.GetLocale(locale)
	if l == nil {
		return
	}
	from := translatedFrom
	date := Now()
	l.Text = text
	l.TranslatedFrom = &from
	l.TranslationDate = &date
	l.OriginalText = originalText
}

// AddTrait applies a trait to locale, snapshotting its current text. It does
// nothing when the locale is absent.
func (e *StringEntry) AddTrait(locale Locale, trait string) {
	l := e.GetLocale(locale)
	if l == nil {
		return
	}
	l.Traits = applyTrait(l.Traits, trait, l.Text, false)
}

// RemoveTrait removes a trait from locale. Absent locales and traits are ignored.
func (e *StringEntry) RemoveTrait(locale Locale, trait string) {
	l := e.GetLocale(locale)
	if l == nil {
		return
	}
	l.Traits = removeTrait(l.Traits, trait)
}

// HasTrait reports whether locale carries trait.
func (e *StringEntry) HasTrait(locale Locale, trait string) bool {
	return e.GetTraitData(locale, trait) != nil
}

// GetTraitData returns a copy of the named locale trait, or nil.
func (e *StringEntry) GetTraitData(locale Locale, trait string) *TraitRecord {
	l := e.GetLocale(locale)
	if l == nil {
		return nil
	}
	return findTrait(l.Traits, trait)
}

// GetTraits returns the trait names on locale in the order they were added.
func (e *StringEntry) GetTraits(locale Locale) []string {
	l := e.GetLocale(locale)
	if l == nil {
		return nil
	}
	return traitNames(l.Traits)
}

// AddStringTrait applies an entry-scoped trait. The snapshot is the source text.
func (e *StringEntry) AddStringTrait(trait string, isVirtual bool) {
	e.StringTraits = applyTrait(e.StringTraits, trait, e.SourceText(), isVirtual)
}

// RemoveStringTrait removes an entry-scoped trait.
func (e *StringEntry) RemoveStringTrait(trait string) {
	e.StringTraits = removeTrait(e.StringTraits, trait)
}

// HasStringTrait reports whether the entry carries the entry-scoped trait.
func (e *StringEntry) HasStringTrait(trait string) bool {
	return findTrait(e.StringTraits, trait) != nil
}

// GetStringTraitData returns a copy of the named entry-scoped trait, or nil.
func (e *StringEntry) GetStringTraitData(trait string) *TraitRecord {
	return findTrait(e.StringTraits, trait)
}

// GetStringTraits returns the entry-scoped trait names.
func (e *StringEntry) GetStringTraits() []string {
	return traitNames(e.StringTraits)
}

// Clone returns a deep copy of the entry.
func (e *StringEntry) Clone() *StringEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.StringTraits = cloneTraits(e.StringTraits)
	c.Languages = make(map[Locale]*LocaleEntry, len(e.Languages))
	for locale, l := range e.Languages {
		c.Languages[locale] = l.clone()
	}
	return &c
}

func (l *LocaleEntry) clone() *LocaleEntry {
	c := *l
	if l.TranslatedFrom != nil {
		from := *l.TranslatedFrom
		c.TranslatedFrom = &from
	}
	if l.TranslationDate != nil {
		date := *l.TranslationDate
		c.TranslationDate = &date
	}
	c.Traits = cloneTraits(l.Traits)
	return &c
}

func applyTrait(traits []TraitRecord, name, text string, isVirtual bool) []TraitRecord {
	now := Now()
	for i := range traits {
		if traits[i].Trait == name {
			traits[i].LocaleText = text
			traits[i].ModificationDate = now
			traits[i].IsVirtual = isVirtual
			return traits
		}
	}
	return append(traits, TraitRecord{
		Trait:            name,
		ModificationDate: now,
		LocaleText:       text,
		IsVirtual:        isVirtual,
	})
}

func removeTrait(traits []TraitRecord, name string) []TraitRecord {
	for i := range traits {
		if traits[i].Trait == name {
			return append(traits[:i], traits[i+1:]...)
		}
	}
	return traits
}

func findTrait(traits []TraitRecord, name string) *TraitRecord {
	for i := range traits {
		if traits[i].Trait == name {
			t := traits[i]
			return &t
		}
	}
	return nil
}

func traitNames(traits []TraitRecord) []string {
	if len(traits) == 0 {
		return nil
	}
	names := make([]string, 0, len(traits))
	for _, t := range traits {
		names = append(names, t.Trait)
	}
	return names
}

func cloneTraits(traits []TraitRecord) []TraitRecord {
	if traits == nil {
		return nil
	}
	out := make([]TraitRecord, len(traits))
	copy(out, traits)
	return out
}

// LatestChange returns the most recent locale or trait timestamp on the entry.
func (e *StringEntry) LatestChange() time.Time {
	var latest time.Time
	bump := func(t time.Time) {
		if t.After(latest) {
			latest = t
		}
	}
	for _, t := range e.StringTraits {
		bump(t.ModificationDate)
	}
	for _, l := range e.Languages {
		bump(l.ModificationDate)
		for _, t := range l.Traits {
			bump(t.ModificationDate)
		}
	}
	return latest
}
