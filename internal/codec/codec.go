// Package codec encodes string entries to and from their YAML backing document.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vault-md/stringvault/internal/entry"
	"github.com/vault-md/stringvault/internal/textnorm"
)

// ErrMissingKey is returned when a document has no key.
var ErrMissingKey = errors.New("codec: document has no key")

// text is always written double-quoted, which keeps leading line breaks
// intact across a round trip.
type text string

func (t text) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Style: yaml.DoubleQuotedStyle,
		Value: string(t),
	}, nil
}

type document struct {
	Key            string      `yaml:"key"`
	Source         string      `yaml:"source"`
	Kind           string      `yaml:"kind,omitempty"`
	Speaker        string      `yaml:"speaker,omitempty"`
	SpeakerGender  string      `yaml:"speaker_gender,omitempty"`
	ParentID       string      `yaml:"parent_id,omitempty"`
	OwnerLink      string      `yaml:"owner_link,omitempty"`
	StringPath     string      `yaml:"string_path,omitempty"`
	AttachmentPath string      `yaml:"attachment_path,omitempty"`
	Comment        text        `yaml:"comment,omitempty"`
	ShouldCount    *bool       `yaml:"should_count,omitempty"`
	StringTraits   []traitDoc  `yaml:"string_traits,omitempty"`
	Locales        []localeDoc `yaml:"locales,omitempty"`
}

type localeDoc struct {
	Locale            string     `yaml:"locale"`
	Text              text       `yaml:"text"`
	Modified          time.Time  `yaml:"modified,omitempty"`
	TranslatedFrom    *string    `yaml:"translated_from,omitempty"`
	TranslationDate   *time.Time `yaml:"translation_date,omitempty"`
	OriginalText      text       `yaml:"original_text,omitempty"`
	TranslatedComment text       `yaml:"translated_comment,omitempty"`
	Traits            []traitDoc `yaml:"traits,omitempty"`
}

type traitDoc struct {
	Trait     string    `yaml:"trait"`
	Modified  time.Time `yaml:"modified,omitempty"`
	Text      text      `yaml:"text"`
	IsVirtual bool      `yaml:"virtual,omitempty"`
}

// Encode renders e as a YAML document. Locales are written in sorted order.
// ModificationDate and Origin are not part of the document; archives stamp
// them from their own change clock.
func Encode(e *entry.StringEntry) ([]byte, error) {
	doc := document{
		Key:            e.Key,
		Source:         string(e.Source),
		Kind:           e.Kind,
		Speaker:        e.Speaker,
		SpeakerGender:  e.SpeakerGender,
		ParentID:       e.ParentID,
		OwnerLink:      e.OwnerLink,
		StringPath:     e.StringPath,
		AttachmentPath: e.AttachmentPath,
		Comment:        text(e.Comment),
		StringTraits:   encodeTraits(e.StringTraits),
	}
	if !e.ShouldCount {
		shouldCount := false
		doc.ShouldCount = &shouldCount
	}

	for _, locale := range e.Locales() {
		l := e.Languages[locale]
		ld := localeDoc{
			Locale:            string(locale),
			Text:              text(l.Text),
			Modified:          l.ModificationDate,
			TranslationDate:   l.TranslationDate,
			OriginalText:      text(l.OriginalText),
			TranslatedComment: text(l.TranslatedComment),
			Traits:            encodeTraits(l.Traits),
		}
		if l.TranslatedFrom != nil {
			from := string(*l.TranslatedFrom)
			ld.TranslatedFrom = &from
		}
		doc.Locales = append(doc.Locales, ld)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode %q: %w", e.Key, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode %q: %w", e.Key, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a YAML document into a new entry. Missing provenance fields
// leave the locale untranslated and a missing should_count defaults to true.
func Decode(data []byte) (*entry.StringEntry, error) {
	var doc document
	if err := yaml.Unmarshal(textnorm.StripBOM(data), &doc); err != nil {
		return nil, err
	}
	if doc.Key == "" {
		return nil, ErrMissingKey
	}

	e := entry.New(doc.Key, entry.Locale(doc.Source))
	e.Kind = doc.Kind
	e.Speaker = doc.Speaker
	e.SpeakerGender = doc.SpeakerGender
	e.ParentID = doc.ParentID
	e.OwnerLink = doc.OwnerLink
	e.StringPath = doc.StringPath
	e.AttachmentPath = doc.AttachmentPath
	e.Comment = string(doc.Comment)
	if doc.ShouldCount != nil {
		e.ShouldCount = *doc.ShouldCount
	}

	var err error
	if e.StringTraits, err = decodeTraits(doc.StringTraits); err != nil {
		return nil, err
	}

	for _, ld := range doc.Locales {
		locale := entry.Locale(ld.Locale)
		if _, dup := e.Languages[locale]; dup {
			return nil, fmt.Errorf("duplicate locale %q", ld.Locale)
		}
		l := &entry.LocaleEntry{
			Locale:            locale,
			Text:              string(ld.Text),
			ModificationDate:  ld.Modified,
			OriginalText:      string(ld.OriginalText),
			TranslatedComment: string(ld.TranslatedComment),
		}
		if ld.TranslatedFrom != nil && *ld.TranslatedFrom != "" {
			from := entry.Locale(*ld.TranslatedFrom)
			l.TranslatedFrom = &from
			l.TranslationDate = ld.TranslationDate
		}
		if l.Traits, err = decodeTraits(ld.Traits); err != nil {
			return nil, fmt.Errorf("locale %q: %w", ld.Locale, err)
		}
		e.Languages[locale] = l
	}

	return e, nil
}

func encodeTraits(traits []entry.TraitRecord) []traitDoc {
	if len(traits) == 0 {
		return nil
	}
	out := make([]traitDoc, 0, len(traits))
	for _, t := range traits {
		out = append(out, traitDoc{
			Trait:     t.Trait,
			Modified:  t.ModificationDate,
			Text:      text(t.LocaleText),
			IsVirtual: t.IsVirtual,
		})
	}
	return out
}

func decodeTraits(docs []traitDoc) ([]entry.TraitRecord, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(docs))
	out := make([]entry.TraitRecord, 0, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.Trait]; dup {
			return nil, fmt.Errorf("duplicate trait %q", d.Trait)
		}
		seen[d.Trait] = struct{}{}
		out = append(out, entry.TraitRecord{
			Trait:            d.Trait,
			ModificationDate: d.Modified,
			LocaleText:       string(d.Text),
			IsVirtual:        d.IsVirtual,
		})
	}
	return out, nil
}
