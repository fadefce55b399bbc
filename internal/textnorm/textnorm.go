// Package textnorm canonicalizes text before it is written to a backing store.
package textnorm

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/vault-md/stringvault/internal/entry"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Normalize replaces invalid UTF-8 with U+FFFD and returns the NFC form of s.
func Normalize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return norm.NFC.String(s)
}

// StripBOM drops a leading UTF-8 byte order mark.
func StripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, bom)
}

// NormalizeEntry canonicalizes every text field of e in place, including
// trait snapshots, so that equal texts stay equal after a round trip.
func NormalizeEntry(e *entry.StringEntry) {
	for _, field := range []*string{
		&e.Key, &e.Kind, &e.Speaker, &e.SpeakerGender, &e.ParentID,
		&e.OwnerLink, &e.StringPath, &e.AttachmentPath, &e.Comment,
	} {
		*field = Normalize(*field)
	}
	normalizeTraits(e.StringTraits)

	for _, l := range e.Languages {
		l.Text = Normalize(l.Text)
		l.OriginalText = Normalize(l.OriginalText)
		l.TranslatedComment = Normalize(l.TranslatedComment)
		normalizeTraits(l.Traits)
	}
}

func normalizeTraits(traits []entry.TraitRecord) {
	for i := range traits {
		traits[i].Trait = Normalize(traits[i].Trait)
		traits[i].LocaleText = Normalize(traits[i].LocaleText)
	}
}
