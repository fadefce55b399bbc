package mcp

import (
	"context"
	"testing"

	"github.com/vault-md/stringvault/internal/config"
	"github.com/vault-md/stringvault/internal/entry"
	"github.com/vault-md/stringvault/internal/filesystem"
)

func setupServer(t *testing.T) (*Server, *filesystem.Archive, string) {
	t.Helper()
	root := t.TempDir()
	a := filesystem.New(config.DefaultArchive(root), nil)

	e := entry.New("menu.start", "en")
	e.EnsureLocale("en")
	e.UpdateText("en", "Start", true)
	e.AddTrait("en", "reviewed")
	e.AddStringTrait("locked", true)
	e.EnsureLocale("de")
	e.UpdateTranslation("de", "Starten", "en", "Start")
	if err := a.Create(context.Background(), root, e); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	s := NewServer(a, root, "test", nil)
	t.Cleanup(s.Close)
	return s, a, root
}

func TestHandleList(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupServer(t)

	_, out, err := s.handleList(ctx, nil, ListInput{})
	if err != nil {
		t.Fatalf("handleList returned error: %v", err)
	}
	if len(out.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(out.Entries))
	}
	got := out.Entries[0]
	if got.Key != "menu.start" || got.Text != "Start" || len(got.Locales) != 2 {
		t.Fatalf("unexpected entry %+v", got)
	}

	_, out, err = s.handleList(ctx, nil, ListInput{Locale: "fr"})
	if err != nil {
		t.Fatalf("handleList returned error: %v", err)
	}
	if len(out.Entries) != 0 {
		t.Fatalf("expected locale filter to drop the entry, got %d", len(out.Entries))
	}
}

func TestListPicksUpCreatedEntries(t *testing.T) {
	ctx := context.Background()
	s, a, root := setupServer(t)

	if _, _, err := s.handleList(ctx, nil, ListInput{}); err != nil {
		t.Fatalf("handleList returned error: %v", err)
	}

	e := entry.New("menu.quit", "en")
	e.EnsureLocale("en")
	e.UpdateText("en", "Quit", true)
	if err := a.Create(ctx, root, e); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, out, err := s.handleList(ctx, nil, ListInput{Prefix: "menu."})
	if err != nil {
		t.Fatalf("handleList returned error: %v", err)
	}
	if len(out.Entries) != 2 {
		t.Fatalf("expected created entry after invalidation, got %d", len(out.Entries))
	}
}

func TestHandleGetTextAndLocale(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupServer(t)

	_, text, err := s.handleGetText(ctx, nil, TextInput{Key: "menu.start", Locale: "de"})
	if err != nil {
		t.Fatalf("handleGetText returned error: %v", err)
	}
	if !text.Exists || text.Text != "Starten" {
		t.Fatalf("unexpected text %+v", text)
	}

	_, text, err = s.handleGetText(ctx, nil, TextInput{Key: "menu.start", Locale: "ja"})
	if err != nil {
		t.Fatalf("handleGetText returned error: %v", err)
	}
	if text.Exists || text.Text != "" {
		t.Fatalf("expected absent locale, got %+v", text)
	}

	_, locale, err := s.handleGetLocale(ctx, nil, TextInput{Key: "menu.start", Locale: "de"})
	if err != nil {
		t.Fatalf("handleGetLocale returned error: %v", err)
	}
	if locale.TranslatedFrom == nil || *locale.TranslatedFrom != "en" || locale.OriginalText != "Start" || locale.TranslationDate == nil {
		t.Fatalf("unexpected provenance %+v", locale)
	}

	if _, _, err := s.handleGetText(ctx, nil, TextInput{Key: "missing", Locale: "en"}); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestHandleGetTraits(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupServer(t)

	_, out, err := s.handleGetTraits(ctx, nil, TraitsInput{Key: "menu.start", Locale: "en"})
	if err != nil {
		t.Fatalf("handleGetTraits returned error: %v", err)
	}
	if len(out.Traits) != 1 || out.Traits[0].Trait != "reviewed" || out.Traits[0].Stale {
		t.Fatalf("unexpected locale traits %+v", out.Traits)
	}

	_, out, err = s.handleGetTraits(ctx, nil, TraitsInput{Key: "menu.start"})
	if err != nil {
		t.Fatalf("handleGetTraits returned error: %v", err)
	}
	if len(out.Traits) != 1 || !out.Traits[0].Virtual || out.Traits[0].Snapshot != "Start" {
		t.Fatalf("unexpected string traits %+v", out.Traits)
	}

	if _, _, err := s.handleGetTraits(ctx, nil, TraitsInput{Key: "menu.start", Locale: "pl"}); err == nil {
		t.Fatalf("expected error for missing locale")
	}
}
