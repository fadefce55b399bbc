// Package mcp exposes the read side of a string archive as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/vault-md/stringvault/internal/archive"
	"github.com/vault-md/stringvault/internal/entry"
	"github.com/vault-md/stringvault/internal/usecase"
)

// Server answers read-only queries about the entries under one root. The
// scanned entries are cached until the archive reports a change.
type Server struct {
	server  *mcp.Server
	catalog *usecase.Catalog
	logger  *zap.Logger

	stale       atomic.Bool
	unsubscribe func()
}

// NewServer creates a server over a and registers its tools.
func NewServer(a archive.Archive, root, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "stringvault",
		Version: version,
	}, nil)

	s := &Server{
		server:  mcpServer,
		catalog: usecase.NewCatalog(a, root, logger),
		logger:  logger.Named("mcp"),
	}
	s.stale.Store(true)
	s.unsubscribe = a.Subscribe(s.onEvent)

	s.registerTools()
	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close drops the archive subscriptions.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.catalog.Close()
}

func (s *Server) onEvent(ev archive.Event) {
	switch ev.Kind {
	case archive.EventCreated, archive.EventSaved, archive.EventDeleted:
		s.stale.Store(true)
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "strings_list",
		Description: "List string entries, optionally filtered by key prefix or locale",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "strings_get_text",
		Description: "Get the text of one locale of a string entry",
	}, s.handleGetText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "strings_get_traits",
		Description: "Get the traits of a locale, or the entry-scoped traits when no locale is given",
	}, s.handleGetTraits)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "strings_get_locale",
		Description: "Get a locale record with its translation provenance",
	}, s.handleGetLocale)
}

// entries returns the cached scan, rescanning when the archive changed or
// when forced.
func (s *Server) entries(ctx context.Context, force bool) ([]*entry.StringEntry, error) {
	if !force && !s.stale.CompareAndSwap(true, false) {
		return s.catalog.Entries(), nil
	}
	s.stale.Store(false)
	entries, err := s.catalog.Scan(ctx)
	if err != nil {
		s.stale.Store(true)
		return nil, err
	}
	s.logger.Debug("rescanned", zap.Int("entries", len(entries)))
	return entries, nil
}

func (s *Server) find(ctx context.Context, key string) (*entry.StringEntry, error) {
	if _, err := s.entries(ctx, false); err != nil {
		return nil, err
	}
	e := s.catalog.Find(key)
	if e == nil {
		return nil, fmt.Errorf("entry not found: %s", key)
	}
	return e, nil
}

type ListInput struct {
	Prefix string `json:"prefix,omitempty" jsonschema:"only list keys starting with this prefix"`
	Locale string `json:"locale,omitempty" jsonschema:"only list entries that have text in this locale"`
	Rescan bool   `json:"rescan,omitempty" jsonschema:"rescan the archive before listing"`
}

type ListOutput struct {
	Entries []ListEntry `json:"entries"`
}

type ListEntry struct {
	Key     string   `json:"key"`
	Locator string   `json:"locator"`
	Source  string   `json:"source"`
	Text    string   `json:"text"`
	Locales []string `json:"locales"`
}

type TextInput struct {
	Key    string `json:"key" jsonschema:"the string key"`
	Locale string `json:"locale" jsonschema:"the locale, e.g. en or pt-BR"`
}

type TextOutput struct {
	Key    string `json:"key"`
	Locale string `json:"locale"`
	Text   string `json:"text"`
	Exists bool   `json:"exists"`
}

type TraitsInput struct {
	Key    string `json:"key" jsonschema:"the string key"`
	Locale string `json:"locale,omitempty" jsonschema:"the locale; omit for entry-scoped traits"`
}

type TraitsOutput struct {
	Traits []Trait `json:"traits"`
}

type Trait struct {
	Trait    string `json:"trait"`
	Modified string `json:"modified"`
	Snapshot string `json:"snapshot"`
	Stale    bool   `json:"stale"`
	Virtual  bool   `json:"virtual,omitempty"`
}

type LocaleOutput struct {
	Key               string  `json:"key"`
	Locale            string  `json:"locale"`
	Text              string  `json:"text"`
	Modified          string  `json:"modified"`
	TranslatedFrom    *string `json:"translatedFrom,omitempty"`
	TranslationDate   *string `json:"translationDate,omitempty"`
	OriginalText      string  `json:"originalText,omitempty"`
	TranslatedComment string  `json:"translatedComment,omitempty"`
	Traits            []Trait `json:"traits"`
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	entries, err := s.entries(ctx, input.Rescan)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("failed to scan strings: %w", err)
	}

	out := ListOutput{Entries: make([]ListEntry, 0, len(entries))}
	for _, e := range entries {
		if input.Prefix != "" && !strings.HasPrefix(e.Key, input.Prefix) {
			continue
		}
		if input.Locale != "" && e.GetLocale(entry.Locale(input.Locale)) == nil {
			continue
		}
		locales := make([]string, 0, len(e.Languages))
		for _, l := range e.Locales() {
			locales = append(locales, string(l))
		}
		out.Entries = append(out.Entries, ListEntry{
			Key:     e.Key,
			Locator: e.Origin.Locator,
			Source:  string(e.Source),
			Text:    e.SourceText(),
			Locales: locales,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetText(ctx context.Context, req *mcp.CallToolRequest, input TextInput) (*mcp.CallToolResult, TextOutput, error) {
	e, err := s.find(ctx, input.Key)
	if err != nil {
		return nil, TextOutput{}, err
	}
	locale := entry.Locale(input.Locale)
	return nil, TextOutput{
		Key:    e.Key,
		Locale: input.Locale,
		Text:   e.GetText(locale),
		Exists: e.GetLocale(locale) != nil,
	}, nil
}

func (s *Server) handleGetTraits(ctx context.Context, req *mcp.CallToolRequest, input TraitsInput) (*mcp.CallToolResult, TraitsOutput, error) {
	e, err := s.find(ctx, input.Key)
	if err != nil {
		return nil, TraitsOutput{}, err
	}

	if input.Locale == "" {
		return nil, TraitsOutput{Traits: toTraits(e.StringTraits, e.SourceText())}, nil
	}
	l := e.GetLocale(entry.Locale(input.Locale))
	if l == nil {
		return nil, TraitsOutput{}, fmt.Errorf("locale %s not found in %s", input.Locale, input.Key)
	}
	return nil, TraitsOutput{Traits: toTraits(l.Traits, l.Text)}, nil
}

func (s *Server) handleGetLocale(ctx context.Context, req *mcp.CallToolRequest, input TextInput) (*mcp.CallToolResult, LocaleOutput, error) {
	e, err := s.find(ctx, input.Key)
	if err != nil {
		return nil, LocaleOutput{}, err
	}
	l := e.GetLocale(entry.Locale(input.Locale))
	if l == nil {
		return nil, LocaleOutput{}, fmt.Errorf("locale %s not found in %s", input.Locale, input.Key)
	}

	out := LocaleOutput{
		Key:               e.Key,
		Locale:            string(l.Locale),
		Text:              l.Text,
		Modified:          formatTime(l.ModificationDate),
		OriginalText:      l.OriginalText,
		TranslatedComment: l.TranslatedComment,
		Traits:            toTraits(l.Traits, l.Text),
	}
	if l.TranslatedFrom != nil {
		from := string(*l.TranslatedFrom)
		out.TranslatedFrom = &from
	}
	if l.TranslationDate != nil {
		date := formatTime(*l.TranslationDate)
		out.TranslationDate = &date
	}
	return nil, out, nil
}

func toTraits(records []entry.TraitRecord, current string) []Trait {
	traits := make([]Trait, 0, len(records))
	for _, t := range records {
		traits = append(traits, Trait{
			Trait:    t.Trait,
			Modified: formatTime(t.ModificationDate),
			Snapshot: t.LocaleText,
			Stale:    t.IsStale(current),
			Virtual:  t.IsVirtual,
		})
	}
	return traits
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
