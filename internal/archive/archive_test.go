package archive

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/vault-md/stringvault/internal/entry"
)

func TestNotifierSubscribeAndCancel(t *testing.T) {
	var n Notifier
	var got []EventKind
	cancel := n.Subscribe(func(ev Event) { got = append(got, ev.Kind) })

	n.Publish(Event{Kind: EventSaved})
	cancel()
	n.Publish(Event{Kind: EventDeleted})

	if len(got) != 1 || got[0] != EventSaved {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestNotifierUnsubscribeInsideCallback(t *testing.T) {
	var n Notifier
	calls := 0
	var cancel func()
	cancel = n.Subscribe(func(Event) {
		calls++
		cancel()
	})
	n.Publish(Event{Kind: EventLoaded})
	n.Publish(Event{Kind: EventLoaded})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestMissingFileErrorMatching(t *testing.T) {
	err := error(&MissingFileError{Op: "save", Path: "/x.yaml"})
	if !errors.Is(err, ErrMissingBackingFile) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected MissingFileError to match sentinels")
	}
}

func TestCancelledMatchesCause(t *testing.T) {
	err := Cancelled(context.Canceled)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected both sentinels to match, got %v", err)
	}
}

func TestParseErrorUnwraps(t *testing.T) {
	cause := errors.New("bad yaml")
	err := error(&ParseError{Path: "/a.yaml", Err: cause})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Path != "/a.yaml" || !errors.Is(err, cause) {
		t.Fatalf("unexpected parse error %v", err)
	}
}

type stubArchive struct {
	Archive
	modified map[string]bool
}

func (s stubArchive) IsFileModified(e *entry.StringEntry) (bool, error) {
	return s.modified[e.Key], nil
}

func TestUnmodifiedAndIndex(t *testing.T) {
	a := entry.New("a", "en")
	b := entry.New("b", "en")
	stub := stubArchive{modified: map[string]bool{"b": true}}

	got, err := Unmodified(stub, []*entry.StringEntry{a, b})
	if err != nil {
		t.Fatalf("Unmodified returned error: %v", err)
	}
	if len(got) != 1 || got[0] != a {
		t.Fatalf("expected only a, got %v", got)
	}

	index := Index([]*entry.StringEntry{a, b})
	if index["a"] != a || index["b"] != b {
		t.Fatalf("unexpected index %v", index)
	}
}
