package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vault-md/stringvault/internal/archive"
	"github.com/vault-md/stringvault/internal/config"
	"github.com/vault-md/stringvault/internal/entry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupArchive(t *testing.T) (*Archive, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultArchive(root)
	cfg.Parallelism = 4
	return New(cfg, nil), root
}

func newEntry(key, path, text string) *entry.StringEntry {
	e := entry.New(key, "en")
	e.StringPath = path
	e.Kind = "ui"
	e.EnsureLocale("en")
	e.UpdateText("en", text, true)
	return e
}

func createEntries(t *testing.T, a *Archive, root string, entries ...*entry.StringEntry) {
	t.Helper()
	for _, e := range entries {
		if err := a.Create(context.Background(), root, e); err != nil {
			t.Fatalf("Create(%s) returned error: %v", e.Key, err)
		}
	}
}

func loadIndex(t *testing.T, a *Archive, root string, skip []*entry.StringEntry) map[string]*entry.StringEntry {
	t.Helper()
	loaded, err := a.LoadAll(context.Background(), root, skip)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	return archive.Index(loaded)
}

func TestLoadAllFindsNestedEntries(t *testing.T) {
	a, root := setupArchive(t)

	greeting := newEntry("menu.greeting", "", "Hello")
	farewell := newEntry("menu.farewell", "menus/main", "Goodbye")
	deep := newEntry("deep key/1", "a/b/c/d", "Deep")
	createEntries(t, a, root, greeting, farewell, deep)

	if err := os.WriteFile(filepath.Join(root, "menus", "README.md"), []byte("not an entry"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	index := loadIndex(t, a, root, nil)
	if len(index) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(index))
	}

	got := index["menu.farewell"]
	if got.Origin.Locator != "menus/main/menu.farewell.yaml" {
		t.Fatalf("unexpected locator %q", got.Origin.Locator)
	}
	if got.Origin.AbsolutePath != filepath.Join(root, "menus", "main", "menu.farewell.yaml") {
		t.Fatalf("unexpected absolute path %q", got.Origin.AbsolutePath)
	}
	if index["deep key/1"].Origin.Locator != "a/b/c/d/deep%20key%2F1.yaml" {
		t.Fatalf("unexpected escaped locator %q", index["deep key/1"].Origin.Locator)
	}

	for _, want := range []*entry.StringEntry{greeting, farewell, deep} {
		if diff := cmp.Diff(want, index[want.Key], cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("loaded %s differs (-want +got):\n%s", want.Key, diff)
		}
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	a, root := setupArchive(t)
	ctx := context.Background()
	createEntries(t, a, root, newEntry("story.001", "story", "Once upon a time"))

	e := loadIndex(t, a, root, nil)["story.001"]
	e.EnsureLocale("de")
	e.UpdateTranslation("de", "Es war einmal", "en", e.GetText("en"))
	e.EnsureLocale("ja")
	e.UpdateText("ja", "むかしむかし", true)
	e.AddTrait("en", "reviewed")
	e.AddTrait("ja", "needs-audio")
	e.AddStringTrait("locked", true)
	e.EnsureLocale("fr")
	e.UpdateText("fr", "Il e\u0301tait une fois", true)
	e.Comment = "Narrator intro"
	e.ShouldCount = false

	if err := a.Save(ctx, e); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if e.GetText("fr") != "Il \u00e9tait une fois" {
		t.Fatalf("expected Save to normalize text, got %q", e.GetText("fr"))
	}

	reloaded, err := a.Reload(ctx, e)
	if err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if reloaded == e {
		t.Fatalf("Reload must return a new instance")
	}
	if diff := cmp.Diff(e, reloaded, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("reload differs (-saved +reloaded):\n%s", diff)
	}

	rescanned := loadIndex(t, a, root, nil)["story.001"]
	if diff := cmp.Diff(e, rescanned, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("rescan differs (-saved +rescanned):\n%s", diff)
	}

	modified, err := a.IsFileModified(e)
	if err != nil {
		t.Fatalf("IsFileModified returned error: %v", err)
	}
	if modified {
		t.Fatalf("entry should not be modified right after Save")
	}
}

func TestReloadLeavesCallerInstanceUntouched(t *testing.T) {
	a, root := setupArchive(t)
	createEntries(t, a, root, newEntry("k", "", "stored"))

	e := loadIndex(t, a, root, nil)["k"]
	e.UpdateText("en", "unsaved edit", true)

	fresh, err := a.Reload(context.Background(), e)
	if err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if fresh.GetText("en") != "stored" || e.GetText("en") != "unsaved edit" {
		t.Fatalf("unexpected texts fresh=%q caller=%q", fresh.GetText("en"), e.GetText("en"))
	}
}

func TestIncrementalLoadSkipsKnownFiles(t *testing.T) {
	a, root := setupArchive(t)
	createEntries(t, a, root,
		newEntry("one", "", "1"),
		newEntry("two", "nested", "2"),
	)

	first, err := a.LoadAll(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}

	// Corrupt every file: a second load that parsed anything would fail.
	for _, e := range first {
		if err := os.WriteFile(e.Origin.AbsolutePath, []byte("key: [broken"), 0o600); err != nil {
			t.Fatalf("WriteFile error: %v", err)
		}
	}

	second, err := a.LoadAll(context.Background(), root, first)
	if err != nil {
		t.Fatalf("incremental LoadAll returned error: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("expected %d entries, got %d", len(first), len(second))
	}
	firstIndex := archive.Index(first)
	for _, e := range second {
		if firstIndex[e.Key] != e {
			t.Fatalf("expected skipped entry %s to be reused verbatim", e.Key)
		}
	}
}

func TestIncrementalLoadParsesNewAndDropsDeleted(t *testing.T) {
	a, root := setupArchive(t)
	ctx := context.Background()
	createEntries(t, a, root, newEntry("keep", "", "k"), newEntry("gone", "", "g"))

	first, err := a.LoadAll(ctx, root, nil)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	index := archive.Index(first)
	if err := a.Delete(ctx, index["gone"]); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	createEntries(t, a, root, newEntry("fresh", "", "f"))

	second := loadIndex(t, a, root, first)
	if len(second) != 2 || second["keep"] != index["keep"] || second["fresh"] == nil {
		t.Fatalf("unexpected incremental result %v", second)
	}
	if _, ok := second["gone"]; ok {
		t.Fatalf("deleted entry must not be returned")
	}
}

func TestLoadAllFailsFastOnParseError(t *testing.T) {
	a, root := setupArchive(t)
	createEntries(t, a, root, newEntry("good", "", "ok"))

	bad := filepath.Join(root, "broken", "bad.yaml")
	if err := os.MkdirAll(filepath.Dir(bad), 0o750); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}
	if err := os.WriteFile(bad, []byte("key: [oops"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	entries, err := a.LoadAll(context.Background(), root, nil)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if entries != nil {
		t.Fatalf("expected no partial result, got %d entries", len(entries))
	}
	var pe *archive.ParseError
	if !errors.As(err, &pe) || pe.Path != bad {
		t.Fatalf("expected ParseError for %s, got %v", bad, err)
	}
}

func TestLoadAllCancelled(t *testing.T) {
	a, root := setupArchive(t)
	createEntries(t, a, root, newEntry("a", "", "a"), newEntry("b", "x", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries, err := a.LoadAll(ctx, root, nil)
	if !errors.Is(err, archive.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if entries != nil {
		t.Fatalf("expected no partial result")
	}
}

func TestLoadAllRejectsLongPaths(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultArchive(root)
	writer := New(cfg, nil)
	createEntries(t, writer, root, newEntry("a-rather-long-key-name", "some/nested/dir", "x"))

	cfg.MaxPathLength = len(root) + 5
	a := New(cfg, nil)
	_, err := a.LoadAll(context.Background(), root, nil)
	var tooLong *archive.PathTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("expected PathTooLongError, got %v", err)
	}
	if !strings.HasSuffix(tooLong.Path, "a-rather-long-key-name.yaml") {
		t.Fatalf("unexpected path %q", tooLong.Path)
	}
}

func TestIsFileModified(t *testing.T) {
	a, root := setupArchive(t)
	createEntries(t, a, root, newEntry("k", "", "v"))
	e := loadIndex(t, a, root, nil)["k"]

	modified, err := a.IsFileModified(e)
	if err != nil || modified {
		t.Fatalf("untouched file reported modified=%v err=%v", modified, err)
	}

	later := e.ModificationDate.Add(time.Hour)
	if err := os.WriteFile(e.Origin.AbsolutePath, []byte("key: k\nsource: en\n"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if err := os.Chtimes(e.Origin.AbsolutePath, later, later); err != nil {
		t.Fatalf("Chtimes error: %v", err)
	}
	if modified, _ := a.IsFileModified(e); !modified {
		t.Fatalf("expected external rewrite to be detected")
	}

	if err := os.Remove(e.Origin.AbsolutePath); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if modified, _ := a.IsFileModified(e); !modified {
		t.Fatalf("expected missing file to count as modified")
	}
}

func TestSaveAfterExternalDeleteFails(t *testing.T) {
	a, root := setupArchive(t)
	ctx := context.Background()
	createEntries(t, a, root, newEntry("k", "sub", "v"))
	e := loadIndex(t, a, root, nil)["k"]

	if err := os.Remove(e.Origin.AbsolutePath); err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	err := a.Save(ctx, e)
	if !errors.Is(err, archive.ErrMissingBackingFile) {
		t.Fatalf("expected missing file error, got %v", err)
	}
	if FileExists(e.Origin.AbsolutePath) {
		t.Fatalf("Save must not recreate the file")
	}

	if _, err := a.Reload(ctx, e); !errors.Is(err, archive.ErrMissingBackingFile) {
		t.Fatalf("expected missing file error from Reload, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	a, root := setupArchive(t)
	ctx := context.Background()
	createEntries(t, a, root, newEntry("a", "", "a"), newEntry("b", "", "b"))
	index := loadIndex(t, a, root, nil)

	if err := a.Delete(ctx, index["a"]); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	after := loadIndex(t, a, root, nil)
	if _, ok := after["a"]; ok || len(after) != 1 {
		t.Fatalf("expected only b after delete, got %v", after)
	}

	if err := a.Delete(ctx, index["a"]); !errors.Is(err, archive.ErrMissingBackingFile) {
		t.Fatalf("expected missing file error on second delete, got %v", err)
	}
}

func TestCreateRefusesExistingFile(t *testing.T) {
	a, root := setupArchive(t)
	createEntries(t, a, root, newEntry("dup", "", "a"))
	if err := a.Create(context.Background(), root, newEntry("dup", "", "b")); err == nil {
		t.Fatalf("expected Create to refuse an existing file")
	}
}

func TestSaveAllUnsupported(t *testing.T) {
	a, _ := setupArchive(t)
	if err := a.SaveAll(context.Background()); !errors.Is(err, archive.ErrSaveAllUnsupported) {
		t.Fatalf("expected ErrSaveAllUnsupported, got %v", err)
	}
	if a.HasUnsavedChanges() {
		t.Fatalf("file archive never buffers changes")
	}
}

func TestNotifications(t *testing.T) {
	a, root := setupArchive(t)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		kinds []archive.EventKind
	)
	unsubscribe := a.Subscribe(func(ev archive.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})
	defer unsubscribe()

	e := newEntry("k", "", "v")
	createEntries(t, a, root, e)
	if _, err := a.LoadAll(ctx, root, nil); err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if err := a.Save(ctx, e); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := a.Reload(ctx, e); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if err := a.Delete(ctx, e); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	want := []archive.EventKind{
		archive.EventCreated, archive.EventLoaded, archive.EventSaved,
		archive.EventReloaded, archive.EventDeleted,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestRootOf(t *testing.T) {
	o := entry.Origin{
		AbsolutePath: filepath.Join("/data", "strings", "menus", "a.yaml"),
		Locator:      "menus/a.yaml",
	}
	if got := rootOf(o); got != filepath.Join("/data", "strings") {
		t.Fatalf("unexpected root %q", got)
	}
}

func TestCreateReloadKeepsLeadingLineBreaks(t *testing.T) {
	a, root := setupArchive(t)
	ctx := context.Background()

	texts := []string{"\n", "\n\n", "\nlead", "\n\nlead"}
	for i, text := range texts {
		e := newEntry(fmt.Sprintf("breaks.%d", i), "breaks", text)
		e.AddTrait("en", "reviewed")
		createEntries(t, a, root, e)

		if got := e.GetTraitData("en", "reviewed").LocaleText; got != text {
			t.Fatalf("trait snapshot %q, want %q", got, text)
		}
		reloaded, err := a.Reload(ctx, e)
		if err != nil {
			t.Fatalf("Reload returned error: %v", err)
		}
		if diff := cmp.Diff(e, reloaded, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("text %q differs after reload (-created +reloaded):\n%s", text, diff)
		}
	}

	index := loadIndex(t, a, root, nil)
	for i, text := range texts {
		e := index[fmt.Sprintf("breaks.%d", i)]
		if e.GetText("en") != text {
			t.Errorf("rescanned text %q, want %q", e.GetText("en"), text)
		}
		if trait := e.GetTraitData("en", "reviewed"); trait == nil || trait.LocaleText != text {
			t.Errorf("rescanned trait for %q lost its snapshot: %+v", text, trait)
		}
	}
}

func TestCreateRejectsLocatorOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	if err := os.Mkdir(root, 0o750); err != nil {
		t.Fatalf("Mkdir error: %v", err)
	}
	a := New(config.DefaultArchive(root), nil)

	tests := []struct {
		name string
		e    *entry.StringEntry
	}{
		{name: "string path", e: newEntry("evil", "../outside", "x")},
		{name: "nested string path", e: newEntry("evil", "a/../../outside", "x")},
		{name: "explicit locator", e: func() *entry.StringEntry {
			e := newEntry("evil", "", "x")
			e.Origin.Locator = "../outside/evil.yaml"
			return e
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Create(context.Background(), root, tt.e)
			var outside *OutsideRootError
			if !errors.As(err, &outside) {
				t.Fatalf("expected OutsideRootError, got %v", err)
			}
			if FileExists(filepath.Join(parent, "outside", "evil.yaml")) {
				t.Fatalf("Create wrote a file outside the root")
			}
		})
	}
}

func TestSaveTruncatesLongerContent(t *testing.T) {
	a, root := setupArchive(t)
	ctx := context.Background()
	createEntries(t, a, root, newEntry("k", "", strings.Repeat("long text ", 50)))
	e := loadIndex(t, a, root, nil)["k"]

	e.UpdateText("en", "short", true)
	if err := a.Save(ctx, e); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	reloaded, err := a.Reload(ctx, e)
	if err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if diff := cmp.Diff(e, reloaded, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("reload differs (-saved +reloaded):\n%s", diff)
	}
}

// cancelAfter returns a logger that cancels ctx once it has seen n progress
// messages from the scan.
func cancelAfter(n int64, cancel context.CancelFunc) *zap.Logger {
	var seen atomic.Int64
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(io.Discard),
		zapcore.DebugLevel,
	)
	return zap.New(core, zap.Hooks(func(ent zapcore.Entry) error {
		if ent.Message != "read directory" && ent.Message != "parsed entry" {
			return nil
		}
		if seen.Add(1) == n {
			cancel()
		}
		return nil
	}))
}

func TestLoadAllCancelledMidScan(t *testing.T) {
	root := t.TempDir()
	writer := New(config.DefaultArchive(root), nil)
	for i := range 20 {
		dir := fmt.Sprintf("d%d", i%4)
		createEntries(t, writer, root, newEntry(fmt.Sprintf("k%02d", i), dir, "v"))
	}

	// 5 directory reads and 20 parses
	for _, n := range []int64{1, 3, 5, 6, 12, 25} {
		t.Run(fmt.Sprintf("after %d", n), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cfg := config.DefaultArchive(root)
			cfg.Parallelism = 3
			a := New(cfg, cancelAfter(n, cancel))

			var loaded atomic.Bool
			unsubscribe := a.Subscribe(func(ev archive.Event) {
				if ev.Kind == archive.EventLoaded {
					loaded.Store(true)
				}
			})
			defer unsubscribe()

			entries, err := a.LoadAll(ctx, root, nil)
			if !errors.Is(err, archive.ErrCancelled) || !errors.Is(err, context.Canceled) {
				t.Fatalf("expected cancellation, got %v", err)
			}
			if entries != nil {
				t.Fatalf("expected no partial result, got %d entries", len(entries))
			}
			if loaded.Load() {
				t.Fatalf("cancelled scan must not publish a loaded event")
			}
		})
	}
}
