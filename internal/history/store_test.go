package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newStore(t *testing.T, max int) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"), max)
	if err := store.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreNewestFirstAndDeduplicated(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 10)
	t1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	for i, q := range []string{"http", "redis", "http"} {
		if err := store.Append(ctx, Entry{Query: q, ExecutedAt: t1.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("append %q: %v", q, err)
		}
	}
	got, err := store.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %+v", got)
	}
	if got[0].Query != "http" || got[1].Query != "redis" {
		t.Fatalf("expected re-sent query on top, got %q then %q", got[0].Query, got[1].Query)
	}
	if !got[0].ExecutedAt.Equal(t1.Add(2 * time.Minute)) {
		t.Fatalf("expected timestamp to move forward, got %v", got[0].ExecutedAt)
	}
}

func TestStoreBounded(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 2)
	base := time.Now()
	for i, q := range []string{"a", "b", "c"} {
		if err := store.Append(ctx, Entry{Query: q, ExecutedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := store.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(got) != 2 || got[0].Query != "c" || got[1].Query != "b" {
		t.Fatalf("expected [c b], got %+v", got)
	}
}

func TestStoreIgnoresBlankAndSearches(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 10)
	for _, q := range []string{"  ", `http and request.path == "/api"`, "amqp"} {
		if err := store.Append(ctx, Entry{Query: q}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	all, err := store.Entries(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 entries, got %+v (%v)", all, err)
	}
	found, err := store.Search(ctx, "HTTP")
	if err != nil || len(found) != 1 || found[0].ID == "" {
		t.Fatalf("unexpected search result %+v (%v)", found, err)
	}
}

func TestStoreDeleteAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	store := NewStore(path, 0)
	if err := store.Append(ctx, Entry{ID: "one", Query: "http"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, Entry{ID: "two", Query: "grpc"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	ok, err := store.Delete(ctx, "one")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := store.Delete(ctx, "missing"); ok {
		t.Fatalf("expected no row deleted")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewStore(path, 0)
	defer reopened.Close()
	got, err := reopened.Entries(ctx)
	if err != nil || len(got) != 1 || got[0].ID != "two" {
		t.Fatalf("unexpected entries after reopen %+v (%v)", got, err)
	}
}
