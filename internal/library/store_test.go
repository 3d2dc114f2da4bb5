package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "library.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func urlEvidence(t *testing.T, raw string) evidence.Evidence {
	t.Helper()
	ev, err := evidence.Normalize(evidence.Item{Kind: evidence.KindURL, URL: raw}, evidence.Limits{MaxItems: 10, MaxPayloadBytes: 1 << 20, MaxTextChars: 1000})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return ev
}

func TestSQLiteStoreContract(t *testing.T) {
	exerciseStore(t, openTestSQLite(t))
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	ev := urlEvidence(t, "https://www.brand.example/product-x?utm_source=feed")
	key, ok := KeyFor(ev)
	if !ok {
		t.Fatal("expected URL evidence to have a library key")
	}
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	entry := NewEntry(key, ev, []product.Candidate{
		{Name: "Product X", Brand: "Brand", Category: "golf", Confidence: 0.9, Source: product.SourceURL},
		{Name: "Product X Mini", Brand: "Brand", Confidence: 0.4, Source: product.SourceURL},
	}, true, created)

	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := store.Lookup(ctx, key, 0.85)
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	if got.Name != "Product X" || got.Brand != "Brand" || got.Domain != "brand.example" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if len(got.Candidates) != 2 || got.Candidates[0].Confidence != 0.9 {
		t.Fatalf("unexpected candidates %+v", got.Candidates)
	}
	if _, ok, _ := store.Lookup(ctx, key, 0.95); ok {
		t.Fatal("lookup above cached confidence should miss")
	}

	hitAt := created.Add(time.Hour)
	hit, err := store.RecordHit(ctx, key, hitAt)
	if err != nil {
		t.Fatalf("RecordHit: %v", err)
	}
	if hit.HitCount != 1 || !hit.LastHitAt.Equal(hitAt) {
		t.Fatalf("expected hitCount=1 lastHitAt=%v, got %d %v", hitAt, hit.HitCount, hit.LastHitAt)
	}
	hit, err = store.RecordHit(ctx, key, hitAt.Add(time.Minute))
	if err != nil || hit.HitCount != 2 {
		t.Fatalf("second hit: count=%d err=%v", hit.HitCount, err)
	}

	// A re-resolution keeps hit count and creation time.
	updated := NewEntry(key, ev, []product.Candidate{{Name: "Product X", Brand: "Brand", Confidence: 0.92}}, true, created.Add(2*time.Hour))
	if err := store.Upsert(ctx, updated); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	again, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if again.HitCount != 2 || !again.CreatedAt.Equal(created) || again.Confidence != 0.92 {
		t.Fatalf("unexpected entry after update %+v", again)
	}

	// A later fetch failure must not clobber the successful resolution.
	guess := NewEntry(key, ev, []product.Candidate{{Name: "Product X Guess", Confidence: 0.5}}, false, created.Add(3*time.Hour))
	if err := store.Upsert(ctx, guess); err != nil {
		t.Fatalf("Upsert failed scrape over success: %v", err)
	}
	kept, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get after failed scrape: ok=%v err=%v", ok, err)
	}
	if !kept.ScrapeSuccessful || kept.Name != "Product X" || kept.Confidence != 0.92 || kept.HitCount != 2 {
		t.Fatalf("successful entry was overwritten: %+v", kept)
	}

	if _, err := store.RecordHit(ctx, "url:missing", hitAt); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	failed := NewEntry("url:failed", urlEvidence(t, "https://shop.example/p/1"), []product.Candidate{{Name: "Guess", Confidence: 0.5}}, false, created)
	if err := store.Upsert(ctx, failed); err != nil {
		t.Fatalf("Upsert failed scrape: %v", err)
	}
	if _, ok, _ := store.Lookup(ctx, "url:failed", 0); ok {
		t.Fatal("entries with failed scrapes must never serve as hits")
	}

	stats, err := store.Stats(ctx, hitAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEntries != 2 || stats.HighConfidence != 1 || stats.ScrapeFailures != 1 || stats.TotalHits != 2 || stats.RecentHits != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.TopDomains) != 2 {
		t.Fatalf("expected two domains, got %+v", stats.TopDomains)
	}

	// A successful scrape upgrades a failed one.
	upgraded := NewEntry("url:failed", urlEvidence(t, "https://shop.example/p/1"), []product.Candidate{{Name: "Shop Item", Confidence: 0.9}}, true, created)
	if err := store.Upsert(ctx, upgraded); err != nil {
		t.Fatalf("Upsert upgrade: %v", err)
	}
	if got, ok, _ := store.Lookup(ctx, "url:failed", 0.85); !ok || got.Name != "Shop Item" {
		t.Fatalf("expected upgraded entry to serve, got ok=%v %+v", ok, got)
	}

	list, err := store.List(ctx, 1)
	if err != nil || len(list) != 1 || list[0].Key != key {
		t.Fatalf("List(1) = %+v, %v", list, err)
	}

	removed, err := store.Remove(ctx, "url:failed")
	if err != nil || !removed {
		t.Fatalf("Remove: removed=%v err=%v", removed, err)
	}
	removed, _ = store.Remove(ctx, "url:failed")
	if removed {
		t.Fatal("second remove should report false")
	}

	cleared, err := store.Clear(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("Clear: %d %v", cleared, err)
	}
	if list, _ := store.List(ctx, 0); len(list) != 0 {
		t.Fatalf("expected empty library, got %d", len(list))
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	store, err := OpenSQLite(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	entry := Entry{Key: "text:abc", Kind: "text", Name: "Driver X", Confidence: 0.9, ScrapeSuccessful: true}
	if err := store.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	_ = store.Close()

	reopened, err := OpenSQLite(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.Get(context.Background(), "text:abc")
	if err != nil || !ok || got.Name != "Driver X" {
		t.Fatalf("Get after reopen: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestSQLiteStoreRejectsEmptyKey(t *testing.T) {
	store := openTestSQLite(t)
	err := store.Upsert(context.Background(), Entry{Name: "x"})
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if _, ok, err := store.Lookup(context.Background(), "  ", 0); ok || err != nil {
		t.Fatalf("blank lookup should miss quietly, ok=%v err=%v", ok, err)
	}
}
