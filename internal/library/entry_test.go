package library

import (
	"testing"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

func TestKeyForUsesCanonicalQuery(t *testing.T) {
	a := urlEvidence(t, "https://www.brand.example/product-x?utm_campaign=spring")
	b := urlEvidence(t, "https://brand.example/product-x/")
	keyA, okA := KeyFor(a)
	keyB, okB := KeyFor(b)
	if !okA || !okB || keyA != keyB {
		t.Fatalf("expected equal keys, got %q %q", keyA, keyB)
	}
	if keyA[:4] != "url:" {
		t.Fatalf("expected url prefix, got %q", keyA)
	}
	if _, ok := KeyFor(evidence.Evidence{Kind: evidence.KindImage, Digest: "abc"}); ok {
		t.Fatal("image evidence should not be keyed")
	}
}

func TestNewEntryPicksBestCandidate(t *testing.T) {
	ev := evidence.Evidence{Kind: evidence.KindText, Text: "my bag has a qi10 driver", Digest: "d"}
	entry := NewEntry("text:d", ev, []product.Candidate{
		{Name: "Putter", Confidence: 0.5},
		{Name: "Qi10 Driver", Brand: "TaylorMade", Category: "driver", Confidence: 1.4},
	}, true, time.Now())
	if entry.Name != "Qi10 Driver" || entry.Confidence != 1 {
		t.Fatalf("unexpected summary %+v", entry)
	}
	if entry.Query != "my bag has a qi10 driver" || entry.Domain != "" {
		t.Fatalf("unexpected query/domain %q %q", entry.Query, entry.Domain)
	}
	for _, candidate := range entry.Served() {
		if candidate.Origin != product.OriginLibrary {
			t.Fatalf("served candidates must be library-sourced, got %q", candidate.Origin)
		}
	}
}

func TestRedisHashRoundTrip(t *testing.T) {
	entry := Entry{
		Key:              "url:k",
		Kind:             "url",
		Query:            "https://brand.example/x",
		Domain:           "brand.example",
		Name:             "X",
		Confidence:       0.875,
		ScrapeSuccessful: true,
		Candidates:       []product.Candidate{{Name: "X", Confidence: 0.875}},
		HitCount:         3,
		LastHitAt:        time.UnixMilli(1_700_000_000_000).UTC(),
		CreatedAt:        time.UnixMilli(1_600_000_000_000).UTC(),
		UpdatedAt:        time.UnixMilli(1_650_000_000_000).UTC(),
	}
	raw, err := entryToHash(entry)
	if err != nil {
		t.Fatalf("entryToHash: %v", err)
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = v.(string)
	}
	got, err := entryFromHash(fields)
	if err != nil {
		t.Fatalf("entryFromHash: %v", err)
	}
	if got.Confidence != entry.Confidence || got.HitCount != 3 || !got.LastHitAt.Equal(entry.LastHitAt) || !got.ScrapeSuccessful {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Candidates) != 1 || got.Candidates[0].Name != "X" {
		t.Fatalf("candidates lost: %+v", got.Candidates)
	}
}

func TestComputeStatsOrdersDomains(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{Domain: "b.example", Confidence: 0.9, ScrapeSuccessful: true, HitCount: 2, LastHitAt: now},
		{Domain: "a.example", Confidence: 0.5, ScrapeSuccessful: true},
		{Domain: "b.example", Confidence: 0.8, HitCount: 1, LastHitAt: now.Add(-48 * time.Hour)},
	}
	stats := computeStats(entries, now.Add(-RecentWindow))
	if stats.HighConfidence != 2 || stats.ScrapeFailures != 1 || stats.TotalHits != 3 || stats.RecentHits != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.TopDomains[0].Domain != "b.example" || stats.TopDomains[0].Count != 2 {
		t.Fatalf("unexpected top domains %+v", stats.TopDomains)
	}
}
