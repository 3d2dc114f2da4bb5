package library

import (
	"sort"
	"strings"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

// HighConfidenceThreshold separates "high confidence" entries in Stats.
const HighConfidenceThreshold = 0.8

const (
	topDomainLimit = 10
	maxQueryRunes  = 200
)

// Entry is one cached resolution.
type Entry struct {
	Key              string              `json:"key"`
	Kind             string              `json:"kind"`
	Query            string              `json:"query"`
	Domain           string              `json:"domain,omitempty"`
	Brand            string              `json:"brand,omitempty"`
	Name             string              `json:"name"`
	Category         string              `json:"category,omitempty"`
	Confidence       float64             `json:"confidence"`
	ScrapeSuccessful bool                `json:"scrapeSuccessful"`
	Candidates       []product.Candidate `json:"candidates"`
	HitCount         int64               `json:"hitCount"`
	LastHitAt        time.Time           `json:"lastHitAt,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// DomainCount is a per-domain entry count.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Stats summarizes library contents.
type Stats struct {
	TotalEntries   int           `json:"totalEntries"`
	HighConfidence int           `json:"highConfidence"`
	ScrapeFailures int           `json:"scrapeFailures"`
	TotalHits      int64         `json:"totalHits"`
	RecentHits     int           `json:"recentHits"`
	TopDomains     []DomainCount `json:"topDomains"`
}

// KeyFor returns the library key for URL and text evidence. Visual evidence
// is not cached because its candidates depend on the census context.
func KeyFor(ev evidence.Evidence) (string, bool) {
	if ev.Digest == "" {
		return "", false
	}
	switch ev.Kind {
	case evidence.KindURL, evidence.KindText:
		return string(ev.Kind) + ":" + ev.Digest, true
	default:
		return "", false
	}
}

// NewEntry builds an entry for key from resolved candidates. The highest
// confidence candidate supplies the summary columns.
func NewEntry(key string, ev evidence.Evidence, candidates []product.Candidate, scrapeSuccessful bool, now time.Time) Entry {
	entry := Entry{
		Key:              key,
		Kind:             string(ev.Kind),
		Query:            queryFor(ev),
		Domain:           evidence.Domain(ev.URL),
		ScrapeSuccessful: scrapeSuccessful,
		Candidates:       make([]product.Candidate, 0, len(candidates)),
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}
	for _, candidate := range candidates {
		candidate.Confidence = product.ClampConfidence(candidate.Confidence)
		candidate.Origin = product.OriginInference
		entry.Candidates = append(entry.Candidates, candidate)
	}
	sort.SliceStable(entry.Candidates, func(i, j int) bool {
		return entry.Candidates[i].Confidence > entry.Candidates[j].Confidence
	})
	if len(entry.Candidates) > 0 {
		best := entry.Candidates[0]
		entry.Brand = best.Brand
		entry.Name = best.Name
		entry.Category = best.Category
		entry.Confidence = best.Confidence
	}
	return entry
}

// Served returns the cached candidates marked as library-sourced.
func (e Entry) Served() []product.Candidate {
	out := make([]product.Candidate, 0, len(e.Candidates))
	for _, candidate := range e.Candidates {
		candidate.Origin = product.OriginLibrary
		out = append(out, candidate)
	}
	return out
}

func queryFor(ev evidence.Evidence) string {
	if ev.Kind == evidence.KindURL {
		return ev.URL
	}
	runes := []rune(ev.Text)
	if len(runes) > maxQueryRunes {
		runes = runes[:maxQueryRunes]
	}
	return strings.TrimSpace(string(runes))
}

func computeStats(entries []Entry, since time.Time) Stats {
	stats := Stats{TotalEntries: len(entries)}
	domains := make(map[string]int)
	for _, entry := range entries {
		if entry.Confidence >= HighConfidenceThreshold {
			stats.HighConfidence++
		}
		if !entry.ScrapeSuccessful {
			stats.ScrapeFailures++
		}
		stats.TotalHits += entry.HitCount
		if !entry.LastHitAt.IsZero() && !entry.LastHitAt.Before(since) {
			stats.RecentHits++
		}
		if entry.Domain != "" {
			domains[entry.Domain]++
		}
	}
	stats.TopDomains = topDomains(domains)
	return stats
}

func topDomains(counts map[string]int) []DomainCount {
	out := make([]DomainCount, 0, len(counts))
	for domain, count := range counts {
		out = append(out, DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > topDomainLimit {
		out = out[:topDomainLimit]
	}
	return out
}
