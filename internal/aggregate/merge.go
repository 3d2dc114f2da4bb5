package aggregate

import (
	"sort"
	"strings"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/textutil"
)

const (
	defaultBonus      = 0.10
	defaultSimilarity = 0.8
	// Names shorter than this only merge by substring when brands agree.
	minSubstringName = 6
)

type group struct {
	merged  product.MergedCandidate
	best    float64
	sources map[product.SourceKind]struct{}
	keys    []matchKey
}

type matchKey struct {
	brand string
	name  string
	fp    *textutil.Fingerprint
}

func keyFor(c product.Candidate) matchKey {
	brand := textutil.NormalizeName(c.Brand)
	name := textutil.NormalizeName(c.Name)
	if brand != "" && strings.HasPrefix(name, brand+" ") {
		name = strings.TrimSpace(name[len(brand):])
	}
	return matchKey{
		brand: brand,
		name:  name,
		fp:    textutil.NewFingerprint(brand + " " + name),
	}
}

// Merge combines candidates from every channel, in the order given, into
// merged candidates. Merged confidence is the best contributor's confidence
// plus the corroboration bonus for each additional channel, capped at 1.
// Results are ordered by number of agreeing channels, then confidence.
func Merge(cfg config.Aggregate, channels ...[]product.Candidate) []product.MergedCandidate {
	bonus := cfg.CorroborationBonus
	if bonus < 0 {
		bonus = defaultBonus
	}
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSimilarity
	}

	var groups []*group
	for _, candidates := range channels {
		for _, c := range candidates {
			if !c.Valid() {
				continue
			}
			c.Confidence = product.ClampConfidence(c.Confidence)
			key := keyFor(c)
			if g := findGroup(groups, key, threshold); g != nil {
				g.add(c, key)
				continue
			}
			groups = append(groups, newGroup(c, key))
		}
	}

	out := make([]product.MergedCandidate, 0, len(groups))
	for _, g := range groups {
		g.merged.Confidence = product.ClampConfidence(g.best + bonus*float64(len(g.sources)-1))
		out = append(out, g.merged)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].CorroboratingSources) != len(out[j].CorroboratingSources) {
			return len(out[i].CorroboratingSources) > len(out[j].CorroboratingSources)
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func newGroup(c product.Candidate, key matchKey) *group {
	return &group{
		merged: product.MergedCandidate{
			Candidate:            c,
			CorroboratingSources: []product.SourceKind{c.Source},
			Contributors:         []product.Candidate{c},
		},
		best:    c.Confidence,
		sources: map[product.SourceKind]struct{}{c.Source: {}},
		keys:    []matchKey{key},
	}
}

// add folds c into the group. The most confident contributor supplies the
// identity; missing fields are filled from the others.
func (g *group) add(c product.Candidate, key matchKey) {
	g.merged.Contributors = append(g.merged.Contributors, c)
	g.keys = append(g.keys, key)
	if _, ok := g.sources[c.Source]; !ok {
		g.sources[c.Source] = struct{}{}
		g.merged.CorroboratingSources = append(g.merged.CorroboratingSources, c.Source)
	}
	primary, other := g.merged.Candidate, c
	if c.Confidence > g.best {
		g.best = c.Confidence
		primary, other = c, g.merged.Candidate
	}
	g.merged.Candidate = fillMissing(primary, other)
}

func fillMissing(primary, other product.Candidate) product.Candidate {
	if primary.Brand == "" {
		primary.Brand = other.Brand
	}
	if primary.Category == "" {
		primary.Category = other.Category
	}
	if primary.ModelYear == 0 {
		primary.ModelYear = other.ModelYear
	}
	if primary.Generation == "" {
		primary.Generation = other.Generation
	}
	if primary.Price == "" {
		primary.Price = other.Price
	}
	if primary.ImageURL == "" {
		primary.ImageURL = other.ImageURL
	}
	if primary.SourceURL == "" {
		primary.SourceURL = other.SourceURL
	}
	if len(primary.Specs) == 0 {
		primary.Specs = other.Specs
	}
	return primary
}

func findGroup(groups []*group, key matchKey, threshold float64) *group {
	for _, g := range groups {
		for _, existing := range g.keys {
			if sameProduct(existing, key, threshold) {
				return g
			}
		}
	}
	return nil
}

// sameProduct is fuzzy equality on normalized brand and name: exact match,
// substring containment, or token cosine similarity at or above threshold.
// Two different non-empty brands never match.
func sameProduct(a, b matchKey, threshold float64) bool {
	if a.brand != "" && b.brand != "" && a.brand != b.brand {
		return false
	}
	if a.name == "" || b.name == "" {
		return false
	}
	if a.name == b.name {
		return true
	}
	shorter, longer := a.name, b.name
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if containsWords(longer, shorter) {
		if a.brand != "" && a.brand == b.brand {
			return true
		}
		if len(shorter) >= minSubstringName {
			return true
		}
	}
	return textutil.CosineSimilarity(a.fp, b.fp) >= threshold
}

// containsWords reports whether needle appears in haystack on word boundaries,
// so "x" does not match inside "max".
func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
