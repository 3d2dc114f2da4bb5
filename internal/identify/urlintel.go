package identify

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/brettericmartin/teed-sub011/internal/product"
)

// URLIntel is everything a product URL reveals without a network request.
type URLIntel struct {
	URL         string
	Domain      string
	Known       bool
	Info        DomainInfo
	Brand       string
	Category    string
	Retailer    bool
	Slug        string
	Name        string
	ModelNumber string
	SKU         string
	Confidence  float64
}

const (
	urlBaseConfidence = 0.3
	urlMaxConfidence  = 0.85
)

var productPathIndicators = map[string]struct{}{
	"p": {}, "product": {}, "products": {}, "pd": {}, "dp": {}, "item": {}, "items": {},
	"detail": {}, "details": {}, "view": {}, "gp": {},
}

var nonProductPaths = map[string]struct{}{
	"shop": {}, "buy": {}, "store": {}, "category": {}, "categories": {}, "collection": {},
	"collections": {}, "men": {}, "women": {}, "mens": {}, "womens": {}, "kids": {}, "sale": {},
	"new": {}, "featured": {}, "search": {}, "cart": {}, "checkout": {}, "account": {},
	"help": {}, "about": {},
}

var pureCategoryWords = map[string]struct{}{
	"men": {}, "women": {}, "mens": {}, "womens": {}, "unisex": {}, "boys": {}, "girls": {},
	"kids": {}, "children": {}, "tops": {}, "bottoms": {}, "pants": {}, "shorts": {},
	"joggers": {}, "jackets": {}, "hoodies": {}, "shirts": {}, "shoes": {}, "sneakers": {},
	"boots": {}, "sandals": {}, "running": {}, "training": {}, "accessories": {}, "bags": {},
	"hats": {}, "socks": {}, "new": {}, "sale": {}, "featured": {}, "clearance": {},
	"outlet": {}, "golf": {}, "tennis": {}, "yoga": {}, "hiking": {}, "outdoor": {},
	"gym": {}, "fitness": {},
}

var categoryPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(men|women|mens|womens|unisex|boys|girls|kids|children|youth|adult)s?$`),
	regexp.MustCompile(`(?i)^(tops|bottoms|pants|shorts|joggers|jackets|hoodies|sweaters|shirts|tees|t-shirts|dresses|skirts|jeans|leggings|activewear)$`),
	regexp.MustCompile(`(?i)^(shoes|sneakers|boots|sandals|slippers|running|training|casual|dress|athletic)$`),
	regexp.MustCompile(`(?i)^(accessories|bags|hats|caps|belts|socks|gloves|scarves|sunglasses|watches|jewelry)$`),
	regexp.MustCompile(`(?i)^(new|sale|featured|trending|bestsellers|bestselling|clearance|outlet|arrivals|latest)$`),
	regexp.MustCompile(`(?i)^(golf|tennis|running|yoga|hiking|outdoor|gym|fitness|training|sports|athletic)$`),
}

var skuPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b([A-Z]{2,4}\d{4,8})\b`),
	regexp.MustCompile(`(?i)\b([A-Z]+-\w+-\d+)\b`),
	regexp.MustCompile(`(?i)\bB0[A-Z0-9]{8,10}\b`),
	regexp.MustCompile(`\b(\d{5,10})\b`),
	regexp.MustCompile(`(?i)\b([A-Z]{2,3}-\d{3,6})\b`),
	regexp.MustCompile(`(?i)\b([A-Z]{1,2}\d{2,4}[A-Z]{1,3})\b`),
}

var (
	fileExtPattern      = regexp.MustCompile(`(?i)\.(html?|aspx?|php|jsp)$`)
	idLikePattern       = regexp.MustCompile(`(?i)^(prod\d+|[A-Z]{2,4}\d{5,}|sku[-_]?\d+)$`)
	skuSlugPattern      = regexp.MustCompile(`(?i)^[A-Z]{2,3}-[A-Z0-9]{4,7}$`)
	wordPattern         = regexp.MustCompile(`[a-zA-Z]{3,}`)
	multiSepPattern     = regexp.MustCompile(`[-_]{2,}`)
	sepPattern          = regexp.MustCompile(`[-_+]`)
	camelPattern        = regexp.MustCompile(`([a-z])([A-Z])`)
	digitLetterPattern  = regexp.MustCompile(`(\d)([a-zA-Z])`)
	artifactPattern     = regexp.MustCompile(`(?i)\b(html|htm|aspx?|php|jsp)\b`)
	skuSuffixPattern    = regexp.MustCompile(`(?i)\s+[A-Z]{2,3}\d{3,}$`)
	sizeSuffixPattern   = regexp.MustCompile(`(?i)\s+(Xs|S|M|L|Xl|Xxl|2xl|3xl)\s*$`)
	leadingJoinPattern  = regexp.MustCompile(`^[-–—|:\s]+`)
	domainLabelSplitter = regexp.MustCompile(`[-_]+`)
)

// ParseURL extracts brand, slug, model number, and a URL-only confidence
// from raw. Unparseable input yields a zero URLIntel.
func (c *Catalog) ParseURL(raw string) URLIntel {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		parsed, err = url.Parse("https://" + raw)
		if err != nil || parsed.Hostname() == "" {
			return URLIntel{URL: raw}
		}
	}

	intel := URLIntel{
		URL:    raw,
		Domain: strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www."),
	}
	if info, ok := c.Lookup(intel.Domain); ok {
		intel.Known = true
		intel.Info = info
		intel.Brand = info.Brand
		intel.Category = info.Category
		intel.Retailer = info.Retailer
	}

	var parts []string
	for _, part := range strings.Split(parsed.Path, "/") {
		if part == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(part); err == nil {
			part = unescaped
		}
		parts = append(parts, part)
	}
	intel.Slug = extractSlug(parts)
	if intel.Retailer && intel.Slug != "" {
		if brand := c.BrandFromSlug(intel.Slug); brand != "" {
			intel.Brand = brand
		}
	}
	intel.Name = c.Humanize(intel.Slug, intel.Brand)

	query := parsed.Query()
	for _, key := range []string{"sku", "productId", "id", "pid", "skuId"} {
		if value := strings.TrimSpace(query.Get(key)); value != "" {
			intel.SKU = value
			break
		}
	}
	for _, pattern := range skuPatterns {
		if match := pattern.FindStringSubmatch(raw); match != nil {
			intel.ModelNumber = match[len(match)-1]
			break
		}
	}

	confidence := urlBaseConfidence
	if intel.Brand != "" && !intel.Retailer {
		confidence += 0.25
	}
	if intel.Slug != "" {
		confidence += 0.15
	}
	if len(intel.Name) > 5 {
		confidence += 0.15
	}
	if intel.ModelNumber != "" {
		confidence += 0.1
	}
	if confidence > urlMaxConfidence {
		confidence = urlMaxConfidence
	}
	intel.Confidence = confidence
	return intel
}

// ProductName joins a non-retailer brand with the humanized slug.
func (u URLIntel) ProductName() string {
	var parts []string
	if u.Brand != "" && !u.Retailer {
		parts = append(parts, u.Brand)
	}
	if name := stripBrandPrefix(u.Name, u.Brand); name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}

// Guess builds the best candidate URL intelligence alone supports. The brand
// falls back to the first domain label when the domain is unknown.
func (u URLIntel) Guess(ref string) (product.Candidate, bool) {
	brand := u.Brand
	if brand == "" && !u.Retailer {
		brand = domainBrand(u.Domain)
	}
	name := u.Name
	if name == "" {
		if brand == "" {
			return product.Candidate{}, false
		}
		name = brand + " product"
	}
	return product.Candidate{
		Name:        name,
		Brand:       brand,
		Category:    u.Category,
		SourceURL:   u.URL,
		Confidence:  product.ClampConfidence(u.Confidence),
		Source:      product.SourceURL,
		Origin:      product.OriginURL,
		EvidenceRef: ref,
		Reasoning:   "derived from the URL without page content",
	}, true
}

func domainBrand(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return ""
	}
	label := labels[len(labels)-2]
	if len(labels) > 2 && len(label) <= 3 {
		// co.uk, com.au
		label = labels[len(labels)-3]
	}
	words := domainLabelSplitter.Split(label, -1)
	caser := cases.Title(language.English)
	for i, word := range words {
		words[i] = caser.String(word)
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func extractSlug(parts []string) string {
	for i, part := range parts {
		if _, ok := productPathIndicators[strings.ToLower(part)]; !ok {
			continue
		}
		type scored struct {
			slug  string
			score int
		}
		var candidates []scored
		for j := 1; j <= 4 && i+j < len(parts); j++ {
			candidate := parts[i+j]
			if strings.HasPrefix(candidate, "_") {
				continue
			}
			if _, ok := productPathIndicators[strings.ToLower(candidate)]; ok {
				continue
			}
			candidates = append(candidates, scored{slug: candidate, score: scoreSlug(candidate)})
		}
		if len(candidates) > 0 {
			sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].score > candidates[b].score })
			return cleanSlug(candidates[0].slug)
		}
	}

	best, bestScore := "", 0
	for _, part := range parts {
		if _, skip := nonProductPaths[strings.ToLower(part)]; skip || len(part) <= 3 {
			continue
		}
		if !strings.ContainsFunc(part, isASCIILetter) {
			continue
		}
		if score := scoreSlug(part); score > bestScore {
			best, bestScore = part, score
		}
	}
	if best == "" {
		return ""
	}
	return cleanSlug(best)
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func scoreSlug(slug string) int {
	cleaned := fileExtPattern.ReplaceAllString(slug, "")
	lower := strings.ToLower(cleaned)
	score := 0

	if _, ok := pureCategoryWords[lower]; ok {
		score -= 50
	}
	for _, pattern := range categoryPathPatterns {
		if pattern.MatchString(slug) {
			score -= 30
			break
		}
	}
	if idLikePattern.MatchString(cleaned) {
		score -= 20
	}
	if skuSlugPattern.MatchString(cleaned) {
		score -= 30
	}
	if strings.HasPrefix(lower, "ref=") {
		score -= 50
	}
	if cleaned == "_" {
		score -= 40
	}
	if hyphens := strings.Count(cleaned, "-"); hyphens > 0 {
		score += 20 + min(hyphens*5, 25)
	}
	score += min(len(cleaned), 50)

	hasLower := strings.ContainsFunc(cleaned, func(r rune) bool { return r >= 'a' && r <= 'z' })
	hasUpper := strings.ContainsFunc(cleaned, func(r rune) bool { return r >= 'A' && r <= 'Z' })
	hasDigit := strings.ContainsFunc(cleaned, func(r rune) bool { return r >= '0' && r <= '9' })
	if hasLower && hasUpper {
		score += 10
	}
	if (hasLower || hasUpper) && hasDigit && strings.Contains(cleaned, "-") && wordPattern.MatchString(cleaned) {
		score += 10
	}
	return score
}

func cleanSlug(slug string) string {
	slug = fileExtPattern.ReplaceAllString(slug, "")
	if idx := strings.IndexByte(slug, '?'); idx >= 0 {
		slug = slug[:idx]
	}
	return strings.TrimSpace(slug)
}

// Humanize turns a URL slug into a product name: separators become spaces,
// words are title-cased (short all-caps tokens are kept), known model names
// are re-cased, and a leading brand is removed.
func (c *Catalog) Humanize(slug, brand string) string {
	if len(slug) < 3 {
		return ""
	}
	name := multiSepPattern.ReplaceAllString(slug, " - ")
	name = sepPattern.ReplaceAllString(name, " ")
	name = camelPattern.ReplaceAllString(name, "$1 $2")
	name = digitLetterPattern.ReplaceAllString(name, "$1 $2")
	name = artifactPattern.ReplaceAllString(name, "")

	caser := cases.Title(language.English)
	words := strings.Fields(name)
	for i, word := range words {
		if word == strings.ToUpper(word) && len([]rune(word)) <= 5 {
			continue
		}
		words[i] = caser.String(word)
	}
	name = c.FixModelNames(strings.Join(words, " "))
	name = skuSuffixPattern.ReplaceAllString(name, "")
	name = sizeSuffixPattern.ReplaceAllString(name, "")
	name = stripBrandPrefix(name, brand)
	if len(name) < 3 {
		return ""
	}
	return name
}

func stripBrandPrefix(name, brand string) string {
	name = strings.TrimSpace(name)
	brand = strings.TrimSpace(brand)
	if brand == "" || len(name) < len(brand) || !strings.EqualFold(name[:len(brand)], brand) {
		return name
	}
	return strings.TrimSpace(leadingJoinPattern.ReplaceAllString(name[len(brand):], ""))
}
