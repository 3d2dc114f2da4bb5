package enrich

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

var (
	affiliatePattern = regexp.MustCompile(`(?i)amzn\.to|geni\.us|bit\.ly|rstyle\.me|go\.magik\.ly|howl\.me|prf\.hn|shopstyle|shareasale|[?&]tag=|[?&]affid=|[?&]aff_id=|[?&]affiliate=`)
	yearPattern      = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})(?:[^0-9]|$)`)
)

// IsAffiliate reports whether rawURL is a known affiliate or tracking link.
func IsAffiliate(rawURL string) bool {
	return affiliatePattern.MatchString(rawURL)
}

// YearMatch compares the years mentioned in a link's URL and title with the
// candidate's model year.
func YearMatch(modelYear int, texts ...string) product.YearMatch {
	if modelYear == 0 {
		return product.YearMatchUnknown
	}
	found := false
	for _, text := range texts {
		for _, match := range yearPattern.FindAllStringSubmatch(text, -1) {
			year, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if year == modelYear {
				return product.YearMatchExact
			}
			found = true
		}
	}
	if found {
		return product.YearMatchMismatch
	}
	return product.YearMatchUnknown
}

func validLink(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	return raw, true
}

func webLink(c product.Candidate, raw rawLink) (product.Link, bool) {
	link, ok := validLink(raw.URL)
	if !ok {
		return product.Link{}, false
	}
	merchant := strings.TrimSpace(raw.Merchant)
	if merchant == "" {
		merchant = evidence.Domain(link)
	}
	return product.Link{
		URL:         link,
		Title:       strings.TrimSpace(raw.Title),
		Merchant:    merchant,
		Price:       strings.TrimSpace(raw.Price),
		Source:      product.LinkWeb,
		IsAffiliate: IsAffiliate(link),
		YearMatch:   YearMatch(c.ModelYear, link, raw.Title),
	}, true
}

// sourceLink points back at the page the candidate was identified from.
func sourceLink(c product.Candidate) (product.Link, bool) {
	link, ok := validLink(c.SourceURL)
	if !ok {
		return product.Link{}, false
	}
	source := product.LinkInference
	if c.Origin == product.OriginLibrary {
		source = product.LinkLibrary
	}
	return product.Link{
		URL:         link,
		Merchant:    evidence.Domain(link),
		Price:       c.Price,
		Source:      source,
		IsAffiliate: IsAffiliate(link),
		YearMatch:   YearMatch(c.ModelYear, link),
	}, true
}

func searchLink(c product.Candidate) product.Link {
	query := c.DisplayName()
	if c.ModelYear > 0 {
		query = fmt.Sprintf("%s %d", query, c.ModelYear)
	}
	return product.Link{
		URL:       "https://www.google.com/search?q=" + url.QueryEscape(query),
		Merchant:  "Google Search",
		Source:    product.LinkWeb,
		YearMatch: product.YearMatchUnknown,
	}
}

// applyYearWarnings flags every unconfirmed link when the model is older
// than last year.
func applyYearWarnings(links []product.Link, modelYear, currentYear int) {
	if modelYear == 0 || modelYear >= currentYear-1 {
		return
	}
	for i := range links {
		if links[i].YearMatch == product.YearMatchExact || links[i].YearWarning != "" {
			continue
		}
		if links[i].YearMatch == product.YearMatchMismatch {
			links[i].YearWarning = fmt.Sprintf("This listing appears to be for a different model year than your %d item.", modelYear)
			continue
		}
		links[i].YearWarning = fmt.Sprintf("Your item appears to be from %d. Verify the listing matches your model year.", modelYear)
	}
}
