package identify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const (
	maxBodyBytes        = 4 << 20
	defaultFetchBackoff = 500 * time.Millisecond
)

// Page holds the product signals extracted from one fetched page.
type Page struct {
	URL             string
	StatusCode      int
	Title           string
	H1              string
	MetaTitle       string
	MetaDescription string
	OG              OpenGraph
	Product         *StructuredProduct
	Excerpt         string
	Elapsed         time.Duration
}

// OpenGraph holds og:* and product:* meta properties.
type OpenGraph struct {
	Title       string
	Description string
	Image       string
	Price       string
	Currency    string
}

// StructuredProduct is a schema.org Product found in JSON-LD.
type StructuredProduct struct {
	Name        string
	Brand       string
	Description string
	Category    string
	Image       string
	Price       string
	Currency    string
	SKU         string
	MPN         string
	GTIN        string
}

// BestTitle picks the most specific title signal, with site-name suffixes removed.
func (p Page) BestTitle() string {
	if p.Product != nil && p.Product.Name != "" {
		return p.Product.Name
	}
	for _, candidate := range []string{p.OG.Title, p.H1, p.MetaTitle, p.Title} {
		if cleaned := cleanTitle(candidate); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

// Price returns the structured price, falling back to Open Graph.
func (p Page) Price() string {
	amount, currency := "", ""
	if p.Product != nil && p.Product.Price != "" {
		amount, currency = p.Product.Price, p.Product.Currency
	} else if p.OG.Price != "" {
		amount = p.OG.Price
	}
	if amount == "" {
		return ""
	}
	if currency == "" {
		currency = p.OG.Currency
	}
	if currency == "" {
		currency = "USD"
	}
	return amount + " " + currency
}

// Image returns the structured product image, falling back to og:image.
func (p Page) Image() string {
	if p.Product != nil && p.Product.Image != "" {
		return p.Product.Image
	}
	return p.OG.Image
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if idx := strings.LastIndexAny(title, "|–—"); idx > 0 {
		title = strings.TrimSpace(title[:idx])
	} else if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = strings.TrimSpace(title[:idx])
	}
	if strings.HasSuffix(title, ")") {
		if idx := strings.LastIndex(title, " ("); idx > 0 {
			title = strings.TrimSpace(title[:idx])
		}
	}
	return title
}

// Fetcher retrieves product pages.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// FetchOptions configures HTTPFetcher.
type FetchOptions struct {
	UserAgent string
	// Retries is the number of extra attempts after a transient failure.
	Retries int
	// MaxTextBytes bounds the readable excerpt kept for inference.
	MaxTextBytes int64
	Client       *http.Client
	Backoff      time.Duration
}

// HTTPFetcher fetches pages over HTTP with browser-like headers. The caller's
// context bounds the whole fetch including retries.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retries   int
	maxText   int64
	backoff   time.Duration
	logger    *slog.Logger
}

// NewHTTPFetcher constructs an HTTPFetcher.
func NewHTTPFetcher(opts FetchOptions, logger *slog.Logger) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultFetchBackoff
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: strings.TrimSpace(opts.UserAgent),
		retries:   retries,
		maxText:   opts.MaxTextBytes,
		backoff:   backoff,
		logger:    logging.NewComponentLogger(logger, "fetch"),
	}
}

// Fetch retrieves rawURL. Failures are tagged ErrFetchTimeout when the
// context deadline expires and ErrFetchFailed otherwise; cancellation by the
// caller is returned unwrapped.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	logger := logging.WithContext(ctx, f.logger)
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(f.backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return Page{}, f.classify(ctx, rawURL, ctx.Err())
			case <-timer.C:
			}
		}
		page, retry, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			page.Elapsed = time.Since(start)
			logger.Debug("page fetched",
				logging.String("url", rawURL),
				logging.Int("status", page.StatusCode),
				logging.Bool("structured", page.Product != nil),
				logging.Duration("duration", page.Elapsed),
			)
			return page, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		logger.Debug("page fetch retry",
			logging.String("url", rawURL),
			logging.Int("attempt", attempt+1),
			logging.Error(err),
		)
	}
	return Page{}, f.classify(ctx, rawURL, lastErr)
}

func (f *HTTPFetcher) classify(ctx context.Context, rawURL string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, services.ErrFetchFailed), errors.Is(err, services.ErrFetchTimeout):
		return err
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return services.Wrap(services.ErrFetchTimeout, stage, "fetch", rawURL, err)
	default:
		return services.Wrap(services.ErrFetchFailed, stage, "fetch", rawURL, err)
	}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (Page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, false, services.Wrap(services.ErrFetchFailed, stage, "fetch", "build request", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		reason := fmt.Sprintf("http %d", resp.StatusCode)
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			reason += " (blocked)"
		}
		return Page{}, retry, services.Wrap(services.ErrFetchFailed, stage, "fetch", reason, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, true, err
	}
	if isBotProtection(body) {
		return Page{}, false, services.Wrap(services.ErrFetchFailed, stage, "fetch", "bot protection page", nil)
	}
	pageURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		pageURL = resp.Request.URL.String()
	}
	page, err := extractPage(body, pageURL, f.maxText)
	if err != nil {
		return Page{}, false, services.Wrap(services.ErrFetchFailed, stage, "fetch", "parse page", err)
	}
	page.StatusCode = resp.StatusCode
	return page, false, nil
}

// challengeSignatures are vendor challenge markup and never appear on real
// product pages.
var challengeSignatures = []string{
	"cf-browser-verification",
	"cf-challenge",
	"px-captcha",
	"distil_r",
	"_incapsula_",
}

// challengePhrases are interstitial copy. They are only trusted on small
// pages without structured data, since a product page or its reviews can
// contain the same words.
var challengePhrases = []string{
	"pardon our interruption",
	"please verify you are a human",
	"checking your browser",
	"enable javascript and cookies",
	"please complete the security check",
	"just a moment...",
	"ddos protection by",
	"attention required",
	"unusual traffic",
}

const challengePageMaxBytes = 16 << 10

func isBotProtection(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, marker := range challengeSignatures {
		if bytes.Contains(lower, []byte(marker)) {
			return true
		}
	}
	if len(body) >= challengePageMaxBytes || bytes.Contains(lower, []byte("application/ld+json")) {
		return false
	}
	for _, phrase := range challengePhrases {
		if bytes.Contains(lower, []byte(phrase)) {
			return true
		}
	}
	if len(body) < 5000 && bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
		return true
	}
	if len(body) < 3000 && bytes.Contains(lower, []byte("<script")) && !bytes.Contains(lower, []byte("<body")) {
		return true
	}
	return false
}

func extractPage(body []byte, pageURL string, maxText int64) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	meta := func(selector string) string {
		return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
	}
	page := Page{
		URL:             pageURL,
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		H1:              collapseSpace(doc.Find("h1").First().Text()),
		MetaTitle:       meta(`meta[name="title"]`),
		MetaDescription: meta(`meta[name="description"]`),
		OG: OpenGraph{
			Title:       meta(`meta[property="og:title"]`),
			Description: meta(`meta[property="og:description"]`),
			Image:       meta(`meta[property="og:image"]`),
			Price:       meta(`meta[property="og:price:amount"], meta[property="product:price:amount"]`),
			Currency:    meta(`meta[property="og:price:currency"], meta[property="product:price:currency"]`),
		},
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if node := findProductNode(data); node != nil {
			product := structuredProduct(node)
			if product.Name != "" {
				page.Product = &product
				return false
			}
		}
		return true
	})

	if page.Product == nil {
		var base *url.URL
		if parsed, err := url.Parse(pageURL); err == nil {
			base = parsed
		}
		if article, err := readability.FromReader(bytes.NewReader(body), base); err == nil {
			page.Excerpt = truncateBytes(collapseSpace(article.TextContent), maxText)
		}
	}
	return page, nil
}

func findProductNode(data any) map[string]any {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if node := findProductNode(item); node != nil {
				return node
			}
		}
	case map[string]any:
		if isProductType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findProductNode(graph)
		}
	}
	return nil
}

func isProductType(value any) bool {
	switch t := value.(type) {
	case string:
		return t == "Product" || t == "ProductGroup"
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

func structuredProduct(node map[string]any) StructuredProduct {
	product := StructuredProduct{
		Name:        jsonString(node["name"]),
		Description: jsonString(node["description"]),
		Category:    jsonString(node["category"]),
		Image:       jsonImage(node["image"]),
		SKU:         jsonString(node["sku"]),
		MPN:         jsonString(node["mpn"]),
	}
	for _, key := range []string{"gtin", "gtin13", "gtin12", "gtin14", "gtin8"} {
		if gtin := jsonString(node[key]); gtin != "" {
			product.GTIN = gtin
			break
		}
	}
	switch brand := node["brand"].(type) {
	case string:
		product.Brand = strings.TrimSpace(brand)
	case map[string]any:
		product.Brand = jsonString(brand["name"])
	}
	offers := node["offers"]
	if list, ok := offers.([]any); ok && len(list) > 0 {
		offers = list[0]
	}
	if offer, ok := offers.(map[string]any); ok {
		product.Price = jsonString(offer["price"])
		if product.Price == "" {
			product.Price = jsonString(offer["lowPrice"])
		}
		product.Currency = jsonString(offer["priceCurrency"])
	}
	return product
}

func jsonString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		return jsonString(v["name"])
	}
	return ""
}

func jsonImage(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		if len(v) > 0 {
			return jsonImage(v[0])
		}
	case map[string]any:
		return jsonString(v["url"])
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateBytes(s string, limit int64) string {
	if limit <= 0 || int64(len(s)) <= limit {
		return s
	}
	cut := int(limit)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
