package identify_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettericmartin/teed-sub011/internal/identify"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

func mustCatalog(t *testing.T) *identify.Catalog {
	t.Helper()
	catalog, err := identify.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	return catalog
}

func TestParseURLKnownBrand(t *testing.T) {
	intel := mustCatalog(t).ParseURL("https://www.taylormadegolf.com/products/qi10-driver")
	if !intel.Known || intel.Brand != "TaylorMade" || intel.Category != "golf" {
		t.Fatalf("intel = %+v", intel)
	}
	if intel.Name != "Qi10 Driver" {
		t.Fatalf("name = %q", intel.Name)
	}
	if math.Abs(intel.Confidence-0.85) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.85", intel.Confidence)
	}
	if got := intel.ProductName(); got != "TaylorMade Qi10 Driver" {
		t.Fatalf("product name = %q", got)
	}
}

func TestParseURLUnknownDomainGuess(t *testing.T) {
	intel := mustCatalog(t).ParseURL("https://brand.example/product-x")
	if intel.Known {
		t.Fatalf("brand.example should be unknown")
	}
	if intel.Name != "Product X" {
		t.Fatalf("name = %q", intel.Name)
	}
	if math.Abs(intel.Confidence-0.6) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.6", intel.Confidence)
	}
	guess, ok := intel.Guess("url[0]")
	if !ok {
		t.Fatalf("expected a guess")
	}
	if guess.Origin != product.OriginURL || guess.Source != product.SourceURL || guess.EvidenceRef != "url[0]" {
		t.Fatalf("guess = %+v", guess)
	}
}

func TestParseURLIgnoresCategorySegments(t *testing.T) {
	intel := mustCatalog(t).ParseURL("https://shop.example/golf/accessories/scotty-cameron-phantom-5-putter")
	if intel.Slug != "scotty-cameron-phantom-5-putter" {
		t.Fatalf("slug = %q", intel.Slug)
	}
}

func TestCatalogLookupFallsBackToRootDomain(t *testing.T) {
	catalog := mustCatalog(t)
	info, ok := catalog.Lookup("shop.taylormadegolf.com")
	if !ok || info.Brand != "TaylorMade" {
		t.Fatalf("lookup = %+v ok=%v", info, ok)
	}
	if _, ok := catalog.Lookup("nothing-here.example"); ok {
		t.Fatalf("unexpected match")
	}
	var nilCatalog *identify.Catalog
	if _, ok := nilCatalog.Lookup("taylormadegolf.com"); ok {
		t.Fatalf("nil catalog should never match")
	}
}

func TestLoadCatalogOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brands.yaml")
	override := "domains:\n  brand.example: {brand: \"Brand Co\", category: outdoor, tier: mid}\n"
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	catalog, err := identify.LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if catalog.Len() <= mustCatalog(t).Len() {
		t.Fatalf("override should add a domain")
	}
	info, ok := catalog.Lookup("brand.example")
	if !ok || info.Brand != "Brand Co" {
		t.Fatalf("override lookup = %+v ok=%v", info, ok)
	}
}
