package identify

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed brands.yaml
var embeddedCatalog []byte

// DomainInfo describes what a shopping domain tells us about its products.
type DomainInfo struct {
	Brand    string   `yaml:"brand"`
	Category string   `yaml:"category"`
	Tier     string   `yaml:"tier"`
	Aliases  []string `yaml:"aliases"`
	Retailer bool     `yaml:"retailer"`
}

type catalogFile struct {
	Domains    map[string]DomainInfo `yaml:"domains"`
	SlugBrands []struct {
		Pattern string `yaml:"pattern"`
		Brand   string `yaml:"brand"`
	} `yaml:"slug_brands"`
	ModelNames []struct {
		Pattern     string `yaml:"pattern"`
		Replacement string `yaml:"replacement"`
	} `yaml:"model_names"`
}

type slugBrand struct {
	pattern *regexp.Regexp
	brand   string
}

type modelName struct {
	pattern     *regexp.Regexp
	replacement string
}

// Catalog maps domains to brands and holds the slug rules used by URL
// intelligence. It is read-only after construction.
type Catalog struct {
	domains    map[string]DomainInfo
	slugBrands []slugBrand
	modelNames []modelName
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	catalog := &Catalog{domains: make(map[string]DomainInfo)}
	if err := catalog.merge(embeddedCatalog, "embedded catalog"); err != nil {
		return nil, err
	}
	return catalog, nil
}

// LoadCatalog returns the embedded catalog extended by the YAML file at
// overridePath. Override domains replace embedded ones; override slug brands
// are tried first.
func LoadCatalog(overridePath string) (*Catalog, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	overridePath = strings.TrimSpace(overridePath)
	if overridePath == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("read brand catalog: %w", err)
	}
	if err := catalog.merge(data, overridePath); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c *Catalog) merge(data []byte, source string) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", source, err)
	}
	for domain, info := range file.Domains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
		if domain == "" {
			continue
		}
		c.domains[domain] = info
	}
	brands := make([]slugBrand, 0, len(file.SlugBrands))
	for _, entry := range file.SlugBrands {
		re, err := regexp.Compile("(?i)" + entry.Pattern)
		if err != nil {
			return fmt.Errorf("%s: slug brand %q: %w", source, entry.Brand, err)
		}
		brands = append(brands, slugBrand{pattern: re, brand: entry.Brand})
	}
	c.slugBrands = append(brands, c.slugBrands...)
	for _, entry := range file.ModelNames {
		re, err := regexp.Compile("(?i)" + entry.Pattern)
		if err != nil {
			return fmt.Errorf("%s: model name %q: %w", source, entry.Replacement, err)
		}
		c.modelNames = append(c.modelNames, modelName{pattern: re, replacement: entry.Replacement})
	}
	return nil
}

// Len returns the number of known domains.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.domains)
}

// Lookup finds domain, falling back to its registrable root
// ("shop.brand.com" → "brand.com").
func (c *Catalog) Lookup(domain string) (DomainInfo, bool) {
	if c == nil {
		return DomainInfo{}, false
	}
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if info, ok := c.domains[domain]; ok {
		return info, true
	}
	parts := strings.Split(domain, ".")
	if len(parts) > 2 {
		if info, ok := c.domains[strings.Join(parts[len(parts)-2:], ".")]; ok {
			return info, true
		}
	}
	return DomainInfo{}, false
}

// BrandFromSlug recognises a brand prefix in a retailer product slug.
func (c *Catalog) BrandFromSlug(slug string) string {
	if c == nil {
		return ""
	}
	normalized := strings.ToLower(strings.ReplaceAll(slug, "-", " "))
	for _, entry := range c.slugBrands {
		if entry.pattern.MatchString(normalized) {
			return entry.brand
		}
	}
	return ""
}

// FixModelNames restores the canonical casing of known model names.
func (c *Catalog) FixModelNames(name string) string {
	if c == nil {
		return name
	}
	for _, entry := range c.modelNames {
		name = entry.pattern.ReplaceAllString(name, entry.replacement)
	}
	return name
}
