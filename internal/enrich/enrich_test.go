package enrich_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brettericmartin/teed-sub011/internal/config"
	"github.com/brettericmartin/teed-sub011/internal/enrich"
	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
	"github.com/brettericmartin/teed-sub011/internal/testsupport"
)

func merged(name, brand string, year int) product.MergedCandidate {
	c := product.Candidate{Name: name, Brand: brand, Category: "golf", ModelYear: year, Confidence: 0.8, Source: product.SourceImage}
	return product.MergedCandidate{Candidate: c, CorroboratingSources: []product.SourceKind{c.Source}}
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
}

func newEngine(client inference.Client) *enrich.Engine {
	cfg := config.Default().Enrich
	cfg.Enabled = true
	cfg.YearAware = true
	return enrich.New(client, cfg, nil, enrich.WithClock(fixedClock))
}

func TestEnrichIsolatesPerItemFailures(t *testing.T) {
	client := testsupport.NewScriptedClient()
	client.On(enrich.Operation, func(req inference.Request) (string, error) {
		if strings.Contains(req.Prompt, "Broken") {
			return "", services.Wrap(services.ErrInferenceUnavailable, "llm", enrich.Operation, "provider outage", nil)
		}
		return `{"description":"A forgiving driver.","specs":"10.5° | Stiff","estimatedPrice":"$449-$549","funFacts":["fact one","fact two"],
			"searchLinks":[{"url":"https://shop.example/qi10?tag=abc-20","merchant":"Shop","price":"$499"}]}`, nil
	})

	input := []product.MergedCandidate{
		merged("Qi10 Driver", "TaylorMade", 0),
		merged("Broken Putter", "Acme", 0),
		merged("Pro V1", "Titleist", 0),
		merged("Vokey SM10", "Titleist", 0),
	}
	out, warnings := newEngine(client).Enrich(context.Background(), input)
	if len(out) != 4 {
		t.Fatalf("products = %d, want 4", len(out))
	}
	if len(warnings) != 1 || warnings[0].Code != "inference_unavailable" || warnings[0].ItemRef != "Acme Broken Putter" {
		t.Fatalf("warnings = %+v", warnings)
	}
	for i, p := range out {
		if p.Name != input[i].Name {
			t.Fatalf("order changed at %d: %q", i, p.Name)
		}
		if i == 1 {
			if p.Enriched || p.Description != "" || len(p.Links) != 0 || p.Links == nil {
				t.Fatalf("failed product should have empty enrichment: %+v", p)
			}
			continue
		}
		if !p.Enriched || p.Description == "" || p.EstimatedPrice != "$449-$549" {
			t.Fatalf("product %d not enriched: %+v", i, p)
		}
		if len(p.Specs) != 2 || p.Specs[0] != "10.5°" {
			t.Fatalf("specs = %v", p.Specs)
		}
		if len(p.Links) != 1 || !p.Links[0].IsAffiliate || p.Links[0].Source != product.LinkWeb {
			t.Fatalf("links = %+v", p.Links)
		}
	}
	if client.Calls(enrich.Operation) != 4 {
		t.Fatalf("calls = %d, want 4", client.Calls(enrich.Operation))
	}
}

func TestEnrichYearAwareness(t *testing.T) {
	client := testsupport.NewScriptedClient()
	client.On(enrich.Operation, func(req inference.Request) (string, error) {
		if !strings.Contains(req.System, "2019 model") {
			return "", errors.New("year context missing from prompt")
		}
		return `{"description":"The 2019 model.","specs":["460cc"],"searchLinks":[
			{"url":"https://shop.example/m6-driver-2019","merchant":"Shop"},
			{"url":"https://shop.example/stealth-driver-2022","merchant":"Shop"},
			{"url":"https://shop.example/m6-driver","merchant":"Shop"},
			{"url":"javascript:alert(1)","merchant":"Bad"}
		]}`, nil
	})

	product2019 := merged("M6 Driver", "TaylorMade", 2019)
	product2019.SourceURL = "https://www.taylormadegolf.com/m6-driver"
	product2019.Origin = product.OriginLibrary

	out, warnings := newEngine(client).Enrich(context.Background(), []product.MergedCandidate{product2019})
	if len(warnings) != 0 {
		t.Fatalf("warnings = %+v", warnings)
	}
	links := out[0].Links
	if len(links) != 4 {
		t.Fatalf("links = %+v", links)
	}
	if links[0].Source != product.LinkLibrary || links[0].YearWarning == "" {
		t.Fatalf("library link = %+v", links[0])
	}
	byURL := map[string]product.Link{}
	for _, link := range links {
		byURL[link.URL] = link
	}
	if l := byURL["https://shop.example/m6-driver-2019"]; l.YearMatch != product.YearMatchExact || l.YearWarning != "" {
		t.Fatalf("matching link = %+v", l)
	}
	if l := byURL["https://shop.example/stealth-driver-2022"]; l.YearMatch != product.YearMatchMismatch || l.YearWarning == "" {
		t.Fatalf("mismatched link = %+v", l)
	}
	if l := byURL["https://shop.example/m6-driver"]; l.YearMatch != product.YearMatchUnknown || l.YearWarning == "" {
		t.Fatalf("unknown link = %+v", l)
	}
}

func TestEnrichDisabledPassesThrough(t *testing.T) {
	client := testsupport.NewScriptedClient()
	cfg := config.Default().Enrich
	cfg.Enabled = false
	out, warnings := enrich.New(client, cfg, nil).Enrich(context.Background(), []product.MergedCandidate{merged("Qi10 Driver", "TaylorMade", 0)})
	if len(out) != 1 || out[0].Enriched || len(warnings) != 0 {
		t.Fatalf("out=%+v warnings=%+v", out, warnings)
	}
	if client.Total() != 0 {
		t.Fatalf("disabled enrichment made %d calls", client.Total())
	}
}

func TestEnrichFallsBackToSearchLink(t *testing.T) {
	client := testsupport.NewScriptedClient().Respond(enrich.Operation, `{"description":"Tour ball."}`)
	out, _ := newEngine(client).Enrich(context.Background(), []product.MergedCandidate{merged("Pro V1", "Titleist", 0)})
	links := out[0].Links
	if len(links) != 1 || links[0].Merchant != "Google Search" || !strings.Contains(links[0].URL, "Titleist+Pro+V1") {
		t.Fatalf("links = %+v", links)
	}
}

func TestYearMatchAndAffiliate(t *testing.T) {
	if got := enrich.YearMatch(0, "https://x.example/2019"); got != product.YearMatchUnknown {
		t.Fatalf("unknown model year = %s", got)
	}
	if got := enrich.YearMatch(2021, "https://x.example/sku-120219"); got != product.YearMatchUnknown {
		t.Fatalf("digits inside a longer number must not count as a year: %s", got)
	}
	if !enrich.IsAffiliate("https://amzn.to/3abc") || enrich.IsAffiliate("https://www.titleist.com/golf-balls/pro-v1") {
		t.Fatalf("affiliate detection wrong")
	}
}
