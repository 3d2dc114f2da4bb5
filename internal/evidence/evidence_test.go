package evidence

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/brettericmartin/teed-sub011/internal/services"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0}, bytes.Repeat([]byte{0}, 32)...)
)

func testLimits() Limits {
	return Limits{MaxItems: 10, MaxPayloadBytes: 1024, MaxTextChars: 50}
}

func TestNormalizeImageVariants(t *testing.T) {
	tests := []struct {
		name     string
		item     Item
		wantType string
	}{
		{"raw png", Item{Kind: KindImage, Data: pngBytes}, "image/png"},
		{"base64 jpeg", Item{Kind: KindImage, Encoded: base64.StdEncoding.EncodeToString(jpegBytes)}, "image/jpeg"},
		{"data uri", Item{Kind: KindImage, Encoded: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)}, "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize(tt.item, testLimits())
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if ev.Image == nil || ev.Image.MediaType != tt.wantType {
				t.Fatalf("unexpected image %+v", ev.Image)
			}
			if ev.Digest == "" || !ev.IsVisual() {
				t.Fatalf("expected digest and visual evidence: %+v", ev)
			}
		})
	}
}

func TestNormalizeImageRejections(t *testing.T) {
	tests := []struct {
		name   string
		item   Item
		marker error
	}{
		{"empty", Item{Kind: KindImage}, services.ErrInvalidEvidence},
		{"oversized", Item{Kind: KindImage, Data: append(pngBytes, bytes.Repeat([]byte{1}, 2048)...)}, services.ErrInvalidEvidence},
		{"oversized base64", Item{Kind: KindImage, Encoded: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 4096))}, services.ErrInvalidEvidence},
		{"bad base64", Item{Kind: KindImage, Encoded: "!!!not-base64!!!"}, services.ErrInvalidEvidence},
		{"not an image", Item{Kind: KindImage, Data: []byte("%PDF-1.7 hello world")}, services.ErrUnsupportedFormat},
		{"non image data uri", Item{Kind: KindImage, Encoded: "data:application/pdf;base64,JVBERi0="}, services.ErrUnsupportedFormat},
		{"bad kind", Item{Kind: "audio"}, services.ErrInvalidEvidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.item, testLimits())
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestNormalizeBatchLimits(t *testing.T) {
	if _, err := NormalizeBatch(nil, testLimits()); !errors.Is(err, services.ErrInvalidEvidence) {
		t.Fatalf("expected invalid evidence for empty batch, got %v", err)
	}
	items := make([]Item, 11)
	for i := range items {
		items[i] = Item{Kind: KindText, Text: "driver"}
	}
	if _, err := NormalizeBatch(items, testLimits()); !errors.Is(err, services.ErrInvalidEvidence) {
		t.Fatalf("expected invalid evidence for 11 items, got %v", err)
	}
	out, err := NormalizeBatch(items[:3], testLimits())
	if err != nil {
		t.Fatalf("NormalizeBatch: %v", err)
	}
	if out[2].Ref != "text[2]" {
		t.Fatalf("expected generated ref, got %q", out[2].Ref)
	}
}

func TestNormalizeTextLimitAndFolding(t *testing.T) {
	ev, err := Normalize(Item{Kind: KindText, Text: "  " + strings.Repeat("x", 50) + "  "}, testLimits())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(ev.Text) != 50 {
		t.Fatalf("expected trimmed text of 50 chars, got %d", len(ev.Text))
	}
	if _, err := Normalize(Item{Kind: KindText, Text: strings.Repeat("x", 51)}, testLimits()); !errors.Is(err, services.ErrInvalidEvidence) {
		t.Fatalf("expected invalid evidence for oversized text, got %v", err)
	}
	// Limits count characters, not bytes.
	if _, err := Normalize(Item{Kind: KindText, Text: strings.Repeat("é", 50)}, testLimits()); err != nil {
		t.Fatalf("expected 50 multi-byte chars to fit: %v", err)
	}
	a, _ := Normalize(Item{Kind: KindText, Text: "TaylorMade  Qi10"}, testLimits())
	b, _ := Normalize(Item{Kind: KindText, Text: "taylormade qi10"}, testLimits())
	if a.Digest != b.Digest {
		t.Fatal("expected case and whitespace insensitive digest")
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://WWW.Example.com/p/driver-x/?utm_source=ig&ref=abc&color=red#reviews", "https://example.com/p/driver-x?color=red"},
		{"http://shop.example.com:80/item?b=2&a=1&gclid=x", "http://shop.example.com/item?a=1&b=2"},
		{"https://example.com/", "https://example.com"},
	}
	for _, tt := range tests {
		got, err := CanonicalURL(tt.in)
		if err != nil {
			t.Fatalf("CanonicalURL(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "ftp://example.com/x", "not a url", "https:///nohost"} {
		if _, err := CanonicalURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestURLEvidenceSharesDigestAcrossTrackingVariants(t *testing.T) {
	a, err := Normalize(Item{Kind: KindURL, URL: "https://example.com/driver-x?utm_campaign=spring"}, testLimits())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Normalize(Item{Kind: KindURL, URL: "https://www.example.com/driver-x/"}, testLimits())
	if err != nil {
		t.Fatal(err)
	}
	if a.Digest != b.Digest {
		t.Fatalf("expected equal digests, got %s and %s", a.Digest, b.Digest)
	}
	if a.RawURL == b.RawURL {
		t.Fatal("expected raw urls preserved")
	}
}

func TestDomain(t *testing.T) {
	if got := Domain("https://www.TitleistGolf.com/drivers"); got != "titleistgolf.com" {
		t.Fatalf("unexpected domain %q", got)
	}
}

func TestNormalizeBatchRejectsOversizedText(t *testing.T) {
	items := []Item{
		{Kind: KindURL, URL: "https://example.com/putter"},
		{Kind: KindText, Text: strings.Repeat("a", 5000)},
	}
	out, err := NormalizeBatch(items, Limits{MaxItems: 10, MaxTextChars: 100})
	if !errors.Is(err, services.ErrInvalidEvidence) {
		t.Fatalf("expected invalid evidence, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected whole batch rejected, got %d items", len(out))
	}
	if !strings.Contains(err.Error(), "text exceeds 100 characters") {
		t.Fatalf("unexpected error text: %v", err)
	}
}
