package evidence

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const stage = "normalize"

// Kind is the type of a raw evidence item.
type Kind string

const (
	KindImage    Kind = "image"
	KindImageURL Kind = "image_url"
	KindURL      Kind = "url"
	KindText     Kind = "text"
)

// Item is raw caller-supplied evidence. Images arrive either as Data or as a
// base64 / data URI string in Encoded.
type Item struct {
	Kind    Kind
	Ref     string
	Data    []byte
	Encoded string
	URL     string
	Text    string
}

// Evidence is a validated, canonical evidence item.
type Evidence struct {
	Kind Kind
	Ref  string
	// Image is set for KindImage (bytes) and KindImageURL (URL only).
	Image *inference.Image
	// URL is the canonical form for KindURL and KindImageURL.
	URL string
	// RawURL keeps the caller's URL for fetching.
	RawURL string
	Text   string
	// Digest is a stable content hash used as the library key basis.
	Digest string
}

// IsVisual reports whether the evidence should go through the census.
func (e Evidence) IsVisual() bool {
	return e.Kind == KindImage || e.Kind == KindImageURL
}

// Limits bounds accepted evidence.
type Limits struct {
	MaxItems        int
	MaxPayloadBytes int64
	MaxTextChars    int
}

var acceptedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
	"image/heic": {},
	"image/heif": {},
	"image/avif": {},
}

// NormalizeBatch validates every item. The whole batch is rejected when it is
// empty, exceeds MaxItems, or any item is invalid.
func NormalizeBatch(items []Item, limits Limits) ([]Evidence, error) {
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrInvalidEvidence, stage, "batch", "no evidence supplied", nil)
	}
	if limits.MaxItems > 0 && len(items) > limits.MaxItems {
		return nil, services.Wrap(services.ErrInvalidEvidence, stage, "batch",
			fmt.Sprintf("%d items exceeds limit of %d", len(items), limits.MaxItems), nil)
	}
	out := make([]Evidence, 0, len(items))
	counts := make(map[Kind]int)
	for _, item := range items {
		if item.Ref == "" {
			item.Ref = fmt.Sprintf("%s[%d]", item.Kind, counts[item.Kind])
		}
		counts[item.Kind]++
		ev, err := Normalize(item, limits)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Normalize validates a single item and returns its canonical form.
func Normalize(item Item, limits Limits) (Evidence, error) {
	switch item.Kind {
	case KindImage:
		return normalizeImage(item, limits)
	case KindImageURL:
		canonical, err := CanonicalURL(item.URL)
		if err != nil {
			return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, "image url", err)
		}
		return Evidence{
			Kind:   KindImageURL,
			Ref:    item.Ref,
			Image:  &inference.Image{URL: strings.TrimSpace(item.URL), Detail: inference.DetailAuto},
			URL:    canonical,
			RawURL: strings.TrimSpace(item.URL),
			Digest: digest([]byte(canonical)),
		}, nil
	case KindURL:
		canonical, err := CanonicalURL(item.URL)
		if err != nil {
			return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, "product url", err)
		}
		return Evidence{
			Kind:   KindURL,
			Ref:    item.Ref,
			URL:    canonical,
			RawURL: strings.TrimSpace(item.URL),
			Digest: digest([]byte(canonical)),
		}, nil
	case KindText:
		text := strings.TrimSpace(item.Text)
		if text == "" {
			return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, "empty text", nil)
		}
		if limits.MaxTextChars > 0 && utf8.RuneCountInString(text) > limits.MaxTextChars {
			return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref,
				fmt.Sprintf("text exceeds %d characters", limits.MaxTextChars), nil)
		}
		return Evidence{
			Kind:   KindText,
			Ref:    item.Ref,
			Text:   text,
			Digest: digest([]byte(CanonicalText(text))),
		}, nil
	default:
		return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, fmt.Sprintf("unknown evidence kind %q", item.Kind), nil)
	}
}

func normalizeImage(item Item, limits Limits) (Evidence, error) {
	data := item.Data
	declared := ""
	if len(data) == 0 {
		encoded := strings.TrimSpace(item.Encoded)
		if encoded == "" {
			return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, "empty image payload", nil)
		}
		if strings.HasPrefix(encoded, "data:") {
			comma := strings.IndexByte(encoded, ',')
			if comma < 0 {
				return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, "malformed data uri", nil)
			}
			header := strings.ToLower(encoded[5:comma])
			declared = strings.TrimSuffix(header, ";base64")
			if !strings.HasPrefix(declared, "image/") {
				return Evidence{}, services.Wrap(services.ErrUnsupportedFormat, stage, item.Ref, "data uri is not an image: "+declared, nil)
			}
			encoded = encoded[comma+1:]
		}
		if limits.MaxPayloadBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(encoded))) > limits.MaxPayloadBytes+2 {
			return Evidence{}, oversized(item.Ref, limits)
		}
		decoded, err := decodeBase64(encoded)
		if err != nil {
			return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, "decode base64 image", err)
		}
		data = decoded
	}
	if len(data) == 0 {
		return Evidence{}, services.Wrap(services.ErrInvalidEvidence, stage, item.Ref, "empty image payload", nil)
	}
	if limits.MaxPayloadBytes > 0 && int64(len(data)) > limits.MaxPayloadBytes {
		return Evidence{}, oversized(item.Ref, limits)
	}

	detected := mimetype.Detect(data)
	mediaType := detected.String()
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	if _, ok := acceptedImageTypes[mediaType]; !ok {
		if declared == "" {
			return Evidence{}, services.Wrap(services.ErrUnsupportedFormat, stage, item.Ref, "unrecognized image content: "+mediaType, nil)
		}
		// Trust a declared image type when sniffing is inconclusive.
		if _, ok := acceptedImageTypes[declared]; !ok || mediaType != "application/octet-stream" {
			return Evidence{}, services.Wrap(services.ErrUnsupportedFormat, stage, item.Ref, "unsupported image type: "+mediaType, nil)
		}
		mediaType = declared
	}

	return Evidence{
		Kind:   KindImage,
		Ref:    item.Ref,
		Image:  &inference.Image{Data: data, MediaType: mediaType, Detail: inference.DetailAuto},
		Digest: digest(data),
	}, nil
}

func oversized(ref string, limits Limits) error {
	return services.Wrap(services.ErrInvalidEvidence, stage, ref,
		fmt.Sprintf("image exceeds %d byte limit", limits.MaxPayloadBytes), nil)
}

func decodeBase64(encoded string) ([]byte, error) {
	encoded = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, encoded)
	if data, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
