package identify

import (
	"fmt"
	"strings"

	"github.com/brettericmartin/teed-sub011/internal/product"
)

const (
	// OperationURL identifies a product from page signals.
	OperationURL = "identify.url"
	// OperationText identifies products mentioned in free text.
	OperationText = "identify.text"
	// OperationImage identifies products in a full image.
	OperationImage = "identify.image"
	// OperationRefine re-examines one object at high detail.
	OperationRefine = "identify.refine"
)

const systemPrompt = `You identify consumer products precisely: brand, model name, model year or generation when evidence supports it.
Only name what the evidence supports. Prefer an honest lower confidence over a confident guess.
Confidence is a number between 0 and 1. Respond with JSON only.`

const candidateSchema = `{
  "products": [
    {
      "name": "model name without the brand, e.g. Qi10 Max Driver",
      "brand": "brand or empty string",
      "category": "coarse category, e.g. golf, audio, outdoor",
      "specifications": ["short spec strings"],
      "modelYear": 2024,
      "generation": "generation or edition label if known",
      "confidence": 0.0,
      "objectId": "census object id this product corresponds to, if any",
      "reasoning": "one sentence"
    }
  ]
}`

func urlPrompt(intel URLIntel, page *Page) string {
	var b strings.Builder
	b.WriteString("Identify the single product sold at this URL.\n")
	fmt.Fprintf(&b, "URL: %s\nDomain: %s\n", intel.URL, intel.Domain)
	if intel.Known {
		if intel.Retailer {
			b.WriteString("The domain is a multi-brand retailer.\n")
		} else if intel.Info.Brand != "" {
			fmt.Fprintf(&b, "The domain belongs to the brand %s.\n", intel.Info.Brand)
		}
		if intel.Category != "" {
			fmt.Fprintf(&b, "Domain category: %s\n", intel.Category)
		}
	}
	if intel.Brand != "" && intel.Brand != intel.Info.Brand {
		fmt.Fprintf(&b, "Brand found in the URL: %s\n", intel.Brand)
	}
	if intel.Name != "" {
		fmt.Fprintf(&b, "Name derived from the URL: %s\n", intel.Name)
	}
	if intel.ModelNumber != "" {
		fmt.Fprintf(&b, "Model or SKU in the URL: %s\n", intel.ModelNumber)
	}
	if page != nil {
		b.WriteString("\nPage signals:\n")
		writeSignal(&b, "Title", page.Title)
		writeSignal(&b, "Heading", page.H1)
		writeSignal(&b, "og:title", page.OG.Title)
		writeSignal(&b, "Meta description", page.MetaDescription)
		writeSignal(&b, "og:description", page.OG.Description)
		writeSignal(&b, "Price", page.Price())
		writeSignal(&b, "Page text", page.Excerpt)
	}
	b.WriteString("\nReturn at most one product. Return JSON matching this shape:\n")
	b.WriteString(candidateSchema)
	return b.String()
}

func writeSignal(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

func textPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Identify every distinct product described or mentioned in the text below.\n")
	b.WriteString("Ignore products mentioned only as comparisons that are not the subject.\n\n")
	b.WriteString("Text:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn JSON matching this shape (empty products list if none):\n")
	b.WriteString(candidateSchema)
	return b.String()
}

func imagePrompt(objects []product.DetectedObject, hint string) string {
	var b strings.Builder
	b.WriteString("Identify the products in this image.\n")
	if hint = strings.TrimSpace(hint); hint != "" {
		fmt.Fprintf(&b, "Context from the user: %s\n", hint)
	}
	if len(objects) > 0 {
		b.WriteString("A prior scan found these objects; identify each one and set objectId accordingly:\n")
		for _, obj := range objects {
			fmt.Fprintf(&b, "- %s: %s", obj.ID, obj.ObjectType)
			if obj.BoundingDescription != "" {
				fmt.Fprintf(&b, " (%s)", obj.BoundingDescription)
			}
			if len(obj.VisualCues) > 0 {
				fmt.Fprintf(&b, "; cues: %s", strings.Join(obj.VisualCues, ", "))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("Read visible logos and text. Do not invent products that are not visible.\n")
	b.WriteString("Return JSON matching this shape:\n")
	b.WriteString(candidateSchema)
	return b.String()
}

func refinePrompt(candidate product.Candidate, object *product.DetectedObject) string {
	var b strings.Builder
	b.WriteString("Look closely at one object in this image and identify it as precisely as possible.\n")
	if object != nil {
		fmt.Fprintf(&b, "Object: %s", object.ObjectType)
		if object.BoundingDescription != "" {
			fmt.Fprintf(&b, " located %s", object.BoundingDescription)
		}
		b.WriteString("\n")
		if len(object.VisualCues) > 0 {
			fmt.Fprintf(&b, "Visual cues: %s\n", strings.Join(object.VisualCues, ", "))
		}
	}
	fmt.Fprintf(&b, "Initial guess: %s (confidence %.2f)\n", candidate.DisplayName(), candidate.Confidence)
	b.WriteString("Confirm, correct, or narrow the guess using logos, shapes, colorways, and markings.\n")
	b.WriteString("Return exactly one product in JSON matching this shape:\n")
	b.WriteString(candidateSchema)
	return b.String()
}
