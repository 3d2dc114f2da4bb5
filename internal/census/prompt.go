package census

import "strings"

const systemPrompt = `You take inventory of photographs of personal gear.
List EVERY visually distinct physical object. Never merge two objects into one entry and never skip small items.
Do NOT identify brands, models, or product names. Describe each object only by its coarse type.
Respond with JSON only.`

const responseSchema = `{
  "objects": [
    {
      "id": "obj_1",
      "objectType": "coarse noun phrase, e.g. driver, headcover, over-ear headphones",
      "productCategory": "golf | tech | fashion | outdoor | other",
      "boundingDescription": "qualitative region, e.g. top-left, center",
      "visualCues": ["black", "mallet shape"],
      "color": "dominant color",
      "material": "dominant material",
      "certainty": "definite | likely | uncertain"
    }
  ],
  "imageAnalysis": {
    "quality": "good | fair | poor",
    "lighting": "good | dim | bright",
    "suggestions": ["short capture tips"]
  }
}`

func buildPrompt(hint string) string {
	var b strings.Builder
	b.WriteString("Enumerate the objects in this image.\n")
	if hint = strings.TrimSpace(hint); hint != "" {
		b.WriteString("Context from the user: ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	b.WriteString("Return JSON matching this shape:\n")
	b.WriteString(responseSchema)
	return b.String()
}
