package identify

import (
	"sort"
	"strings"

	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

type rawCandidate struct {
	Name           string              `json:"name"`
	ProductName    string              `json:"productName"`
	Brand          string              `json:"brand"`
	Category       string              `json:"category"`
	Specifications inference.FlexList  `json:"specifications"`
	ModelYear      inference.FlexInt   `json:"modelYear"`
	Generation     string              `json:"generation"`
	Confidence     inference.FlexFloat `json:"confidence"`
	ObjectID       string              `json:"objectId"`
	Reasoning      string              `json:"reasoning"`
}

type rawCandidates struct {
	Products *[]rawCandidate `json:"products"`
}

// decodeCandidates validates a model reply. A missing products array is a
// malformed response; entries without a name are dropped and counted.
func decodeCandidates(raw rawCandidates, operation string, source product.SourceKind, ref string) ([]product.Candidate, int, error) {
	if raw.Products == nil {
		return nil, 0, services.Wrap(services.ErrMalformedResponse, stage, operation, "response has no products array", nil)
	}
	out := make([]product.Candidate, 0, len(*raw.Products))
	dropped := 0
	for _, item := range *raw.Products {
		name := collapseSpace(item.Name)
		if name == "" {
			name = collapseSpace(item.ProductName)
		}
		if name == "" {
			dropped++
			continue
		}
		brand := collapseSpace(item.Brand)
		if strings.EqualFold(brand, "unknown") || strings.EqualFold(brand, "n/a") {
			brand = ""
		}
		if stripped := stripBrandPrefix(name, brand); stripped != "" {
			name = stripped
		}
		year := int(item.ModelYear)
		if year < 1900 || year > 2100 {
			year = 0
		}
		out = append(out, product.Candidate{
			Name:        name,
			Brand:       brand,
			Category:    strings.ToLower(collapseSpace(item.Category)),
			Specs:       []string(item.Specifications),
			ModelYear:   year,
			Generation:  collapseSpace(item.Generation),
			Confidence:  item.Confidence.Unit(),
			Source:      source,
			Origin:      product.OriginInference,
			EvidenceRef: ref,
			ObjectID:    strings.TrimSpace(item.ObjectID),
			Reasoning:   strings.TrimSpace(item.Reasoning),
		})
	}
	sortCandidates(out)
	return out, dropped, nil
}

func sortCandidates(candidates []product.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
}
