package product

import "testing"

func TestParseCertainty(t *testing.T) {
	tests := map[string]Certainty{
		"definite":  CertaintyDefinite,
		" Likely ":  CertaintyLikely,
		"uncertain": CertaintyUncertain,
		"maybe":     CertaintyUncertain,
		"":          CertaintyUncertain,
	}
	for input, want := range tests {
		if got := ParseCertainty(input); got != want {
			t.Fatalf("ParseCertainty(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCertaintyWeightOrdering(t *testing.T) {
	if !(CertaintyDefinite.Weight() > CertaintyLikely.Weight() && CertaintyLikely.Weight() > CertaintyUncertain.Weight()) {
		t.Fatal("expected definite > likely > uncertain weights")
	}
}

func TestClampConfidence(t *testing.T) {
	for _, tt := range []struct{ in, want float64 }{{-0.2, 0}, {0.5, 0.5}, {1.7, 1}} {
		if got := ClampConfidence(tt.in); got != tt.want {
			t.Fatalf("ClampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCandidateDisplayName(t *testing.T) {
	tests := []struct {
		candidate Candidate
		want      string
	}{
		{Candidate{Name: "Qi10 Driver", Brand: "TaylorMade"}, "TaylorMade Qi10 Driver"},
		{Candidate{Name: "TaylorMade Qi10 Driver", Brand: "taylormade"}, "TaylorMade Qi10 Driver"},
		{Candidate{Name: " Driver X "}, "Driver X"},
	}
	for _, tt := range tests {
		if got := tt.candidate.DisplayName(); got != tt.want {
			t.Fatalf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseCorrectionType(t *testing.T) {
	cases := map[string]CorrectionType{
		"product-name": CorrectionProductName,
		"Product_Name": CorrectionProductName,
		"brand":        CorrectionBrand,
		"missed-item":  CorrectionMissedItem,
		"color":        CorrectionOther,
		"":             CorrectionOther,
	}
	for in, want := range cases {
		if got := ParseCorrectionType(in); got != want {
			t.Errorf("ParseCorrectionType(%q) = %q, want %q", in, got, want)
		}
	}
}
