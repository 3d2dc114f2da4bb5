package census

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/product"
	"github.com/brettericmartin/teed-sub011/internal/services"
	"github.com/brettericmartin/teed-sub011/internal/testsupport"
)

func TestScanValidatesObjects(t *testing.T) {
	client := testsupport.NewScriptedClient().Respond(Operation, "```json\n"+`{
	  "objects": [
	    {"id": "obj_1", "objectType": " Driver ", "boundingDescription": "top-left", "certainty": "definite"},
	    {"objectType": "Headcover", "certainty": "probably"},
	    {"id": "obj_1", "objectType": "golf ball", "certainty": "likely", "visualCues": ["white", " "]},
	    {"objectType": "", "certainty": "definite"}
	  ],
	  "imageAnalysis": {"quality": "excellent", "lighting": "DIM", "suggestions": ["move closer"]}
	}`+"\n```")
	scanner := NewScanner(client, nil)

	result, err := scanner.Scan(context.Background(), inference.Image{Data: testsupport.PNG(t), MediaType: "image/png"}, "my golf bag")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !result.Known || result.Count() != 3 || result.Dropped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Objects[0].ObjectType != "driver" || result.Objects[0].Certainty != product.CertaintyDefinite {
		t.Fatalf("unexpected first object %+v", result.Objects[0])
	}
	if result.Objects[1].ID != "obj_2" || result.Objects[1].Certainty != product.CertaintyUncertain {
		t.Fatalf("expected generated id and coerced certainty, got %+v", result.Objects[1])
	}
	if result.Objects[2].ID == "obj_1" {
		t.Fatal("duplicate ids must be replaced")
	}
	if len(result.Objects[2].VisualCues) != 1 {
		t.Fatalf("blank visual cues should be dropped: %v", result.Objects[2].VisualCues)
	}
	if result.Analysis.Quality != "fair" || result.Analysis.Lighting != "dim" {
		t.Fatalf("unexpected analysis %+v", result.Analysis)
	}

	reqs := client.Requests()
	if len(reqs) != 1 || reqs[0].Images[0].Detail != inference.DetailLow {
		t.Fatalf("census must use a low detail budget: %+v", reqs)
	}
	if !strings.Contains(reqs[0].Prompt, "my golf bag") {
		t.Fatal("hint should be included in the prompt")
	}
}

func TestScanFailureIsUnknownNotZero(t *testing.T) {
	client := testsupport.NewScriptedClient().Fail(Operation, services.ErrRateLimited)
	result, err := NewScanner(client, nil).Scan(context.Background(), inference.Image{URL: "https://img.example/a.jpg"}, "")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited marker, got %v", err)
	}
	if result.Known || result.Count() != -1 {
		t.Fatalf("failed census must be unknown, got %+v", result)
	}
}

func TestScanMissingObjectsIsMalformed(t *testing.T) {
	client := testsupport.NewScriptedClient().Respond(Operation, `{"imageAnalysis": {"quality": "good"}}`)
	result, err := NewScanner(client, nil).Scan(context.Background(), inference.Image{URL: "https://img.example/a.jpg"}, "")
	if !errors.Is(err, services.ErrMalformedResponse) || result.Known {
		t.Fatalf("expected malformed unknown result, got %+v %v", result, err)
	}
}

func TestScanEmptyObjectsIsKnownZero(t *testing.T) {
	client := testsupport.NewScriptedClient().Respond(Operation, `{"objects": []}`)
	result, err := NewScanner(client, nil).Scan(context.Background(), inference.Image{URL: "https://img.example/a.jpg"}, "")
	if err != nil || !result.Known || result.Count() != 0 {
		t.Fatalf("expected a known empty census, got %+v %v", result, err)
	}
}

func TestSpatialBucket(t *testing.T) {
	tests := map[string]string{
		"top-left quadrant":   BucketLeft,
		"lower right corner":  BucketRight,
		"upper edge":          BucketTop,
		"bottom of the frame": BucketBottom,
		"middle of image":     BucketCenter,
		"":                    BucketUnknown,
		"near the bag":        BucketUnknown,
	}
	for input, want := range tests {
		if got := SpatialBucket(input); got != want {
			t.Fatalf("SpatialBucket(%q) = %q, want %q", input, got, want)
		}
	}

	result := Result{Known: true, Objects: []product.DetectedObject{
		{BoundingDescription: "left side"}, {BoundingDescription: "far left"}, {BoundingDescription: "center"},
	}}
	spatial := result.Spatial()
	if spatial[BucketLeft] != 2 || spatial[BucketCenter] != 1 {
		t.Fatalf("unexpected spatial counts %v", spatial)
	}
}
