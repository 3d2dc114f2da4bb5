package inference

import (
	"encoding/json"
	"testing"
)

func TestFlexTypesAcceptLooseShapes(t *testing.T) {
	var payload struct {
		A FlexFloat `json:"a"`
		B FlexFloat `json:"b"`
		C FlexFloat `json:"c"`
		Y FlexInt   `json:"y"`
		Z FlexInt   `json:"z"`
		L FlexList  `json:"l"`
		M FlexList  `json:"m"`
	}
	raw := `{"a": 0.7, "b": "85%", "c": 140, "y": "2021 model", "z": 2019, "l": "Loft 9° | Shaft: Stiff |", "m": ["x", " ", "y"]}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A.Unit() != 0.7 || payload.B.Unit() != 0.85 || payload.C.Unit() != 1 {
		t.Fatalf("unexpected unit values %v %v %v", payload.A.Unit(), payload.B.Unit(), payload.C.Unit())
	}
	if payload.Y != 2021 || payload.Z != 2019 {
		t.Fatalf("unexpected ints %d %d", payload.Y, payload.Z)
	}
	if len(payload.L) != 2 || payload.L[0] != "Loft 9°" || len(payload.M) != 2 {
		t.Fatalf("unexpected lists %q %q", payload.L, payload.M)
	}
}

func TestFlexFloatRejectsGarbage(t *testing.T) {
	var f FlexFloat
	if err := json.Unmarshal([]byte(`"very high"`), &f); err == nil {
		t.Fatal("expected error for non-numeric confidence")
	}
}
