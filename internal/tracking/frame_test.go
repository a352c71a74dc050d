package tracking

import (
	"encoding/json"
	"testing"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
)

func TestChiralityMarshalsAsString(t *testing.T) {
	cases := []struct {
		c    Chirality
		want string
	}{
		{ChiralityLeft, `"left"`},
		{ChiralityRight, `"right"`},
	}
	for _, c := range cases {
		got, err := json.Marshal(c.c)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", c.c, err)
		}
		if string(got) != c.want {
			t.Errorf("Marshal(%v) = %s, want %s", c.c, got, c.want)
		}
	}
}

func TestFrameMarshalsNilHandAsNull(t *testing.T) {
	got, err := json.Marshal(Frame{})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"hand":null}` {
		t.Errorf("Marshal(Frame{}) = %s, want {\"hand\":null}", got)
	}
}

func TestFrameMarshalsFullHandShape(t *testing.T) {
	frame := Frame{Hand: &Hand{
		Chirality: ChiralityRight,
		Palm: Palm{
			Position: pattern.MAHCoordsConst{X: 1, Y: 2, Z: 3},
			Width:    80,
		},
	}}
	got, err := json.Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatal(err)
	}
	hand := decoded["hand"].(map[string]any)
	if hand["chirality"] != "right" {
		t.Errorf("chirality = %v, want right", hand["chirality"])
	}
	digits, ok := hand["digits"].([]any)
	if !ok || len(digits) != 5 {
		t.Errorf("digits = %v, want 5 entries", hand["digits"])
	}
}
