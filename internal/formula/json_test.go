package formula

import (
	"encoding/json"
	"testing"
)

func TestMarshalUsesPascalCaseWireTags(t *testing.T) {
	cases := []struct {
		f    *Formula
		want string
	}{
		{Constant(1.5), `{"type":"Constant","value":1.5}`},
		{Parameter("x"), `{"type":"Parameter","value":"x"}`},
	}
	for _, c := range cases {
		b, err := json.Marshal(c.f)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(b) != c.want {
			t.Errorf("Marshal(%v) = %s, want %s", c.f, b, c.want)
		}
	}
}

func TestMarshalBinaryOpUsesPascalCaseWireTag(t *testing.T) {
	f := Add(Constant(1), Constant(2))
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != "Add" {
		t.Errorf("type = %q, want %q", decoded.Type, "Add")
	}
}

func TestUnmarshalAcceptsPascalCaseWireTags(t *testing.T) {
	var f Formula
	if err := json.Unmarshal([]byte(`{"type":"Constant","value":3.0}`), &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if f.Kind != KindConstant || f.Value != 3.0 {
		t.Errorf("got %+v, want Constant(3.0)", f)
	}

	var g Formula
	if err := json.Unmarshal([]byte(`{"type":"Divide","value":[{"type":"Constant","value":6.0},{"type":"Constant","value":2.0}]}`), &g); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if g.Kind != KindDivide || g.Left.Value != 6.0 || g.Right.Value != 2.0 {
		t.Errorf("got %+v, want Divide(6, 2)", g)
	}
}

func TestUnmarshalRejectsLowercaseWireTag(t *testing.T) {
	var f Formula
	err := json.Unmarshal([]byte(`{"type":"constant","value":1.0}`), &f)
	if err == nil {
		t.Fatal("expected an error for a lowercase (non-wire-compatible) type tag")
	}
}
