package formula

import (
	"encoding/json"
	"fmt"
)

// wireFormula mirrors the pattern file's serde(tag = "type", content = "value")
// representation of ATFormula: a discriminant string plus a content payload
// whose shape depends on the discriminant (a number, a string, or a
// 2-element array of nested formulas for binary operators).
type wireFormula struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// wireName returns the Rust ATFormula variant's serde discriminant.
// Unlike its sibling MAHDynamicF64, ATFormula carries no
// `rename_all = "snake_case"` attribute, so its tags are the bare
// PascalCase enum variant names.
func (k Kind) wireName() string {
	switch k {
	case KindConstant:
		return "Constant"
	case KindParameter:
		return "Parameter"
	case KindAdd:
		return "Add"
	case KindSubtract:
		return "Subtract"
	case KindMultiply:
		return "Multiply"
	case KindDivide:
		return "Divide"
	default:
		return ""
	}
}

// MarshalJSON encodes the formula in the pattern file's tagged-union wire
// format, so round-tripping through a pattern file preserves the tree.
func (f *Formula) MarshalJSON() ([]byte, error) {
	var value []byte
	var err error
	switch f.Kind {
	case KindConstant:
		value, err = json.Marshal(f.Value)
	case KindParameter:
		value, err = json.Marshal(f.Param)
	case KindAdd, KindSubtract, KindMultiply, KindDivide:
		value, err = json.Marshal([2]*Formula{f.Left, f.Right})
	default:
		return nil, fmt.Errorf("formula: unknown kind %d", f.Kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireFormula{Type: f.Kind.wireName(), Value: value})
}

// UnmarshalJSON decodes the pattern file's tagged-union representation.
func (f *Formula) UnmarshalJSON(data []byte) error {
	var w wireFormula
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "Constant":
		var v float64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return err
		}
		*f = Formula{Kind: KindConstant, Value: v}
	case "Parameter":
		var v string
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return err
		}
		*f = Formula{Kind: KindParameter, Param: v}
	case "Add", "Subtract", "Multiply", "Divide":
		var pair [2]*Formula
		if err := json.Unmarshal(w.Value, &pair); err != nil {
			return err
		}
		kind := map[string]Kind{"Add": KindAdd, "Subtract": KindSubtract, "Multiply": KindMultiply, "Divide": KindDivide}[w.Type]
		*f = Formula{Kind: kind, Left: pair[0], Right: pair[1]}
	default:
		return fmt.Errorf("formula: unknown type %q", w.Type)
	}
	return nil
}
