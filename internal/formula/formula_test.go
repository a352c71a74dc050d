package formula

import "testing"

func tok(kind TokenKind) Token { return Token{Kind: kind} }

func tokensEqual(t *testing.T, got, want []Token) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("token[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenizeSimple(t *testing.T) {
	got, err := Tokenize("1.0 + 2")
	if err != nil {
		t.Fatal(err)
	}
	tokensEqual(t, got, []Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		{Kind: TokNumber, Value: 2.0},
	})
}

func TestTokenizeWithParameters(t *testing.T) {
	got, err := Tokenize("1 + `parameter`")
	if err != nil {
		t.Fatal(err)
	}
	tokensEqual(t, got, []Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		{Kind: TokParameter, Name: "parameter"},
	})
}

func TestTokenizeWithUnquotedParameters(t *testing.T) {
	got, err := Tokenize("1 + parameter")
	if err != nil {
		t.Fatal(err)
	}
	tokensEqual(t, got, []Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		{Kind: TokParameter, Name: "parameter"},
	})
}

func TestTokenizeWithUnquotedParametersLeadingTrailingDigits(t *testing.T) {
	got, err := Tokenize("1+1para_meter2+4")
	if err != nil {
		t.Fatal(err)
	}
	tokensEqual(t, got, []Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		{Kind: TokParameter, Name: "1para_meter2"},
		tok(TokAdd),
		{Kind: TokNumber, Value: 4.0},
	})
}

func TestTokenizeParametersContainingSpecial(t *testing.T) {
	got, err := Tokenize("1 + `a + 2`")
	if err != nil {
		t.Fatal(err)
	}
	tokensEqual(t, got, []Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		{Kind: TokParameter, Name: "a + 2"},
	})
}

func TestTokenizeWithParentheses(t *testing.T) {
	got, err := Tokenize("1 + (2 - 3)")
	if err != nil {
		t.Fatal(err)
	}
	tokensEqual(t, got, []Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		tok(TokLeftParen),
		{Kind: TokNumber, Value: 2.0},
		tok(TokSubtract),
		{Kind: TokNumber, Value: 3.0},
		tok(TokRightParen),
	})
}

func TestTokenizeWithParametersAndParentheses(t *testing.T) {
	got, err := Tokenize("1 + `parameter` + (2 - 3)")
	if err != nil {
		t.Fatal(err)
	}
	tokensEqual(t, got, []Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		{Kind: TokParameter, Name: "parameter"},
		tok(TokAdd),
		tok(TokLeftParen),
		{Kind: TokNumber, Value: 2.0},
		tok(TokSubtract),
		{Kind: TokNumber, Value: 3.0},
		tok(TokRightParen),
	})
}

func TestParseSingleNumber(t *testing.T) {
	got, err := Parse([]Token{{Kind: TokNumber, Value: 3.0}})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(Constant(3.0)) {
		t.Fatalf("got %v, want Constant(3.0)", got)
	}
}

func TestParseSingleParameter(t *testing.T) {
	got, err := Parse([]Token{{Kind: TokParameter, Name: "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(Parameter("a")) {
		t.Fatalf("got %v, want Parameter(a)", got)
	}
}

func TestParseAddition(t *testing.T) {
	got, err := Parse([]Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		{Kind: TokNumber, Value: 2.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Add(Constant(1.0), Constant(2.0))
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseComplexExpression(t *testing.T) {
	got, err := Parse([]Token{
		{Kind: TokNumber, Value: 1.0},
		tok(TokAdd),
		tok(TokLeftParen),
		{Kind: TokNumber, Value: 2.0},
		tok(TokMultiply),
		{Kind: TokParameter, Name: "a"},
		tok(TokRightParen),
		tok(TokSubtract),
		{Kind: TokNumber, Value: 3.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Subtract(
		Add(Constant(1.0), Multiply(Constant(2.0), Parameter("a"))),
		Constant(3.0),
	)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFormulaSimple(t *testing.T) {
	got, err := ParseFormula("1 + 2")
	if err != nil {
		t.Fatal(err)
	}
	want := Add(Constant(1.0), Constant(2.0))
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFormulaComplex(t *testing.T) {
	got, err := ParseFormula("1 + 2 * `param` / (3 - 4)")
	if err != nil {
		t.Fatal(err)
	}
	want := Add(
		Constant(1.0),
		Divide(
			Multiply(Constant(2.0), Parameter("param")),
			Subtract(Constant(3.0), Constant(4.0)),
		),
	)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFormulaNestedParentheses(t *testing.T) {
	got, err := ParseFormula("(1 + (2 * (3 - `param`)))")
	if err != nil {
		t.Fatal(err)
	}
	want := Add(
		Constant(1.0),
		Multiply(Constant(2.0), Subtract(Constant(3.0), Parameter("param"))),
	)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFormulaComplexNestedUnquoted(t *testing.T) {
	got, err := ParseFormula("1 + (2 * param - (3 / (4 - 5 * (param2 + 6))))")
	if err != nil {
		t.Fatal(err)
	}
	want := Add(
		Constant(1.0),
		Subtract(
			Multiply(Constant(2.0), Parameter("param")),
			Divide(
				Constant(3.0),
				Subtract(
					Constant(4.0),
					Multiply(Constant(5.0), Add(Parameter("param2"), Constant(6.0))),
				),
			),
		),
	)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFormulaLongChainUnquoted(t *testing.T) {
	got, err := ParseFormula("1 * param + 2 / param2 - 3 * param3 + 4 / param4")
	if err != nil {
		t.Fatal(err)
	}
	want := Add(
		Subtract(
			Add(
				Multiply(Constant(1.0), Parameter("param")),
				Divide(Constant(2.0), Parameter("param2")),
			),
			Multiply(Constant(3.0), Parameter("param3")),
		),
		Divide(Constant(4.0), Parameter("param4")),
	)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFormulaUnbalancedParenthesis(t *testing.T) {
	_, err := ParseFormula("(1 + 2")
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != ErrUnbalancedParenthesis {
		t.Fatalf("got %v, want ErrUnbalancedParenthesis", err)
	}

	_, err = ParseFormula("1 + 2)")
	pe, ok = err.(*ParseError)
	if !ok || pe.Kind != ErrUnexpectedToken || pe.Token == nil || pe.Token.Kind != TokRightParen {
		t.Fatalf("got %v, want ErrUnexpectedToken(RightParen)", err)
	}
}

func TestParseFormulaUnfinishedExpression(t *testing.T) {
	if _, err := ParseFormula("1 + "); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseFormulaMalformedExpression(t *testing.T) {
	if _, err := ParseFormula("1 + + 2"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseFormulaUnfinishedParenthesizedExpression(t *testing.T) {
	if _, err := ParseFormula("(1 + )"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseFormulaMalformedParenthesizedExpression(t *testing.T) {
	if _, err := ParseFormula("(1 + + 2)"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFormulaString(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1 * param + 2 / param2 - 3 * param3 + 4 / param4",
			"1 * `param` + 2 / `param2` - 3 * `param3` + 4 / `param4`"},
		{"(1 + (2 * (3 - `param`)))", "1 + 2 * (3 - `param`)"},
		{"1 + 2 * `param` / (3 - 4)", "1 + 2 * `param` / (3 - 4)"},
		{"1 + (2 * param - (3 / (4 - 5 * (param2 + 6))))",
			"1 + 2 * `param` - 3 / (4 - 5 * (`param2` + 6))"},
	}
	for _, c := range cases {
		f, err := ParseFormula(c.in)
		if err != nil {
			t.Fatalf("ParseFormula(%q): %v", c.in, err)
		}
		if got := f.String(); got != c.want {
			t.Errorf("ParseFormula(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormulaEval(t *testing.T) {
	f, err := ParseFormula("1 + 2 * `param` / (3 - 4)")
	if err != nil {
		t.Fatal(err)
	}
	got := f.Eval(map[string]float64{"param": 2.0})
	want := 1.0 + 2.0*2.0/(3.0-4.0)
	if got != want {
		t.Errorf("Eval = %v, want %v", got, want)
	}
}

func TestFormulaEvalMissingParameterDefaultsToZero(t *testing.T) {
	f, err := ParseFormula("`missing` + 5")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Eval(nil); got != 5 {
		t.Errorf("Eval = %v, want 5", got)
	}
}
