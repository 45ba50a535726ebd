package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanner_Tokens(t *testing.T) {
	s := NewScanner(`status != "ACT\"IVE" and amount >= -12.5 OR x IN ('a', 'b')`)

	type scanned struct {
		tok Token
		lit string
	}
	var got []scanned
	for {
		tok, _, lit := s.Scan()
		got = append(got, scanned{tok, lit})
		if tok == EOF {
			break
		}
	}

	want := []scanned{
		{IDENT, "status"},
		{NEQ, "!="},
		{STRING, `ACT"IVE`},
		{AND, "and"},
		{IDENT, "amount"},
		{GTE, ">="},
		{NUMBER, "-12.5"},
		{OR, "OR"},
		{IDENT, "x"},
		{IN, "IN"},
		{LPAREN, "("},
		{STRING, "a"},
		{COMMA, ","},
		{STRING, "b"},
		{RPAREN, ")"},
		{EOF, ""},
	}
	require.Equal(t, want, got)
}

func TestScanner_DottedFieldPath(t *testing.T) {
	s := NewScanner(`responsible.id = "u1"`)
	tok, _, lit := s.Scan()
	require.Equal(t, IDENT, tok)
	require.Equal(t, "responsible.id", lit)
}

func TestScanner_UnterminatedString(t *testing.T) {
	s := NewScanner(`"never closed`)
	tok, _, _ := s.Scan()
	require.Equal(t, ILLEGAL, tok)
}

func TestScanner_AngleBracketNeq(t *testing.T) {
	s := NewScanner(`a <> b`)
	_, _, _ = s.Scan()
	tok, _, lit := s.Scan()
	require.Equal(t, NEQ, tok)
	require.Equal(t, "<>", lit)
}

func TestParser_LeftToRightPrecedence(t *testing.T) {
	// a AND b OR c debe asociar como ((a AND b) OR c): sin precedencia
	// implícita de AND sobre OR.
	expr, err := NewParser(`a = "1" AND b = "2" OR c = "3"`, 0, 0).Parse()
	require.NoError(t, err)

	outer, ok := expr.(*LogicalExpr)
	require.True(t, ok)
	require.Equal(t, CombinatorOr, outer.Op)

	inner, ok := outer.LHS.(*LogicalExpr)
	require.True(t, ok)
	require.Equal(t, CombinatorAnd, inner.Op)

	rhs, ok := outer.RHS.(*ComparisonExpr)
	require.True(t, ok)
	require.Equal(t, "c", rhs.Field)
}

func TestParser_ParensOverrideOrder(t *testing.T) {
	expr, err := NewParser(`a = "1" AND (b = "2" OR c = "3")`, 0, 0).Parse()
	require.NoError(t, err)

	outer, ok := expr.(*LogicalExpr)
	require.True(t, ok)
	require.Equal(t, CombinatorAnd, outer.Op)

	paren, ok := outer.RHS.(*ParenExpr)
	require.True(t, ok)
	grouped, ok := paren.Expr.(*LogicalExpr)
	require.True(t, ok)
	require.Equal(t, CombinatorOr, grouped.Op)
}

func TestParser_NotIn(t *testing.T) {
	expr, err := NewParser(`stage NOT IN ("Won", "Lost")`, 0, 0).Parse()
	require.NoError(t, err)

	cmp, ok := expr.(*ComparisonExpr)
	require.True(t, ok)
	require.Equal(t, OpNotIn, cmp.Op)
	require.Equal(t, KindList, cmp.Value.Kind)
	require.Len(t, cmp.Value.List, 2)
}

func TestParser_SyntaxErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"dangling operator", `status =`},
		{"missing operator", `status "ACTIVE"`},
		{"unbalanced paren", `(status = "A"`},
		{"trailing garbage", `status = "A" status`},
		{"NOT without IN", `status NOT LIKE "A"`},
		{"bare value", `= "A"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParser(tc.src, 0, 0).Parse()
			var ferr *Error
			require.ErrorAs(t, err, &ferr)
			require.Equal(t, CodeSyntax, ferr.Code)
		})
	}
}

func TestParser_DepthBound(t *testing.T) {
	src := strings.Repeat("(", 9) + `a = "1"` + strings.Repeat(")", 9)
	_, err := NewParser(src, 8, 0).Parse()

	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, CodeTooComplex, ferr.Code)

	// En el límite exacto pasa.
	src = strings.Repeat("(", 8) + `a = "1"` + strings.Repeat(")", 8)
	_, err = NewParser(src, 8, 0).Parse()
	require.NoError(t, err)
}

func TestParser_NodeBound(t *testing.T) {
	var parts []string
	for i := 0; i < 64; i++ {
		parts = append(parts, `a = "x"`)
	}
	src := strings.Join(parts, " AND ")

	_, err := NewParser(src, 0, 64).Parse()
	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, CodeTooComplex, ferr.Code)
}
