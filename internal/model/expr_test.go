package model

import (
	"math"
	"testing"
)

func TestExprBuilders(t *testing.T) {
	x := NewVar("x")
	y := NewVar("y")

	tests := []struct {
		name       string
		expr       *Expr
		nTerms     int
		nQuad      int
		offset     float64
		linear     bool
	}{
		{
			name:   "empty",
			expr:   NewExpr(),
			linear: true,
		},
		{
			name:   "constant only",
			expr:   NewConstant(3.5),
			offset: 3.5,
			linear: true,
		},
		{
			name:   "linear terms",
			expr:   NewExpr().AddTerm(x, 2).Add(y).AddConstant(-5),
			nTerms: 2,
			offset: -5,
			linear: true,
		},
		{
			name:   "sum helper",
			expr:   NewExpr().AddSum(x, y),
			nTerms: 2,
			linear: true,
		},
		{
			name:   "weighted sum helper",
			expr:   NewExpr().AddWeightedSum([]*Var{x, y}, []float64{1.5, -2}),
			nTerms: 2,
			linear: true,
		},
		{
			name:   "quadratic",
			expr:   NewExpr().AddSquare(x, 1).AddQuadTerm(x, y, 2),
			nQuad:  2,
			linear: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.expr.Terms()); got != tt.nTerms {
				t.Errorf("expected %d linear terms, got %d", tt.nTerms, got)
			}
			if got := len(tt.expr.QuadTerms()); got != tt.nQuad {
				t.Errorf("expected %d quadratic terms, got %d", tt.nQuad, got)
			}
			if got := tt.expr.Offset(); got != tt.offset {
				t.Errorf("expected offset %v, got %v", tt.offset, got)
			}
			if got := tt.expr.IsLinear(); got != tt.linear {
				t.Errorf("expected IsLinear=%v, got %v", tt.linear, got)
			}
		})
	}
}

func TestExprEvaluate(t *testing.T) {
	x := NewVar("x")
	y := NewVar("y")
	x.Value = 2
	y.Value = -3

	tests := []struct {
		name     string
		expr     *Expr
		expected float64
	}{
		{
			name:     "constant",
			expr:     NewConstant(7),
			expected: 7,
		},
		{
			name:     "linear",
			expr:     NewExpr().AddTerm(x, 3).Add(y).AddConstant(1),
			expected: 3*2 + (-3) + 1,
		},
		{
			name:     "quadratic",
			expr:     NewExpr().AddSquare(x, 1).AddSquare(y, 1),
			expected: 4 + 9,
		},
		{
			name:     "cross term",
			expr:     NewExpr().AddQuadTerm(x, y, 2),
			expected: 2 * 2 * (-3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.Evaluate(); math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestConstraintConstructors(t *testing.T) {
	x := NewVar("x")
	body := NewExpr().Add(x)

	le := LessEq("le", body, 5)
	if !math.IsInf(le.Lower, -1) || le.Upper != 5 {
		t.Errorf("LessEq bounds wrong: [%v, %v]", le.Lower, le.Upper)
	}

	ge := GreaterEq("ge", body, 2)
	if ge.Lower != 2 || !math.IsInf(ge.Upper, 1) {
		t.Errorf("GreaterEq bounds wrong: [%v, %v]", ge.Lower, ge.Upper)
	}

	eq := Equality("eq", body, 3)
	if eq.Lower != 3 || eq.Upper != 3 {
		t.Errorf("Equality bounds wrong: [%v, %v]", eq.Lower, eq.Upper)
	}
}

func TestVarDefaults(t *testing.T) {
	v := NewVar("free")
	if !math.IsInf(v.Lower, -1) || !math.IsInf(v.Upper, 1) {
		t.Errorf("expected free bounds, got [%v, %v]", v.Lower, v.Upper)
	}
	if v.Type != Continuous {
		t.Errorf("expected continuous type, got %v", v.Type)
	}

	b := NewBoundedVar("bounded", 0, 10)
	if b.Lower != 0 || b.Upper != 10 {
		t.Errorf("expected bounds [0, 10], got [%v, %v]", b.Lower, b.Upper)
	}
}
