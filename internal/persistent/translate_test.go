package persistent

import (
	"errors"
	"math"
	"testing"

	"github.com/copyleftdev/SKARN/internal/backend"
	"github.com/copyleftdev/SKARN/internal/backend/dense"
	"github.com/copyleftdev/SKARN/internal/model"
)

func newTranslator(t *testing.T) (*Translator, *Registry) {
	t.Helper()
	reg := NewRegistry()
	return NewTranslator(reg, dense.New()), reg
}

func TestRowMergesRepeatedVars(t *testing.T) {
	tr, reg := newTranslator(t)
	x := model.NewVar("x")
	if err := reg.Register(x, 1); err != nil {
		t.Fatal(err)
	}

	// x + 2x must normalize to a single coefficient of 3.
	c := model.LessEq("c", model.NewExpr().Add(x).AddTerm(x, 2), 6)
	row, err := tr.Row(c)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if len(row.Coeffs) != 1 {
		t.Fatalf("expected 1 coefficient, got %d", len(row.Coeffs))
	}
	if row.Coeffs[1] != 3 {
		t.Errorf("expected merged coefficient 3, got %v", row.Coeffs[1])
	}
}

func TestRowFoldsOffsetIntoBounds(t *testing.T) {
	tr, reg := newTranslator(t)
	x := model.NewVar("x")
	if err := reg.Register(x, 1); err != nil {
		t.Fatal(err)
	}

	// x + 2 <= 6 becomes x <= 4.
	c := model.LessEq("c", model.NewExpr().Add(x).AddConstant(2), 6)
	row, err := tr.Row(c)
	if err != nil {
		t.Fatal(err)
	}
	if row.Upper != 4 {
		t.Errorf("expected upper bound 4, got %v", row.Upper)
	}
	if !math.IsInf(row.Lower, -1) {
		t.Errorf("expected free lower bound, got %v", row.Lower)
	}
}

func TestRowRejectsUnregisteredVar(t *testing.T) {
	tr, _ := newTranslator(t)
	x := model.NewVar("x")

	c := model.LessEq("c", model.NewExpr().Add(x), 1)
	_, err := tr.Row(c)
	var unres *UnresolvedReferenceError
	if !errors.As(err, &unres) {
		t.Fatalf("expected UnresolvedReferenceError, got %v", err)
	}
	if unres.Var != x {
		t.Error("error does not name the unregistered variable")
	}
}

func TestRowRejectsQuadraticBody(t *testing.T) {
	tr, reg := newTranslator(t)
	x := model.NewVar("x")
	if err := reg.Register(x, 1); err != nil {
		t.Fatal(err)
	}

	c := model.LessEq("c", model.NewExpr().AddSquare(x, 1), 1)
	var unsup *UnsupportedExpressionError
	if _, err := tr.Row(c); !errors.As(err, &unsup) {
		t.Errorf("expected UnsupportedExpressionError, got %v", err)
	}
}

func TestObjectiveTranslation(t *testing.T) {
	tr, reg := newTranslator(t)
	x := model.NewVar("x")
	y := model.NewVar("y")
	if err := reg.Register(x, 1); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(y, 2); err != nil {
		t.Fatal(err)
	}

	o := model.NewObjective("o",
		model.NewExpr().AddTerm(x, 2).AddSquare(y, 1).AddConstant(7),
		model.Maximize)
	obj, err := tr.Objective(o)
	if err != nil {
		t.Fatalf("Objective: %v", err)
	}
	if obj.Sense != backend.Maximize {
		t.Errorf("expected maximize sense, got %v", obj.Sense)
	}
	if obj.Linear[1] != 2 {
		t.Errorf("expected linear coefficient 2 on x, got %v", obj.Linear[1])
	}
	if len(obj.Quadratic) != 1 || obj.Quadratic[0].X != 2 || obj.Quadratic[0].Y != 2 {
		t.Errorf("quadratic terms wrong: %v", obj.Quadratic)
	}
	if obj.Offset != 7 {
		t.Errorf("expected offset 7, got %v", obj.Offset)
	}
}

func TestColumnTranslation(t *testing.T) {
	tr, _ := newTranslator(t)

	v := model.NewBoundedVar("n", 0, 10)
	v.Type = model.Integer
	v.Start = 3

	col, err := tr.Column(v)
	if err != nil {
		t.Fatalf("Column: %v", err)
	}
	if col.Type != backend.Integer {
		t.Errorf("expected integer column, got %v", col.Type)
	}
	if col.Lower != 0 || col.Upper != 10 || col.Start != 3 {
		t.Errorf("column fields wrong: %+v", col)
	}
}
