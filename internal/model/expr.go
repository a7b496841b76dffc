package model

// Term is a single linear term: Coeff * Var.
type Term struct {
	Var   *Var
	Coeff float64
}

// QuadTerm is a single quadratic term: Coeff * X * Y.
type QuadTerm struct {
	X, Y  *Var
	Coeff float64
}

// Expr is a polynomial expression over model variables: a list of linear
// terms, an optional list of quadratic terms, and a constant offset.
// The zero value is usable; builder methods return the receiver so
// expressions can be assembled fluently:
//
//	e := model.NewExpr().AddTerm(x, 2).Add(y).AddConstant(-5)
//
// Expressions are plain data. Editing an expression that belongs to a
// registered constraint or objective does not reach the backend until the
// component is removed and re-added.
type Expr struct {
	terms  []Term
	quad   []QuadTerm
	offset float64
}

// NewExpr creates a new empty expression.
func NewExpr() *Expr {
	return &Expr{}
}

// NewConstant creates an expression holding only the constant c.
func NewConstant(c float64) *Expr {
	return &Expr{offset: c}
}

// Add adds the variable with coefficient 1 and returns the expression.
func (e *Expr) Add(v *Var) *Expr {
	return e.AddTerm(v, 1)
}

// AddTerm adds coeff*v and returns the expression.
func (e *Expr) AddTerm(v *Var, coeff float64) *Expr {
	e.terms = append(e.terms, Term{Var: v, Coeff: coeff})
	return e
}

// AddConstant adds the constant c and returns the expression.
func (e *Expr) AddConstant(c float64) *Expr {
	e.offset += c
	return e
}

// AddSum adds each variable with coefficient 1 and returns the expression.
func (e *Expr) AddSum(vars ...*Var) *Expr {
	for _, v := range vars {
		e.Add(v)
	}
	return e
}

// AddWeightedSum adds coeffs[i]*vars[i] for each i and returns the
// expression. The slices must be the same length.
func (e *Expr) AddWeightedSum(vars []*Var, coeffs []float64) *Expr {
	for i, v := range vars {
		e.AddTerm(v, coeffs[i])
	}
	return e
}

// AddQuadTerm adds coeff*x*y and returns the expression.
func (e *Expr) AddQuadTerm(x, y *Var, coeff float64) *Expr {
	e.quad = append(e.quad, QuadTerm{X: x, Y: y, Coeff: coeff})
	return e
}

// AddSquare adds coeff*v*v and returns the expression.
func (e *Expr) AddSquare(v *Var, coeff float64) *Expr {
	return e.AddQuadTerm(v, v, coeff)
}

// Terms returns the linear terms in insertion order.
func (e *Expr) Terms() []Term { return e.terms }

// QuadTerms returns the quadratic terms in insertion order.
func (e *Expr) QuadTerms() []QuadTerm { return e.quad }

// Offset returns the constant term.
func (e *Expr) Offset() float64 { return e.offset }

// IsLinear reports whether the expression has no quadratic terms.
func (e *Expr) IsLinear() bool { return len(e.quad) == 0 }

// Evaluate computes the expression's value using each variable's Value
// field, as populated by a session's result loader.
func (e *Expr) Evaluate() float64 {
	val := e.offset
	for _, t := range e.terms {
		val += t.Coeff * t.Var.Value
	}
	for _, q := range e.quad {
		val += q.Coeff * q.X.Value * q.Y.Value
	}
	return val
}
