package persistent

import (
	"github.com/copyleftdev/SKARN/internal/backend"
	"github.com/copyleftdev/SKARN/internal/model"
)

// Translator converts a component's symbolic expression into the
// coefficient form the backend expects, resolving variable references
// through the registry. Translation is pure: it never mutates the backend,
// so a translation failure leaves the backend untouched.
type Translator struct {
	reg     *Registry
	backend backend.Backend
}

// NewTranslator creates a translator over a registry and backend.
func NewTranslator(reg *Registry, be backend.Backend) *Translator {
	return &Translator{reg: reg, backend: be}
}

// linear normalizes the linear terms of an expression into a coefficient
// map keyed by column handle, merging repeated variables. owner is the
// component being translated, used for error context.
func (t *Translator) linear(owner model.Component, e *model.Expr) (map[backend.Handle]float64, error) {
	coeffs := make(map[backend.Handle]float64, len(e.Terms()))
	for _, term := range e.Terms() {
		h, err := t.reg.Lookup(term.Var)
		if err != nil {
			return nil, &UnresolvedReferenceError{Component: owner, Var: term.Var}
		}
		coeffs[h] += term.Coeff
	}
	return coeffs, nil
}

// quadratic normalizes the quadratic terms of an expression.
func (t *Translator) quadratic(owner model.Component, e *model.Expr) ([]backend.QuadEntry, error) {
	entries := make([]backend.QuadEntry, 0, len(e.QuadTerms()))
	for _, q := range e.QuadTerms() {
		hx, err := t.reg.Lookup(q.X)
		if err != nil {
			return nil, &UnresolvedReferenceError{Component: owner, Var: q.X}
		}
		hy, err := t.reg.Lookup(q.Y)
		if err != nil {
			return nil, &UnresolvedReferenceError{Component: owner, Var: q.Y}
		}
		entries = append(entries, backend.QuadEntry{X: hx, Y: hy, Coeff: q.Coeff})
	}
	return entries, nil
}

// Column translates a variable into backend column form.
func (t *Translator) Column(v *model.Var) (backend.Column, error) {
	var typ backend.VarType
	switch v.Type {
	case model.Continuous:
		typ = backend.Continuous
	case model.Integer:
		typ = backend.Integer
	case model.Binary:
		typ = backend.Binary
	default:
		return backend.Column{}, &UnsupportedExpressionError{
			Component: v,
			Reason:    "unknown variable type",
		}
	}
	return backend.Column{
		Name:  v.Name(),
		Lower: v.Lower,
		Upper: v.Upper,
		Type:  typ,
		Start: v.Start,
	}, nil
}

// Row translates a constraint into backend row form. The body's constant
// term is folded into the bounds. Quadratic constraint bodies are not
// representable by any supported backend.
func (t *Translator) Row(c *model.Constraint) (backend.Row, error) {
	if c.Body == nil {
		return backend.Row{}, &UnsupportedExpressionError{Component: c, Reason: "constraint has no body"}
	}
	if !c.Body.IsLinear() {
		return backend.Row{}, &UnsupportedExpressionError{
			Component: c,
			Reason:    "quadratic constraint bodies are not supported",
		}
	}
	coeffs, err := t.linear(c, c.Body)
	if err != nil {
		return backend.Row{}, err
	}
	return backend.Row{
		Name:   c.Name(),
		Lower:  c.Lower - c.Body.Offset(),
		Upper:  c.Upper - c.Body.Offset(),
		Coeffs: coeffs,
	}, nil
}

// Objective translates an objective into backend form. Quadratic terms
// require backend support.
func (t *Translator) Objective(o *model.Objective) (backend.Objective, error) {
	if o.Expr == nil {
		return backend.Objective{}, &UnsupportedExpressionError{Component: o, Reason: "objective has no expression"}
	}
	if !o.Expr.IsLinear() && !t.backend.SupportsQuadraticObjective() {
		return backend.Objective{}, &UnsupportedExpressionError{
			Component: o,
			Reason:    "backend does not support quadratic objectives",
		}
	}
	linear, err := t.linear(o, o.Expr)
	if err != nil {
		return backend.Objective{}, err
	}
	quad, err := t.quadratic(o, o.Expr)
	if err != nil {
		return backend.Objective{}, err
	}
	sense := backend.Minimize
	if o.Sense == model.Maximize {
		sense = backend.Maximize
	}
	return backend.Objective{
		Name:      o.Name(),
		Sense:     sense,
		Linear:    linear,
		Quadratic: quad,
		Offset:    o.Expr.Offset(),
	}, nil
}
