package server

import (
	"fmt"
	"math"

	"github.com/copyleftdev/SKARN/internal/model"
)

// VarSpec is the wire form of a decision variable. Absent bounds mean the
// variable is free on that side.
type VarSpec struct {
	Name  string   `json:"name"`
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
	Type  string   `json:"type,omitempty"`
	Start *float64 `json:"start,omitempty"`
}

// TermSpec is one linear term referencing a variable by name.
type TermSpec struct {
	Var   string  `json:"var"`
	Coeff float64 `json:"coeff"`
}

// QuadSpec is one quadratic term referencing two variables by name.
type QuadSpec struct {
	X     string  `json:"x"`
	Y     string  `json:"y"`
	Coeff float64 `json:"coeff"`
}

// ExprSpec is the wire form of an expression.
type ExprSpec struct {
	Terms  []TermSpec `json:"terms,omitempty"`
	Quad   []QuadSpec `json:"quad,omitempty"`
	Offset float64    `json:"offset,omitempty"`
}

// ConstraintSpec is the wire form of a constraint. Absent sides are
// unbounded.
type ConstraintSpec struct {
	Name  string   `json:"name"`
	Body  ExprSpec `json:"body"`
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

// ObjectiveSpec is the wire form of an objective.
type ObjectiveSpec struct {
	Name  string   `json:"name"`
	Expr  ExprSpec `json:"expr"`
	Sense string   `json:"sense,omitempty"`
}

// ModelSpec is the wire form of a full model instance.
type ModelSpec struct {
	Name        string           `json:"name"`
	Variables   []VarSpec        `json:"variables,omitempty"`
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
	Objectives  []ObjectiveSpec  `json:"objectives,omitempty"`
	Blocks      []ModelSpec      `json:"blocks,omitempty"`
}

func orInf(v *float64, sign int) float64 {
	if v == nil {
		return math.Inf(sign)
	}
	return *v
}

func parseVarType(s string) (model.VarType, error) {
	switch s {
	case "", "continuous":
		return model.Continuous, nil
	case "integer":
		return model.Integer, nil
	case "binary":
		return model.Binary, nil
	default:
		return model.Continuous, fmt.Errorf("unknown variable type %q", s)
	}
}

func parseSense(s string) (model.Sense, error) {
	switch s {
	case "", "minimize":
		return model.Minimize, nil
	case "maximize":
		return model.Maximize, nil
	default:
		return model.Minimize, fmt.Errorf("unknown objective sense %q", s)
	}
}

// buildVar converts a VarSpec into a model variable.
func buildVar(spec VarSpec) (*model.Var, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("variable name is required")
	}
	vt, err := parseVarType(spec.Type)
	if err != nil {
		return nil, err
	}
	v := model.NewVar(spec.Name)
	v.Lower = orInf(spec.Lower, -1)
	v.Upper = orInf(spec.Upper, 1)
	v.Type = vt
	if spec.Start != nil {
		v.Start = *spec.Start
	}
	return v, nil
}

// buildExpr converts an ExprSpec into an expression, resolving variable
// names against vars.
func buildExpr(spec ExprSpec, vars map[string]*model.Var) (*model.Expr, error) {
	expr := model.NewExpr().AddConstant(spec.Offset)
	for _, t := range spec.Terms {
		v, ok := vars[t.Var]
		if !ok {
			return nil, fmt.Errorf("term references unknown variable %q", t.Var)
		}
		expr.AddTerm(v, t.Coeff)
	}
	for _, q := range spec.Quad {
		x, ok := vars[q.X]
		if !ok {
			return nil, fmt.Errorf("quadratic term references unknown variable %q", q.X)
		}
		y, ok := vars[q.Y]
		if !ok {
			return nil, fmt.Errorf("quadratic term references unknown variable %q", q.Y)
		}
		expr.AddQuadTerm(x, y, q.Coeff)
	}
	return expr, nil
}

func buildConstraint(spec ConstraintSpec, vars map[string]*model.Var) (*model.Constraint, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("constraint name is required")
	}
	body, err := buildExpr(spec.Body, vars)
	if err != nil {
		return nil, fmt.Errorf("constraint %s: %w", spec.Name, err)
	}
	return model.NewConstraint(spec.Name, body, orInf(spec.Lower, -1), orInf(spec.Upper, 1)), nil
}

func buildObjective(spec ObjectiveSpec, vars map[string]*model.Var) (*model.Objective, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("objective name is required")
	}
	sense, err := parseSense(spec.Sense)
	if err != nil {
		return nil, err
	}
	expr, err := buildExpr(spec.Expr, vars)
	if err != nil {
		return nil, fmt.Errorf("objective %s: %w", spec.Name, err)
	}
	return model.NewObjective(spec.Name, expr, sense), nil
}

// buildBlock populates b from spec and records every created component in
// the name maps. Variable names are shared across nesting levels so
// constraints in one block can reference variables declared in another.
func buildBlock(b *model.Block, spec ModelSpec, vars map[string]*model.Var,
	cons map[string]*model.Constraint, objs map[string]*model.Objective) error {

	for _, vs := range spec.Variables {
		if _, exists := vars[vs.Name]; exists {
			return fmt.Errorf("duplicate variable name %q", vs.Name)
		}
		v, err := buildVar(vs)
		if err != nil {
			return err
		}
		b.AddVar(v)
		vars[vs.Name] = v
	}
	for _, cs := range spec.Constraints {
		if _, exists := cons[cs.Name]; exists {
			return fmt.Errorf("duplicate constraint name %q", cs.Name)
		}
		c, err := buildConstraint(cs, vars)
		if err != nil {
			return err
		}
		b.AddConstraint(c)
		cons[cs.Name] = c
	}
	for _, obs := range spec.Objectives {
		if _, exists := objs[obs.Name]; exists {
			return fmt.Errorf("duplicate objective name %q", obs.Name)
		}
		o, err := buildObjective(obs, vars)
		if err != nil {
			return err
		}
		b.AddObjective(o)
		objs[obs.Name] = o
	}
	for _, bs := range spec.Blocks {
		sub := model.NewBlock(bs.Name)
		if err := buildBlock(sub, bs, vars, cons, objs); err != nil {
			return err
		}
		b.AddBlock(sub)
	}
	return nil
}

// buildModel converts a ModelSpec into a model instance plus name lookup
// maps for subsequent incremental operations.
func buildModel(spec ModelSpec) (*model.Model, map[string]*model.Var, map[string]*model.Constraint, map[string]*model.Objective, error) {
	name := spec.Name
	if name == "" {
		name = "model"
	}
	m := model.NewModel(name)
	vars := make(map[string]*model.Var)
	cons := make(map[string]*model.Constraint)
	objs := make(map[string]*model.Objective)
	if err := buildBlock(&m.Block, spec, vars, cons, objs); err != nil {
		return nil, nil, nil, nil, err
	}
	return m, vars, cons, objs, nil
}
