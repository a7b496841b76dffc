// Package model defines the declarative optimization model: variables,
// constraints, objectives, and the block containers that group them.
//
// Components carry identity, not value: two *Var with the same name are two
// different components, and a component remains the same component when its
// bounds or expression are edited in place. The persistent session layer
// relies on this when mapping components to backend handles.
package model

import "math"

// Kind identifies the structural role of a component.
type Kind int

const (
	// VarKind is a decision variable (backend column).
	VarKind Kind = iota
	// ConstraintKind is a constraint (backend row).
	ConstraintKind
	// ObjectiveKind is an objective function.
	ObjectiveKind
	// BlockKind is a named container of other components.
	BlockKind
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case VarKind:
		return "Var"
	case ConstraintKind:
		return "Constraint"
	case ObjectiveKind:
		return "Objective"
	case BlockKind:
		return "Block"
	default:
		return "Unknown"
	}
}

// Component is implemented by every member of a declarative model.
type Component interface {
	// Name returns the component's name. Members of indexed containers
	// carry their index key in the name, e.g. "flow[a,b]".
	Name() string

	// Kind returns the structural role of the component.
	Kind() Kind
}

// Scalar is implemented by components that correspond to exactly one
// backend entity: a single variable, constraint, or objective. Containers
// (blocks, indexed components) are not Scalar.
type Scalar interface {
	Component
	scalar()
}

// Indexed is a named container of scalar components sharing a base name
// and distinguished by an index key. An Indexed container is not itself
// registrable with a session; only its members are.
type Indexed interface {
	Component

	// Members returns the scalar members in insertion order.
	Members() []Scalar
}

// VarType specifies the domain of a variable.
type VarType int

const (
	// Continuous indicates a continuous variable (default).
	Continuous VarType = iota
	// Integer indicates an integer variable.
	Integer
	// Binary indicates a 0/1 variable.
	Binary
)

// String returns a human-readable representation of the variable type.
func (t VarType) String() string {
	switch t {
	case Continuous:
		return "Continuous"
	case Integer:
		return "Integer"
	case Binary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Sense specifies the direction of an objective.
type Sense int

const (
	// Minimize indicates a minimization objective (default).
	Minimize Sense = iota
	// Maximize indicates a maximization objective.
	Maximize
)

// String returns a human-readable representation of the sense.
func (s Sense) String() string {
	if s == Maximize {
		return "Maximize"
	}
	return "Minimize"
}

// Var is a scalar decision variable.
//
// Lower, Upper, Type and Start may be edited freely; push the edits to a
// bound session with UpdateVar. Value is written by the session's result
// loader and is meaningful only after a solve.
type Var struct {
	name string

	// Lower and Upper bound the variable. Defaults are -Inf and +Inf.
	Lower, Upper float64

	// Type is the variable's domain.
	Type VarType

	// Start is the warm-start value passed to the backend.
	Start float64

	// Value holds the most recently loaded solution value.
	Value float64
}

// NewVar creates a free continuous variable.
func NewVar(name string) *Var {
	return &Var{
		name:  name,
		Lower: math.Inf(-1),
		Upper: math.Inf(1),
	}
}

// NewBoundedVar creates a continuous variable with the given bounds.
func NewBoundedVar(name string, lower, upper float64) *Var {
	return &Var{name: name, Lower: lower, Upper: upper}
}

// Name returns the variable's name.
func (v *Var) Name() string { return v.name }

// Kind returns VarKind.
func (v *Var) Kind() Kind { return VarKind }

func (v *Var) scalar() {}

// Constraint is a scalar constraint of the form Lower <= Body <= Upper.
// Use NegInf/Inf bounds for one-sided constraints.
type Constraint struct {
	name string

	// Body is the constrained expression.
	Body *Expr

	// Lower and Upper bound the body.
	Lower, Upper float64
}

// NewConstraint creates a range constraint lower <= body <= upper.
func NewConstraint(name string, body *Expr, lower, upper float64) *Constraint {
	return &Constraint{name: name, Body: body, Lower: lower, Upper: upper}
}

// LessEq creates a constraint body <= rhs.
func LessEq(name string, body *Expr, rhs float64) *Constraint {
	return NewConstraint(name, body, math.Inf(-1), rhs)
}

// GreaterEq creates a constraint body >= rhs.
func GreaterEq(name string, body *Expr, rhs float64) *Constraint {
	return NewConstraint(name, body, rhs, math.Inf(1))
}

// Equality creates a constraint body == rhs.
func Equality(name string, body *Expr, rhs float64) *Constraint {
	return NewConstraint(name, body, rhs, rhs)
}

// Name returns the constraint's name.
func (c *Constraint) Name() string { return c.name }

// Kind returns ConstraintKind.
func (c *Constraint) Kind() Kind { return ConstraintKind }

func (c *Constraint) scalar() {}

// Objective is a scalar objective function.
type Objective struct {
	name string

	// Expr is the objective expression.
	Expr *Expr

	// Sense is the optimization direction.
	Sense Sense
}

// NewObjective creates an objective with the given sense.
func NewObjective(name string, expr *Expr, sense Sense) *Objective {
	return &Objective{name: name, Expr: expr, Sense: sense}
}

// Name returns the objective's name.
func (o *Objective) Name() string { return o.name }

// Kind returns ObjectiveKind.
func (o *Objective) Kind() Kind { return ObjectiveKind }

func (o *Objective) scalar() {}
