package model

import "fmt"

// IndexedVar is a family of variables sharing a base name, distinguished
// by an index key. The container is not registrable; register its members
// individually or through a block.
type IndexedVar struct {
	name    string
	keys    []string
	members map[string]*Var
}

// NewIndexedVar creates an empty variable family.
func NewIndexedVar(name string) *IndexedVar {
	return &IndexedVar{name: name, members: make(map[string]*Var)}
}

// Name returns the family's base name.
func (iv *IndexedVar) Name() string { return iv.name }

// Kind returns VarKind.
func (iv *IndexedVar) Kind() Kind { return VarKind }

// Add creates the member for key, or returns the existing one.
func (iv *IndexedVar) Add(key string) *Var {
	if v, ok := iv.members[key]; ok {
		return v
	}
	v := NewVar(fmt.Sprintf("%s[%s]", iv.name, key))
	iv.keys = append(iv.keys, key)
	iv.members[key] = v
	return v
}

// At returns the member for key, if present.
func (iv *IndexedVar) At(key string) (*Var, bool) {
	v, ok := iv.members[key]
	return v, ok
}

// Members returns the members in insertion order.
func (iv *IndexedVar) Members() []Scalar {
	out := make([]Scalar, len(iv.keys))
	for i, k := range iv.keys {
		out[i] = iv.members[k]
	}
	return out
}

// Len returns the number of members.
func (iv *IndexedVar) Len() int { return len(iv.keys) }

// IndexedConstraint is a family of constraints sharing a base name.
type IndexedConstraint struct {
	name    string
	keys    []string
	members map[string]*Constraint
}

// NewIndexedConstraint creates an empty constraint family.
func NewIndexedConstraint(name string) *IndexedConstraint {
	return &IndexedConstraint{name: name, members: make(map[string]*Constraint)}
}

// Name returns the family's base name.
func (ic *IndexedConstraint) Name() string { return ic.name }

// Kind returns ConstraintKind.
func (ic *IndexedConstraint) Kind() Kind { return ConstraintKind }

// Add creates the member for key with the given body and bounds, or
// returns the existing member for key unchanged.
func (ic *IndexedConstraint) Add(key string, body *Expr, lower, upper float64) *Constraint {
	if c, ok := ic.members[key]; ok {
		return c
	}
	c := NewConstraint(fmt.Sprintf("%s[%s]", ic.name, key), body, lower, upper)
	ic.keys = append(ic.keys, key)
	ic.members[key] = c
	return c
}

// At returns the member for key, if present.
func (ic *IndexedConstraint) At(key string) (*Constraint, bool) {
	c, ok := ic.members[key]
	return c, ok
}

// Members returns the members in insertion order.
func (ic *IndexedConstraint) Members() []Scalar {
	out := make([]Scalar, len(ic.keys))
	for i, k := range ic.keys {
		out[i] = ic.members[k]
	}
	return out
}

// Len returns the number of members.
func (ic *IndexedConstraint) Len() int { return len(ic.keys) }
