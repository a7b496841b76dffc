package persistent

import (
	"fmt"

	"github.com/copyleftdev/SKARN/internal/model"
)

// DuplicateComponentError reports an attempt to register a component that
// already has a live handle. Re-adding requires removing first, even when
// the component's symbolic content has changed.
type DuplicateComponentError struct {
	Component model.Component
}

func (e *DuplicateComponentError) Error() string {
	return fmt.Sprintf("%s %q is already registered; remove it before re-adding",
		e.Component.Kind(), e.Component.Name())
}

// StaleReferenceError reports an operation on a component that has no live
// handle: it was never added, was removed, or belongs to a previous
// instance.
type StaleReferenceError struct {
	Component model.Component
	Op        string
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("%s: %s %q has no live handle",
		e.Op, e.Component.Kind(), e.Component.Name())
}

// IndexedComponentError reports an indexed container passed where a scalar
// component is required. The caller must iterate the container's members.
type IndexedComponentError struct {
	Component model.Component
}

func (e *IndexedComponentError) Error() string {
	return fmt.Sprintf("%q is an indexed %s container; add or remove its members individually",
		e.Component.Name(), e.Component.Kind())
}

// UnresolvedReferenceError reports an expression that references a
// variable with no live handle. Register the variable first.
type UnresolvedReferenceError struct {
	// Component owns the offending expression.
	Component model.Component
	// Var is the unregistered variable.
	Var *model.Var
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s %q references variable %q, which is not registered",
		e.Component.Kind(), e.Component.Name(), e.Var.Name())
}

// UnsupportedExpressionError reports an expression the backend cannot
// represent.
type UnsupportedExpressionError struct {
	Component model.Component
	Reason    string
}

func (e *UnsupportedExpressionError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Component.Kind(), e.Component.Name(), e.Reason)
}

// NoSolutionAvailableError reports a result-loading call with no usable
// solution: no solve has run since the last structural change, or the last
// solve ended without a solution.
type NoSolutionAvailableError struct {
	Reason string
}

func (e *NoSolutionAvailableError) Error() string {
	return "no solution available: " + e.Reason
}
