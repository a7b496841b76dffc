// Package persistent implements the incremental synchronization engine
// between a declarative model and a solver backend: the handle registry,
// the expression translator, and the session that applies add/remove/
// update operations to the backend in lock-step with user edits.
//
// The engine never inspects the declarative model to discover edits; all
// synchronization is driven by explicit calls, and the caller is
// responsible for the remove/re-add protocol when a component's expression
// changes. Misuse fails predictably with the typed errors in this package,
// always before any backend mutation for the failing call.
package persistent

import (
	"github.com/copyleftdev/SKARN/internal/backend"
	"github.com/copyleftdev/SKARN/internal/model"
)

// Registry is the bidirectional map between component identity and backend
// handle. Components are keyed by identity (pointer), not by name or
// content. Every live entry corresponds to an entity the backend still
// holds; no two live components share a handle.
//
// Registry does not cascade: unregistering has no effect on other entries.
// Cascade behavior for blocks lives in the session.
type Registry struct {
	byComponent map[model.Component]backend.Handle
	byHandle    map[backend.Handle]model.Component
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byComponent: make(map[model.Component]backend.Handle),
		byHandle:    make(map[backend.Handle]model.Component),
	}
}

// Register records a live handle for the component. Fails with
// DuplicateComponentError when the component already has a live handle.
func (r *Registry) Register(c model.Component, h backend.Handle) error {
	if _, ok := r.byComponent[c]; ok {
		return &DuplicateComponentError{Component: c}
	}
	r.byComponent[c] = h
	r.byHandle[h] = c
	return nil
}

// Unregister removes the component's live entry and returns its handle.
// Fails with StaleReferenceError when no live handle exists.
func (r *Registry) Unregister(c model.Component) (backend.Handle, error) {
	h, ok := r.byComponent[c]
	if !ok {
		return backend.InvalidHandle, &StaleReferenceError{Component: c, Op: "Unregister"}
	}
	delete(r.byComponent, c)
	delete(r.byHandle, h)
	return h, nil
}

// Lookup returns the component's live handle. Fails with
// StaleReferenceError when absent.
func (r *Registry) Lookup(c model.Component) (backend.Handle, error) {
	h, ok := r.byComponent[c]
	if !ok {
		return backend.InvalidHandle, &StaleReferenceError{Component: c, Op: "Lookup"}
	}
	return h, nil
}

// Contains reports whether the component has a live handle.
func (r *Registry) Contains(c model.Component) bool {
	_, ok := r.byComponent[c]
	return ok
}

// LookupReverse returns the component registered under a handle.
func (r *Registry) LookupReverse(h backend.Handle) (model.Component, bool) {
	c, ok := r.byHandle[h]
	return c, ok
}

// Len returns the number of live entries.
func (r *Registry) Len() int { return len(r.byComponent) }

// Reset discards all entries.
func (r *Registry) Reset() {
	r.byComponent = make(map[model.Component]backend.Handle)
	r.byHandle = make(map[backend.Handle]model.Component)
}
