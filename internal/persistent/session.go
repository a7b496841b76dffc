package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/copyleftdev/SKARN/internal/backend"
	"github.com/copyleftdev/SKARN/internal/logging"
	"github.com/copyleftdev/SKARN/internal/model"
)

// ErrUnbound is returned for operations on a session with no instance.
var ErrUnbound = errors.New("persistent: session is not bound to an instance")

// State is the lifecycle state of a session.
type State int

const (
	// Unbound means no instance has been set.
	Unbound State = iota
	// Built means the backend model reflects the registered components
	// but no usable solution exists for the current structure.
	Built
	// Solved means the last solve produced a usable solution and no
	// structural mutation has happened since.
	Solved
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Unbound:
		return "Unbound"
	case Built:
		return "Built"
	case Solved:
		return "Solved"
	default:
		return "Unknown"
	}
}

// Session keeps one solver backend's model synchronized with one
// declarative model. The backend is owned exclusively by the session.
//
// All synchronization is explicit: a component enters the backend only
// through an add call and leaves only through a remove call, even when the
// declarative model drops or replaces it. Mutating a registered
// component's expression without remove/re-add silently desynchronizes
// the backend; that is the caller's obligation, not detected here.
//
// A session is single-threaded; callers sharing one must serialize access
// externally.
type Session struct {
	be     backend.Backend
	reg    *Registry
	tr     *Translator
	logger *logging.Logger

	state    State
	instance *model.Model

	// objective is the live objective component, if any. Backends hold a
	// single objective at a time.
	objective *model.Objective

	// blockMembers records, per added block, the exact scalar set
	// registered by that AddBlock call. RemoveBlock cascades over this
	// recorded set and nothing else.
	blockMembers map[*model.Block][]model.Scalar

	// lastValues is the column-value snapshot of the most recent usable
	// solution, kept for LoadVars regardless of results saving.
	lastValues map[backend.Handle]float64

	results *Results
}

// Option configures a Session.
type Option func(*Session)

// WithLogger attaches a structured logger to the session.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session owning the given backend.
func New(be backend.Backend, opts ...Option) *Session {
	s := &Session{
		be:           be,
		reg:          NewRegistry(),
		state:        Unbound,
		blockMembers: make(map[*model.Block][]model.Scalar),
	}
	s.tr = NewTranslator(s.reg, be)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the session's lifecycle state.
func (s *Session) State() State { return s.state }

// Registry returns the session's handle registry.
func (s *Session) Registry() *Registry { return s.reg }

// Instance returns the bound declarative model, or nil.
func (s *Session) Instance() *model.Model { return s.instance }

// SetInstance binds a fresh declarative model, discarding any prior
// registry and backend state, and registers every scalar component the
// model contains at call time. Passing nil unbinds the session.
func (s *Session) SetInstance(m *model.Model) error {
	s.be.Reset()
	s.reg.Reset()
	s.blockMembers = make(map[*model.Block][]model.Scalar)
	s.objective = nil
	s.lastValues = nil
	s.results = nil
	s.instance = m
	if m == nil {
		s.state = Unbound
		return nil
	}
	s.state = Built
	s.logInfo("instance bound", map[string]interface{}{"model": m.Name()})
	return s.addBlock(&m.Block)
}

// invalidate records a structural mutation: any cached solution is
// discarded and a Solved session drops back to Built.
func (s *Session) invalidate() {
	s.lastValues = nil
	s.results = nil
	if s.state == Solved {
		s.state = Built
	}
}

// AddVar registers a variable and installs its column in the backend.
func (s *Session) AddVar(v *model.Var) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	if s.reg.Contains(v) {
		return &DuplicateComponentError{Component: v}
	}
	col, err := s.tr.Column(v)
	if err != nil {
		return err
	}
	h, err := s.be.AddColumn(col)
	if err != nil {
		return err
	}
	if err := s.reg.Register(v, h); err != nil {
		return err
	}
	s.invalidate()
	s.logDebug("variable added", map[string]interface{}{"var": v.Name(), "handle": int64(h)})
	return nil
}

// AddConstraint registers a constraint and installs its row in the
// backend. Every variable the body references must already be registered.
func (s *Session) AddConstraint(c *model.Constraint) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	if s.reg.Contains(c) {
		return &DuplicateComponentError{Component: c}
	}
	row, err := s.tr.Row(c)
	if err != nil {
		return err
	}
	h, err := s.be.AddRow(row)
	if err != nil {
		return err
	}
	if err := s.reg.Register(c, h); err != nil {
		return err
	}
	s.invalidate()
	s.logDebug("constraint added", map[string]interface{}{"constraint": c.Name(), "handle": int64(h)})
	return nil
}

// AddObjective registers an objective and installs it in the backend.
// Backends hold one objective at a time; remove the live one first.
func (s *Session) AddObjective(o *model.Objective) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	if s.reg.Contains(o) {
		return &DuplicateComponentError{Component: o}
	}
	obj, err := s.tr.Objective(o)
	if err != nil {
		return err
	}
	h, err := s.be.SetObjective(obj)
	if err != nil {
		return err
	}
	if err := s.reg.Register(o, h); err != nil {
		return err
	}
	s.objective = o
	s.invalidate()
	s.logDebug("objective added", map[string]interface{}{"objective": o.Name(), "handle": int64(h)})
	return nil
}

// Add registers any component: scalars dispatch to the typed add calls,
// blocks cascade, and indexed containers fail with IndexedComponentError
// because only their members are registrable.
func (s *Session) Add(c model.Component) error {
	switch v := c.(type) {
	case *model.Var:
		return s.AddVar(v)
	case *model.Constraint:
		return s.AddConstraint(v)
	case *model.Objective:
		return s.AddObjective(v)
	case *model.Block:
		return s.AddBlock(v)
	case model.Indexed:
		return &IndexedComponentError{Component: c}
	default:
		return fmt.Errorf("persistent: cannot add component %q of kind %s", c.Name(), c.Kind())
	}
}

// AddBlock registers every scalar component contained in the block at call
// time, recursively through sub-blocks, and records that exact set for
// RemoveBlock. Components added to the block afterwards are not tracked;
// register them individually.
//
// The whole call is validated before any backend mutation: on error,
// nothing was registered.
func (s *Session) AddBlock(b *model.Block) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	if _, ok := s.blockMembers[b]; ok {
		return &DuplicateComponentError{Component: b}
	}
	return s.addBlock(b)
}

func (s *Session) addBlock(b *model.Block) error {
	snapshot := b.Scalars()

	var vars []*model.Var
	var constraints []*model.Constraint
	var objectives []*model.Objective
	for _, sc := range snapshot {
		switch v := sc.(type) {
		case *model.Var:
			vars = append(vars, v)
		case *model.Constraint:
			constraints = append(constraints, v)
		case *model.Objective:
			objectives = append(objectives, v)
		}
	}

	if err := s.validateBlock(vars, constraints, objectives); err != nil {
		return err
	}

	for _, v := range vars {
		if err := s.AddVar(v); err != nil {
			return err
		}
	}
	for _, c := range constraints {
		if err := s.AddConstraint(c); err != nil {
			return err
		}
	}
	for _, o := range objectives {
		if err := s.AddObjective(o); err != nil {
			return err
		}
	}

	s.blockMembers[b] = snapshot
	s.logDebug("block added", map[string]interface{}{"block": b.Name(), "members": len(snapshot)})
	return nil
}

// validateBlock checks a block registration up front so the per-component
// adds cannot fail halfway through.
func (s *Session) validateBlock(vars []*model.Var, constraints []*model.Constraint, objectives []*model.Objective) error {
	incoming := make(map[*model.Var]bool, len(vars))
	for _, v := range vars {
		if s.reg.Contains(v) {
			return &DuplicateComponentError{Component: v}
		}
		if incoming[v] {
			return &DuplicateComponentError{Component: v}
		}
		incoming[v] = true
	}

	resolvable := func(v *model.Var) bool {
		return incoming[v] || s.reg.Contains(v)
	}
	checkExpr := func(owner model.Component, e *model.Expr) error {
		for _, t := range e.Terms() {
			if !resolvable(t.Var) {
				return &UnresolvedReferenceError{Component: owner, Var: t.Var}
			}
		}
		for _, q := range e.QuadTerms() {
			if !resolvable(q.X) {
				return &UnresolvedReferenceError{Component: owner, Var: q.X}
			}
			if !resolvable(q.Y) {
				return &UnresolvedReferenceError{Component: owner, Var: q.Y}
			}
		}
		return nil
	}

	seenCons := make(map[*model.Constraint]bool, len(constraints))
	for _, c := range constraints {
		if s.reg.Contains(c) || seenCons[c] {
			return &DuplicateComponentError{Component: c}
		}
		seenCons[c] = true
		if c.Body == nil {
			return &UnsupportedExpressionError{Component: c, Reason: "constraint has no body"}
		}
		if !c.Body.IsLinear() {
			return &UnsupportedExpressionError{Component: c, Reason: "quadratic constraint bodies are not supported"}
		}
		if err := checkExpr(c, c.Body); err != nil {
			return err
		}
	}

	seenObjs := make(map[*model.Objective]bool, len(objectives))
	for _, o := range objectives {
		if s.reg.Contains(o) || seenObjs[o] {
			return &DuplicateComponentError{Component: o}
		}
		seenObjs[o] = true
	}
	live := 0
	if s.objective != nil {
		live = 1
	}
	if live+len(objectives) > 1 {
		return fmt.Errorf("persistent: block would install %d objectives; backends hold one", live+len(objectives))
	}
	for _, o := range objectives {
		if o.Expr == nil {
			return &UnsupportedExpressionError{Component: o, Reason: "objective has no expression"}
		}
		if !o.Expr.IsLinear() && !s.be.SupportsQuadraticObjective() {
			return &UnsupportedExpressionError{Component: o, Reason: "backend does not support quadratic objectives"}
		}
		if err := checkExpr(o, o.Expr); err != nil {
			return err
		}
	}
	return nil
}

// RemoveVar deletes a variable's column and unregisters it. The caller is
// responsible for removing constraints and objectives that still reference
// the variable first; the engine does not check for dangling coefficients.
func (s *Session) RemoveVar(v *model.Var) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	h, err := s.reg.Lookup(v)
	if err != nil {
		return &StaleReferenceError{Component: v, Op: "RemoveVar"}
	}
	if err := s.be.DeleteColumn(h); err != nil {
		return err
	}
	if _, err := s.reg.Unregister(v); err != nil {
		return err
	}
	s.invalidate()
	s.logDebug("variable removed", map[string]interface{}{"var": v.Name(), "handle": int64(h)})
	return nil
}

// RemoveConstraint deletes a constraint's row and unregisters it.
func (s *Session) RemoveConstraint(c *model.Constraint) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	h, err := s.reg.Lookup(c)
	if err != nil {
		return &StaleReferenceError{Component: c, Op: "RemoveConstraint"}
	}
	if err := s.be.DeleteRow(h); err != nil {
		return err
	}
	if _, err := s.reg.Unregister(c); err != nil {
		return err
	}
	s.invalidate()
	s.logDebug("constraint removed", map[string]interface{}{"constraint": c.Name(), "handle": int64(h)})
	return nil
}

// RemoveObjective deletes the objective from the backend and unregisters it.
func (s *Session) RemoveObjective(o *model.Objective) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	h, err := s.reg.Lookup(o)
	if err != nil {
		return &StaleReferenceError{Component: o, Op: "RemoveObjective"}
	}
	if err := s.be.RemoveObjective(h); err != nil {
		return err
	}
	if _, err := s.reg.Unregister(o); err != nil {
		return err
	}
	if s.objective == o {
		s.objective = nil
	}
	s.invalidate()
	s.logDebug("objective removed", map[string]interface{}{"objective": o.Name(), "handle": int64(h)})
	return nil
}

// Remove unregisters any component, dispatching like Add.
func (s *Session) Remove(c model.Component) error {
	switch v := c.(type) {
	case *model.Var:
		return s.RemoveVar(v)
	case *model.Constraint:
		return s.RemoveConstraint(v)
	case *model.Objective:
		return s.RemoveObjective(v)
	case *model.Block:
		return s.RemoveBlock(v)
	case model.Indexed:
		return &IndexedComponentError{Component: c}
	default:
		return fmt.Errorf("persistent: cannot remove component %q of kind %s", c.Name(), c.Kind())
	}
}

// RemoveBlock removes exactly the scalar set recorded when the block was
// added: constraints and objectives first, then variables. Members removed
// individually since then are skipped; components added to the block after
// the AddBlock call are not touched. Removing a block that was never added
// fails with StaleReferenceError.
func (s *Session) RemoveBlock(b *model.Block) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	members, ok := s.blockMembers[b]
	if !ok {
		return &StaleReferenceError{Component: b, Op: "RemoveBlock"}
	}

	// Rows and the objective go before columns so the backend never holds
	// coefficients over deleted columns.
	for _, sc := range members {
		if _, isVar := sc.(*model.Var); isVar || !s.reg.Contains(sc) {
			continue
		}
		if err := s.Remove(sc); err != nil {
			return err
		}
	}
	for _, sc := range members {
		v, isVar := sc.(*model.Var)
		if !isVar || !s.reg.Contains(v) {
			continue
		}
		if err := s.RemoveVar(v); err != nil {
			return err
		}
	}

	delete(s.blockMembers, b)
	s.invalidate()
	s.logDebug("block removed", map[string]interface{}{"block": b.Name()})
	return nil
}

// UpdateVar pushes a variable's current bounds, type and start value to
// its existing backend column in place. The handle and the variable's
// coefficient participation never change, and the operation is not a
// structural mutation: a Solved session stays Solved.
func (s *Session) UpdateVar(v *model.Var) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	h, err := s.reg.Lookup(v)
	if err != nil {
		return &StaleReferenceError{Component: v, Op: "UpdateVar"}
	}
	col, err := s.tr.Column(v)
	if err != nil {
		return err
	}
	if err := s.be.UpdateColumn(h, col); err != nil {
		return err
	}
	s.logDebug("variable updated", map[string]interface{}{"var": v.Name(), "handle": int64(h)})
	return nil
}

// Solve invokes the backend on the current model. Solver-level outcomes
// (infeasible, unbounded, limits) are reported in the returned Results
// status; the error return is for invocation failures only.
//
// By default the full results are retained for Results() and solution
// values are copied into the model's variables. See WithResults,
// WithLoadSolutions and the other solve options.
func (s *Session) Solve(ctx context.Context, opts ...SolveOption) (*Results, error) {
	if s.state == Unbound {
		return nil, ErrUnbound
	}
	cfg := defaultSolveConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	s.logInfo("solve started", map[string]interface{}{
		"columns": s.be.NumColumns(),
		"rows":    s.be.NumRows(),
	})
	sol, err := s.be.Solve(ctx, cfg.backendOpts)
	if err != nil {
		return nil, err
	}

	res := &Results{
		Status:  sol.Status,
		Message: sol.Message,
	}
	if sol.Status.HasSolution() {
		res.Objective = sol.Objective
		s.lastValues = sol.Values
		s.state = Solved
		if cfg.saveResults {
			res.Solution = s.namedValues(sol.Values)
			res.ConstraintActivity = s.namedValues(sol.RowActivity)
		}
		if cfg.loadSolutions {
			if err := s.LoadVars(); err != nil {
				return nil, err
			}
		}
	} else {
		s.lastValues = nil
		if s.state == Solved {
			s.state = Built
		}
	}
	if cfg.saveResults {
		s.results = res
	} else {
		s.results = nil
	}

	s.logInfo("solve finished", map[string]interface{}{
		"status":    sol.Status.String(),
		"objective": res.Objective,
	})
	return res, nil
}

// namedValues maps handle-keyed backend values to component names via the
// reverse registry lookup.
func (s *Session) namedValues(values map[backend.Handle]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for h, val := range values {
		if c, ok := s.reg.LookupReverse(h); ok {
			out[c.Name()] = val
		}
	}
	return out
}

// Results returns the retained results of the most recent solve, or nil
// when none were saved or a structural mutation has invalidated them.
func (s *Session) Results() *Results { return s.results }

// LoadVars copies the most recent solution's values into the given
// variables' Value fields, or into every registered variable when called
// with no arguments. It is valid only while the session is Solved; with
// results saving disabled this is the only way to read the solution.
func (s *Session) LoadVars(subset ...*model.Var) error {
	if s.state == Unbound {
		return ErrUnbound
	}
	if s.state != Solved || s.lastValues == nil {
		return &NoSolutionAvailableError{
			Reason: "no solve has produced a usable solution since the last structural change",
		}
	}

	if len(subset) == 0 {
		for h, val := range s.lastValues {
			if c, ok := s.reg.LookupReverse(h); ok {
				if v, isVar := c.(*model.Var); isVar {
					v.Value = val
				}
			}
		}
		return nil
	}

	for _, v := range subset {
		h, err := s.reg.Lookup(v)
		if err != nil {
			return &StaleReferenceError{Component: v, Op: "LoadVars"}
		}
		val, ok := s.lastValues[h]
		if !ok {
			return &NoSolutionAvailableError{
				Reason: fmt.Sprintf("variable %q has no value in the current solution", v.Name()),
			}
		}
		v.Value = val
	}
	return nil
}

func (s *Session) logDebug(msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, fields)
	}
}

func (s *Session) logInfo(msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, fields)
	}
}
