// Package dense provides an in-memory reference backend for persistent
// sessions. It stores columns and rows keyed by stable handles, solves
// linear programs exactly with gonum's simplex implementation, and solves
// convex quadratic programs with a penalty method driven by Nelder-Mead
// restarts.
//
// The backend keeps its model incrementally: add, update and delete calls
// mutate the handle-keyed store, and each Solve compiles the current store
// into matrix form. Handles are never reused.
package dense

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/copyleftdev/SKARN/internal/backend"
)

// Backend is an in-memory solver backend. Not safe for concurrent use.
type Backend struct {
	next backend.Handle

	cols map[backend.Handle]backend.Column
	rows map[backend.Handle]backend.Row

	obj       backend.Objective
	objHandle backend.Handle
	hasObj    bool
}

var _ backend.Backend = (*Backend)(nil)

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		next: 1,
		cols: make(map[backend.Handle]backend.Column),
		rows: make(map[backend.Handle]backend.Row),
	}
}

func (b *Backend) issue() backend.Handle {
	h := b.next
	b.next++
	return h
}

// AddColumn installs a column and returns its handle.
func (b *Backend) AddColumn(col backend.Column) (backend.Handle, error) {
	if col.Lower > col.Upper {
		return backend.InvalidHandle, backend.Errorf("AddColumn", "column %q has crossed bounds [%g, %g]", col.Name, col.Lower, col.Upper)
	}
	h := b.issue()
	b.cols[h] = col
	return h, nil
}

// UpdateColumn replaces a live column's attributes in place.
func (b *Backend) UpdateColumn(h backend.Handle, col backend.Column) error {
	if _, ok := b.cols[h]; !ok {
		return backend.Errorf("UpdateColumn", "no column with handle %d", h)
	}
	if col.Lower > col.Upper {
		return backend.Errorf("UpdateColumn", "column %q has crossed bounds [%g, %g]", col.Name, col.Lower, col.Upper)
	}
	b.cols[h] = col
	return nil
}

// DeleteColumn removes a live column. Rows referencing the column are not
// checked; deleting a still-referenced column leaves dangling coefficients
// that will surface as an error on the next Solve.
func (b *Backend) DeleteColumn(h backend.Handle) error {
	if _, ok := b.cols[h]; !ok {
		return backend.Errorf("DeleteColumn", "no column with handle %d", h)
	}
	delete(b.cols, h)
	return nil
}

// AddRow installs a row and returns its handle.
func (b *Backend) AddRow(row backend.Row) (backend.Handle, error) {
	if row.Lower > row.Upper {
		return backend.InvalidHandle, backend.Errorf("AddRow", "row %q has crossed bounds [%g, %g]", row.Name, row.Lower, row.Upper)
	}
	for ch := range row.Coeffs {
		if _, ok := b.cols[ch]; !ok {
			return backend.InvalidHandle, backend.Errorf("AddRow", "row %q references unknown column handle %d", row.Name, ch)
		}
	}
	coeffs := make(map[backend.Handle]float64, len(row.Coeffs))
	for ch, v := range row.Coeffs {
		coeffs[ch] = v
	}
	row.Coeffs = coeffs
	h := b.issue()
	b.rows[h] = row
	return h, nil
}

// DeleteRow removes a live row.
func (b *Backend) DeleteRow(h backend.Handle) error {
	if _, ok := b.rows[h]; !ok {
		return backend.Errorf("DeleteRow", "no row with handle %d", h)
	}
	delete(b.rows, h)
	return nil
}

// SetObjective installs the objective. Only one objective may be live.
func (b *Backend) SetObjective(obj backend.Objective) (backend.Handle, error) {
	if b.hasObj {
		return backend.InvalidHandle, backend.Errorf("SetObjective", "objective %q is already set; remove it first", b.obj.Name)
	}
	for ch := range obj.Linear {
		if _, ok := b.cols[ch]; !ok {
			return backend.InvalidHandle, backend.Errorf("SetObjective", "objective %q references unknown column handle %d", obj.Name, ch)
		}
	}
	for _, q := range obj.Quadratic {
		if _, ok := b.cols[q.X]; !ok {
			return backend.InvalidHandle, backend.Errorf("SetObjective", "objective %q references unknown column handle %d", obj.Name, q.X)
		}
		if _, ok := b.cols[q.Y]; !ok {
			return backend.InvalidHandle, backend.Errorf("SetObjective", "objective %q references unknown column handle %d", obj.Name, q.Y)
		}
	}
	linear := make(map[backend.Handle]float64, len(obj.Linear))
	for ch, v := range obj.Linear {
		linear[ch] = v
	}
	obj.Linear = linear
	obj.Quadratic = append([]backend.QuadEntry(nil), obj.Quadratic...)

	h := b.issue()
	b.obj = obj
	b.objHandle = h
	b.hasObj = true
	return h, nil
}

// RemoveObjective removes the live objective.
func (b *Backend) RemoveObjective(h backend.Handle) error {
	if !b.hasObj || b.objHandle != h {
		return backend.Errorf("RemoveObjective", "no objective with handle %d", h)
	}
	b.obj = backend.Objective{}
	b.objHandle = backend.InvalidHandle
	b.hasObj = false
	return nil
}

// NumColumns returns the number of live columns.
func (b *Backend) NumColumns() int { return len(b.cols) }

// NumRows returns the number of live rows.
func (b *Backend) NumRows() int { return len(b.rows) }

// SupportsQuadraticObjective reports quadratic objective support.
func (b *Backend) SupportsQuadraticObjective() bool { return true }

// Reset discards all entities, returning the backend to its empty state.
// Issued handles stay dead: the counter is not rewound.
func (b *Backend) Reset() {
	b.cols = make(map[backend.Handle]backend.Column)
	b.rows = make(map[backend.Handle]backend.Row)
	b.obj = backend.Objective{}
	b.objHandle = backend.InvalidHandle
	b.hasObj = false
}

// Solve compiles the current model and solves it. Solver outcomes are
// reported in the solution status; the error return is reserved for
// invocation failures such as a cancelled context.
func (b *Backend) Solve(ctx context.Context, opts backend.Options) (*backend.Solution, error) {
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeLimit*float64(time.Second)))
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, fail := b.compile()
	if fail != nil {
		return fail, nil
	}
	if p.n == 0 {
		// Empty model: nothing to decide.
		return &backend.Solution{
			Status:      backend.StatusOptimal,
			Objective:   p.offset,
			Values:      map[backend.Handle]float64{},
			RowActivity: map[backend.Handle]float64{},
		}, nil
	}

	var sol *backend.Solution
	if p.isQuadratic() {
		sol = solvePenalty(ctx, p)
	} else {
		sol = solveSimplex(ctx, p)
	}
	if sol.Status == backend.StatusTimeLimit && ctx.Err() == context.Canceled {
		return nil, ctx.Err()
	}
	return sol, nil
}

// problem is the compiled matrix form of the backend store.
type problem struct {
	n int

	// colIDs[i] is the handle of column i; index[h] inverts it.
	colIDs []backend.Handle
	index  map[backend.Handle]int

	lower, upper []float64

	// Objective: minimize cost.x + x'Qx + offset, after folding the sense.
	cost   []float64
	quad   [][]float64 // nil for linear problems
	offset float64
	negate bool // true when the stored sense is Maximize

	rowIDs    []backend.Handle
	rowLower  []float64
	rowUpper  []float64
	rowCoeffs [][]float64 // dense, indexed by column position
}

func (p *problem) isQuadratic() bool { return p.quad != nil }

// compile snapshots the store into matrix form. A non-nil Solution return
// reports a model-level failure (integrality, dangling coefficients).
func (b *Backend) compile() (*problem, *backend.Solution) {
	p := &problem{
		n:     len(b.cols),
		index: make(map[backend.Handle]int, len(b.cols)),
	}
	p.colIDs = make([]backend.Handle, 0, len(b.cols))
	for h := range b.cols {
		p.colIDs = append(p.colIDs, h)
	}
	sort.Slice(p.colIDs, func(i, j int) bool { return p.colIDs[i] < p.colIDs[j] })

	p.lower = make([]float64, p.n)
	p.upper = make([]float64, p.n)
	for i, h := range p.colIDs {
		col := b.cols[h]
		if col.Type != backend.Continuous {
			return nil, &backend.Solution{
				Status:  backend.StatusSolveError,
				Message: "integrality is not supported by the dense backend: column " + col.Name,
			}
		}
		p.index[h] = i
		p.lower[i] = col.Lower
		p.upper[i] = col.Upper
	}

	p.cost = make([]float64, p.n)
	if b.hasObj {
		p.offset = b.obj.Offset
		p.negate = b.obj.Sense == backend.Maximize
		for h, c := range b.obj.Linear {
			i, ok := p.index[h]
			if !ok {
				return nil, danglingSolution(b.obj.Name)
			}
			p.cost[i] += c
		}
		if len(b.obj.Quadratic) > 0 {
			p.quad = make([][]float64, p.n)
			for i := range p.quad {
				p.quad[i] = make([]float64, p.n)
			}
			for _, q := range b.obj.Quadratic {
				i, ok := p.index[q.X]
				if !ok {
					return nil, danglingSolution(b.obj.Name)
				}
				j, ok := p.index[q.Y]
				if !ok {
					return nil, danglingSolution(b.obj.Name)
				}
				p.quad[i][j] += q.Coeff
			}
		}
		if p.negate {
			for i := range p.cost {
				p.cost[i] = -p.cost[i]
			}
			for i := range p.quad {
				for j := range p.quad[i] {
					p.quad[i][j] = -p.quad[i][j]
				}
			}
		}
	}

	p.rowIDs = make([]backend.Handle, 0, len(b.rows))
	for h := range b.rows {
		p.rowIDs = append(p.rowIDs, h)
	}
	sort.Slice(p.rowIDs, func(i, j int) bool { return p.rowIDs[i] < p.rowIDs[j] })

	p.rowLower = make([]float64, len(p.rowIDs))
	p.rowUpper = make([]float64, len(p.rowIDs))
	p.rowCoeffs = make([][]float64, len(p.rowIDs))
	for r, h := range p.rowIDs {
		row := b.rows[h]
		p.rowLower[r] = row.Lower
		p.rowUpper[r] = row.Upper
		dense := make([]float64, p.n)
		for ch, v := range row.Coeffs {
			i, ok := p.index[ch]
			if !ok {
				return nil, danglingSolution(row.Name)
			}
			dense[i] = v
		}
		p.rowCoeffs[r] = dense
	}

	return p, nil
}

func danglingSolution(name string) *backend.Solution {
	return &backend.Solution{
		Status:  backend.StatusSolveError,
		Message: "dangling column reference in " + name + "; a referenced column was deleted",
	}
}

// finish packages a primal point into a Solution, undoing the sense fold
// and computing row activities.
func (p *problem) finish(status backend.ModelStatus, x []float64, obj float64) *backend.Solution {
	sol := &backend.Solution{Status: status}
	if !status.HasSolution() || x == nil {
		return sol
	}
	if p.negate {
		obj = -obj
	}
	sol.Objective = obj + p.offset
	sol.Values = make(map[backend.Handle]float64, p.n)
	for i, h := range p.colIDs {
		sol.Values[h] = x[i]
	}
	sol.RowActivity = make(map[backend.Handle]float64, len(p.rowIDs))
	for r, h := range p.rowIDs {
		act := 0.0
		for i, c := range p.rowCoeffs[r] {
			act += c * x[i]
		}
		sol.RowActivity[h] = act
	}
	return sol
}

// objectiveAt evaluates the folded (minimization) objective without offset.
func (p *problem) objectiveAt(x []float64) float64 {
	f := 0.0
	for i, c := range p.cost {
		f += c * x[i]
	}
	for i := range p.quad {
		for j, q := range p.quad[i] {
			if q != 0 {
				f += q * x[i] * x[j]
			}
		}
	}
	return f
}

// clamp projects x onto the variable bounds in place.
func (p *problem) clamp(x []float64) {
	for i := range x {
		x[i] = math.Max(p.lower[i], math.Min(x[i], p.upper[i]))
	}
}
