package persistent

import "github.com/copyleftdev/SKARN/internal/backend"

// Results is the materialized outcome of one solve call, keyed by
// component names so it stays meaningful after the session moves on.
// Solver-level failures (infeasible, unbounded, solver error) are reported
// here in Status, never as Solve errors.
type Results struct {
	// Status is the solver-reported termination status.
	Status backend.ModelStatus

	// Message carries solver diagnostics for non-solution statuses.
	Message string

	// Objective is the objective value, valid when Status.HasSolution().
	Objective float64

	// Solution maps variable names to primal values. Populated only when
	// the solve ran with results saving enabled and produced a solution.
	Solution map[string]float64

	// ConstraintActivity maps constraint names to the value of their body
	// at the solution, when the backend computes it.
	ConstraintActivity map[string]float64
}

// HasSolution reports whether the results carry a usable primal solution.
func (r *Results) HasSolution() bool {
	return r != nil && r.Status.HasSolution()
}
