package backend

// ModelStatus reports the outcome of a solve.
type ModelStatus int

const (
	// StatusNotSet indicates no solve has run.
	StatusNotSet ModelStatus = iota
	// StatusOptimal indicates an optimal solution was found.
	StatusOptimal
	// StatusInfeasible indicates the model has no feasible point.
	StatusInfeasible
	// StatusUnbounded indicates the objective is unbounded.
	StatusUnbounded
	// StatusIterationLimit indicates the iteration limit was reached.
	StatusIterationLimit
	// StatusTimeLimit indicates the time limit was reached.
	StatusTimeLimit
	// StatusSolveError indicates the solver failed.
	StatusSolveError
	// StatusUnknown indicates an unrecognized outcome.
	StatusUnknown
)

// String returns a human-readable representation of the status.
func (s ModelStatus) String() string {
	names := []string{
		"NotSet", "Optimal", "Infeasible", "Unbounded",
		"IterationLimit", "TimeLimit", "SolveError", "Unknown",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// IsOptimal reports whether the solve reached optimality.
func (s ModelStatus) IsOptimal() bool { return s == StatusOptimal }

// HasSolution reports whether a usable primal solution accompanies the
// status. A limit status carries the incumbent found so far.
func (s ModelStatus) HasSolution() bool {
	return s == StatusOptimal ||
		s == StatusIterationLimit ||
		s == StatusTimeLimit
}

// Solution is the outcome of one backend solve.
type Solution struct {
	// Status is the solver-reported outcome.
	Status ModelStatus

	// Objective is the objective value at the solution, valid only when
	// Status.HasSolution().
	Objective float64

	// Values maps live column handles to primal values, valid only when
	// Status.HasSolution().
	Values map[Handle]float64

	// RowActivity maps live row handles to the value of the row body at
	// the solution, when the backend computes it.
	RowActivity map[Handle]float64

	// Message carries solver diagnostics for non-solution statuses.
	Message string
}

// Value returns the primal value for a column handle.
// The second return is false when the handle has no value.
func (s *Solution) Value(h Handle) (float64, bool) {
	v, ok := s.Values[h]
	return v, ok
}
