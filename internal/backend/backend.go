// Package backend defines the contract between the persistent session layer
// and a solver backend: the entities a backend stores (columns, rows, one
// objective), the opaque handles it issues for them, and the solve call.
//
// A backend owns a private in-memory model. The session layer mutates that
// model one entity at a time through this interface and is responsible for
// keeping it consistent with the user's declarative model; the backend
// itself never inspects the declarative side.
package backend

import (
	"context"
	"fmt"
)

// Handle is an opaque reference to one entity in a backend's model.
// Handles are issued by the backend, are unique across entity kinds within
// one backend instance, and are never reused after deletion. A handle is
// meaningful only for the backend that issued it.
type Handle int64

// InvalidHandle is never issued by a backend.
const InvalidHandle Handle = 0

// VarType specifies the domain of a column.
type VarType int

const (
	// Continuous indicates a continuous column (default).
	Continuous VarType = iota
	// Integer indicates an integer column.
	Integer
	// Binary indicates a 0/1 column.
	Binary
)

// String returns a human-readable representation of the column type.
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

// Column describes one variable of the backend model.
type Column struct {
	// Name is carried for diagnostics only.
	Name string

	// Lower and Upper bound the column.
	Lower, Upper float64

	// Type is the column's domain.
	Type VarType

	// Start is an optional warm-start value.
	Start float64
}

// Row describes one constraint of the backend model:
// Lower <= sum(Coeffs[h] * column h) <= Upper.
type Row struct {
	// Name is carried for diagnostics only.
	Name string

	// Lower and Upper bound the row activity.
	Lower, Upper float64

	// Coeffs maps column handles to their coefficients. Every handle must
	// refer to a live column of the same backend.
	Coeffs map[Handle]float64
}

// QuadEntry is one quadratic objective term: Coeff * column X * column Y.
type QuadEntry struct {
	X, Y  Handle
	Coeff float64
}

// Sense specifies the optimization direction.
type Sense int

const (
	// Minimize indicates a minimization objective (default).
	Minimize Sense = iota
	// Maximize indicates a maximization objective.
	Maximize
)

// Objective describes the backend model's objective function.
type Objective struct {
	// Name is carried for diagnostics only.
	Name string

	// Sense is the optimization direction.
	Sense Sense

	// Linear maps column handles to objective coefficients.
	Linear map[Handle]float64

	// Quadratic holds quadratic terms; only valid when the backend
	// reports quadratic support.
	Quadratic []QuadEntry

	// Offset is a constant added to the objective value.
	Offset float64
}

// Options carries solve-time settings. Unknown keys in the generic maps
// are passed through to the backend, which may ignore them.
type Options struct {
	// TimeLimit bounds the solve in seconds; zero means no limit.
	TimeLimit float64

	// Backend-specific options.
	Bool   map[string]bool
	Int    map[string]int
	Float  map[string]float64
	String map[string]string
}

// Backend is the solver side of a persistent session.
//
// Implementations are not safe for concurrent use; the session layer
// guarantees single-threaded access.
type Backend interface {
	// AddColumn installs a column and returns its handle.
	AddColumn(col Column) (Handle, error)

	// UpdateColumn replaces the bounds, type and start of a live column
	// in place. The handle and the column's coefficient participation in
	// rows and objective are unchanged.
	UpdateColumn(h Handle, col Column) error

	// DeleteColumn removes a live column. The caller is responsible for
	// removing rows that reference it first; the backend does not check.
	DeleteColumn(h Handle) error

	// AddRow installs a row and returns its handle. Every column handle
	// in the row's coefficients must be live.
	AddRow(row Row) (Handle, error)

	// DeleteRow removes a live row.
	DeleteRow(h Handle) error

	// SetObjective installs the objective and returns its handle. Fails
	// if an objective is already installed; remove it first.
	SetObjective(obj Objective) (Handle, error)

	// RemoveObjective removes the live objective.
	RemoveObjective(h Handle) error

	// NumColumns returns the number of live columns.
	NumColumns() int

	// NumRows returns the number of live rows.
	NumRows() int

	// SupportsQuadraticObjective reports whether SetObjective accepts
	// quadratic terms.
	SupportsQuadraticObjective() bool

	// Solve runs the solver on the current model. Solver-level outcomes
	// (infeasible, unbounded, limits) are reported in the Solution
	// status; the error return is for invocation failures only.
	Solve(ctx context.Context, opts Options) (*Solution, error)

	// Reset discards all entities and any cached solution, returning the
	// backend to its initial empty state. Previously issued handles
	// become permanently dead.
	Reset()
}

// Error describes a failed backend operation.
type Error struct {
	// Op is the operation that failed (e.g. "AddRow").
	Op string
	// Msg describes the failure.
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: %s failed: %s", e.Op, e.Msg)
}

// Errorf creates a backend Error with a formatted message.
func Errorf(op, format string, args ...interface{}) error {
	return &Error{Op: op, Msg: fmt.Sprintf(format, args...)}
}
