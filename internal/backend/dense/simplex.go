package dense

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/copyleftdev/SKARN/internal/backend"
)

const simplexTol = 1e-10

// solveSimplex solves a linear problem exactly. The general-form problem
// (range rows, range bounds, free variables) is rewritten as
// G*x <= h, A*x = b and handed to gonum's Convert + Simplex pair.
func solveSimplex(ctx context.Context, p *problem) *backend.Solution {
	if err := ctx.Err(); err != nil {
		return p.finish(backend.StatusTimeLimit, nil, 0)
	}

	var gRows [][]float64
	var h []float64
	var aRows [][]float64
	var bEq []float64

	addIneq := func(coeffs []float64, rhs float64) {
		gRows = append(gRows, coeffs)
		h = append(h, rhs)
	}
	neg := func(coeffs []float64) []float64 {
		out := make([]float64, len(coeffs))
		for i, c := range coeffs {
			out[i] = -c
		}
		return out
	}

	for r := range p.rowCoeffs {
		lo, up := p.rowLower[r], p.rowUpper[r]
		if lo == up {
			aRows = append(aRows, p.rowCoeffs[r])
			bEq = append(bEq, lo)
			continue
		}
		if !math.IsInf(up, 1) {
			addIneq(p.rowCoeffs[r], up)
		}
		if !math.IsInf(lo, -1) {
			addIneq(neg(p.rowCoeffs[r]), -lo)
		}
	}
	for i := 0; i < p.n; i++ {
		unit := make([]float64, p.n)
		if p.lower[i] == p.upper[i] {
			unit[i] = 1
			aRows = append(aRows, unit)
			bEq = append(bEq, p.lower[i])
			continue
		}
		if !math.IsInf(p.upper[i], 1) {
			unit[i] = 1
			addIneq(unit, p.upper[i])
		}
		if !math.IsInf(p.lower[i], -1) {
			lower := make([]float64, p.n)
			lower[i] = -1
			addIneq(lower, -p.lower[i])
		}
	}

	if len(h) == 0 && len(bEq) == 0 {
		// Fully unconstrained: either everything is optimal or nothing is.
		for _, c := range p.cost {
			if c != 0 {
				return p.finish(backend.StatusUnbounded, nil, 0)
			}
		}
		return p.finish(backend.StatusOptimal, make([]float64, p.n), 0)
	}

	var g mat.Matrix
	if len(h) > 0 {
		g = rowMatrix(gRows, p.n)
	}
	var a mat.Matrix
	if len(bEq) > 0 {
		a = rowMatrix(aRows, p.n)
	}

	cNew, aNew, bNew := lp.Convert(p.cost, g, h, a, bEq)
	optF, optX, err := lp.Simplex(cNew, aNew, bNew, simplexTol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return p.finish(backend.StatusInfeasible, nil, 0)
		case errors.Is(err, lp.ErrUnbounded):
			return p.finish(backend.StatusUnbounded, nil, 0)
		default:
			sol := p.finish(backend.StatusSolveError, nil, 0)
			sol.Message = err.Error()
			return sol
		}
	}

	// Convert splits each free variable into a positive pair; fold back.
	x := make([]float64, p.n)
	for i := range x {
		x[i] = optX[i] - optX[i+p.n]
	}
	return p.finish(backend.StatusOptimal, x, optF)
}

func rowMatrix(rows [][]float64, n int) *mat.Dense {
	m := mat.NewDense(len(rows), n, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}
