package dense

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/SKARN/internal/backend"
)

const (
	penaltyRounds   = 8
	penaltyGrowth   = 10.0
	penaltyStarts   = 6
	feasibilityTol  = 1e-4
	unboundedBound  = 1e10
	boundClampLimit = 1e3
)

// solvePenalty minimizes a quadratic objective under the row constraints
// with an increasing quadratic penalty. Each round runs derivative-free
// Nelder-Mead from several start points, clamping iterates to the variable
// bounds, and warm-starts the next round from the incumbent.
func solvePenalty(ctx context.Context, p *problem) *backend.Solution {
	rng := rand.New(rand.NewSource(1))

	penalized := func(x []float64, mu float64) float64 {
		return p.objectiveAt(x) + mu*p.violationSq(x)
	}

	best := p.initialPoint()
	bestVal := math.Inf(1)

	mu := 1.0
	for round := 0; round < penaltyRounds; round++ {
		select {
		case <-ctx.Done():
			if bestVal < math.Inf(1) {
				p.clamp(best)
				return p.finish(backend.StatusTimeLimit, best, p.objectiveAt(best))
			}
			return p.finish(backend.StatusTimeLimit, nil, 0)
		default:
		}

		obj := optimize.Problem{
			Func: func(x []float64) float64 {
				p.clamp(x)
				return penalized(x, mu)
			},
		}
		settings := &optimize.Settings{
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-12,
				Relative:   1e-12,
				Iterations: 100,
			},
		}

		starts := p.startPoints(best, rng)
		roundBest := best
		roundVal := math.Inf(1)
		for _, start := range starts {
			method := &optimize.NelderMead{}
			result, err := optimize.Minimize(obj, start, settings, method)
			if err == nil && result.F < roundVal {
				roundVal = result.F
				roundBest = append([]float64(nil), result.X...)
			}
		}
		if roundVal < math.Inf(1) {
			best = roundBest
			bestVal = roundVal
		}
		mu *= penaltyGrowth
	}

	p.clamp(best)
	obj := p.objectiveAt(best)
	if math.Abs(obj) > unboundedBound*unboundedBound || vectorNorm(best) > unboundedBound {
		return p.finish(backend.StatusUnbounded, nil, 0)
	}
	if maxViol := p.maxViolation(best); maxViol > feasibilityTol*(1+vectorNorm(best)) {
		return p.finish(backend.StatusInfeasible, nil, 0)
	}
	return p.finish(backend.StatusOptimal, best, obj)
}

// violationSq sums squared row-constraint violations at x.
func (p *problem) violationSq(x []float64) float64 {
	total := 0.0
	for r, coeffs := range p.rowCoeffs {
		act := 0.0
		for i, c := range coeffs {
			act += c * x[i]
		}
		if d := act - p.rowUpper[r]; d > 0 {
			total += d * d
		}
		if d := p.rowLower[r] - act; d > 0 {
			total += d * d
		}
	}
	return total
}

// maxViolation returns the largest single row violation at x.
func (p *problem) maxViolation(x []float64) float64 {
	worst := 0.0
	for r, coeffs := range p.rowCoeffs {
		act := 0.0
		for i, c := range coeffs {
			act += c * x[i]
		}
		if d := act - p.rowUpper[r]; d > worst {
			worst = d
		}
		if d := p.rowLower[r] - act; d > worst {
			worst = d
		}
	}
	return worst
}

// initialPoint picks a bounded point: the midpoint of finite bounds,
// otherwise the finite bound, otherwise zero.
func (p *problem) initialPoint() []float64 {
	x := make([]float64, p.n)
	for i := range x {
		lo, up := p.lower[i], p.upper[i]
		switch {
		case !math.IsInf(lo, -1) && !math.IsInf(up, 1):
			x[i] = (lo + up) / 2
		case !math.IsInf(lo, -1):
			x[i] = lo
		case !math.IsInf(up, 1):
			x[i] = up
		}
	}
	return x
}

// startPoints builds the multi-start set for one penalty round: the
// incumbent plus bounded random perturbations of it.
func (p *problem) startPoints(incumbent []float64, rng *rand.Rand) [][]float64 {
	starts := make([][]float64, 0, penaltyStarts)
	starts = append(starts, append([]float64(nil), incumbent...))
	for k := 1; k < penaltyStarts; k++ {
		s := make([]float64, p.n)
		for i := range s {
			span := boundSpan(p.lower[i], p.upper[i])
			s[i] = incumbent[i] + (rng.Float64()*2-1)*span
		}
		p.clamp(s)
		starts = append(starts, s)
	}
	return starts
}

// boundSpan is the perturbation scale for a variable: a fraction of its
// finite bound range, or a fixed scale for unbounded directions.
func boundSpan(lo, up float64) float64 {
	if !math.IsInf(lo, -1) && !math.IsInf(up, 1) {
		return (up - lo) / 4
	}
	return boundClampLimit / 100
}

func vectorNorm(x []float64) float64 {
	n := 0.0
	for _, v := range x {
		n += v * v
	}
	return math.Sqrt(n)
}
