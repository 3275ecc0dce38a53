package mwr

import (
	"math"

	"github.com/atmx/perf-engine/internal/model"
)

// brent finds a root of f in [a, b], where f(a) and f(b) have opposite
// signs, by Brent's method (inverse quadratic interpolation with bisection
// safeguards). It returns the root, the iterations used and |f(root)|.
func brent(f func(float64) float64, a, b, tol float64, maxIter int) (root float64, iters int, residual float64, err error) {
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, 0, 0, nil
	}
	if fb == 0 {
		return b, 0, 0, nil
	}
	if math.Signbit(fa) == math.Signbit(fb) {
		return 0, 0, 0, model.Errorf(model.KindSolverFailed, "root not bracketed in [%g, %g]", a, b)
	}

	c, fc := b, fb
	var d, e float64
	for iters = 1; iters <= maxIter; iters++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*math.SmallestNonzeroFloat64*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, iters, math.Abs(fb), nil
		}
		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			min1 := 3*xm*q - math.Abs(tol1*q)
			min2 := math.Abs(e * q)
			if 2*p < math.Min(min1, min2) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}
		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)
	}
	return b, maxIter, math.Abs(fb), model.Errorf(model.KindSolverFailed,
		"no convergence after %d iterations (tolerance %g, residual %g)", maxIter, tol, math.Abs(fb))
}

// bracketGrid is the scan used to find a sign change: fine steps through
// the negative range, then geometric steps up to 1000%.
func bracketGrid() []float64 {
	grid := []float64{-0.99, -0.9, -0.5, -0.25, -0.1, -0.05, -0.01, 0}
	for r := 0.01; r < 10; r *= 2 {
		grid = append(grid, r)
	}
	return append(grid, 10)
}

// bracket returns the first adjacent pair of grid points where f changes
// sign.
func bracket(f func(float64) float64) (lo, hi float64, ok bool) {
	grid := bracketGrid()
	prev := f(grid[0])
	for i := 1; i < len(grid); i++ {
		cur := f(grid[i])
		if math.IsNaN(prev) || math.IsNaN(cur) {
			prev = cur
			continue
		}
		if prev == 0 {
			return grid[i-1], grid[i-1], true
		}
		if math.Signbit(prev) != math.Signbit(cur) || cur == 0 {
			return grid[i-1], grid[i], true
		}
		prev = cur
	}
	return 0, 0, false
}
