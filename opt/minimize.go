// Package opt calibrates a model by weighted nonlinear least squares and
// propagates the parameter uncertainty of the fit.
package opt

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/darigovresearch/pastas/param"
)

// Objective maps a parameter vector to the residual vector whose sum of
// squares is minimised.
type Objective func(x []float64) ([]float64, error)

// Minimizer finds the bounded minimum of the sum of squares of f starting
// from x0. NaN bounds are open. Failing to converge returns a
// *ConvergenceError holding the last vector tried.
type Minimizer interface {
	Minimize(ctx context.Context, f Objective, x0, lower, upper []float64) (*Result, error)
}

type Result struct {
	X []float64
	// Covariance of X; nil when the minimizer does not estimate it.
	Covariance  *mat.SymDense
	Cost        float64 // sum of squares at X
	Evaluations int
	Iterations  int
	Status      string
}

// ConvergenceError reports a minimizer that stopped without converging.
type ConvergenceError struct {
	X      []float64
	Reason string
	Err    error
}

func (e *ConvergenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("opt: no convergence: %s: %v", e.Reason, e.Err)
	}
	return "opt: no convergence: " + e.Reason
}

func (e *ConvergenceError) Unwrap() error { return e.Err }

func ssq(r []float64) float64 { return floats.Dot(r, r) }

func clip(x, lo, hi []float64) []float64 {
	o := make([]float64, len(x))
	for i := range x {
		o[i] = param.Clip(x[i], lo[i], hi[i])
	}
	return o
}

func atLower(x, lo float64) bool { return !math.IsNaN(lo) && x <= lo }
func atUpper(x, hi float64) bool { return !math.IsNaN(hi) && x >= hi }
