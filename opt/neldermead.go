package opt

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/optimize"
)

// NelderMead is a derivative-free minimizer for objectives too rough for
// finite differences. It searches in scaled coordinates and clips to the
// bounds; the covariance is estimated from a Jacobian at the optimum.
type NelderMead struct {
	MaxEvaluations int     // default 1000(n+1)
	Ftol           float64 // absolute change of the cost over 50 iterations, default 1e-10
	SimplexSize    float64 // in scaled coordinates, default 0.05
}

func (nm NelderMead) Minimize(ctx context.Context, f Objective, x0, lo, hi []float64) (*Result, error) {
	n := len(x0)
	if n == 0 {
		return nil, eris.New("opt: nothing to minimise")
	}
	if nm.MaxEvaluations <= 0 {
		nm.MaxEvaluations = 1000 * (n + 1)
	}
	if nm.Ftol <= 0 {
		nm.Ftol = 1e-10
	}
	if nm.SimplexSize <= 0 {
		nm.SimplexSize = 0.05
	}

	sc := newScaler(clip(x0, lo, hi), lo, hi)
	var ferr error
	last := clip(x0, lo, hi)
	p := optimize.Problem{
		Func: func(u []float64) float64 {
			x := sc.fromUnit(u)
			last = x
			r, err := f(x)
			if err != nil {
				if ferr == nil {
					ferr = err
				}
				return math.Inf(1)
			}
			c := ssq(r)
			if math.IsNaN(c) {
				return math.Inf(1)
			}
			return c
		},
		Status: func() (optimize.Status, error) {
			if ferr != nil {
				return optimize.Failure, ferr
			}
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: nm.MaxEvaluations,
		Converger:       &optimize.FunctionConverge{Absolute: nm.Ftol, Iterations: 50},
	}
	res, err := optimize.Minimize(p, sc.toUnit(clip(x0, lo, hi)), settings, &optimize.NelderMead{SimplexSize: nm.SimplexSize})
	if res == nil {
		return nil, &ConvergenceError{X: last, Reason: "minimizer failed", Err: err}
	}
	switch res.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.StepConvergence, optimize.MethodConverge:
	default:
		return nil, &ConvergenceError{X: sc.fromUnit(res.X), Reason: res.Status.String(), Err: err}
	}

	x := sc.fromUnit(res.X)
	r, err := f(x)
	if err != nil {
		return nil, eris.Wrap(err, "opt: objective at the optimum")
	}
	cost := ssq(r)
	J, err := LeastSquares{}.norm(n).jacobian(f, x, r, lo, hi)
	if err != nil {
		return nil, err
	}
	return &Result{
		X:           x,
		Covariance:  Covariance(J, cost),
		Cost:        cost,
		Evaluations: res.FuncEvaluations + n + 1,
		Iterations:  res.MajorIterations,
		Status:      res.Status.String(),
	}, nil
}
