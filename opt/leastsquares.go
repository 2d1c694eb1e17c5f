package opt

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LeastSquares is a bounded Levenberg-Marquardt minimizer. Parameters on a
// bound whose gradient points outward are frozen for the step, and the
// finite-difference Jacobian steps away from the bound it sits on.
type LeastSquares struct {
	MaxEvaluations int // default 200(n+1)
	Ftol           float64
	Xtol           float64
	Gtol           float64
	// Step is the relative finite-difference step, default sqrt(eps).
	Step float64
}

const (
	lambda0   = 1e-3
	lambdaMax = 1e16
)

func (ls LeastSquares) norm(n int) LeastSquares {
	if ls.MaxEvaluations <= 0 {
		ls.MaxEvaluations = 200 * (n + 1)
	}
	if ls.Ftol <= 0 {
		ls.Ftol = 1e-8
	}
	if ls.Xtol <= 0 {
		ls.Xtol = 1e-8
	}
	if ls.Gtol <= 0 {
		ls.Gtol = 1e-8
	}
	if ls.Step <= 0 {
		ls.Step = math.Sqrt(2.220446049250313e-16)
	}
	return ls
}

func (ls LeastSquares) Minimize(ctx context.Context, f Objective, x0, lo, hi []float64) (*Result, error) {
	n := len(x0)
	if n == 0 {
		return nil, eris.New("opt: nothing to minimise")
	}
	s := ls.norm(n)
	nfev := 0
	eval := func(x []float64) ([]float64, error) {
		nfev++
		return f(x)
	}

	x := clip(x0, lo, hi)
	r, err := eval(x)
	if err != nil {
		return nil, eris.Wrap(err, "opt: objective at the initial vector")
	}
	cost := ssq(r)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, &ConvergenceError{X: x, Reason: "objective is not finite at the initial vector"}
	}

	lambda := lambda0
	status := ""
	iter := 0
	for ; status == ""; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, &ConvergenceError{X: x, Reason: "cancelled", Err: err}
		}
		if nfev >= s.MaxEvaluations {
			return nil, &ConvergenceError{X: x, Reason: "maximum number of evaluations reached"}
		}
		if cost == 0 {
			status = "exact fit"
			break
		}
		J, err := s.jacobian(eval, x, r, lo, hi)
		if err != nil {
			return nil, err
		}
		g := make([]float64, n)
		gv := mat.NewVecDense(n, g)
		gv.MulVec(J.T(), mat.NewVecDense(len(r), r))

		var free []int
		gmax := 0.
		for j := range x {
			if (atLower(x[j], lo[j]) && g[j] > 0) || (atUpper(x[j], hi[j]) && g[j] < 0) {
				continue
			}
			free = append(free, j)
			gmax = math.Max(gmax, math.Abs(g[j]))
		}
		if len(free) == 0 || gmax <= s.Gtol*cost {
			status = "gradient below tolerance"
			break
		}

		k := len(free)
		A := mat.NewSymDense(k, nil)
		b := mat.NewVecDense(k, nil)
		for a, ja := range free {
			b.SetVec(a, -g[ja])
			for c := a; c < k; c++ {
				A.SetSym(a, c, mat.Dot(J.ColView(ja), J.ColView(free[c])))
			}
		}

		for {
			M := mat.NewSymDense(k, nil)
			M.CopySym(A)
			for a := 0; a < k; a++ {
				M.SetSym(a, a, A.At(a, a)*(1+lambda)+1e-12*lambda)
			}
			var chol mat.Cholesky
			var d mat.VecDense
			if !chol.Factorize(M) || chol.SolveVecTo(&d, b) != nil {
				if lambda *= 10; lambda > lambdaMax {
					return nil, &ConvergenceError{X: x, Reason: "damped normal equations are singular"}
				}
				continue
			}
			xn := make([]float64, n)
			copy(xn, x)
			for a, j := range free {
				xn[j] += d.AtVec(a)
			}
			xn = clip(xn, lo, hi)

			step := floats.Distance(xn, x, 2)
			if step <= s.Xtol*(floats.Norm(x, 2)+s.Xtol) {
				status = "step below tolerance"
				break
			}
			if nfev >= s.MaxEvaluations {
				return nil, &ConvergenceError{X: x, Reason: "maximum number of evaluations reached"}
			}
			rn, err := eval(xn)
			if err != nil {
				return nil, eris.Wrap(err, "opt: objective")
			}
			cn := ssq(rn)
			if cn < cost {
				dc := cost - cn
				x, r, cost = xn, rn, cn
				lambda = math.Max(lambda/10, 1e-12)
				if dc <= s.Ftol*(cost+dc) {
					status = "cost reduction below tolerance"
				}
				break
			}
			if lambda *= 10; lambda > lambdaMax {
				return nil, &ConvergenceError{X: x, Reason: "no reduction of the cost at maximum damping"}
			}
		}
	}

	J, err := s.jacobian(eval, x, r, lo, hi)
	if err != nil {
		return nil, err
	}
	return &Result{
		X:           x,
		Covariance:  Covariance(J, cost),
		Cost:        cost,
		Evaluations: nfev,
		Iterations:  iter,
		Status:      status,
	}, nil
}

// jacobian differentiates in coordinates scaled by max(|x|, 1). Columns of
// parameters that a forward step would push over the upper bound use a
// backward difference.
func (ls LeastSquares) jacobian(f Objective, x, r, lo, hi []float64) (*mat.Dense, error) {
	m, n := len(r), len(x)
	sc := make([]float64, n)
	var fwd, bwd []int
	for j := range x {
		sc[j] = math.Max(math.Abs(x[j]), 1)
		if !math.IsNaN(hi[j]) && x[j]+ls.Step*sc[j] > hi[j] {
			bwd = append(bwd, j)
		} else {
			fwd = append(fwd, j)
		}
	}

	J := mat.NewDense(m, n, nil)
	var ferr error
	for _, part := range []struct {
		idx     []int
		formula fd.Formula
	}{{fwd, fd.Forward}, {bwd, fd.Backward}} {
		if len(part.idx) == 0 {
			continue
		}
		u := make([]float64, len(part.idx))
		for k, j := range part.idx {
			u[k] = x[j] / sc[j]
		}
		xx := make([]float64, n)
		g := func(y, u []float64) {
			copy(xx, x)
			for k, j := range part.idx {
				xx[j] = u[k] * sc[j]
			}
			v, err := f(xx)
			if err != nil || len(v) != len(y) {
				if ferr == nil {
					ferr = err
					if ferr == nil {
						ferr = eris.New("opt: objective changed length")
					}
				}
				for i := range y {
					y[i] = math.NaN()
				}
				return
			}
			copy(y, v)
		}
		sub := mat.NewDense(m, len(part.idx), nil)
		fd.Jacobian(sub, g, u, &fd.JacobianSettings{Formula: part.formula, OriginValue: r, Step: ls.Step})
		for k, j := range part.idx {
			col := mat.Col(nil, k, sub)
			floats.Scale(1/sc[j], col)
			J.SetCol(j, col)
		}
	}
	if ferr != nil {
		return nil, eris.Wrap(ferr, "opt: jacobian")
	}
	return J, nil
}

// Covariance estimates the parameter covariance s² (JᵀJ)⁻¹ with
// s² = cost/(m-n). A singular JᵀJ falls back to its pseudo-inverse.
func Covariance(J *mat.Dense, cost float64) *mat.SymDense {
	m, n := J.Dims()
	s2 := math.NaN()
	if m > n {
		s2 = cost / float64(m-n)
	}
	A := mat.NewSymDense(n, nil)
	A.SymOuterK(1, J.T())

	cov := mat.NewSymDense(n, nil)
	var chol mat.Cholesky
	if chol.Factorize(A) && chol.InverseTo(cov) == nil {
		cov.ScaleSym(s2, cov)
		return cov
	}

	var svd mat.SVD
	if !svd.Factorize(A, mat.SVDThin) {
		for i := 0; i < n; i++ {
			cov.SetSym(i, i, math.NaN())
		}
		return cov
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		for i := 0; i < n; i++ {
			cov.SetSym(i, i, math.Inf(1))
		}
		return cov
	}
	var pinv mat.Dense
	svd.SolveTo(&pinv, eye(n), rank)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, s2*0.5*(pinv.At(i, j)+pinv.At(j, i)))
		}
	}
	return cov
}

func eye(n int) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return mat.NewDiagDense(n, d)
}
