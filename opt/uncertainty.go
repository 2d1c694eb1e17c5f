package opt

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/stats"
)

// Correlations of the parameters; NaN for fixed ones.
func (f *Fit) Correlations() *mat.SymDense {
	n, _ := f.Covariance.Dims()
	o := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			o.SetSym(i, j, f.Covariance.At(i, j)/(f.Stderr[i]*f.Stderr[j]))
		}
	}
	return o
}

// Stats compares the simulation at the optimum with the observations in
// the fit window.
func (f *Fit) Stats() (stats.Summary, error) {
	r, err := f.Model.Residuals(f.Optimal, f.Tmin, f.Tmax)
	if err != nil {
		return stats.Summary{}, err
	}
	obs := f.Model.Observations().Slice(f.Tmin, f.Tmax)
	o, s := make([]float64, r.Len()), make([]float64, r.Len())
	j := 0
	for k, t := range r.T {
		for !obs.T[j].Equal(t) {
			j++
		}
		o[k], s[k] = obs.V[j], obs.V[j]-r.V[k]
	}
	return stats.Summarize(o, s, len(f.Varying)), nil
}

func (f *Fit) full(v []float64) []float64 {
	x := make([]float64, len(f.Optimal))
	copy(x, f.Optimal)
	for k, i := range f.Varying {
		x[i] = v[k]
	}
	return x
}

func (f *Fit) varyingCovariance() *mat.SymDense {
	k := len(f.Varying)
	c := mat.NewSymDense(k, nil)
	for a, i := range f.Varying {
		for b := a; b < k; b++ {
			c.SetSym(a, b, f.Covariance.At(i, f.Varying[b]))
		}
	}
	return c
}

// ConfidenceInterval propagates the parameter covariance through fn to
// first order: fn(x*) ± z sqrt(gᵀ C g) with g the finite-difference
// gradient over the varying parameters and z the normal quantile for a
// two-sided level 1-alpha.
func (f *Fit) ConfidenceInterval(fn func(p []float64) (float64, error), alpha float64) (value, lower, upper float64, err error) {
	if !(alpha > 0 && alpha < 1) {
		return math.NaN(), math.NaN(), math.NaN(), eris.Errorf("opt: alpha %v outside (0, 1)", alpha)
	}
	value, err = fn(f.Optimal)
	if err != nil {
		return math.NaN(), math.NaN(), math.NaN(), err
	}
	k := len(f.Varying)
	sc, u := make([]float64, k), make([]float64, k)
	for a, i := range f.Varying {
		sc[a] = math.Max(math.Abs(f.Optimal[i]), 1)
		u[a] = f.Optimal[i] / sc[a]
	}
	var ferr error
	g := fd.Gradient(nil, func(u []float64) float64 {
		v := make([]float64, k)
		for a := range u {
			v[a] = u[a] * sc[a]
		}
		y, err := fn(f.full(v))
		if err != nil && ferr == nil {
			ferr = err
		}
		return y
	}, u, &fd.Settings{Formula: fd.Central, Step: 1e-6})
	if ferr != nil {
		return math.NaN(), math.NaN(), math.NaN(), eris.Wrap(ferr, "opt: gradient")
	}
	for a := range g {
		g[a] /= sc[a]
	}
	gv := mat.NewVecDense(k, g)
	variance := mat.Inner(gv, f.varyingCovariance(), gv)
	z := mathext.NormalQuantile(1 - alpha/2)
	d := z * math.Sqrt(variance)
	return value, value - d, value + d, nil
}

// CIGain is the first-order confidence interval of a unit's gain.
func (f *Fit) CIGain(name string, alpha float64) (value, lower, upper float64, err error) {
	return f.ConfidenceInterval(func(p []float64) (float64, error) {
		return f.Model.Gain(name, p)
	}, alpha)
}

// Sample draws n full parameter vectors from the multivariate normal
// distribution around the optimum. Draws outside the bounds are rejected.
func (f *Fit) Sample(n int, seed uint64) ([][]float64, error) {
	k := len(f.Varying)
	mu := make([]float64, k)
	for a, i := range f.Varying {
		mu[a] = f.Optimal[i]
	}
	dist, ok := distmv.NewNormal(mu, f.varyingCovariance(), rand.NewSource(seed))
	if !ok {
		return nil, eris.New("opt: covariance is not positive definite")
	}
	ps := f.Model.Parameters()
	lo, hi := param.Bounds(ps)
	inside := func(v []float64) bool {
		for a, i := range f.Varying {
			if param.Clip(v[a], lo[i], hi[i]) != v[a] {
				return false
			}
		}
		return true
	}

	o := make([][]float64, 0, n)
	v := make([]float64, k)
	for tries := 0; len(o) < n; tries++ {
		if tries >= 100*n+100 {
			return nil, eris.Errorf("opt: %d of %d draws within bounds after %d tries", len(o), n, tries)
		}
		dist.Rand(v)
		if inside(v) {
			o = append(o, f.full(v))
		}
	}
	return o, nil
}

// MonteCarlo evaluates fn for every sample in parallel. Results keep the
// order of samples.
func (f *Fit) MonteCarlo(ctx context.Context, samples [][]float64, fn func(p []float64) ([]float64, error)) ([][]float64, error) {
	o := make([][]float64, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.workers, 1))
	for i, p := range samples {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := fn(p)
			if err != nil {
				return eris.Wrapf(err, "opt: sample %d", i)
			}
			o[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	f.metrics.Sampled(f.Model.Name(), len(samples))
	f.log.Debug("monte carlo done", zap.Int("samples", len(samples)), zap.Int("workers", f.workers))
	return o, nil
}

// Bands returns the alpha/2 and 1-alpha/2 empirical quantiles across
// simulations at each time step, ignoring missing values.
func Bands(sims [][]float64, alpha float64) (lower, upper []float64) {
	if len(sims) == 0 {
		return nil, nil
	}
	n := len(sims[0])
	lower, upper = make([]float64, n), make([]float64, n)
	col := make([]float64, 0, len(sims))
	for t := 0; t < n; t++ {
		col = col[:0]
		for _, s := range sims {
			if !math.IsNaN(s[t]) {
				col = append(col, s[t])
			}
		}
		if len(col) == 0 {
			lower[t], upper[t] = math.NaN(), math.NaN()
			continue
		}
		sort.Float64s(col)
		lower[t] = stat.Quantile(alpha/2, stat.Empirical, col, nil)
		upper[t] = stat.Quantile(1-alpha/2, stat.Empirical, col, nil)
	}
	return
}

func (f *Fit) bands(ctx context.Context, n int, alpha float64, seed uint64, fn func(p []float64) (*forcing.Series, error)) (lower, upper *forcing.Series, err error) {
	ref, err := fn(f.Optimal)
	if err != nil {
		return nil, nil, err
	}
	samples, err := f.Sample(n, seed)
	if err != nil {
		return nil, nil, err
	}
	sims, err := f.MonteCarlo(ctx, samples, func(p []float64) ([]float64, error) {
		s, err := fn(p)
		if err != nil {
			return nil, err
		}
		return s.V, nil
	})
	if err != nil {
		return nil, nil, err
	}
	lo, hi := Bands(sims, alpha)
	lower = &forcing.Series{Name: ref.Name + "_lower", Kind: ref.Kind, T: ref.T, V: lo}
	upper = &forcing.Series{Name: ref.Name + "_upper", Kind: ref.Kind, T: ref.T, V: hi}
	return lower, upper, nil
}

// CIContribution returns Monte Carlo confidence bands of a unit's
// contribution over the fit window from n parameter draws.
func (f *Fit) CIContribution(ctx context.Context, name string, n int, alpha float64, seed uint64) (lower, upper *forcing.Series, err error) {
	return f.bands(ctx, n, alpha, seed, func(p []float64) (*forcing.Series, error) {
		return f.Model.Contribution(name, p, f.Tmin, f.Tmax)
	})
}

// CIRecharge returns Monte Carlo confidence bands of the recharge flux of a
// Recharge unit.
func (f *Fit) CIRecharge(ctx context.Context, name string, n int, alpha float64, seed uint64) (lower, upper *forcing.Series, err error) {
	return f.bands(ctx, n, alpha, seed, func(p []float64) (*forcing.Series, error) {
		return f.Model.RechargeFlux(name, p, f.Tmin, f.Tmax)
	})
}

// CISimulation returns Monte Carlo confidence bands of the simulated head.
func (f *Fit) CISimulation(ctx context.Context, n int, alpha float64, seed uint64) (lower, upper *forcing.Series, err error) {
	return f.bands(ctx, n, alpha, seed, func(p []float64) (*forcing.Series, error) {
		return f.Model.Simulate(p, f.Tmin, f.Tmax)
	})
}
