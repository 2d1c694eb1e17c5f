package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/darigovresearch/pastas/internal/monitoring"
	"github.com/darigovresearch/pastas/model"
	"github.com/darigovresearch/pastas/param"
)

var ErrNothingToSolve = eris.New("no varying parameters")

type config struct {
	warm       bool
	min        Minimizer
	tmin, tmax time.Time
	noise      *bool
	workers    int
	log        *zap.Logger
	metrics    *monitoring.Metrics
}

type Option func(*config)

// WithWarmStart starts from the current optimal values instead of the
// initial values.
func WithWarmStart() Option { return func(c *config) { c.warm = true } }

// WithMinimizer replaces the default LeastSquares minimizer.
func WithMinimizer(m Minimizer) Option { return func(c *config) { c.min = m } }

// WithWindow sets the calibration period; zero times use the model's window.
func WithWindow(tmin, tmax time.Time) Option {
	return func(c *config) { c.tmin, c.tmax = tmin, tmax }
}

// WithNoise selects innovations (true) or residuals (false) as the
// objective. By default the noise model is used when the model has one.
func WithNoise(b bool) Option { return func(c *config) { c.noise = &b } }

// WithWorkers bounds the Monte Carlo parallelism of the returned Fit.
func WithWorkers(n int) Option { return func(c *config) { c.workers = n } }

func WithLogger(l *zap.Logger) Option { return func(c *config) { c.log = l } }

func WithMetrics(m *monitoring.Metrics) Option { return func(c *config) { c.metrics = m } }

// Fit is a solved calibration: the optimum over the full parameter vector
// and the covariance of the varying parameters, embedded in a full-size
// matrix with zero rows and columns for fixed parameters.
type Fit struct {
	Model      *model.Model
	Optimal    []float64
	Stderr     []float64
	Covariance *mat.SymDense
	Varying    []int
	Tmin, Tmax time.Time
	Noise      bool
	Result     *Result

	workers int
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// Solve calibrates m. On success the optimal values and standard errors are
// written to the model's parameter table and the calibration period becomes
// the model's window. On failure the table is left
// untouched; a *ConvergenceError carries the last full vector tried.
func Solve(ctx context.Context, m *model.Model, opts ...Option) (*Fit, error) {
	c := config{min: LeastSquares{}, log: m.Logger(), workers: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(&c)
	}
	useNoise := m.HasNoise()
	if c.noise != nil {
		useNoise = *c.noise && m.HasNoise()
	}
	tmin, tmax := m.Window()
	if !c.tmin.IsZero() {
		tmin = c.tmin
	}
	if !c.tmax.IsZero() {
		tmax = c.tmax
	}

	ps := m.Parameters()
	x := param.Initials(ps)
	if c.warm {
		x = param.Values(ps)
	}
	var idx []int
	var x0, lo, hi []float64
	for i, p := range ps {
		x[i] = param.Clip(x[i], p.PMin, p.PMax)
		if p.Vary {
			idx = append(idx, i)
			x0 = append(x0, x[i])
			lo = append(lo, p.PMin)
			hi = append(hi, p.PMax)
		}
	}
	if len(idx) == 0 {
		return nil, eris.Wrapf(ErrNothingToSolve, "opt: %s", m.Name())
	}
	full := func(v []float64) []float64 {
		y := make([]float64, len(x))
		copy(y, x)
		for k, i := range idx {
			y[i] = v[k]
		}
		return y
	}
	obj := func(v []float64) ([]float64, error) {
		c.metrics.Evaluated(m.Name())
		return m.Objective(full(v), tmin, tmax, useNoise)
	}

	log := c.log.With(zap.Time("tmin", tmin), zap.Time("tmax", tmax), zap.Bool("noise", useNoise))
	log.Info("solve started",
		zap.Int("parameters", len(ps)),
		zap.Int("varying", len(idx)),
		zap.String("minimizer", fmt.Sprintf("%T", c.min)),
		zap.Bool("warm", c.warm),
	)
	start := time.Now()
	res, err := c.min.Minimize(ctx, obj, x0, lo, hi)
	if err != nil {
		var ce *ConvergenceError
		if errors.As(err, &ce) {
			ce.X = full(ce.X)
			c.metrics.Solved(m.Name(), "not_converged", time.Since(start))
			log.Warn("solve did not converge", zap.String("reason", ce.Reason), zap.Float64s("x", ce.X))
			return nil, err
		}
		c.metrics.Solved(m.Name(), "failed", time.Since(start))
		log.Error("solve failed", zap.Error(err))
		return nil, eris.Wrapf(err, "opt: solve %s", m.Name())
	}

	n := len(ps)
	optimal := full(res.X)
	stderr := make([]float64, n)
	cov := mat.NewSymDense(n, nil)
	for i := range stderr {
		stderr[i] = math.NaN()
	}
	for a, i := range idx {
		for b := a; b < len(idx); b++ {
			v := math.NaN()
			if res.Covariance != nil {
				v = res.Covariance.At(a, b)
			}
			cov.SetSym(i, idx[b], v)
		}
		stderr[i] = math.Sqrt(cov.At(i, i))
	}
	if err := m.SetSolution(optimal, stderr); err != nil {
		return nil, err
	}
	st := m.Settings()
	st.Tmin, st.Tmax = tmin, tmax
	m.SetSettings(st)

	c.metrics.Solved(m.Name(), "success", time.Since(start))
	log.Info("solve finished",
		zap.String("status", res.Status),
		zap.Float64("cost", res.Cost),
		zap.Int("evaluations", res.Evaluations),
		zap.Int("iterations", res.Iterations),
		zap.Duration("took", time.Since(start)),
	)
	return &Fit{
		Model:      m,
		Optimal:    optimal,
		Stderr:     stderr,
		Covariance: cov,
		Varying:    idx,
		Tmin:       tmin,
		Tmax:       tmax,
		Noise:      useNoise,
		Result:     res,
		workers:    c.workers,
		log:        log,
		metrics:    c.metrics,
	}, nil
}
