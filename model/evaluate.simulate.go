package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/noise"
	"github.com/darigovresearch/pastas/stressmodel"
)

func (m *Model) window(tmin, tmax time.Time) (time.Time, time.Time) {
	wmin, wmax := m.Window()
	if tmin.IsZero() {
		tmin = wmin
	}
	if tmax.IsZero() {
		tmax = wmax
	}
	return tmin, tmax
}

// warmup is the number of grid steps simulated before the window: the
// configured warmup or the longest unit memory, whichever is larger.
func (m *Model) warmup(ps [][]float64, g forcing.Grid) int {
	n := g.Steps(forcing.Days(m.settings.Warmup))
	for i, u := range m.units {
		if h := u.sm.Horizon(ps[i], g.Days()); h > n {
			n = h
		}
	}
	return n
}

// Warmup returns the warmup period used for parameters p (nil for the
// current values).
func (m *Model) Warmup(p []float64) (time.Duration, error) {
	p, err := m.Values(p)
	if err != nil {
		return 0, err
	}
	ps, _, _ := m.split(p)
	g := forcing.Grid{Step: m.settings.Freq, N: 1}
	return time.Duration(m.warmup(ps, g)) * g.Step, nil
}

// run evaluates the units on the warmup-extended grid spanning [tmin, tmax].
// It returns the grid, the per-unit contributions, the constant and the
// index of the first point inside the window.
func (m *Model) run(p []float64, tmin, tmax time.Time) (forcing.Grid, [][]float64, float64, int, error) {
	p, err := m.Values(p)
	if err != nil {
		return forcing.Grid{}, nil, 0, 0, err
	}
	tmin, tmax = m.window(tmin, tmax)
	fit := forcing.NewGrid(tmin, tmax, m.settings.Freq)
	if fit.N == 0 {
		return forcing.Grid{}, nil, 0, 0, eris.Errorf("model: empty window %v to %v", tmin, tmax)
	}
	ps, d, _ := m.split(p)
	off := m.warmup(ps, fit)
	g := fit.Extend(off)

	cs := make([][]float64, len(m.units))
	for i, u := range m.units {
		c, err := u.sm.Simulate(ps[i], g)
		if err != nil {
			return forcing.Grid{}, nil, 0, 0, eris.Wrapf(err, "model: simulate %s", u.sm.Name())
		}
		cs[i] = c
	}
	return g, cs, d, off, nil
}

func sum(n int, cs [][]float64, d float64) []float64 {
	h := make([]float64, n)
	for i := range h {
		h[i] = d
	}
	for _, c := range cs {
		for i, v := range c {
			h[i] += v
		}
	}
	return h
}

// Simulate returns constant plus the sum of all contributions on the model
// grid within [tmin, tmax]. Zero times fall back to the fit window and a
// nil p to the current parameter values.
func (m *Model) Simulate(p []float64, tmin, tmax time.Time) (*forcing.Series, error) {
	g, cs, d, off, err := m.run(p, tmin, tmax)
	if err != nil {
		return nil, err
	}
	h := sum(g.N, cs, d)
	return forcing.FromGrid("Simulation", forcing.Level, g.Extend(-off), h[off:]), nil
}

// Contribution returns the contribution of one unit within [tmin, tmax].
func (m *Model) Contribution(name string, p []float64, tmin, tmax time.Time) (*forcing.Series, error) {
	i := m.find(name)
	if i < 0 {
		return nil, eris.Wrapf(ErrNotFound, "model: unit %q", name)
	}
	g, cs, _, off, err := m.run(p, tmin, tmax)
	if err != nil {
		return nil, err
	}
	return forcing.FromGrid(name, forcing.Unconstrained, g.Extend(-off), cs[i][off:]), nil
}

// RechargeFlux returns the recharge of a Recharge unit within [tmin, tmax].
func (m *Model) RechargeFlux(name string, p []float64, tmin, tmax time.Time) (*forcing.Series, error) {
	i := m.find(name)
	if i < 0 {
		return nil, eris.Wrapf(ErrNotFound, "model: unit %q", name)
	}
	rm, ok := m.units[i].sm.(*stressmodel.Recharge)
	if !ok {
		return nil, eris.Errorf("model: unit %q has no recharge", name)
	}
	p, err := m.Values(p)
	if err != nil {
		return nil, err
	}
	tmin, tmax = m.window(tmin, tmax)
	fit := forcing.NewGrid(tmin, tmax, m.settings.Freq)
	ps, _, _ := m.split(p)
	off := m.warmup(ps, fit)
	g := fit.Extend(off)
	r := rm.Flux(ps[i], g)
	return forcing.FromGrid(name, forcing.Unconstrained, fit, r[off:]), nil
}

func (m *Model) responder(name string, p []float64) (stressmodel.Responder, []float64, error) {
	i := m.find(name)
	if i < 0 {
		return nil, nil, eris.Wrapf(ErrNotFound, "model: unit %q", name)
	}
	r, ok := m.units[i].sm.(stressmodel.Responder)
	if !ok {
		return nil, nil, eris.Wrapf(ErrNotResponder, "model: unit %q", name)
	}
	p, err := m.Values(p)
	if err != nil {
		return nil, nil, err
	}
	ps, _, _ := m.split(p)
	return r, ps[i], nil
}

// StepResponse of a unit at the model frequency.
func (m *Model) StepResponse(name string, p []float64) ([]float64, error) {
	r, pu, err := m.responder(name, p)
	if err != nil {
		return nil, err
	}
	return r.StepResponse(pu, forcing.Days(m.settings.Freq))
}

func (m *Model) BlockResponse(name string, p []float64) ([]float64, error) {
	r, pu, err := m.responder(name, p)
	if err != nil {
		return nil, err
	}
	return r.BlockResponse(pu, forcing.Days(m.settings.Freq))
}

func (m *Model) Gain(name string, p []float64) (float64, error) {
	r, pu, err := m.responder(name, p)
	if err != nil {
		return math.NaN(), err
	}
	return r.Gain(pu)
}

// Residuals returns observed minus simulated at the observation times within
// [tmin, tmax], matched to the grid by the interpolation policy. Under
// Exact, observations off the grid are left out.
func (m *Model) Residuals(p []float64, tmin, tmax time.Time) (*forcing.Series, error) {
	tmin, tmax = m.window(tmin, tmax)
	obs := m.oseries.Slice(tmin, tmax)
	if obs.Len() == 0 {
		return nil, eris.Wrapf(ErrNoObservations, "model: %s between %v and %v", m.name, tmin, tmax)
	}
	// one extra step so observations after the last grid point can be interpolated
	g, cs, d, _, err := m.run(p, tmin, tmax.Add(m.settings.Freq))
	if err != nil {
		return nil, err
	}
	h := sum(g.N, cs, d)

	o := &forcing.Series{Name: "Residuals", Kind: forcing.Unconstrained}
	for k, t := range obs.T {
		sim, ok := m.at(g, h, t)
		if !ok {
			continue
		}
		o.T = append(o.T, t)
		o.V = append(o.V, obs.V[k]-sim)
	}
	return o, nil
}

func (m *Model) at(g forcing.Grid, h []float64, t time.Time) (float64, bool) {
	i, exact := g.Index(t)
	if i < 0 || i >= g.N {
		return math.NaN(), false
	}
	if exact {
		return h[i], true
	}
	switch m.settings.Policy {
	case Exact:
		return math.NaN(), false
	case Nearest:
		if j := int(math.Round(g.Fraction(t))); j < g.N {
			i = j
		}
		return h[i], true
	}
	if i+1 >= g.N {
		return h[i], true
	}
	w := g.Fraction(t) - float64(i)
	return h[i]*(1-w) + h[i+1]*w, true
}

// obsIntervals returns the elapsed days before each time; the first is 0.
func (m *Model) obsIntervals(t []time.Time) []float64 {
	dt := make([]float64, len(t))
	for k := 1; k < len(t); k++ {
		dt[k] = forcing.Days(t[k].Sub(t[k-1]))
	}
	return dt
}

// Noise returns the innovations of the residuals within [tmin, tmax].
func (m *Model) Noise(p []float64, tmin, tmax time.Time) (*forcing.Series, error) {
	if m.noise == nil {
		return nil, eris.Wrapf(ErrNoNoise, "model: %s", m.name)
	}
	p, err := m.Values(p)
	if err != nil {
		return nil, err
	}
	r, err := m.Residuals(p, tmin, tmax)
	if err != nil {
		return nil, err
	}
	_, _, alpha := m.split(p)
	v := noise.AR1{}.Innovations(r.V, m.obsIntervals(r.T), alpha)
	return &forcing.Series{Name: "Noise", Kind: forcing.Unconstrained, T: r.T, V: v}, nil
}

// Objective is the vector whose sum of squares is minimised: the weighted
// innovations when useNoise is set and a noise model is attached, otherwise
// the residuals. Missing entries are zero so the length only depends on the
// observation times.
func (m *Model) Objective(p []float64, tmin, tmax time.Time, useNoise bool) ([]float64, error) {
	p, err := m.Values(p)
	if err != nil {
		return nil, err
	}
	r, err := m.Residuals(p, tmin, tmax)
	if err != nil {
		return nil, err
	}
	v := r.V
	if useNoise && m.noise != nil {
		_, _, alpha := m.split(p)
		v = noise.AR1{}.Weighted(r.V, m.obsIntervals(r.T), alpha)
	}
	gaps := 0
	for i := range v {
		if math.IsNaN(v[i]) {
			v[i] = 0
			gaps++
		}
	}
	if gaps > 0 {
		m.log.Debug("objective has gaps", zap.Int("n", gaps), zap.Int("of", len(v)))
	}
	return v, nil
}
