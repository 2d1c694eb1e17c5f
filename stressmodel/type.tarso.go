package stressmodel

import (
	"math"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/rfunc"
)

// Tarso : threshold model with two drainage levels. Recharge
// r = prec - f evap drives the head towards d0 + A0 r with time constant a0
// while the head is below d1, and towards d1 + A1 (r - (d1-d0)/A0) with a1
// above it. Each step is integrated exactly, split at the threshold
// crossing. The output is the head itself, drainage base included, so a
// model using Tarso usually has no constant.
//
// Parameters: A0, a0, d0, A1, a1, d1, f.
type Tarso struct {
	name       string
	prec, evap *binding
	dmin, dmax float64
	ms         float64
	cutoff     float64
}

func NewTarso(name string, prec, evap *forcing.Series, dmin, dmax float64, opts ...Option) (*Tarso, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	bp, err := bind(prec, o)
	if err != nil {
		return nil, err
	}
	be, err := bind(evap, o)
	if err != nil {
		return nil, err
	}
	ms := math.Abs(prec.Mean() - evap.Mean())
	if !(ms > 0) {
		ms = 1
	}
	return &Tarso{name: name, prec: bp, evap: be, dmin: dmin, dmax: dmax, ms: ms, cutoff: rfunc.DefaultCutoff}, nil
}

func (m *Tarso) Name() string { return m.name }

func (m *Tarso) Stresses() []*forcing.Series { return []*forcing.Series{m.prec.s, m.evap.s} }

func (m *Tarso) Params() []param.Spec {
	e := rfunc.NewExponential(rfunc.Settings{MeanStress: m.ms}).Params()
	dr := m.dmax - m.dmin
	spec := func(s param.Spec, role string) param.Spec {
		s.Role = role
		return s
	}
	return []param.Spec{
		spec(e[0], "A0"),
		spec(e[1], "a0"),
		{Role: "d0", Initial: m.dmin, PMin: m.dmin - 0.5*dr, PMax: m.dmax, Vary: true},
		spec(e[0], "A1"),
		spec(e[1], "a1"),
		{Role: "d1", Initial: m.dmin + 0.5*dr, PMin: m.dmin, PMax: m.dmax + 0.5*dr, Vary: true},
		{Role: "f", Initial: 1, PMin: 0, PMax: 2, Vary: true},
	}
}

func (m *Tarso) Horizon(p []float64, dt float64) int {
	tmax := -math.Max(p[1], p[4]) * math.Log(1-m.cutoff)
	if math.IsNaN(tmax) || tmax <= 0 {
		return 1
	}
	return int(math.Ceil(tmax / dt))
}

func (m *Tarso) Simulate(p []float64, g forcing.Grid) ([]float64, error) {
	prec, evap := m.prec.values(g), m.evap.values(g)
	return tarso(p, prec, evap, g.Days()), nil
}

func tarso(p, prec, evap []float64, dt float64) []float64 {
	A0, a0, d0, A1, a1, d1, f := p[0], p[1], p[2], p[3], p[4], p[5], p[6]
	target := func(upper bool, r float64) (float64, float64) {
		if upper {
			return d1 + A1*(r-(d1-d0)/A0), a1
		}
		return d0 + A0*r, a0
	}

	o := make([]float64, len(prec))
	h := d0
	for i := range prec {
		r := prec[i] - f*evap[i]
		if math.IsNaN(r) {
			o[i] = math.NaN()
			continue
		}
		upper := h >= d1
		hq, tau := target(upper, r)
		hn := hq + (h-hq)*math.Exp(-dt/tau)
		if upper != (hn >= d1) {
			// time needed to reach the threshold, then continue in the other regime
			tc := tau * math.Log((h-hq)/(d1-hq))
			hq, tau = target(!upper, r)
			hn = hq + (d1-hq)*math.Exp(-(dt-tc)/tau)
		}
		h = hn
		o[i] = h
	}
	return o
}

func (m *Tarso) Describe() Description {
	return Description{
		Name: m.name, Type: TypeTarso,
		Stresses: []string{m.prec.s.Name, m.evap.s.Name},
		Dmin:     m.dmin, Dmax: m.dmax,
	}
}
