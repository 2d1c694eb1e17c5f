package stressmodel

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/rfunc"
)

// Step : a step change starting at tstart, shaped by a response function
// (One for an instantaneous jump). The start time is the last parameter,
// in days since the Unix epoch, and does not vary by default.
type Step struct {
	name   string
	f      rfunc.Func
	tstart time.Time
}

func NewStep(name string, tstart time.Time, f rfunc.Family) (*Step, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if f == nil {
		f = rfunc.NewOne(rfunc.Settings{Direction: rfunc.Either})
	}
	ff, err := plainFunc(name, f)
	if err != nil {
		return nil, err
	}
	return &Step{name: name, f: ff, tstart: tstart}, nil
}

func (m *Step) Name() string                { return m.name }
func (m *Step) Stresses() []*forcing.Series { return nil }
func (m *Step) Response() rfunc.Family      { return m.f }

func (m *Step) Params() []param.Spec {
	t0 := forcing.EpochDays(m.tstart)
	return append(m.f.Params(), param.Spec{Role: "tstart", Initial: t0, PMin: t0 - 3652.5, PMax: t0 + 3652.5})
}

func (m *Step) nf() int { return len(m.f.Params()) }

func (m *Step) Horizon(p []float64, dt float64) int {
	n, _ := rfunc.Horizon(m.f, p[:m.nf()], dt)
	return n
}

func (m *Step) Simulate(p []float64, g forcing.Grid) ([]float64, error) {
	nf := m.nf()
	b, err := rfunc.Block(m.f, p[:nf], g.Days())
	if err != nil {
		return nil, err
	}
	x := make([]float64, g.N)
	for i := range x {
		if forcing.EpochDays(g.Time(i)) >= p[nf] {
			x[i] = 1
		}
	}
	return Convolve(x, b), nil
}

func (m *Step) StepResponse(p []float64, dt float64) ([]float64, error) {
	return rfunc.Step(m.f, p[:m.nf()], dt)
}

func (m *Step) BlockResponse(p []float64, dt float64) ([]float64, error) {
	return rfunc.Block(m.f, p[:m.nf()], dt)
}

func (m *Step) Gain(p []float64) (float64, error) { return rfunc.Gain(m.f, p[:m.nf()]) }

func (m *Step) Describe() Description {
	d := describeFunc(m.f)
	d.Name, d.Type, d.Tstart = m.name, TypeStep, m.tstart
	return d
}

// LinearTrend : rises with slope a (per day) between tstart and tend and is
// flat outside; zero before tstart. Parameters a, tstart, tend with times in
// days since the Unix epoch.
type LinearTrend struct {
	name       string
	start, end time.Time
}

func NewLinearTrend(name string, start, end time.Time) (*LinearTrend, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, eris.Errorf("stressmodel: %s trend ends before it starts", name)
	}
	return &LinearTrend{name: name, start: start, end: end}, nil
}

func (m *LinearTrend) Name() string                { return m.name }
func (m *LinearTrend) Stresses() []*forcing.Series { return nil }
func (m *LinearTrend) Horizon([]float64, float64) int {
	return 0
}

func (m *LinearTrend) Params() []param.Spec {
	t0, t1 := forcing.EpochDays(m.start), forcing.EpochDays(m.end)
	return []param.Spec{
		{Role: "a", Initial: 0, PMin: -1, PMax: 1, Vary: true},
		{Role: "tstart", Initial: t0, PMin: t0, PMax: t1},
		{Role: "tend", Initial: t1, PMin: t0, PMax: t1},
	}
}

func (m *LinearTrend) Simulate(p []float64, g forcing.Grid) ([]float64, error) {
	o := make([]float64, g.N)
	for i := range o {
		t := math.Min(math.Max(forcing.EpochDays(g.Time(i)), p[1]), p[2])
		o[i] = p[0] * (t - p[1])
	}
	return o, nil
}

func (m *LinearTrend) Describe() Description {
	return Description{Name: m.name, Type: TypeTrend, Tstart: m.start, Tend: m.end}
}
