package stressmodel

import (
	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/recharge"
	"github.com/darigovresearch/pastas/rfunc"
)

// Recharge passes precipitation and evaporation through a recharge model and
// convolves the resulting flux. Parameters: response function first, then
// the recharge model.
type Recharge struct {
	name       string
	f          rfunc.Func
	rm         recharge.Model
	prec, evap *binding
}

func NewRecharge(name string, prec, evap *forcing.Series, f rfunc.Family, rm recharge.Model, opts ...Option) (*Recharge, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	ff, err := plainFunc(name, f)
	if err != nil {
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
	if rm == nil {
		rm = recharge.Linear{}
	}
	return &Recharge{name: name, f: ff, rm: rm, prec: bp, evap: be}, nil
}

func (m *Recharge) Name() string { return m.name }

func (m *Recharge) Params() []param.Spec {
	return append(m.f.Params(), m.rm.Params()...)
}

func (m *Recharge) Stresses() []*forcing.Series {
	return []*forcing.Series{m.prec.s, m.evap.s}
}

func (m *Recharge) Response() rfunc.Family { return m.f }

// Model returns the recharge transform.
func (m *Recharge) Model() recharge.Model { return m.rm }

func (m *Recharge) split(p []float64) (pf, pr []float64) {
	n := len(m.f.Params())
	return p[:n], p[n:]
}

func (m *Recharge) Horizon(p []float64, dt float64) int {
	pf, _ := m.split(p)
	n, _ := rfunc.Horizon(m.f, pf, dt)
	return n
}

// Flux returns the recharge flux on g.
func (m *Recharge) Flux(p []float64, g forcing.Grid) []float64 {
	_, pr := m.split(p)
	return m.rm.Simulate(m.prec.values(g), m.evap.values(g), pr, g.Days())
}

// Balance returns the water balance of a FlexModel recharge transform, nil
// for other transforms.
func (m *Recharge) Balance(p []float64, g forcing.Grid) *recharge.Balance {
	fm, ok := m.rm.(*recharge.FlexModel)
	if !ok {
		return nil
	}
	_, pr := m.split(p)
	return fm.Fluxes(m.prec.values(g), m.evap.values(g), pr, g.Days())
}

func (m *Recharge) Simulate(p []float64, g forcing.Grid) ([]float64, error) {
	pf, _ := m.split(p)
	b, err := rfunc.Block(m.f, pf, g.Days())
	if err != nil {
		return nil, err
	}
	return Convolve(m.Flux(p, g), b), nil
}

func (m *Recharge) StepResponse(p []float64, dt float64) ([]float64, error) {
	pf, _ := m.split(p)
	return rfunc.Step(m.f, pf, dt)
}

func (m *Recharge) BlockResponse(p []float64, dt float64) ([]float64, error) {
	pf, _ := m.split(p)
	return rfunc.Block(m.f, pf, dt)
}

func (m *Recharge) Gain(p []float64) (float64, error) {
	pf, _ := m.split(p)
	return rfunc.Gain(m.f, pf)
}

func (m *Recharge) Describe() Description {
	d := describeFunc(m.f)
	rc := recharge.Describe(m.rm)
	d.Name, d.Type, d.Recharge = m.name, TypeRecharge, &rc
	d.Stresses = []string{m.prec.s.Name, m.evap.s.Name}
	return d
}
