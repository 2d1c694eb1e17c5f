package stressmodel

import (
	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/rfunc"
)

// Single : convolves one stress with a response function.
type Single struct {
	name string
	f    rfunc.Func
	b    *binding
}

// NewSingle : Single constructor
func NewSingle(name string, s *forcing.Series, f rfunc.Family, opts ...Option) (*Single, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	ff, err := plainFunc(name, f)
	if err != nil {
		return nil, err
	}
	b, err := bind(s, newOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Single{name: name, f: ff, b: b}, nil
}

func (m *Single) Name() string                { return m.name }
func (m *Single) Params() []param.Spec        { return m.f.Params() }
func (m *Single) Stresses() []*forcing.Series { return []*forcing.Series{m.b.s} }
func (m *Single) Response() rfunc.Family      { return m.f }

func (m *Single) Horizon(p []float64, dt float64) int {
	n, _ := rfunc.Horizon(m.f, p, dt)
	return n
}

func (m *Single) Simulate(p []float64, g forcing.Grid) ([]float64, error) {
	b, err := rfunc.Block(m.f, p, g.Days())
	if err != nil {
		return nil, err
	}
	return Convolve(m.b.values(g), b), nil
}

func (m *Single) StepResponse(p []float64, dt float64) ([]float64, error) {
	return rfunc.Step(m.f, p, dt)
}

func (m *Single) BlockResponse(p []float64, dt float64) ([]float64, error) {
	return rfunc.Block(m.f, p, dt)
}

func (m *Single) Gain(p []float64) (float64, error) { return rfunc.Gain(m.f, p) }

func (m *Single) Describe() Description {
	d := describeFunc(m.f)
	d.Name, d.Type, d.Stresses = m.name, TypeStress, []string{m.b.s.Name}
	return d
}
