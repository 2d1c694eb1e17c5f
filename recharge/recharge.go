// Package recharge converts precipitation and potential evaporation into a
// groundwater recharge flux.
package recharge

import (
	"github.com/rotisserie/eris"

	"github.com/darigovresearch/pastas/param"
)

var ErrUnknown = eris.New("unknown recharge model")

// Model is a recharge transform. Simulate steps through the inputs in strict
// time order; prec and evap are rates per day on a grid with step dt days
// and the output is a rate in the same unit.
type Model interface {
	Name() string
	Params() []param.Spec
	Simulate(prec, evap, p []float64, dt float64) []float64
}

// Config is the persisted description of a recharge model. FlexModel
// options left out take the NewFlexModel values.
type Config struct {
	Name            string   `yaml:"name"`
	Interception    *bool    `yaml:"interception,omitempty"`
	InitialFraction *float64 `yaml:"initial_fraction,omitempty"`
}

// New builds a recharge model from its description.
func New(c Config) (Model, error) {
	switch c.Name {
	case "Linear":
		return Linear{}, nil
	case "FlexModel":
		m := NewFlexModel()
		if c.Interception != nil {
			m.Interception = *c.Interception
		}
		if c.InitialFraction != nil {
			m.InitialFraction = *c.InitialFraction
		}
		return m, nil
	}
	return nil, eris.Wrapf(ErrUnknown, "recharge: %q", c.Name)
}

// Describe is the inverse of New.
func Describe(m Model) Config {
	c := Config{Name: m.Name()}
	if f, ok := m.(*FlexModel); ok {
		ic, fr := f.Interception, f.InitialFraction
		c.Interception, c.InitialFraction = &ic, &fr
	}
	return c
}

// Linear recharge: prec - f*evap.
type Linear struct{}

func (Linear) Name() string { return "Linear" }

func (Linear) Params() []param.Spec {
	return []param.Spec{{Role: "f", Initial: 1, PMin: 0, PMax: 2, Vary: true}}
}

func (Linear) Simulate(prec, evap, p []float64, _ float64) []float64 {
	o := make([]float64, len(prec))
	for i := range prec {
		o[i] = prec[i] - p[0]*evap[i]
	}
	return o
}
