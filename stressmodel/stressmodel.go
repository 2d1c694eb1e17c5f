// Package stressmodel implements the contribution units of a model: each
// binds driving series to a response function (or a small state model) and
// produces its head contribution on the simulation grid.
package stressmodel

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/rfunc"
)

var (
	ErrName     = eris.New("stress model needs a name")
	ErrFamily   = eris.New("response function does not fit the stress model")
	ErrDistance = eris.New("invalid well distance")
	ErrStress   = eris.New("missing stress")
	ErrType     = eris.New("unknown stress model type")
)

// StressModel is a contribution unit. Params lists its parameters in the
// order Simulate expects them.
type StressModel interface {
	Name() string
	Params() []param.Spec
	Stresses() []*forcing.Series
	// Horizon is the number of grid steps of memory for parameters p.
	Horizon(p []float64, dt float64) int
	Simulate(p []float64, g forcing.Grid) ([]float64, error)
	Describe() Description
}

// Responder is a unit driven through a response function.
type Responder interface {
	StressModel
	Response() rfunc.Family
	StepResponse(p []float64, dt float64) ([]float64, error)
	BlockResponse(p []float64, dt float64) ([]float64, error)
	Gain(p []float64) (float64, error)
}

type options struct {
	rules forcing.Rules
}

// Option configures how a unit binds its series.
type Option func(*options)

// WithRules sets the fill and resampling rules used to align the stresses.
func WithRules(r forcing.Rules) Option { return func(o *options) { o.rules = r } }

func newOptions(opts []Option) options {
	o := options{rules: forcing.DefaultRules()}
	for _, f := range opts {
		f(&o)
	}
	return o
}

// binding is a stress bound to a unit with its alignment cached per grid.
type binding struct {
	s    *forcing.Series
	rule forcing.Rule

	mu sync.Mutex
	g  forcing.Grid
	v  []float64
}

func bind(s *forcing.Series, o options) (*binding, error) {
	if s == nil {
		return nil, eris.Wrap(ErrStress, "stressmodel: nil series")
	}
	if err := s.Validate(); err != nil {
		return nil, eris.Wrap(err, "stressmodel")
	}
	r := o.rules.For(s.Kind)
	if err := r.Validate(); err != nil {
		return nil, eris.Wrapf(err, "stressmodel: rule for %s", s.Name)
	}
	return &binding{s: s, rule: r}, nil
}

// values returns the stress on g; the slice is shared and must not be modified.
func (b *binding) values(g forcing.Grid) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.v == nil || !b.g.Equal(g) {
		b.v = b.s.Align(g, b.rule)
		b.g = g
	}
	return b.v
}

// Convolve returns the discrete convolution of x with block, truncated to
// len(x). A missing value in x spreads over the block length.
func Convolve(x, block []float64) []float64 {
	o := make([]float64, len(x))
	for i := range x {
		s := 0.
		for j := 0; j < len(block) && j <= i; j++ {
			s += block[j] * x[i-j]
		}
		o[i] = s
	}
	return o
}

func checkName(name string) error {
	if name == "" {
		return eris.Wrap(ErrName, "stressmodel")
	}
	return nil
}

func plainFunc(name string, f rfunc.Family) (rfunc.Func, error) {
	ff, ok := f.(rfunc.Func)
	if !ok {
		return nil, eris.Wrapf(ErrFamily, "stressmodel: %s cannot use %s without distances", name, f.Name())
	}
	return ff, nil
}
