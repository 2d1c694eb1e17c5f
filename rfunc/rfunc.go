// Package rfunc implements the parametric response functions of the
// transfer-function models: the step response of a head to a unit stress,
// its block response, gain and memory horizon.
package rfunc

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/darigovresearch/pastas/param"
)

// Direction constrains the sign of the gain through its default bounds.
type Direction int

const (
	Increasing Direction = iota
	Decreasing
	Either
)

const (
	DefaultCutoff = 0.999
	maxHorizon    = 36524. // days, 100 years
)

var (
	ErrDistanceRequired    = eris.New("response function needs a distance")
	ErrDistanceUnsupported = eris.New("response function takes no distance")
	ErrParams              = eris.New("wrong number of parameters")
	ErrUnknown             = eris.New("unknown response function")
)

// Settings shared by all families.
type Settings struct {
	Direction  Direction
	MeanStress float64 // scales the default gain, 1 when zero
	Cutoff     float64 // fraction of the gain that sets the horizon, DefaultCutoff when zero
	MaxTmax    float64 // optional cap on the horizon in days
}

func (s Settings) norm() Settings {
	if s.MeanStress == 0 || math.IsNaN(s.MeanStress) {
		s.MeanStress = 1
	}
	if !(s.Cutoff > 0 && s.Cutoff < 1) {
		s.Cutoff = DefaultCutoff
	}
	return s
}

// gain is the default declaration of the gain-like parameter.
func (s Settings) gain(role string) param.Spec {
	ms := math.Abs(s.MeanStress)
	switch s.Direction {
	case Decreasing:
		return param.Spec{Role: role, Initial: -1 / ms, PMin: -100 / ms, PMax: -1e-5, Vary: true}
	case Either:
		return param.Spec{Role: role, Initial: 1 / ms, PMin: -100 / ms, PMax: 100 / ms, Vary: true}
	default:
		return param.Spec{Role: role, Initial: 1 / ms, PMin: 1e-5, PMax: 100 / ms, Vary: true}
	}
}

// Family is any response function.
type Family interface {
	Name() string
	Params() []param.Spec
	Settings() Settings
}

// Func is a family that needs no distance.
type Func interface {
	Family
	Gain(p []float64) float64
	Tmax(p []float64) float64
	Step(p []float64, dt float64) []float64
}

// Scaled is a family whose response depends on a distance r (wells).
type Scaled interface {
	Family
	At(r float64) Func
}

func resolve(f Family, p []float64, r []float64) (Func, error) {
	if len(p) != len(f.Params()) {
		return nil, eris.Wrapf(ErrParams, "rfunc: %s wants %d, got %d", f.Name(), len(f.Params()), len(p))
	}
	switch ff := f.(type) {
	case Scaled:
		if len(r) == 0 {
			return nil, eris.Wrapf(ErrDistanceRequired, "rfunc: %s", f.Name())
		}
		return ff.At(r[0]), nil
	case Func:
		if len(r) > 0 {
			return nil, eris.Wrapf(ErrDistanceUnsupported, "rfunc: %s", f.Name())
		}
		return ff, nil
	}
	return nil, eris.Wrapf(ErrUnknown, "rfunc: %s", f.Name())
}

// Step returns the step response at t = dt, 2dt, ... up to the cutoff horizon.
func Step(f Family, p []float64, dt float64, r ...float64) ([]float64, error) {
	ff, err := resolve(f, p, r)
	if err != nil {
		return nil, err
	}
	return ff.Step(p, dt), nil
}

// Block returns the response to a unit stress lasting one step: the first
// difference of the step response with block[0] = step[0].
func Block(f Family, p []float64, dt float64, r ...float64) ([]float64, error) {
	s, err := Step(f, p, dt, r...)
	if err != nil {
		return nil, err
	}
	b := make([]float64, len(s))
	b[0] = s[0]
	for i := 1; i < len(s); i++ {
		b[i] = s[i] - s[i-1]
	}
	return b, nil
}

// Gain is the limit of the step response.
func Gain(f Family, p []float64, r ...float64) (float64, error) {
	ff, err := resolve(f, p, r)
	if err != nil {
		return math.NaN(), err
	}
	return ff.Gain(p), nil
}

// Tmax is the time in days at which the step response reaches the cutoff
// fraction of the gain.
func Tmax(f Family, p []float64, r ...float64) (float64, error) {
	ff, err := resolve(f, p, r)
	if err != nil {
		return math.NaN(), err
	}
	return ff.Tmax(p), nil
}

// Horizon is the length of the block response for step dt.
func Horizon(f Family, p []float64, dt float64, r ...float64) (int, error) {
	ff, err := resolve(f, p, r)
	if err != nil {
		return 0, err
	}
	return count(ff.Tmax(p), dt, f.Settings()), nil
}

func count(tmax, dt float64, s Settings) int {
	lim := maxHorizon
	if s.MaxTmax > 0 && s.MaxTmax < lim {
		lim = s.MaxTmax
	}
	if math.IsNaN(tmax) || tmax > lim {
		tmax = lim
	}
	n := int(math.Ceil(tmax / dt))
	if n < 1 {
		n = 1
	}
	return n
}

// times returns dt, 2dt, ... covering tmax.
func times(tmax, dt float64, s Settings) []float64 {
	t := make([]float64, count(tmax, dt, s))
	for i := range t {
		t[i] = float64(i+1) * dt
	}
	return t
}
