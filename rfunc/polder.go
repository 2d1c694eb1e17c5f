package rfunc

import (
	"math"

	"github.com/darigovresearch/pastas/param"
)

// Polder response of a semi-confined aquifer to a step change of a
// bounding water level; gain A exp(-2 sqrt(b)).
type Polder struct{ s Settings }

func NewPolder(s Settings) *Polder { return &Polder{s.norm()} }

func (*Polder) Name() string         { return "Polder" }
func (f *Polder) Settings() Settings { return f.s }

func (f *Polder) Params() []param.Spec {
	return []param.Spec{
		f.s.gain("A"),
		{Role: "a", Initial: 10, PMin: 0.01, PMax: 1000, Vary: true},
		{Role: "b", Initial: 1, PMin: 1e-6, PMax: 25, Vary: true},
	}
}

func (*Polder) Gain(p []float64) float64 { return p[0] * math.Exp(-2*math.Sqrt(p[2])) }

func polder(x, y float64) float64 {
	return 0.5 * (math.Exp(2*x)*math.Erfc(x/y+y) + math.Exp(-2*x)*math.Erfc(x/y-y))
}

func (f *Polder) Tmax(p []float64) float64 {
	a, x := p[1], math.Sqrt(p[2])
	if !(a > 0) || math.IsNaN(x) {
		return math.NaN()
	}
	frac := func(t float64) float64 { return polder(x, math.Sqrt(t/a)) / math.Exp(-2*x) }
	hi := a
	for i := 0; i < 64 && frac(hi) < f.s.Cutoff; i++ {
		hi *= 2
	}
	lo := 0.
	for i := 0; i < 100; i++ {
		m := (lo + hi) / 2
		if frac(m) < f.s.Cutoff {
			lo = m
		} else {
			hi = m
		}
	}
	return hi
}

func (f *Polder) Step(p []float64, dt float64) []float64 {
	t := times(f.Tmax(p), dt, f.s)
	x := math.Sqrt(p[2])
	for i, ti := range t {
		t[i] = p[0] * polder(x, math.Sqrt(ti/p[1]))
	}
	return t
}
