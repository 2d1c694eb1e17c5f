package rfunc

import (
	"math"

	"gonum.org/v1/gonum/mathext"

	"github.com/darigovresearch/pastas/param"
)

// Exponential step response A(1-exp(-t/a)).
type Exponential struct{ s Settings }

func NewExponential(s Settings) *Exponential { return &Exponential{s.norm()} }

func (*Exponential) Name() string         { return "Exponential" }
func (f *Exponential) Settings() Settings { return f.s }

func (f *Exponential) Params() []param.Spec {
	return []param.Spec{
		f.s.gain("A"),
		{Role: "a", Initial: 10, PMin: 0.01, PMax: 1000, Vary: true},
	}
}

func (*Exponential) Gain(p []float64) float64 { return p[0] }

func (f *Exponential) Tmax(p []float64) float64 { return -p[1] * math.Log(1-f.s.Cutoff) }

func (f *Exponential) Step(p []float64, dt float64) []float64 {
	t := times(f.Tmax(p), dt, f.s)
	for i, ti := range t {
		t[i] = p[0] * (1 - math.Exp(-ti/p[1]))
	}
	return t
}

// Gamma step response A P(n, t/a), P the regularized lower incomplete gamma function.
type Gamma struct{ s Settings }

func NewGamma(s Settings) *Gamma { return &Gamma{s.norm()} }

func (*Gamma) Name() string         { return "Gamma" }
func (f *Gamma) Settings() Settings { return f.s }

func (f *Gamma) Params() []param.Spec {
	return []param.Spec{
		f.s.gain("A"),
		{Role: "n", Initial: 1, PMin: 0.01, PMax: 100, Vary: true},
		{Role: "a", Initial: 10, PMin: 0.01, PMax: 1e4, Vary: true},
	}
}

func (*Gamma) Gain(p []float64) float64 { return p[0] }

func (f *Gamma) Tmax(p []float64) float64 {
	if !(p[1] > 0 && p[2] > 0) {
		return math.NaN()
	}
	return mathext.GammaIncRegInv(p[1], f.s.Cutoff) * p[2]
}

func (f *Gamma) Step(p []float64, dt float64) []float64 {
	t := times(f.Tmax(p), dt, f.s)
	for i, ti := range t {
		t[i] = p[0] * mathext.GammaIncReg(p[1], ti/p[2])
	}
	return t
}

// DoubleExponential step response A(1 - ((1-alpha)exp(-t/a1) + alpha exp(-t/a2))).
type DoubleExponential struct{ s Settings }

func NewDoubleExponential(s Settings) *DoubleExponential { return &DoubleExponential{s.norm()} }

func (*DoubleExponential) Name() string         { return "DoubleExponential" }
func (f *DoubleExponential) Settings() Settings { return f.s }

func (f *DoubleExponential) Params() []param.Spec {
	return []param.Spec{
		f.s.gain("A"),
		{Role: "alpha", Initial: 0.1, PMin: 0.01, PMax: 0.99, Vary: true},
		{Role: "a1", Initial: 10, PMin: 0.01, PMax: 5000, Vary: true},
		{Role: "a2", Initial: 10, PMin: 0.01, PMax: 5000, Vary: true},
	}
}

func (*DoubleExponential) Gain(p []float64) float64 { return p[0] }

func (f *DoubleExponential) Tmax(p []float64) float64 {
	return -math.Max(p[2], p[3]) * math.Log(1-f.s.Cutoff)
}

func (f *DoubleExponential) Step(p []float64, dt float64) []float64 {
	t := times(f.Tmax(p), dt, f.s)
	for i, ti := range t {
		t[i] = p[0] * (1 - ((1-p[1])*math.Exp(-ti/p[2]) + p[1]*math.Exp(-ti/p[3])))
	}
	return t
}

// One is an instantaneous response: the whole gain d in the first step.
type One struct{ s Settings }

func NewOne(s Settings) *One { return &One{s.norm()} }

func (*One) Name() string         { return "One" }
func (f *One) Settings() Settings { return f.s }

func (f *One) Params() []param.Spec { return []param.Spec{f.s.gain("d")} }

func (*One) Gain(p []float64) float64 { return p[0] }
func (*One) Tmax([]float64) float64   { return 0 }

func (*One) Step(p []float64, _ float64) []float64 { return []float64{p[0]} }
