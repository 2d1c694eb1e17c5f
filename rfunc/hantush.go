package rfunc

import (
	"math"

	"github.com/darigovresearch/pastas/param"
)

// Hantush leaky-aquifer response: impulse exp(-t/a - ab/t)/t normalised to
// gain A.
type Hantush struct{ s Settings }

func NewHantush(s Settings) *Hantush { return &Hantush{s.norm()} }

func (*Hantush) Name() string         { return "Hantush" }
func (f *Hantush) Settings() Settings { return f.s }

func (f *Hantush) Params() []param.Spec {
	return []param.Spec{
		f.s.gain("A"),
		{Role: "a", Initial: 100, PMin: 1e-3, PMax: 1e4, Vary: true},
		{Role: "b", Initial: 1, PMin: 1e-6, PMax: 25, Vary: true},
	}
}

func (*Hantush) Gain(p []float64) float64 { return p[0] }

func (f *Hantush) Tmax(p []float64) float64 { return kernelTmax(0, p[1], p[2], f.s.Cutoff) }

func (f *Hantush) Step(p []float64, dt float64) []float64 {
	return kernelStep(p[0], 0, p[1], p[2], times(f.Tmax(p), dt, f.s))
}

// FourParam generalises Gamma and Hantush: impulse t^(n-1) exp(-t/a - ab/t).
type FourParam struct{ s Settings }

func NewFourParam(s Settings) *FourParam { return &FourParam{s.norm()} }

func (*FourParam) Name() string         { return "FourParam" }
func (f *FourParam) Settings() Settings { return f.s }

func (f *FourParam) Params() []param.Spec {
	return []param.Spec{
		f.s.gain("A"),
		{Role: "n", Initial: 1, PMin: -10, PMax: 10, Vary: true},
		{Role: "a", Initial: 10, PMin: 0.01, PMax: 5000, Vary: true},
		{Role: "b", Initial: 10, PMin: 1e-6, PMax: 5000, Vary: true},
	}
}

func (*FourParam) Gain(p []float64) float64 { return p[0] }

func (f *FourParam) Tmax(p []float64) float64 { return kernelTmax(p[1], p[2], p[3], f.s.Cutoff) }

func (f *FourParam) Step(p []float64, dt float64) []float64 {
	return kernelStep(p[0], p[1], p[2], p[3], times(f.Tmax(p), dt, f.s))
}

// HantushWellModel is the Hantush response of a pumping well at distance r:
// impulse exp(-t/a - a r^2 b/t)/t with gain A K0(2r sqrt(b)), so the gain
// drops with distance.
type HantushWellModel struct{ s Settings }

func NewHantushWellModel(s Settings) *HantushWellModel { return &HantushWellModel{s.norm()} }

func (*HantushWellModel) Name() string         { return "HantushWellModel" }
func (f *HantushWellModel) Settings() Settings { return f.s }

func (f *HantushWellModel) Params() []param.Spec {
	return []param.Spec{
		f.s.gain("A"),
		{Role: "a", Initial: 100, PMin: 1e-3, PMax: 1e4, Vary: true},
		{Role: "b", Initial: 1e-4, PMin: 1e-12, PMax: 10, Vary: true},
	}
}

func (f *HantushWellModel) At(r float64) Func { return &wellAt{f, r} }

type wellAt struct {
	f *HantushWellModel
	r float64
}

func (w *wellAt) Name() string         { return w.f.Name() }
func (w *wellAt) Params() []param.Spec { return w.f.Params() }
func (w *wellAt) Settings() Settings   { return w.f.s }

func (w *wellAt) Gain(p []float64) float64 {
	return p[0] * k0(2*w.r*math.Sqrt(p[2]))
}

func (w *wellAt) Tmax(p []float64) float64 {
	return kernelTmax(0, p[1], w.r*w.r*p[2], w.f.s.Cutoff)
}

func (w *wellAt) Step(p []float64, dt float64) []float64 {
	return kernelStep(w.Gain(p), 0, p[1], w.r*w.r*p[2], times(w.Tmax(p), dt, w.f.s))
}

func kernelTmax(n, a, b, cutoff float64) float64 {
	k, ok := newKernel(n, a, b)
	if !ok {
		return math.NaN()
	}
	return k.quantile(cutoff)
}

func kernelStep(gain, n, a, b float64, t []float64) []float64 {
	k, ok := newKernel(n, a, b)
	if !ok {
		for i := range t {
			t[i] = math.NaN()
		}
		return t
	}
	c := k.cumulative(t)
	for i := range c {
		c[i] *= gain
	}
	return c
}
