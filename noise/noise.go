// Package noise turns model residuals into innovations under a
// continuous-time first-order autoregressive noise model, valid for
// irregularly spaced observations.
package noise

import (
	"math"

	"github.com/darigovresearch/pastas/param"
)

// AR1 noise with exponential decay of the residual memory, time constant
// alpha in days.
type AR1 struct{}

func (AR1) Name() string { return "NoiseModel" }

// Params declares alpha; odelt is the mean observation interval in days and
// sets the initial value.
func (AR1) Params(odelt float64) []param.Spec {
	a := 10.
	if odelt > 0 && !math.IsNaN(odelt) {
		a = odelt
	}
	return []param.Spec{{Role: "alpha", Initial: a, PMin: 1e-5, PMax: 5000, Vary: true}}
}

// Innovations returns v0 = r0 and vk = rk - r(k-1) exp(-dt_k/alpha). dt_k is
// the interval in days between observation k-1 and k; dt[0] is ignored.
func (AR1) Innovations(res, dt []float64, alpha float64) []float64 {
	v := make([]float64, len(res))
	if len(res) == 0 {
		return v
	}
	v[0] = res[0]
	for k := 1; k < len(res); k++ {
		v[k] = res[k] - res[k-1]*math.Exp(-dt[k]/alpha)
	}
	return v
}

// Weights returns 1/sqrt(1 - exp(-2 dt_k/alpha)) normalised by the geometric
// mean of the factors, so that the weighted sum of squares stays on the
// scale of the residuals. The first observation has factor 1.
func (AR1) Weights(dt []float64, alpha float64) []float64 {
	n := len(dt)
	w := make([]float64, n)
	if n == 0 {
		return w
	}
	s := make([]float64, n)
	s[0] = 1
	lsum := 0.
	for k := 1; k < n; k++ {
		s[k] = math.Sqrt(1 - math.Exp(-2*dt[k]/alpha))
		lsum += math.Log(s[k])
	}
	gm := math.Exp(lsum / float64(n))
	for k := range w {
		w[k] = gm / s[k]
	}
	return w
}

// Weighted returns innovations times weights.
func (m AR1) Weighted(res, dt []float64, alpha float64) []float64 {
	v := m.Innovations(res, dt, alpha)
	w := m.Weights(dt, alpha)
	for k := range v {
		v[k] *= w[k]
	}
	return v
}
