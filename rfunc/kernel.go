package rfunc

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

const (
	kernelWidth = 0.25
	kernelOrder = 16
	kernelDepth = 40.
)

// kernel is the impulse response t^(n-1) exp(-t/a - ab/t) integrated in
// u = ln t, where it becomes the smooth bell exp(n u - e^u/a - ab e^-u).
// Values are scaled by the maximum; [lo, hi] holds everything above
// exp(-kernelDepth) of it.
type kernel struct {
	n, a, b float64
	lmax    float64
	lo, hi  float64
}

func newKernel(n, a, b float64) (kernel, bool) {
	k := kernel{n: n, a: a, b: b}
	if !(a > 0) || !(b >= 0) || math.IsNaN(n) || (b == 0 && n <= 0) {
		return k, false
	}
	y := a * (n + math.Sqrt(n*n+4*b)) / 2 // mode in t
	if !(y > 0) {
		return k, false
	}
	um := math.Log(y)
	k.lmax = k.logg(um)
	k.lo, k.hi = um, um
	for i := 0; i < 400 && k.logg(k.lo) > k.lmax-kernelDepth; i++ {
		k.lo -= 0.5
	}
	for i := 0; i < 400 && k.logg(k.hi) > k.lmax-kernelDepth; i++ {
		k.hi += 0.5
	}
	return k, true
}

func (k kernel) logg(u float64) float64 {
	return k.n*u - math.Exp(u)/k.a - k.a*k.b*math.Exp(-u)
}

func (k kernel) g(u float64) float64 { return math.Exp(k.logg(u) - k.lmax) }

func (k kernel) integral(u0, u1 float64) float64 {
	u0, u1 = math.Max(u0, k.lo), math.Min(u1, k.hi)
	if u1 <= u0 {
		return 0
	}
	m := int(math.Ceil((u1 - u0) / kernelWidth))
	w, s := (u1-u0)/float64(m), 0.
	for i := 0; i < m; i++ {
		s += quad.Fixed(k.g, u0+float64(i)*w, u0+float64(i+1)*w, kernelOrder, quad.Legendre{}, 0)
	}
	return s
}

func (k kernel) total() float64 { return k.integral(k.lo, k.hi) }

// scale is the unscaled integral over all t.
func (k kernel) scale() float64 { return math.Exp(k.lmax) * k.total() }

// cumulative returns the fraction of the total reached at each t; t increasing.
func (k kernel) cumulative(t []float64) []float64 {
	tot := k.total()
	o := make([]float64, len(t))
	u, acc := k.lo, 0.
	for i, ti := range t {
		ui := math.Log(ti)
		acc += k.integral(u, ui)
		if ui > u {
			u = ui
		}
		o[i] = acc / tot
	}
	return o
}

// quantile returns the t at which the cumulative fraction reaches frac.
func (k kernel) quantile(frac float64) float64 {
	target := frac * k.total()
	acc := 0.
	for c0 := k.lo; c0 < k.hi; c0 += kernelWidth {
		c1 := math.Min(c0+kernelWidth, k.hi)
		part := k.integral(c0, c1)
		if acc+part >= target {
			lo, hi := c0, c1
			for j := 0; j < 50; j++ {
				m := (lo + hi) / 2
				if acc+k.integral(c0, m) < target {
					lo = m
				} else {
					hi = m
				}
			}
			return math.Exp(hi)
		}
		acc += part
	}
	return math.Exp(k.hi)
}

// k0 is the modified Bessel function of the second kind of order zero,
// K0(x) = 1/2 integral of exp(-e^u - (x^2/4) e^-u) du.
func k0(x float64) float64 {
	if x <= 0 {
		return math.Inf(1)
	}
	k, _ := newKernel(0, 1, x*x/4)
	return k.scale() / 2
}
