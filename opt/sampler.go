package opt

import "math"

// scaler maps parameters onto a search space where a unit step is
// comparable across parameters: bounded ones onto [0, 1] (log-linearly when
// the positive bounds span more than three decades), others relative to
// their initial magnitude.
type scaler struct {
	lo, hi, ref []float64
	log         []bool
}

func newScaler(x0, lo, hi []float64) scaler {
	s := scaler{lo: lo, hi: hi, ref: make([]float64, len(x0)), log: make([]bool, len(x0))}
	for i := range x0 {
		s.ref[i] = math.Max(math.Abs(x0[i]), 1)
		if s.bounded(i) && lo[i] > 0 && hi[i]/lo[i] > 1e3 {
			s.log[i] = true
		}
	}
	return s
}

func (s scaler) bounded(i int) bool {
	return !math.IsNaN(s.lo[i]) && !math.IsNaN(s.hi[i]) && s.hi[i] > s.lo[i]
}

func linearTransform(lo, hi, u float64) float64 { return lo + u*(hi-lo) }

func logLinearTransform(lo, hi, u float64) float64 {
	return math.Exp(linearTransform(math.Log(lo), math.Log(hi), u))
}

func (s scaler) toUnit(x []float64) []float64 {
	u := make([]float64, len(x))
	for i, v := range x {
		switch {
		case s.log[i]:
			u[i] = (math.Log(v) - math.Log(s.lo[i])) / (math.Log(s.hi[i]) - math.Log(s.lo[i]))
		case s.bounded(i):
			u[i] = (v - s.lo[i]) / (s.hi[i] - s.lo[i])
		default:
			u[i] = v / s.ref[i]
		}
	}
	return u
}

func (s scaler) fromUnit(u []float64) []float64 {
	x := make([]float64, len(u))
	for i, v := range u {
		switch {
		case s.log[i]:
			x[i] = logLinearTransform(s.lo[i], s.hi[i], v)
		case s.bounded(i):
			x[i] = linearTransform(s.lo[i], s.hi[i], v)
		default:
			x[i] = v * s.ref[i]
		}
	}
	return clip(x, s.lo, s.hi)
}
