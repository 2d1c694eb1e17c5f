package forcing

import (
	"math"
	"time"
)

const (
	interior = iota
	before
	after
)

// Align puts s onto grid g following rule r. Observations falling in a grid
// period are down-sampled, periods without an observation inside the series
// span are up-sampled, and the remaining interior gaps are filled with
// r.FillNaN. Periods before the first or after the last observation get the
// boundary fills; with FillNone they stay NaN.
func (s *Series) Align(g Grid, r Rule) []float64 {
	o := make([]float64, g.N)
	pos := make([]int, g.N)
	n := len(s.T)
	if n == 0 {
		for i := range o {
			o[i] = math.NaN()
			pos[i] = before
		}
		fillBoundary(o, pos, s, r)
		return o
	}

	j := 0
	for i := 0; i < g.N; i++ {
		t1 := g.Time(i)
		t0 := t1.Add(-g.Step)
		for j < n && !s.T[j].After(t0) {
			j++
		}
		k := j
		for k < n && !s.T[k].After(t1) {
			k++
		}
		switch {
		case k > j:
			o[i] = downsample(s.V[j:k], r.SampleDown)
		case t1.Before(s.T[0]):
			o[i], pos[i] = math.NaN(), before
		case j >= n:
			o[i], pos[i] = math.NaN(), after
		default:
			o[i] = upsample(s, j, t1, g.Step, r.SampleUp)
		}
	}

	fillInterior(o, pos, s, r.FillNaN)
	fillBoundary(o, pos, s, r)
	return o
}

func downsample(v []float64, d Downsample) float64 {
	sum, cnt, last := 0., 0, math.NaN()
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		cnt++
		last = x
	}
	if cnt == 0 {
		return math.NaN()
	}
	switch d {
	case DownSum:
		return sum
	case DownLast:
		return last
	default:
		return sum / float64(cnt)
	}
}

// upsample handles a grid point t strictly between s.T[j-1] and s.T[j].
func upsample(s *Series, j int, t time.Time, step time.Duration, u Upsample) float64 {
	switch u {
	case UpBackfill:
		return s.V[j]
	case UpInterpolate:
		t0, t1 := s.T[j-1], s.T[j]
		w := float64(t.Sub(t0)) / float64(t1.Sub(t0))
		return s.V[j-1] + w*(s.V[j]-s.V[j-1])
	case UpDivide:
		return s.V[j] * float64(step) / float64(s.T[j].Sub(s.T[j-1]))
	default:
		return math.NaN()
	}
}

func fillInterior(o []float64, pos []int, s *Series, f Fill) {
	switch f {
	case FillZero, FillMean:
		v := 0.
		if f == FillMean {
			v = s.Mean()
		}
		for i, x := range o {
			if pos[i] == interior && math.IsNaN(x) {
				o[i] = v
			}
		}
	case FillPrevious:
		last := math.NaN()
		for i, x := range o {
			if pos[i] != interior {
				continue
			}
			if math.IsNaN(x) {
				o[i] = last // infilling with last
			} else {
				last = x
			}
		}
	case FillInterpolate:
		prev := -1
		for i := 0; i < len(o); i++ {
			if pos[i] != interior {
				continue
			}
			if !math.IsNaN(o[i]) {
				if prev >= 0 && i-prev > 1 {
					for k := prev + 1; k < i; k++ {
						w := float64(k-prev) / float64(i-prev)
						o[k] = o[prev] + w*(o[i]-o[prev])
					}
				}
				prev = i
			}
		}
	}
}

func fillBoundary(o []float64, pos []int, s *Series, r Rule) {
	val := func(f Fill) float64 {
		switch f {
		case FillZero:
			return 0.
		case FillMean:
			return s.Mean()
		default:
			return math.NaN()
		}
	}
	vb, va := val(r.FillBefore), val(r.FillAfter)
	for i := range o {
		switch pos[i] {
		case before:
			o[i] = vb
		case after:
			o[i] = va
		}
	}
}
