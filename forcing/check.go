package forcing

import (
	"math"
	"time"
)

// Summary describes a series for logging and reporting.
type Summary struct {
	Name        string
	Kind        string
	Start, End  time.Time
	N, Missing  int
	Mean        float64
	AnnualTotal float64 // mean rate times 365.24 days, for flux kinds
}

func (s *Series) Summary() Summary {
	sm := Summary{Name: s.Name, Kind: s.Kind.String(), Start: s.Start(), End: s.End(), N: s.Len()}
	for _, v := range s.V {
		if math.IsNaN(v) {
			sm.Missing++
		}
	}
	sm.Mean = s.Mean()
	sm.AnnualTotal = math.NaN()
	if s.Kind != Level && s.Len() > 1 {
		dt := Days(s.End().Sub(s.Start())) / float64(s.Len()-1)
		sm.AnnualTotal = sm.Mean * 365.24 / dt
	}
	return sm
}
