package forcing

import (
	"github.com/rotisserie/eris"
)

// Fill says how missing grid values are completed.
type Fill int

const (
	FillNone Fill = iota // leave NaN, the gap propagates
	FillZero
	FillMean
	FillInterpolate
	FillPrevious
)

// Upsample says how grid points between two observations get a value.
type Upsample int

const (
	UpNone Upsample = iota
	UpBackfill
	UpInterpolate
	UpDivide
)

// Downsample says how several observations within one grid period are combined.
type Downsample int

const (
	DownMean Downsample = iota
	DownSum
	DownLast
)

var (
	fillNames = map[Fill]string{FillNone: "none", FillZero: "zero", FillMean: "mean", FillInterpolate: "interpolate", FillPrevious: "previous"}
	upNames   = map[Upsample]string{UpNone: "none", UpBackfill: "bfill", UpInterpolate: "interpolate", UpDivide: "divide"}
	downNames = map[Downsample]string{DownMean: "mean", DownSum: "sum", DownLast: "last"}
)

func (f Fill) String() string       { return fillNames[f] }
func (u Upsample) String() string   { return upNames[u] }
func (d Downsample) String() string { return downNames[d] }

func ParseFill(s string) (Fill, error) {
	for k, n := range fillNames {
		if n == s {
			return k, nil
		}
	}
	return 0, eris.Wrapf(ErrRule, "forcing: fill %q", s)
}

func ParseUpsample(s string) (Upsample, error) {
	for k, n := range upNames {
		if n == s {
			return k, nil
		}
	}
	return 0, eris.Wrapf(ErrRule, "forcing: sample_up %q", s)
}

func ParseDownsample(s string) (Downsample, error) {
	for k, n := range downNames {
		if n == s {
			return k, nil
		}
	}
	return 0, eris.Wrapf(ErrRule, "forcing: sample_down %q", s)
}

// Rule is the fill and resampling policy applied when a series is put on the
// simulation grid.
type Rule struct {
	FillNaN    Fill
	FillBefore Fill
	FillAfter  Fill
	SampleUp   Upsample
	SampleDown Downsample
}

// Validate rejects boundary fills that would need data outside the series.
func (r Rule) Validate() error {
	for _, f := range []Fill{r.FillBefore, r.FillAfter} {
		switch f {
		case FillNone, FillZero, FillMean:
		default:
			return eris.Wrapf(ErrRule, "forcing: boundary fill %s", f)
		}
	}
	return nil
}

// Rules maps each kind to its rule.
type Rules map[Kind]Rule

// DefaultRules returns a fresh rule table. Leading and trailing gaps are
// never filled by default.
func DefaultRules() Rules {
	return Rules{
		Precipitation: {FillNaN: FillZero, SampleUp: UpBackfill, SampleDown: DownMean},
		Evaporation:   {FillNaN: FillInterpolate, SampleUp: UpBackfill, SampleDown: DownMean},
		Level:         {FillNaN: FillInterpolate, SampleUp: UpInterpolate, SampleDown: DownMean},
		Well:          {FillNaN: FillZero, SampleUp: UpBackfill, SampleDown: DownMean},
		Unconstrained: {FillNaN: FillInterpolate, SampleUp: UpBackfill, SampleDown: DownMean},
	}
}

// For returns the rule of kind k, falling back to the default table.
func (r Rules) For(k Kind) Rule {
	if rr, ok := r[k]; ok {
		return rr
	}
	return DefaultRules()[k]
}
