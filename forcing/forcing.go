// Package forcing holds the time-indexed driving series of a model and the
// rules used to bring them onto the simulation grid.
package forcing

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// Kind of a series. The kind selects the default fill and resampling rule.
type Kind int

const (
	Precipitation Kind = iota
	Evaporation
	Level
	Well
	Unconstrained
)

var kindNames = map[Kind]string{
	Precipitation: "prec",
	Evaporation:   "evap",
	Level:         "level",
	Well:          "well",
	Unconstrained: "unconstrained",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind maps a kind name (prec, evap, level, well, unconstrained) to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, eris.Wrapf(ErrUnknownKind, "forcing: kind %q", s)
}

var (
	ErrUnsorted      = eris.New("timestamps not sorted")
	ErrDuplicateTime = eris.New("duplicate timestamp")
	ErrLength        = eris.New("times and values differ in length")
	ErrUnknownKind   = eris.New("unknown series kind")
	ErrRule          = eris.New("invalid fill rule")
)

// Series is an immutable time-indexed sequence of values. Values are amounts
// over the period ending at their timestamp for flux kinds and instantaneous
// for levels. NaN marks a missing value.
type Series struct {
	Name string
	Kind Kind
	T    []time.Time
	V    []float64
}

// New copies t and v into a Series, failing on unsorted or duplicate timestamps.
func New(name string, kind Kind, t []time.Time, v []float64) (*Series, error) {
	if err := validate(name, t, v); err != nil {
		return nil, err
	}
	s := &Series{
		Name: name,
		Kind: kind,
		T:    make([]time.Time, len(t)),
		V:    make([]float64, len(v)),
	}
	copy(s.T, t)
	copy(s.V, v)
	return s, nil
}

// Validate checks a series built outside New: equal lengths and strictly
// increasing timestamps.
func (s *Series) Validate() error {
	if s == nil {
		return eris.Wrap(ErrLength, "forcing: nil series")
	}
	return validate(s.Name, s.T, s.V)
}

func validate(name string, t []time.Time, v []float64) error {
	if len(t) != len(v) {
		return eris.Wrapf(ErrLength, "forcing: series %s (%d times, %d values)", name, len(t), len(v))
	}
	for i := 1; i < len(t); i++ {
		switch {
		case t[i].Equal(t[i-1]):
			return eris.Wrapf(ErrDuplicateTime, "forcing: series %s at %v", name, t[i])
		case t[i].Before(t[i-1]):
			return eris.Wrapf(ErrUnsorted, "forcing: series %s at %v", name, t[i])
		}
	}
	return nil
}

// FromGrid wraps values computed on a grid; v is not copied.
func FromGrid(name string, kind Kind, g Grid, v []float64) *Series {
	return &Series{Name: name, Kind: kind, T: g.Times(), V: v}
}

func (s *Series) Len() int { return len(s.T) }

func (s *Series) Start() time.Time {
	if len(s.T) == 0 {
		return time.Time{}
	}
	return s.T[0]
}

func (s *Series) End() time.Time {
	if len(s.T) == 0 {
		return time.Time{}
	}
	return s.T[len(s.T)-1]
}

// Valid returns the values that are not NaN.
func (s *Series) Valid() []float64 {
	o := make([]float64, 0, len(s.V))
	for _, v := range s.V {
		if !math.IsNaN(v) {
			o = append(o, v)
		}
	}
	return o
}

// Mean of the non-missing values, NaN when there are none.
func (s *Series) Mean() float64 {
	v := s.Valid()
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// Std is the sample standard deviation of the non-missing values.
func (s *Series) Std() float64 {
	v := s.Valid()
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdDev(v, nil)
}

// Slice returns the part of s within [tmin, tmax]. Zero times are open ends.
func (s *Series) Slice(tmin, tmax time.Time) *Series {
	o := &Series{Name: s.Name, Kind: s.Kind}
	for i, t := range s.T {
		if !tmin.IsZero() && t.Before(tmin) {
			continue
		}
		if !tmax.IsZero() && t.After(tmax) {
			break
		}
		o.T = append(o.T, t)
		o.V = append(o.V, s.V[i])
	}
	return o
}

// DropNaN returns a copy of s without missing values.
func (s *Series) DropNaN() *Series {
	o := &Series{Name: s.Name, Kind: s.Kind}
	for i, v := range s.V {
		if math.IsNaN(v) {
			continue
		}
		o.T = append(o.T, s.T[i])
		o.V = append(o.V, v)
	}
	return o
}
