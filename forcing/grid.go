package forcing

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Days converts a duration to fractional days, the time unit of all
// response functions and noise decay parameters.
func Days(d time.Duration) float64 { return d.Hours() / 24. }

// Duration converts fractional days back to a duration.
func Duration(days float64) time.Duration { return time.Duration(days * float64(day)) }

// EpochDays is the time of t in days since 1970-01-01 UTC. Time-valued
// parameters (step and trend start times) are stored in this unit.
func EpochDays(t time.Time) float64 { return float64(t.Unix()) / 86400. }

// FromEpochDays is the inverse of EpochDays.
func FromEpochDays(d float64) time.Time {
	return time.Unix(0, 0).UTC().Add(time.Duration(math.Round(d*86400.)) * time.Second)
}

// Grid is a uniform simulation index: N points Start, Start+Step, ...
// Point i stands for the period (Time(i)-Step, Time(i)].
type Grid struct {
	Start time.Time
	Step  time.Duration
	N     int
}

// NewGrid spans [tmin, tmax] with the given step, starting at tmin truncated
// to the step so that grids of different warmup share their points.
func NewGrid(tmin, tmax time.Time, step time.Duration) Grid {
	t0 := tmin.Truncate(step)
	n := 0
	if !tmax.Before(t0) {
		n = int(tmax.Sub(t0)/step) + 1
	}
	return Grid{Start: t0, Step: step, N: n}
}

func (g Grid) Time(i int) time.Time { return g.Start.Add(time.Duration(i) * g.Step) }

func (g Grid) End() time.Time { return g.Time(g.N - 1) }

// Days is the step in days.
func (g Grid) Days() float64 { return Days(g.Step) }

func (g Grid) Times() []time.Time {
	o := make([]time.Time, g.N)
	for i := range o {
		o[i] = g.Time(i)
	}
	return o
}

// Extend moves the start n steps earlier.
func (g Grid) Extend(n int) Grid {
	return Grid{Start: g.Start.Add(-time.Duration(n) * g.Step), Step: g.Step, N: g.N + n}
}

// Index returns the last grid index at or before t and whether t falls
// exactly on a grid point. The index is -1 when t precedes the grid.
func (g Grid) Index(t time.Time) (int, bool) {
	d := t.Sub(g.Start)
	if d < 0 {
		return -1, false
	}
	i := int(d / g.Step)
	return i, d%g.Step == 0
}

// Fraction is the position of t between grid points as a float index.
func (g Grid) Fraction(t time.Time) float64 {
	return float64(t.Sub(g.Start)) / float64(g.Step)
}

// Equal reports whether both grids have the same points.
func (g Grid) Equal(o Grid) bool {
	return g.Start.Equal(o.Start) && g.Step == o.Step && g.N == o.N
}

// Steps converts a duration in days to a whole number of grid steps, rounding up.
func (g Grid) Steps(days float64) int {
	if days <= 0 || math.IsNaN(days) {
		return 0
	}
	return int(math.Ceil(days / g.Days()))
}
