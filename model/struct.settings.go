package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Policy decides how simulated values on the grid are matched to
// observation times.
type Policy int

const (
	Interpolate Policy = iota // linear between the two enclosing grid points
	Nearest                   // closest grid point
	Exact                     // only observations that fall on a grid point
)

var policyNames = [...]string{"interpolate", "nearest", "exact"}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return "unknown"
	}
	return policyNames[p]
}

func ParsePolicy(s string) (Policy, error) {
	for i, n := range policyNames {
		if strings.EqualFold(s, n) {
			return Policy(i), nil
		}
	}
	return Interpolate, eris.Errorf("model: unknown interpolation policy %q", s)
}

const (
	DefaultFreq   = 24 * time.Hour
	DefaultWarmup = 3650 * 24 * time.Hour
)

// Settings of a model. A zero Tmin or Tmax falls back to the span of the
// observations.
type Settings struct {
	Tmin, Tmax time.Time
	Freq       time.Duration
	Warmup     time.Duration
	Policy     Policy
}

// DefaultSettings: daily grid, ten years of warmup, interpolated residuals.
func DefaultSettings() Settings {
	return Settings{Freq: DefaultFreq, Warmup: DefaultWarmup, Policy: Interpolate}
}

func (s Settings) norm() Settings {
	if s.Freq <= 0 {
		s.Freq = DefaultFreq
	}
	if s.Warmup < 0 {
		s.Warmup = 0
	}
	return s
}
