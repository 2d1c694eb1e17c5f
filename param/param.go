// Package param holds the parameter data model shared by response functions,
// recharge transforms, stress units, the noise model and the calibration engine.
package param

import (
	"math"
)

// Spec is a default parameter declaration: a role within its owner together
// with an initial value, bounds and the vary flag.
type Spec struct {
	Role    string
	Initial float64
	PMin    float64
	PMax    float64
	Vary    bool
}

// Key identifies a parameter by owning unit and role.
type Key struct {
	Unit string
	Role string
}

// String is the reporting name, unit_role.
func (k Key) String() string { return k.Unit + "_" + k.Role }

// Parameter is one row of a model's parameter table. Optimal and Stderr are
// NaN until a solve has written them.
type Parameter struct {
	Key
	Initial float64
	PMin    float64
	PMax    float64
	Vary    bool
	Optimal float64
	Stderr  float64
}

// New builds a table row for unit from its default declaration.
func New(unit string, s Spec) Parameter {
	return Parameter{
		Key:     Key{Unit: unit, Role: s.Role},
		Initial: s.Initial,
		PMin:    s.PMin,
		PMax:    s.PMax,
		Vary:    s.Vary,
		Optimal: math.NaN(),
		Stderr:  math.NaN(),
	}
}

// Name returns the reporting name of the parameter.
func (p Parameter) Name() string { return p.Key.String() }

// Value is the current value: the optimum once solved, the initial value otherwise.
func (p Parameter) Value() float64 {
	if math.IsNaN(p.Optimal) {
		return p.Initial
	}
	return p.Optimal
}

// Solved reports whether an optimum has been written.
func (p Parameter) Solved() bool { return !math.IsNaN(p.Optimal) }

// Spec returns the declaration part of the row.
func (p Parameter) Spec() Spec {
	return Spec{Role: p.Role, Initial: p.Initial, PMin: p.PMin, PMax: p.PMax, Vary: p.Vary}
}

// Clip bounds x to [lo, hi]. NaN bounds are treated as open.
func Clip(x, lo, hi float64) float64 {
	if !math.IsNaN(lo) && x < lo {
		return lo
	}
	if !math.IsNaN(hi) && x > hi {
		return hi
	}
	return x
}

// Values collects the current values of ps.
func Values(ps []Parameter) []float64 {
	o := make([]float64, len(ps))
	for i, p := range ps {
		o[i] = p.Value()
	}
	return o
}

// Initials collects the initial values of ps.
func Initials(ps []Parameter) []float64 {
	o := make([]float64, len(ps))
	for i, p := range ps {
		o[i] = p.Initial
	}
	return o
}

// Bounds returns the lower and upper bounds of ps.
func Bounds(ps []Parameter) (lo, hi []float64) {
	lo, hi = make([]float64, len(ps)), make([]float64, len(ps))
	for i, p := range ps {
		lo[i], hi[i] = p.PMin, p.PMax
	}
	return
}
