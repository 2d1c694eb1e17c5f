package stressmodel

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"gonum.org/v1/gonum/stat"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/rfunc"
)

// Well : sums the contributions of several pumping wells sharing one
// distance-scaled response function. Wells are kept sorted by distance,
// closest first.
type Well struct {
	name string
	f    rfunc.Scaled
	b    []*binding
	r    []float64
}

// Distances from an observation point to each well location.
func Distances(obs geom.Coord, wells []geom.Coord) []float64 {
	o := make([]float64, len(wells))
	for i, w := range wells {
		o[i] = xy.Distance(obs, w)
	}
	return o
}

func NewWell(name string, stresses []*forcing.Series, distances []float64, f rfunc.Family, opts ...Option) (*Well, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	sf, ok := f.(rfunc.Scaled)
	if !ok {
		return nil, eris.Wrapf(ErrFamily, "stressmodel: %s needs a distance-scaled response, got %s", name, f.Name())
	}
	if len(stresses) == 0 {
		return nil, eris.Wrapf(ErrStress, "stressmodel: %s has no wells", name)
	}
	if len(distances) != len(stresses) {
		return nil, eris.Wrapf(ErrDistance, "stressmodel: %s has %d stresses and %d distances", name, len(stresses), len(distances))
	}
	for i, r := range distances {
		if !(r > 0) || math.IsInf(r, 0) {
			return nil, eris.Wrapf(ErrDistance, "stressmodel: %s well %d at distance %v", name, i, r)
		}
	}

	idx := make([]int, len(stresses))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return distances[idx[a]] < distances[idx[b]] })

	o := newOptions(opts)
	m := &Well{name: name, f: sf}
	for _, i := range idx {
		b, err := bind(stresses[i], o)
		if err != nil {
			return nil, err
		}
		m.b = append(m.b, b)
		m.r = append(m.r, distances[i])
	}
	return m, nil
}

// NewWellAt : computes the distances from well and observation coordinates.
func NewWellAt(name string, stresses []*forcing.Series, obs geom.Coord, wells []geom.Coord, f rfunc.Family, opts ...Option) (*Well, error) {
	if len(wells) != len(stresses) {
		return nil, eris.Wrapf(ErrDistance, "stressmodel: %s has %d stresses and %d locations", name, len(stresses), len(wells))
	}
	return NewWell(name, stresses, Distances(obs, wells), f, opts...)
}

func (m *Well) Name() string           { return m.name }
func (m *Well) Response() rfunc.Family { return m.f }

// Distances returns the well distances, closest first.
func (m *Well) Distances() []float64 { return append([]float64(nil), m.r...) }

// Params scales the initial b so that the gain at the mean distance is A K0(1).
func (m *Well) Params() []param.Spec {
	ps := m.f.Params()
	rm := stat.Mean(m.r, nil)
	for i := range ps {
		if ps[i].Role == "b" {
			b0 := 1 / (4 * rm * rm)
			ps[i].Initial, ps[i].PMin, ps[i].PMax = b0, b0*1e-4, b0*1e4
		}
	}
	return ps
}

func (m *Well) Stresses() []*forcing.Series {
	o := make([]*forcing.Series, len(m.b))
	for i, b := range m.b {
		o[i] = b.s
	}
	return o
}

func (m *Well) Horizon(p []float64, dt float64) int {
	h := 0
	for _, r := range m.r {
		if n, _ := rfunc.Horizon(m.f, p, dt, r); n > h {
			h = n
		}
	}
	return h
}

func (m *Well) Simulate(p []float64, g forcing.Grid) ([]float64, error) {
	o := make([]float64, g.N)
	for i, b := range m.b {
		blk, err := rfunc.Block(m.f, p, g.Days(), m.r[i])
		if err != nil {
			return nil, err
		}
		for k, v := range Convolve(b.values(g), blk) {
			o[k] += v
		}
	}
	return o, nil
}

// StepResponse of the closest well.
func (m *Well) StepResponse(p []float64, dt float64) ([]float64, error) {
	return rfunc.Step(m.f, p, dt, m.r[0])
}

func (m *Well) BlockResponse(p []float64, dt float64) ([]float64, error) {
	return rfunc.Block(m.f, p, dt, m.r[0])
}

// StepResponseAt returns the step response of the i-th closest well.
func (m *Well) StepResponseAt(p []float64, dt float64, i int) ([]float64, error) {
	if i < 0 || i >= len(m.r) {
		return nil, eris.Wrapf(ErrStress, "stressmodel: %s has no well %d", m.name, i)
	}
	return rfunc.Step(m.f, p, dt, m.r[i])
}

// Gain of the closest well.
func (m *Well) Gain(p []float64) (float64, error) { return rfunc.Gain(m.f, p, m.r[0]) }

func (m *Well) Describe() Description {
	d := describeFunc(m.f)
	d.Name, d.Type, d.Distances = m.name, TypeWell, m.Distances()
	for _, b := range m.b {
		d.Stresses = append(d.Stresses, b.s.Name)
	}
	return d
}
