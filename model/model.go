// Package model assembles stress units, a constant and an optional noise
// model into a transfer function noise model of an observed head series.
package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/noise"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/stressmodel"
)

const (
	constantName = "constant"
	noiseName    = "noise"
)

var (
	ErrDuplicateName  = eris.New("duplicate name")
	ErrNotFound       = eris.New("not found")
	ErrNoObservations = eris.New("no observations")
	ErrNoNoise        = eris.New("model has no noise model")
	ErrParams         = eris.New("parameter vector does not match the model")
	ErrNotResponder   = eris.New("unit has no response function")
)

type unit struct {
	sm     stressmodel.StressModel
	params []param.Parameter
}

// Model is a composite of stress units plus a constant and an optional AR(1)
// noise model. It is not safe for concurrent mutation; read-only methods
// taking an explicit parameter vector may run concurrently.
type Model struct {
	name     string
	oseries  *forcing.Series
	units    []*unit
	constant *param.Parameter
	noise    *param.Parameter
	settings Settings
	rules    forcing.Rules
	log      *zap.Logger
}

type Option func(*Model)

func WithSettings(s Settings) Option { return func(m *Model) { m.settings = s.norm() } }

func WithLogger(l *zap.Logger) Option { return func(m *Model) { m.log = l } }

// WithRules sets the alignment rules used when units are rebuilt from a
// Definition.
func WithRules(r forcing.Rules) Option { return func(m *Model) { m.rules = r } }

// New creates a model of oseries with a constant and no units. Missing
// observations are dropped.
func New(name string, oseries *forcing.Series, opts ...Option) (*Model, error) {
	if oseries == nil {
		return nil, eris.Wrap(ErrNoObservations, "model: nil series")
	}
	if err := oseries.Validate(); err != nil {
		return nil, eris.Wrapf(err, "model: %s", name)
	}
	obs := oseries.DropNaN()
	if obs.Len() == 0 {
		return nil, eris.Wrapf(ErrNoObservations, "model: %s", oseries.Name)
	}
	m := &Model{
		name:     name,
		oseries:  obs,
		settings: DefaultSettings(),
		rules:    forcing.DefaultRules(),
		log:      zap.L(),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With(zap.String("model", name))
	m.addConstant()
	return m, nil
}

func (m *Model) Name() string           { return m.name }
func (m *Model) Settings() Settings     { return m.settings }
func (m *Model) SetSettings(s Settings) { m.settings = s.norm() }
func (m *Model) Logger() *zap.Logger    { return m.log }
func (m *Model) HasNoise() bool         { return m.noise != nil }
func (m *Model) HasConstant() bool      { return m.constant != nil }

// Observations returns the observed series without missing values.
func (m *Model) Observations() *forcing.Series { return m.oseries }

// Window returns the fit window: the settings when set, else the span of
// the observations.
func (m *Model) Window() (tmin, tmax time.Time) {
	tmin, tmax = m.settings.Tmin, m.settings.Tmax
	if tmin.IsZero() {
		tmin = m.oseries.Start()
	}
	if tmax.IsZero() {
		tmax = m.oseries.End()
	}
	return
}

// Add appends a unit. Unit names are unique within a model and may not
// shadow the constant or the noise model.
func (m *Model) Add(sm stressmodel.StressModel) error {
	n := sm.Name()
	if n == constantName || n == noiseName {
		return eris.Wrapf(ErrDuplicateName, "model: %q is reserved", n)
	}
	if m.find(n) >= 0 {
		return eris.Wrapf(ErrDuplicateName, "model: unit %q", n)
	}
	u := &unit{sm: sm}
	for _, s := range sm.Params() {
		u.params = append(u.params, param.New(n, s))
	}
	taken := make(map[string]bool)
	for _, p := range m.Parameters() {
		taken[p.Name()] = true
	}
	for _, p := range u.params {
		if taken[p.Name()] {
			return eris.Wrapf(ErrDuplicateName, "model: parameter %q", p.Name())
		}
		taken[p.Name()] = true
	}
	m.units = append(m.units, u)
	m.log.Debug("unit added", zap.String("unit", n), zap.Int("nparam", len(u.params)))
	return nil
}

// Remove drops the unit named name together with its parameters.
func (m *Model) Remove(name string) error {
	i := m.find(name)
	if i < 0 {
		return eris.Wrapf(ErrNotFound, "model: unit %q", name)
	}
	m.units = append(m.units[:i], m.units[i+1:]...)
	m.log.Debug("unit removed", zap.String("unit", name))
	return nil
}

func (m *Model) find(name string) int {
	for i, u := range m.units {
		if u.sm.Name() == name {
			return i
		}
	}
	return -1
}

// Unit returns the unit named name.
func (m *Model) Unit(name string) (stressmodel.StressModel, bool) {
	if i := m.find(name); i >= 0 {
		return m.units[i].sm, true
	}
	return nil, false
}

// Units lists unit names in insertion order.
func (m *Model) Units() []string {
	o := make([]string, len(m.units))
	for i, u := range m.units {
		o[i] = u.sm.Name()
	}
	return o
}

func (m *Model) addConstant() {
	if m.constant != nil {
		return
	}
	p := param.New(constantName, param.Spec{Role: "d", Initial: m.oseries.Mean(), PMin: math.NaN(), PMax: math.NaN(), Vary: true})
	m.constant = &p
}

// AddConstant restores the constant after RemoveConstant.
func (m *Model) AddConstant() { m.addConstant() }

// RemoveConstant drops the constant, e.g. when a unit carries its own base level.
func (m *Model) RemoveConstant() { m.constant = nil }

// AddNoise attaches an AR(1) noise model with alpha initialised to the mean
// observation interval.
func (m *Model) AddNoise() {
	if m.noise != nil {
		return
	}
	p := param.New(noiseName, noise.AR1{}.Params(m.odelt())[0])
	m.noise = &p
}

func (m *Model) RemoveNoise() { m.noise = nil }

func (m *Model) odelt() float64 {
	dt := m.obsIntervals(m.oseries.T)
	if len(dt) < 2 {
		return math.NaN()
	}
	return stat.Mean(dt[1:], nil)
}
