package model

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/stressmodel"
)

// Definition is the reproducible state of a model: the observed series
// identity, the ordered units, the parameter table, the noise flag and the
// fit window. Series data are referenced by name.
type Definition struct {
	Name         string                    `yaml:"name"`
	Oseries      string                    `yaml:"oseries"`
	Settings     SettingsDef               `yaml:"settings"`
	Constant     bool                      `yaml:"constant"`
	Noise        bool                      `yaml:"noise"`
	StressModels []stressmodel.Description `yaml:"stressmodels"`
	Parameters   []ParameterDef            `yaml:"parameters"`
}

type SettingsDef struct {
	Tmin          time.Time `yaml:"tmin,omitempty"`
	Tmax          time.Time `yaml:"tmax,omitempty"`
	Freq          string    `yaml:"freq"`
	Warmup        string    `yaml:"warmup"`
	Interpolation string    `yaml:"interpolation"`
}

type ParameterDef struct {
	Name    string  `yaml:"name"`
	Initial float64 `yaml:"initial"`
	PMin    float64 `yaml:"pmin"`
	PMax    float64 `yaml:"pmax"`
	Vary    bool    `yaml:"vary"`
	Optimal float64 `yaml:"optimal"`
	Stderr  float64 `yaml:"stderr"`
}

func (s Settings) def() SettingsDef {
	return SettingsDef{
		Tmin:          s.Tmin,
		Tmax:          s.Tmax,
		Freq:          s.Freq.String(),
		Warmup:        s.Warmup.String(),
		Interpolation: s.Policy.String(),
	}
}

func (d SettingsDef) settings() (Settings, error) {
	s := DefaultSettings()
	s.Tmin, s.Tmax = d.Tmin, d.Tmax
	var err error
	if d.Freq != "" {
		if s.Freq, err = time.ParseDuration(d.Freq); err != nil {
			return s, eris.Wrap(err, "model: freq")
		}
	}
	if d.Warmup != "" {
		if s.Warmup, err = time.ParseDuration(d.Warmup); err != nil {
			return s, eris.Wrap(err, "model: warmup")
		}
	}
	if d.Interpolation != "" {
		if s.Policy, err = ParsePolicy(d.Interpolation); err != nil {
			return s, err
		}
	}
	return s.norm(), nil
}

// Definition captures the model's state.
func (m *Model) Definition() Definition {
	d := Definition{
		Name:     m.name,
		Oseries:  m.oseries.Name,
		Settings: m.settings.def(),
		Constant: m.constant != nil,
		Noise:    m.noise != nil,
	}
	for _, u := range m.units {
		d.StressModels = append(d.StressModels, u.sm.Describe())
	}
	for _, p := range m.Parameters() {
		d.Parameters = append(d.Parameters, ParameterDef{
			Name:    p.Name(),
			Initial: p.Initial,
			PMin:    p.PMin,
			PMax:    p.PMax,
			Vary:    p.Vary,
			Optimal: p.Optimal,
			Stderr:  p.Stderr,
		})
	}
	return d
}

// FromDefinition rebuilds a model, looking up the observed series and the
// stresses by name. Units are bound with the rules given through WithRules.
func FromDefinition(d Definition, series map[string]*forcing.Series, opts ...Option) (*Model, error) {
	obs, ok := series[d.Oseries]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "model: series %q", d.Oseries)
	}
	s, err := d.Settings.settings()
	if err != nil {
		return nil, err
	}
	m, err := New(d.Name, obs, append([]Option{WithSettings(s)}, opts...)...)
	if err != nil {
		return nil, err
	}
	for _, sd := range d.StressModels {
		sm, err := stressmodel.Build(sd, series, stressmodel.WithRules(m.rules))
		if err != nil {
			return nil, err
		}
		if err := m.Add(sm); err != nil {
			return nil, err
		}
	}
	if !d.Constant {
		m.RemoveConstant()
	}
	if d.Noise {
		m.AddNoise()
	}
	for _, pd := range d.Parameters {
		p, err := m.row(pd.Name)
		if err != nil {
			return nil, err
		}
		*p = param.Parameter{
			Key:     p.Key,
			Initial: pd.Initial,
			PMin:    pd.PMin,
			PMax:    pd.PMax,
			Vary:    pd.Vary,
			Optimal: pd.Optimal,
			Stderr:  pd.Stderr,
		}
	}
	return m, nil
}

// Save writes the model definition as YAML.
func (m *Model) Save(fp string) error {
	b, err := yaml.Marshal(m.Definition())
	if err != nil {
		return eris.Wrap(err, "model: marshal definition")
	}
	if err := os.WriteFile(fp, b, 0o644); err != nil {
		return eris.Wrapf(err, "model: write %s", fp)
	}
	return nil
}

// LoadDefinition reads a YAML model definition.
func LoadDefinition(fp string) (Definition, error) {
	var d Definition
	b, err := os.ReadFile(fp)
	if err != nil {
		return d, eris.Wrapf(err, "model: read %s", fp)
	}
	if err := yaml.Unmarshal(b, &d); err != nil {
		return d, eris.Wrapf(err, "model: parse %s", fp)
	}
	return d, nil
}

// Load rebuilds a model saved with Save.
func Load(fp string, series map[string]*forcing.Series, opts ...Option) (*Model, error) {
	d, err := LoadDefinition(fp)
	if err != nil {
		return nil, err
	}
	return FromDefinition(d, series, opts...)
}
