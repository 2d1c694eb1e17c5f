package stressmodel

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/recharge"
	"github.com/darigovresearch/pastas/rfunc"
)

const (
	TypeStress   = "StressModel"
	TypeRecharge = "RechargeModel"
	TypeWell     = "WellModel"
	TypeStep     = "StepModel"
	TypeTrend    = "LinearTrend"
	TypeTarso    = "TarsoModel"
)

// Description is the persisted form of a unit: its type, the names of the
// series it binds and the settings needed to rebuild it. Series data and
// parameter values are stored elsewhere.
type Description struct {
	Name       string           `yaml:"name"`
	Type       string           `yaml:"type"`
	Stresses   []string         `yaml:"stresses,omitempty"`
	Rfunc      string           `yaml:"rfunc,omitempty"`
	Direction  string           `yaml:"direction,omitempty"`
	MeanStress float64          `yaml:"mean_stress,omitempty"`
	Cutoff     float64          `yaml:"cutoff,omitempty"`
	MaxTmax    float64          `yaml:"max_tmax,omitempty"`
	Recharge   *recharge.Config `yaml:"recharge,omitempty"`
	Distances  []float64        `yaml:"distances,omitempty"`
	Tstart     time.Time        `yaml:"tstart,omitempty"`
	Tend       time.Time        `yaml:"tend,omitempty"`
	Dmin       float64          `yaml:"dmin,omitempty"`
	Dmax       float64          `yaml:"dmax,omitempty"`
}

func describeFunc(f rfunc.Family) Description {
	s := f.Settings()
	return Description{
		Rfunc:      f.Name(),
		Direction:  s.Direction.String(),
		MeanStress: s.MeanStress,
		Cutoff:     s.Cutoff,
		MaxTmax:    s.MaxTmax,
	}
}

func (d Description) family() (rfunc.Family, error) {
	dir, err := rfunc.ParseDirection(d.Direction)
	if err != nil {
		return nil, err
	}
	return rfunc.New(d.Rfunc, rfunc.Settings{Direction: dir, MeanStress: d.MeanStress, Cutoff: d.Cutoff, MaxTmax: d.MaxTmax})
}

// Build rebuilds a unit from its description, looking up series by name.
func Build(d Description, series map[string]*forcing.Series, opts ...Option) (StressModel, error) {
	ss := make([]*forcing.Series, len(d.Stresses))
	for i, n := range d.Stresses {
		s, ok := series[n]
		if !ok {
			return nil, eris.Wrapf(ErrStress, "stressmodel: %s needs series %q", d.Name, n)
		}
		ss[i] = s
	}
	need := func(n int) error {
		if len(ss) != n {
			return eris.Wrapf(ErrStress, "stressmodel: %s wants %d series, has %d", d.Name, n, len(ss))
		}
		return nil
	}

	switch d.Type {
	case TypeStress:
		f, err := d.family()
		if err != nil {
			return nil, err
		}
		if err := need(1); err != nil {
			return nil, err
		}
		return NewSingle(d.Name, ss[0], f, opts...)
	case TypeRecharge:
		f, err := d.family()
		if err != nil {
			return nil, err
		}
		if err := need(2); err != nil {
			return nil, err
		}
		var rm recharge.Model = recharge.Linear{}
		if d.Recharge != nil {
			if rm, err = recharge.New(*d.Recharge); err != nil {
				return nil, err
			}
		}
		return NewRecharge(d.Name, ss[0], ss[1], f, rm, opts...)
	case TypeWell:
		f, err := d.family()
		if err != nil {
			return nil, err
		}
		return NewWell(d.Name, ss, d.Distances, f, opts...)
	case TypeStep:
		f, err := d.family()
		if err != nil {
			return nil, err
		}
		return NewStep(d.Name, d.Tstart, f)
	case TypeTrend:
		return NewLinearTrend(d.Name, d.Tstart, d.Tend)
	case TypeTarso:
		if err := need(2); err != nil {
			return nil, err
		}
		return NewTarso(d.Name, ss[0], ss[1], d.Dmin, d.Dmax, opts...)
	}
	return nil, eris.Wrapf(ErrType, "stressmodel: %q", d.Type)
}
