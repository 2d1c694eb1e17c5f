package model

import (
	"github.com/rotisserie/eris"

	"github.com/darigovresearch/pastas/param"
)

// Parameters returns a snapshot of the parameter table: units in insertion
// order, then the constant, then the noise model.
func (m *Model) Parameters() []param.Parameter {
	var o []param.Parameter
	for _, u := range m.units {
		o = append(o, u.params...)
	}
	if m.constant != nil {
		o = append(o, *m.constant)
	}
	if m.noise != nil {
		o = append(o, *m.noise)
	}
	return o
}

// NumParams is the length of a full parameter vector.
func (m *Model) NumParams() int {
	n := 0
	for _, u := range m.units {
		n += len(u.params)
	}
	if m.constant != nil {
		n++
	}
	if m.noise != nil {
		n++
	}
	return n
}

// rows returns pointers into the table in vector order.
func (m *Model) rows() []*param.Parameter {
	var o []*param.Parameter
	for _, u := range m.units {
		for i := range u.params {
			o = append(o, &u.params[i])
		}
	}
	if m.constant != nil {
		o = append(o, m.constant)
	}
	if m.noise != nil {
		o = append(o, m.noise)
	}
	return o
}

func (m *Model) row(name string) (*param.Parameter, error) {
	for _, p := range m.rows() {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "model: parameter %q", name)
}

// Parameter looks up one row by its reporting name.
func (m *Model) Parameter(name string) (param.Parameter, error) {
	p, err := m.row(name)
	if err != nil {
		return param.Parameter{}, err
	}
	return *p, nil
}

// Index is the position of the named parameter in a full vector.
func (m *Model) Index(name string) (int, error) {
	for i, p := range m.rows() {
		if p.Name() == name {
			return i, nil
		}
	}
	return -1, eris.Wrapf(ErrNotFound, "model: parameter %q", name)
}

func (m *Model) SetInitial(name string, v float64) error {
	p, err := m.row(name)
	if err != nil {
		return err
	}
	p.Initial = v
	return nil
}

func (m *Model) SetVary(name string, vary bool) error {
	p, err := m.row(name)
	if err != nil {
		return err
	}
	p.Vary = vary
	return nil
}

// SetBounds sets pmin and pmax; NaN leaves a side unbounded.
func (m *Model) SetBounds(name string, pmin, pmax float64) error {
	p, err := m.row(name)
	if err != nil {
		return err
	}
	if pmin > pmax {
		return eris.Errorf("model: %s bounds [%v, %v]", name, pmin, pmax)
	}
	p.PMin, p.PMax = pmin, pmax
	return nil
}

// SetSolution writes optimal values and standard errors for every row.
func (m *Model) SetSolution(optimal, stderr []float64) error {
	rs := m.rows()
	if len(optimal) != len(rs) || len(stderr) != len(rs) {
		return eris.Wrapf(ErrParams, "model: solution has %d values for %d parameters", len(optimal), len(rs))
	}
	for i, p := range rs {
		p.Optimal, p.Stderr = optimal[i], stderr[i]
	}
	return nil
}

// Values returns p when given, otherwise the current values of the table.
func (m *Model) Values(p []float64) ([]float64, error) {
	if p == nil {
		return param.Values(m.Parameters()), nil
	}
	if n := m.NumParams(); len(p) != n {
		return nil, eris.Wrapf(ErrParams, "model: %d values for %d parameters", len(p), n)
	}
	return p, nil
}

// split cuts a full vector into unit sub-vectors, the constant and alpha.
func (m *Model) split(p []float64) (units [][]float64, d, alpha float64) {
	k := 0
	units = make([][]float64, len(m.units))
	for i, u := range m.units {
		units[i] = p[k : k+len(u.params)]
		k += len(u.params)
	}
	if m.constant != nil {
		d = p[k]
		k++
	}
	if m.noise != nil {
		alpha = p[k]
	}
	return
}
