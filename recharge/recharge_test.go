package recharge

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

func initials(m Model) []float64 {
	ps := m.Params()
	o := make([]float64, len(ps))
	for i, p := range ps {
		o[i] = p.Initial
	}
	return o
}

// a deterministic wet/dry pattern in mm/d
func forcing(n int) (prec, evap []float64) {
	prec, evap = make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		if i%7 < 2 {
			prec[i] = 12 + float64(i%5)
		}
		evap[i] = 2 + 1.5*math.Sin(2*math.Pi*float64(i)/365)
	}
	return
}

func TestReservoirOverflow(t *testing.T) {
	r := res{sto: 5, cap: 10}
	assert.Equal(t, 0., r.overflow(3))
	assert.Equal(t, 2., r.overflow(4))
	assert.Equal(t, 10., r.sto)
	assert.Equal(t, -5., r.overflow(-15))
	assert.Equal(t, 0., r.sto)
}

func TestLinear(t *testing.T) {
	o := Linear{}.Simulate([]float64{3, 0, 5}, []float64{1, 2, 1}, []float64{0.8}, 1)
	assert.InDeltaSlice(t, []float64{2.2, -1.6, 4.2}, o, 1e-12)
}

func TestFlexZeroForcing(t *testing.T) {
	m := &FlexModel{}
	p := initials(m)
	o := m.Simulate(make([]float64, 30), make([]float64, 30), p, 1)
	assert.Equal(t, make([]float64, 30), o)
}

func TestFlexWaterBalanceAndBounds(t *testing.T) {
	for _, m := range []*FlexModel{NewFlexModel(), {InitialFraction: 0}, {Interception: true, InitialFraction: 1}} {
		prec, evap := forcing(800)
		p := initials(m)
		b := m.Fluxes(prec, evap, p, 1)
		assert.Less(t, b.Error, 1e-9)
		for i := range prec {
			assert.GreaterOrEqual(t, b.Sr[i], 0.)
			assert.LessOrEqual(t, b.Sr[i], p[0])
			assert.GreaterOrEqual(t, b.Recharge[i], 0.)
			if m.Interception {
				assert.LessOrEqual(t, b.Si[i], p[5])
			}
		}
		assert.Greater(t, floats.Sum(b.Recharge), 0.)
	}
}

func TestFlexDeterministic(t *testing.T) {
	m := NewFlexModel()
	prec, evap := forcing(400)
	p := initials(m)
	assert.Equal(t, m.Simulate(prec, evap, p, 1), m.Simulate(prec, evap, p, 1))
}

func TestFlexPreferentialFlow(t *testing.T) {
	m := &FlexModel{InitialFraction: 1}
	p := initials(m)
	p[0], p[2] = 10, 1 // small, slow root zone
	b := m.Fluxes([]float64{50}, []float64{0}, p, 1)
	assert.InDelta(t, 49., b.Pref[0], 1e-9)
	assert.InDelta(t, 50., b.Recharge[0], 1e-9)
	assert.Equal(t, 10., b.Sr[0])
}

func TestFlexGapHoldsState(t *testing.T) {
	m := NewFlexModel()
	p := initials(m)
	prec := []float64{math.NaN(), 10, math.NaN(), 10}
	evap := []float64{1, 1, 1, 1}
	b := m.Fluxes(prec, evap, p, 1)
	assert.True(t, math.IsNaN(b.Recharge[0]))
	assert.False(t, math.IsNaN(b.Recharge[1]))
	assert.True(t, math.IsNaN(b.Recharge[2]))
	assert.Equal(t, b.Sr[1], b.Sr[2])
	assert.False(t, math.IsNaN(b.Recharge[3]))
}

func TestNewDescribe(t *testing.T) {
	for _, m := range []Model{Linear{}, NewFlexModel(), &FlexModel{}} {
		c := Describe(m)
		mm, err := New(c)
		require.NoError(t, err)
		assert.Equal(t, m, mm)
	}
	_, err := New(Config{Name: "Berendrecht"})
	assert.True(t, errors.Is(err, ErrUnknown))
}

func TestNewFlexDefaults(t *testing.T) {
	m, err := New(Config{Name: "FlexModel"})
	require.NoError(t, err)
	assert.Equal(t, NewFlexModel(), m)

	off := false
	m, err = New(Config{Name: "FlexModel", Interception: &off})
	require.NoError(t, err)
	assert.Equal(t, &FlexModel{Interception: false, InitialFraction: 0.5}, m)
}

func TestConfigYAML(t *testing.T) {
	var c Config
	require.NoError(t, yaml.Unmarshal([]byte("name: FlexModel\ninitial_fraction: 0.2\n"), &c))
	m, err := New(c)
	require.NoError(t, err)
	assert.Equal(t, &FlexModel{Interception: true, InitialFraction: 0.2}, m)
}
