package stressmodel

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/recharge"
	"github.com/darigovresearch/pastas/rfunc"
)

var t0 = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func constant(name string, kind forcing.Kind, n int, v float64) *forcing.Series {
	ts, vs := make([]time.Time, n), make([]float64, n)
	for i := range ts {
		ts[i] = t0.AddDate(0, 0, i)
		vs[i] = v
	}
	s, _ := forcing.New(name, kind, ts, vs)
	return s
}

func pattern(name string, kind forcing.Kind, n int) *forcing.Series {
	ts, vs := make([]time.Time, n), make([]float64, n)
	for i := range ts {
		ts[i] = t0.AddDate(0, 0, i)
		vs[i] = 1 + math.Sin(float64(i)/9) + float64(i%4)
	}
	s, _ := forcing.New(name, kind, ts, vs)
	return s
}

func grid(n int) forcing.Grid { return forcing.Grid{Start: t0, Step: 24 * time.Hour, N: n} }

func TestConvolve(t *testing.T) {
	assert.Equal(t, []float64{1, 3, 5, 5}, Convolve([]float64{1, 2, 3, 2}, []float64{1, 1}))
	assert.Equal(t, []float64{2, 4}, Convolve([]float64{1, 2}, []float64{2, 1, 1}))
}

func TestSingleUnitStep(t *testing.T) {
	s := constant("stress", forcing.Unconstrained, 200, 1)
	m, err := NewSingle("stress", s, rfunc.NewExponential(rfunc.Settings{}))
	require.NoError(t, err)

	o, err := m.Simulate([]float64{2, 10}, grid(200))
	require.NoError(t, err)
	assert.Less(t, o[68], 1.998)
	assert.GreaterOrEqual(t, o[69], 1.998)
	assert.InDelta(t, 2., o[150], 2e-3)
	assert.Equal(t, 70, m.Horizon([]float64{2, 10}, 1))

	g, err := m.Gain([]float64{2, 10})
	require.NoError(t, err)
	assert.Equal(t, 2., g)
}

func TestSingleGapPropagates(t *testing.T) {
	s := constant("stress", forcing.Unconstrained, 100, 1)
	s.V[40] = math.NaN()
	rules := forcing.DefaultRules()
	r := rules[forcing.Unconstrained]
	r.FillNaN = forcing.FillNone
	rules[forcing.Unconstrained] = r

	m, err := NewSingle("stress", s, rfunc.NewExponential(rfunc.Settings{}), WithRules(rules))
	require.NoError(t, err)
	p := []float64{1, 2}
	L := m.Horizon(p, 1)
	o, err := m.Simulate(p, grid(100))
	require.NoError(t, err)
	assert.False(t, math.IsNaN(o[39]))
	for i := 40; i < 40+L; i++ {
		assert.True(t, math.IsNaN(o[i]), "index %d", i)
	}
	assert.False(t, math.IsNaN(o[40+L]))
}

func TestSingleRejectsScaledFamily(t *testing.T) {
	s := constant("well", forcing.Well, 10, 1)
	_, err := NewSingle("well", s, rfunc.NewHantushWellModel(rfunc.Settings{}))
	assert.True(t, errors.Is(err, ErrFamily))
	_, err = NewSingle("", s, rfunc.NewExponential(rfunc.Settings{}))
	assert.True(t, errors.Is(err, ErrName))
}

func TestBindRejectsUnsortedStress(t *testing.T) {
	s := &forcing.Series{Name: "stress", Kind: forcing.Unconstrained, T: []time.Time{t0.AddDate(0, 0, 3), t0}, V: []float64{1, 2}}
	_, err := NewSingle("stress", s, rfunc.NewExponential(rfunc.Settings{}))
	assert.True(t, errors.Is(err, forcing.ErrUnsorted))

	evap := constant("evap", forcing.Evaporation, 10, 0.5)
	_, err = NewRecharge("recharge", s, evap, rfunc.NewGamma(rfunc.Settings{}), nil)
	assert.True(t, errors.Is(err, forcing.ErrUnsorted))
}

func TestRechargeLinear(t *testing.T) {
	prec := pattern("prec", forcing.Precipitation, 300)
	evap := constant("evap", forcing.Evaporation, 300, 0.5)
	f := rfunc.NewGamma(rfunc.Settings{})
	m, err := NewRecharge("recharge", prec, evap, f, nil)
	require.NoError(t, err)
	assert.Len(t, m.Params(), 4)

	p := []float64{0.3, 1.5, 20, 0.8}
	g := grid(300)
	o, err := m.Simulate(p, g)
	require.NoError(t, err)

	r := make([]float64, 300)
	for i := range r {
		r[i] = prec.V[i] - 0.8*0.5
	}
	assert.InDeltaSlice(t, r, m.Flux(p, g), 1e-12)
	b, err := rfunc.Block(f, p[:3], 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, Convolve(r, b), o, 1e-12)
	assert.Nil(t, m.Balance(p, g))
}

func TestRechargeFlex(t *testing.T) {
	prec := pattern("prec", forcing.Precipitation, 300)
	evap := constant("evap", forcing.Evaporation, 300, 2)
	m, err := NewRecharge("recharge", prec, evap, rfunc.NewExponential(rfunc.Settings{}), recharge.NewFlexModel())
	require.NoError(t, err)
	ps := m.Params()
	p := make([]float64, len(ps))
	for i, s := range ps {
		p[i] = s.Initial
	}
	bal := m.Balance(p, grid(300))
	require.NotNil(t, bal)
	assert.Less(t, bal.Error, 1e-9)
	assert.Equal(t, bal.Recharge, m.Flux(p, grid(300)))
}

func TestWell(t *testing.T) {
	near := constant("near", forcing.Well, 400, 1)
	far := constant("far", forcing.Well, 400, 1)
	f := rfunc.NewHantushWellModel(rfunc.Settings{Direction: rfunc.Decreasing})

	m, err := NewWellAt("wells", []*forcing.Series{far, near}, geom.Coord{0, 0}, []geom.Coord{{600, 800}, {3, 4}}, f)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1000}, m.Distances())
	assert.Equal(t, "near", m.Stresses()[0].Name)

	p := []float64{-1, 10, 1e-6}
	o, err := m.Simulate(p, grid(400))
	require.NoError(t, err)
	g1, err := rfunc.Gain(f, p, 5)
	require.NoError(t, err)
	g2, err := rfunc.Gain(f, p, 1000)
	require.NoError(t, err)
	assert.InDelta(t, g1+g2, o[399], 1e-3*math.Abs(g1+g2))

	s1, err := m.StepResponseAt(p, 1, 1)
	require.NoError(t, err)
	s0, err := m.StepResponse(p, 1)
	require.NoError(t, err)
	assert.Less(t, math.Abs(s1[len(s1)-1]), math.Abs(s0[len(s0)-1]))

	var b float64
	for _, s := range m.Params() {
		if s.Role == "b" {
			b = s.Initial
		}
	}
	assert.InDelta(t, 1/(4*502.5*502.5), b, 1e-15)
}

func TestWellErrors(t *testing.T) {
	s := constant("w", forcing.Well, 10, 1)
	f := rfunc.NewHantushWellModel(rfunc.Settings{})
	_, err := NewWell("w", []*forcing.Series{s}, []float64{0}, f)
	assert.True(t, errors.Is(err, ErrDistance))
	_, err = NewWell("w", []*forcing.Series{s}, []float64{1, 2}, f)
	assert.True(t, errors.Is(err, ErrDistance))
	_, err = NewWell("w", []*forcing.Series{s}, []float64{10}, rfunc.NewExponential(rfunc.Settings{}))
	assert.True(t, errors.Is(err, ErrFamily))
	_, err = NewWell("w", nil, nil, f)
	assert.True(t, errors.Is(err, ErrStress))
}

func TestStepAndTrend(t *testing.T) {
	ts := t0.AddDate(0, 0, 10)
	st, err := NewStep("step", ts, nil)
	require.NoError(t, err)
	p := []float64{0.5, forcing.EpochDays(ts)}
	o, err := st.Simulate(p, grid(20))
	require.NoError(t, err)
	assert.Equal(t, 0., o[9])
	assert.Equal(t, 0.5, o[10])
	assert.Equal(t, 0.5, o[19])

	tr, err := NewLinearTrend("trend", t0.AddDate(0, 0, 5), t0.AddDate(0, 0, 10))
	require.NoError(t, err)
	ps := tr.Params()
	o, err = tr.Simulate([]float64{2, ps[1].Initial, ps[2].Initial}, grid(15))
	require.NoError(t, err)
	assert.Equal(t, 0., o[3])
	assert.Equal(t, 4., o[7])
	assert.Equal(t, 10., o[14])

	_, err = NewLinearTrend("trend", t0, t0)
	assert.Error(t, err)
}

func TestTarsoRegimes(t *testing.T) {
	p := []float64{1, 10, 0, 0.5, 5, 10, 0}
	evap := constant("evap", forcing.Evaporation, 200, 1)

	low, err := NewTarso("tarso", constant("prec", forcing.Precipitation, 200, 5), evap, 0, 20)
	require.NoError(t, err)
	o, err := low.Simulate(p, grid(200))
	require.NoError(t, err)
	assert.InDelta(t, 5, o[199], 1e-6)

	high, err := NewTarso("tarso", constant("prec", forcing.Precipitation, 200, 20), evap, 0, 20)
	require.NoError(t, err)
	o, err = high.Simulate(p, grid(200))
	require.NoError(t, err)
	assert.InDelta(t, 20*(1-math.Exp(-0.1)), o[0], 1e-12)
	assert.InDelta(t, 15, o[199], 1e-6)
	for i := 1; i < len(o); i++ {
		assert.GreaterOrEqual(t, o[i], o[i-1])
	}
	assert.Equal(t, 70, high.Horizon(p, 1))
}

func TestTarsoThresholdSplit(t *testing.T) {
	// one step that crosses d1 lands where the two exact solutions meet
	p := []float64{1, 10, 0, 0.5, 5, 1, 0}
	o := tarso(p, []float64{20}, []float64{0}, 1)
	tc := 10 * math.Log(20./19.)
	hq := 1 + 0.5*(20-1)
	assert.InDelta(t, hq+(1-hq)*math.Exp(-(1-tc)/5), o[0], 1e-12)
}

func TestDescribeBuild(t *testing.T) {
	prec := pattern("prec", forcing.Precipitation, 100)
	evap := constant("evap", forcing.Evaporation, 100, 1)
	well := constant("well", forcing.Well, 100, 2)
	series := map[string]*forcing.Series{"prec": prec, "evap": evap, "well": well}

	single, _ := NewSingle("river", prec, rfunc.NewPolder(rfunc.Settings{Direction: rfunc.Either}))
	rch, _ := NewRecharge("recharge", prec, evap, rfunc.NewExponential(rfunc.Settings{MeanStress: 2}), recharge.NewFlexModel())
	wm, _ := NewWell("wells", []*forcing.Series{well}, []float64{100}, rfunc.NewHantushWellModel(rfunc.Settings{Direction: rfunc.Decreasing}))
	st, _ := NewStep("step", t0.AddDate(0, 0, 50), rfunc.NewExponential(rfunc.Settings{}))
	tr, _ := NewLinearTrend("trend", t0, t0.AddDate(0, 0, 60))
	ta, _ := NewTarso("tarso", prec, evap, 0, 3)

	for _, m := range []StressModel{single, rch, wm, st, tr, ta} {
		t.Run(m.Name(), func(t *testing.T) {
			d := m.Describe()
			back, err := Build(d, series)
			require.NoError(t, err)
			assert.Equal(t, d, back.Describe())
			assert.Equal(t, m.Params(), back.Params())

			ps := m.Params()
			p := make([]float64, len(ps))
			for i, s := range ps {
				p[i] = s.Initial
			}
			o1, err := m.Simulate(p, grid(100))
			require.NoError(t, err)
			o2, err := back.Simulate(p, grid(100))
			require.NoError(t, err)
			assert.Equal(t, o1, o2)
		})
	}

	_, err := Build(Description{Name: "x", Type: TypeStress, Stresses: []string{"nope"}}, series)
	assert.True(t, errors.Is(err, ErrStress))
	_, err = Build(Description{Name: "x", Type: "Kalman"}, series)
	assert.True(t, errors.Is(err, ErrType))
}

func TestParallelSimulate(t *testing.T) {
	prec := pattern("prec", forcing.Precipitation, 365)
	m, err := NewSingle("prec", prec, rfunc.NewGamma(rfunc.Settings{}))
	require.NoError(t, err)
	want, err := m.Simulate([]float64{1, 2, 10}, grid(365))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for k := 0; k < 8; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			n := 365 - k%2
			o, err := m.Simulate([]float64{1, 2, 10}, grid(n))
			assert.NoError(t, err)
			assert.Equal(t, want[:n], o)
		}(k)
	}
	wg.Wait()
}

func TestSingleLinearity(t *testing.T) {
	s := pattern("stress", forcing.Unconstrained, 300)
	p := []float64{1.5, 2, 20}
	base, err := NewSingle("stress", s, rfunc.NewGamma(rfunc.Settings{}))
	require.NoError(t, err)
	want, err := base.Simulate(p, grid(300))
	require.NoError(t, err)

	for _, k := range []float64{-3, 0, 0.5, 7} {
		m, err := NewSingle("stress", s.Scaled(k), rfunc.NewGamma(rfunc.Settings{}))
		require.NoError(t, err)
		got, err := m.Simulate(p, grid(300))
		require.NoError(t, err)
		for i := range got {
			assert.InDelta(t, k*want[i], got[i], 1e-9*(1+math.Abs(k*want[i])))
		}
	}
}
