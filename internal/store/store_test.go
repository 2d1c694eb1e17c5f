package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/model"
	"github.com/darigovresearch/pastas/opt"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/stats"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "fits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var t0 = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

func record(name string) FitRecord {
	sim := forcing.FromGrid("Simulation", forcing.Level, forcing.NewGrid(t0, t0.AddDate(0, 0, 3), 24*time.Hour), []float64{1, 2, math.NaN(), 4})
	return FitRecord{
		Model:  name,
		Tmin:   t0,
		Tmax:   t0.AddDate(0, 0, 3),
		Noise:  true,
		Cost:   1.5,
		Status: "gradient below tolerance",
		Stats:  stats.Summary{N: 4, RMSE: 0.5, NSE: 0.9, KGE: math.NaN()},
		Parameters: []param.Parameter{
			{Key: param.Key{Unit: "rain", Role: "A"}, Initial: 1, PMin: 1e-5, PMax: 100, Vary: true, Optimal: 2, Stderr: 0.1},
			{Key: param.Key{Unit: "constant", Role: "d"}, Initial: 5, PMin: math.NaN(), PMax: math.NaN(), Vary: false, Optimal: 5, Stderr: math.NaN()},
		},
		Simulation: sim,
	}
}

func TestSaveAndQuery(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in := record("well1")
	id, err := st.SaveFit(ctx, in)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	fits, err := st.Fits(ctx, "well1")
	require.NoError(t, err)
	require.Len(t, fits, 1)
	got := fits[0]
	assert.Equal(t, id, got.ID)
	assert.True(t, got.Tmin.Equal(in.Tmin))
	assert.True(t, got.Tmax.Equal(in.Tmax))
	assert.True(t, got.Noise)
	assert.InDelta(t, 1.5, got.Cost, 0)
	assert.Equal(t, in.Status, got.Status)
	assert.Equal(t, 4, got.Stats.N)
	assert.InDelta(t, 0.9, got.Stats.NSE, 0)
	assert.True(t, math.IsNaN(got.Stats.KGE))
	assert.False(t, got.CreatedAt.IsZero())

	ps, err := st.Parameters(ctx, id)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "rain_A", ps[0].Name())
	assert.Equal(t, in.Parameters[0], ps[0])
	assert.Equal(t, "constant_d", ps[1].Name())
	assert.False(t, ps[1].Vary)
	assert.True(t, math.IsNaN(ps[1].PMin))
	assert.True(t, math.IsNaN(ps[1].Stderr))

	s, err := st.Series(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Simulation", s.Name)
	assert.Equal(t, forcing.Level, s.Kind)
	require.Equal(t, 4, s.Len())
	for i := range s.T {
		assert.True(t, s.T[i].Equal(in.Simulation.T[i]))
	}
	assert.Equal(t, []float64{1, 2}, s.V[:2])
	assert.True(t, math.IsNaN(s.V[2]))
	assert.InDelta(t, 4, s.V[3], 0)
}

func TestFitsByModel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "a"} {
		_, err := st.SaveFit(ctx, record(name))
		require.NoError(t, err)
	}
	fits, err := st.Fits(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, fits, 2)

	fits, err = st.Fits(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, fits)
}

func TestNotFound(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Parameters(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Series(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIrregularSeriesRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	r := record("irregular")
	s, err := forcing.New("Simulation", forcing.Level, []time.Time{t0, t0.AddDate(0, 0, 1), t0.AddDate(0, 0, 3)}, []float64{1, 2, 3})
	require.NoError(t, err)
	r.Simulation = s
	_, err = st.SaveFit(ctx, r)
	require.Error(t, err)

	fits, err := st.Fits(ctx, "irregular")
	require.NoError(t, err)
	assert.Empty(t, fits)
}

func TestPackFloats(t *testing.T) {
	in := []float64{0, -1.5, math.Inf(1), 1e-300}
	b, err := packFloats(in)
	require.NoError(t, err)
	assert.Len(t, b, 32)
	out, err := unpackFloats(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = unpackFloats(b[:5])
	assert.Error(t, err)
}

func TestNewRecord(t *testing.T) {
	var tt []time.Time
	var v []float64
	for i := 0; i < 30; i++ {
		tt = append(tt, t0.AddDate(0, 0, i))
		v = append(v, 10+float64(i%3))
	}
	obs, err := forcing.New("head", forcing.Level, tt, v)
	require.NoError(t, err)
	m, err := model.New("flat", obs, model.WithSettings(model.Settings{Warmup: 0}))
	require.NoError(t, err)

	fit, err := opt.Solve(context.Background(), m)
	require.NoError(t, err)
	r, err := NewRecord(fit)
	require.NoError(t, err)

	assert.Equal(t, "flat", r.Model)
	assert.Equal(t, 30, r.Stats.N)
	require.Len(t, r.Parameters, 1)
	assert.InDelta(t, 11, r.Parameters[0].Optimal, 1e-6)
	assert.Equal(t, 30, r.Simulation.Len())

	st := newTestStore(t)
	id, err := st.SaveFit(context.Background(), r)
	require.NoError(t, err)
	s, err := st.Series(context.Background(), id)
	require.NoError(t, err)
	assert.InDelta(t, 11, s.V[0], 1e-6)
}
