package main

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/model"
	"github.com/darigovresearch/pastas/rfunc"
	"github.com/darigovresearch/pastas/stressmodel"
)

func TestParseSeriesFlag(t *testing.T) {
	tests := []struct {
		in   string
		name string
		fp   string
		kind forcing.Kind
		err  bool
	}{
		{"prec=data/rain.csv:prec", "prec", "data/rain.csv", forcing.Precipitation, false},
		{"head=head.csv", "head", "head.csv", forcing.Unconstrained, false},
		{"h=C:/data/head.csv:level", "h", "C:/data/head.csv", forcing.Level, false},
		{"h=C:/data/head.csv", "h", "C:/data/head.csv", forcing.Unconstrained, false},
		{"head.csv", "", "", 0, true},
		{"=head.csv", "", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, fp, kind, err := parseSeriesFlag(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.fp, fp)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestParseWindow(t *testing.T) {
	t0, t1, err := parseWindow("2001-02-03", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC), t0)
	assert.True(t, t1.IsZero())

	_, _, err = parseWindow("", "03/02/2001")
	assert.Error(t, err)
}

func writeSeries(t *testing.T, fp string, s *forcing.Series) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, s.WriteCSV(&buf))
	require.NoError(t, os.WriteFile(fp, buf.Bytes(), 0644))
}

// project writes a configuration, a model definition and the series of a
// synthetic exponential response to rain into dir.
func project(t *testing.T, dir string) {
	t.Helper()
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	tt, vv := make([]time.Time, 4*365), make([]float64, 4*365)
	for i := range tt {
		tt[i] = start.AddDate(0, 0, i)
		vv[i] = math.Max(0, 3*math.Sin(float64(i)/11)+2*math.Cos(float64(i)/3))
	}
	prec, err := forcing.New("prec", forcing.Precipitation, tt, vv)
	require.NoError(t, err)

	tobs := start.AddDate(2, 0, 0)
	placeholder, err := forcing.New("head", forcing.Level, []time.Time{tobs, tobs.AddDate(1, 0, 0)}, []float64{0, 0})
	require.NoError(t, err)
	m, err := model.New("synthetic", placeholder, model.WithSettings(model.Settings{Warmup: 0}))
	require.NoError(t, err)
	sm, err := stressmodel.NewSingle("rain", prec, rfunc.NewExponential(rfunc.Settings{}))
	require.NoError(t, err)
	require.NoError(t, m.Add(sm))
	head, err := m.Simulate([]float64{2, 10, 5}, tobs, tobs.AddDate(1, 0, 0))
	require.NoError(t, err)
	head.Name = "head"
	for i := range head.V {
		head.V[i] += 0.005 * math.Sin(7.3*float64(i))
	}

	require.NoError(t, m.SetInitial("rain_A", 1.8))
	require.NoError(t, m.SetInitial("rain_a", 11))
	require.NoError(t, m.Save(filepath.Join(dir, "model.yaml")))
	writeSeries(t, filepath.Join(dir, "prec.csv"), prec)
	writeSeries(t, filepath.Join(dir, "head.csv"), head)

	conf := "log:\n  level: error\nsolver:\n  noise: false\nstore:\n  path: " + filepath.Join(dir, "fits.db") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tfn.yaml"), []byte(conf), 0644))
}

func readTable(t *testing.T, fp string) [][]string {
	t.Helper()
	f, err := os.Open(fp)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func atof(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestSolveSimulateFits(t *testing.T) {
	dir := t.TempDir()
	project(t, dir)
	conf := filepath.Join(dir, "tfn.yaml")
	def := filepath.Join(dir, "model.yaml")
	series := []string{"--series", "prec=" + filepath.Join(dir, "prec.csv") + ":prec", "--series", "head=" + filepath.Join(dir, "head.csv") + ":level"}
	solved := filepath.Join(dir, "solved.yaml")

	bands := filepath.Join(dir, "bands.csv")
	metrics := filepath.Join(dir, "metrics.prom")
	out := execute(t, append([]string{"solve", def, "--config", conf, "--out", solved, "--ci", "--bands", bands, "--metrics", metrics}, series...)...)
	assert.Contains(t, out, "rain_A")
	assert.Contains(t, out, "constant_d")
	assert.Contains(t, out, "EVP")
	assert.Contains(t, out, "archived as ")

	d, err := model.LoadDefinition(solved)
	require.NoError(t, err)
	require.Len(t, d.Parameters, 3)
	assert.InDelta(t, 2, d.Parameters[0].Optimal, 2e-2)
	assert.InDelta(t, 10, d.Parameters[1].Optimal, 0.2)
	assert.InDelta(t, 5, d.Parameters[2].Optimal, 2e-2)

	rows := readTable(t, bands)
	require.Len(t, rows, 367)
	assert.Equal(t, []string{"time", "Simulation", "Simulation_lower", "Simulation_upper"}, rows[0])
	for _, r := range rows[1:] {
		v, lo, hi := atof(t, r[1]), atof(t, r[2]), atof(t, r[3])
		assert.LessOrEqual(t, lo, hi)
		assert.InDelta(t, v, (lo+hi)/2, 0.1)
	}

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `tfn_solves_total{model="synthetic",status="success"} 1`)
	assert.Contains(t, string(prom), "tfn_monte_carlo_samples_total")

	csv := filepath.Join(dir, "sim.csv")
	execute(t, append([]string{"simulate", solved, "--config", conf, "--out", csv}, series...)...)
	sim, err := forcing.LoadCSV(csv, "Simulation", forcing.Level)
	require.NoError(t, err)
	assert.Equal(t, 366, sim.Len())

	out = execute(t, "fits", "synthetic", "--config", conf)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "false")
}

func TestLoadSeriesLogsSummary(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))

	dir := t.TempDir()
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := forcing.New("prec", forcing.Precipitation, []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)}, []float64{1, math.NaN(), 3})
	require.NoError(t, err)
	fp := filepath.Join(dir, "prec.csv")
	writeSeries(t, fp, s)

	ss, err := loadSeries([]string{"rain=" + fp + ":prec"})
	require.NoError(t, err)
	require.Contains(t, ss, "rain")

	entries := logs.FilterMessage("series loaded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "rain", fields["series"])
	assert.Equal(t, "prec", fields["kind"])
	assert.Equal(t, int64(3), fields["n"])
	assert.Equal(t, int64(1), fields["missing"])
	assert.InDelta(t, 2., fields["mean"], 1e-12)
}
