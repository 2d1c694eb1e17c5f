package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/model"
	"github.com/darigovresearch/pastas/opt"
	"github.com/darigovresearch/pastas/stressmodel"
)

func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "24h", cfg.Model.Freq)
	assert.InDelta(t, 3650, cfg.Model.WarmupDays, 0)
	assert.InDelta(t, 0.999, cfg.Model.Cutoff, 0)
	assert.Equal(t, "interpolate", cfg.Model.Interpolation)
	assert.Equal(t, "least_squares", cfg.Solver.Method)
	assert.True(t, cfg.Solver.Noise)
	assert.Equal(t, 500, cfg.MonteCarlo.Samples)
	assert.Equal(t, uint64(1), cfg.MonteCarlo.Seed)
	assert.InDelta(t, 0.05, cfg.MonteCarlo.Alpha, 0)
	assert.Empty(t, cfg.Store.Path)

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), s)

	rs, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, forcing.DefaultRules(), rs)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdir(t)

	yaml := `
log:
  level: debug
  format: json
model:
  freq: 12h
  warmup_days: 365
  interpolation: nearest
forcing:
  prec:
    fill_nan: mean
    fill_before: zero
solver:
  method: nelder_mead
  max_iterations: 400
store:
  path: fits.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tfn.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "fits.db", cfg.Store.Path)
	// Defaults still apply for unset values
	assert.Equal(t, 500, cfg.MonteCarlo.Samples)

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, s.Freq)
	assert.Equal(t, 365*24*time.Hour, s.Warmup)
	assert.Equal(t, model.Nearest, s.Policy)

	rs, err := cfg.Rules()
	require.NoError(t, err)
	prec := rs[forcing.Precipitation]
	assert.Equal(t, forcing.FillMean, prec.FillNaN)
	assert.Equal(t, forcing.FillZero, prec.FillBefore)
	assert.Equal(t, forcing.UpBackfill, prec.SampleUp)
	assert.Equal(t, forcing.DefaultRules()[forcing.Evaporation], rs[forcing.Evaporation])

	mz, err := cfg.Minimizer()
	require.NoError(t, err)
	assert.Equal(t, opt.NelderMead{MaxEvaluations: 400, Ftol: 1e-8}, mz)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(fp, []byte("monte_carlo:\n  samples: 50\n"), 0644))

	cfg, err := Load(fp)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MonteCarlo.Samples)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tfn.yaml"), []byte("solver:\n  method: nelder_mead\n"), 0644))
	t.Setenv("TFN_SOLVER_METHOD", "least_squares")
	t.Setenv("TFN_MONTE_CARLO_WORKERS", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "least_squares", cfg.Solver.Method)
	assert.Equal(t, 3, cfg.MonteCarlo.Workers)

	mz, err := cfg.Minimizer()
	require.NoError(t, err)
	assert.IsType(t, opt.LeastSquares{}, mz)
}

func TestConvertersRejectBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		call func(c *Config) error
	}{
		{"freq", Config{Model: ModelConfig{Freq: "daily"}}, func(c *Config) error { _, err := c.Settings(); return err }},
		{"policy", Config{Model: ModelConfig{Interpolation: "spline"}}, func(c *Config) error { _, err := c.Settings(); return err }},
		{"kind", Config{Forcing: map[string]RuleConfig{"snow": {}}}, func(c *Config) error { _, err := c.Rules(); return err }},
		{"fill", Config{Forcing: map[string]RuleConfig{"prec": {FillNaN: "guess"}}}, func(c *Config) error { _, err := c.Rules(); return err }},
		{"boundary", Config{Forcing: map[string]RuleConfig{"evap": {FillAfter: "interpolate"}}}, func(c *Config) error { _, err := c.Rules(); return err }},
		{"method", Config{Solver: SolverConfig{Method: "bfgs"}}, func(c *Config) error { _, err := c.Minimizer(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.call(&tt.cfg))
		})
	}
}

func TestModelOptions(t *testing.T) {
	chdir(t)
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Forcing = map[string]RuleConfig{"well": {FillNaN: "previous"}}
	opts, err := cfg.ModelOptions()
	require.NoError(t, err)

	tt := []time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)}
	obs, err := forcing.New("head", forcing.Level, tt, []float64{1, 2})
	require.NoError(t, err)
	m, err := model.New("m", obs, opts...)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), m.Settings())
}

func TestFillDefinition(t *testing.T) {
	cfg := Config{Model: ModelConfig{Freq: "12h", WarmupDays: 100, Cutoff: 0.99, Interpolation: "exact"}}
	d := model.Definition{
		Settings: model.SettingsDef{Warmup: "240h"},
		StressModels: []stressmodel.Description{
			{Name: "rain", Type: stressmodel.TypeStress, Rfunc: "Gamma"},
			{Name: "pump", Type: stressmodel.TypeStress, Rfunc: "Exponential", Cutoff: 0.95},
			{Name: "trend", Type: stressmodel.TypeTrend},
		},
	}
	require.NoError(t, cfg.FillDefinition(&d))
	assert.Equal(t, "12h0m0s", d.Settings.Freq)
	assert.Equal(t, "240h", d.Settings.Warmup)
	assert.Equal(t, "exact", d.Settings.Interpolation)
	assert.InDelta(t, 0.99, d.StressModels[0].Cutoff, 0)
	assert.InDelta(t, 0.95, d.StressModels[1].Cutoff, 0)
	assert.Zero(t, d.StressModels[2].Cutoff)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
