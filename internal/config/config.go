package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/model"
	"github.com/darigovresearch/pastas/opt"
)

// Config holds the full tfn configuration.
type Config struct {
	Log        LogConfig             `yaml:"log" mapstructure:"log"`
	Model      ModelConfig           `yaml:"model" mapstructure:"model"`
	Forcing    map[string]RuleConfig `yaml:"forcing" mapstructure:"forcing"`
	Solver     SolverConfig          `yaml:"solver" mapstructure:"solver"`
	MonteCarlo MonteCarloConfig      `yaml:"monte_carlo" mapstructure:"monte_carlo"`
	Store      StoreConfig           `yaml:"store" mapstructure:"store"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ModelConfig holds the simulation settings applied to every model.
type ModelConfig struct {
	Freq          string  `yaml:"freq" mapstructure:"freq"`
	WarmupDays    float64 `yaml:"warmup_days" mapstructure:"warmup_days"`
	Cutoff        float64 `yaml:"cutoff" mapstructure:"cutoff"`
	Interpolation string  `yaml:"interpolation" mapstructure:"interpolation"`
}

// RuleConfig overrides the fill and resampling rule of one stress kind.
type RuleConfig struct {
	FillNaN    string `yaml:"fill_nan" mapstructure:"fill_nan"`
	FillBefore string `yaml:"fill_before" mapstructure:"fill_before"`
	FillAfter  string `yaml:"fill_after" mapstructure:"fill_after"`
	SampleUp   string `yaml:"sample_up" mapstructure:"sample_up"`
	SampleDown string `yaml:"sample_down" mapstructure:"sample_down"`
}

// SolverConfig selects and tunes the minimizer.
type SolverConfig struct {
	Method        string  `yaml:"method" mapstructure:"method"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	Ftol          float64 `yaml:"ftol" mapstructure:"ftol"`
	Xtol          float64 `yaml:"xtol" mapstructure:"xtol"`
	Gtol          float64 `yaml:"gtol" mapstructure:"gtol"`
	Noise         bool    `yaml:"noise" mapstructure:"noise"`
}

// MonteCarloConfig configures parameter sampling for confidence bands.
type MonteCarloConfig struct {
	Samples int     `yaml:"samples" mapstructure:"samples"`
	Workers int     `yaml:"workers" mapstructure:"workers"`
	Seed    uint64  `yaml:"seed" mapstructure:"seed"`
	Alpha   float64 `yaml:"alpha" mapstructure:"alpha"`
}

// StoreConfig locates the sqlite fit archive. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Load reads configuration from path (optional) and the environment.
// Without a path, tfn.yaml is looked up in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tfn")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TFN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("model.freq", "24h")
	v.SetDefault("model.warmup_days", 3650)
	v.SetDefault("model.cutoff", 0.999)
	v.SetDefault("model.interpolation", "interpolate")
	v.SetDefault("solver.method", "least_squares")
	v.SetDefault("solver.max_iterations", 0)
	v.SetDefault("solver.ftol", 1e-8)
	v.SetDefault("solver.xtol", 1e-8)
	v.SetDefault("solver.gtol", 1e-8)
	v.SetDefault("solver.noise", true)
	v.SetDefault("monte_carlo.samples", 500)
	v.SetDefault("monte_carlo.workers", 0)
	v.SetDefault("monte_carlo.seed", 1)
	v.SetDefault("monte_carlo.alpha", 0.05)
	v.SetDefault("store.path", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Rules returns the default rule table with the configured overrides
// applied field by field.
func (c *Config) Rules() (forcing.Rules, error) {
	rs := forcing.DefaultRules()
	for name, rc := range c.Forcing {
		k, err := forcing.ParseKind(name)
		if err != nil {
			return nil, eris.Wrapf(err, "config: forcing.%s", name)
		}
		r := rs.For(k)
		if rc.FillNaN != "" {
			if r.FillNaN, err = forcing.ParseFill(rc.FillNaN); err != nil {
				return nil, err
			}
		}
		if rc.FillBefore != "" {
			if r.FillBefore, err = forcing.ParseFill(rc.FillBefore); err != nil {
				return nil, err
			}
		}
		if rc.FillAfter != "" {
			if r.FillAfter, err = forcing.ParseFill(rc.FillAfter); err != nil {
				return nil, err
			}
		}
		if rc.SampleUp != "" {
			if r.SampleUp, err = forcing.ParseUpsample(rc.SampleUp); err != nil {
				return nil, err
			}
		}
		if rc.SampleDown != "" {
			if r.SampleDown, err = forcing.ParseDownsample(rc.SampleDown); err != nil {
				return nil, err
			}
		}
		if err := r.Validate(); err != nil {
			return nil, eris.Wrapf(err, "config: forcing.%s", name)
		}
		rs[k] = r
	}
	return rs, nil
}

// Settings converts the model section.
func (c *Config) Settings() (model.Settings, error) {
	s := model.DefaultSettings()
	if c.Model.Freq != "" {
		d, err := time.ParseDuration(c.Model.Freq)
		if err != nil {
			return s, eris.Wrapf(err, "config: model.freq %q", c.Model.Freq)
		}
		s.Freq = d
	}
	s.Warmup = forcing.Duration(c.Model.WarmupDays)
	if c.Model.Interpolation != "" {
		p, err := model.ParsePolicy(c.Model.Interpolation)
		if err != nil {
			return s, eris.Wrap(err, "config: model.interpolation")
		}
		s.Policy = p
	}
	return s, nil
}

// ModelOptions returns the model options implied by the configuration,
// logging through the global logger. Settings are not among them: a
// definition carries its own, see FillDefinition.
func (c *Config) ModelOptions() ([]model.Option, error) {
	rs, err := c.Rules()
	if err != nil {
		return nil, err
	}
	return []model.Option{model.WithRules(rs), model.WithLogger(zap.L())}, nil
}

// FillDefinition completes the settings and response cutoffs a model
// definition leaves empty with the configured ones.
func (c *Config) FillDefinition(d *model.Definition) error {
	s, err := c.Settings()
	if err != nil {
		return err
	}
	if d.Settings.Freq == "" {
		d.Settings.Freq = s.Freq.String()
	}
	if d.Settings.Warmup == "" {
		d.Settings.Warmup = s.Warmup.String()
	}
	if d.Settings.Interpolation == "" {
		d.Settings.Interpolation = s.Policy.String()
	}
	for i := range d.StressModels {
		if d.StressModels[i].Rfunc != "" && d.StressModels[i].Cutoff == 0 {
			d.StressModels[i].Cutoff = c.Model.Cutoff
		}
	}
	return nil
}

// Minimizer returns the configured solver.
func (c *Config) Minimizer() (opt.Minimizer, error) {
	switch strings.ToLower(c.Solver.Method) {
	case "", "least_squares", "leastsquares", "lm":
		return opt.LeastSquares{
			MaxEvaluations: c.Solver.MaxIterations,
			Ftol:           c.Solver.Ftol,
			Xtol:           c.Solver.Xtol,
			Gtol:           c.Solver.Gtol,
		}, nil
	case "nelder_mead", "neldermead":
		return opt.NelderMead{MaxEvaluations: c.Solver.MaxIterations, Ftol: c.Solver.Ftol}, nil
	}
	return nil, eris.Errorf("config: unknown solver.method %q", c.Solver.Method)
}
