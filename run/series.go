package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/model"
)

// parseSeriesFlag splits name=path[:kind]. The kind suffix is only taken
// when it names a kind, so paths may contain colons.
func parseSeriesFlag(s string) (name, fp string, kind forcing.Kind, err error) {
	name, rest, ok := strings.Cut(s, "=")
	if !ok || name == "" || rest == "" {
		return "", "", 0, eris.Errorf("series %q: want name=path[:kind]", s)
	}
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		if k, err := forcing.ParseKind(rest[i+1:]); err == nil {
			return name, rest[:i], k, nil
		}
	}
	return name, rest, forcing.Unconstrained, nil
}

func loadSeries(flags []string) (map[string]*forcing.Series, error) {
	o := make(map[string]*forcing.Series, len(flags))
	for _, f := range flags {
		name, fp, kind, err := parseSeriesFlag(f)
		if err != nil {
			return nil, err
		}
		if _, ok := o[name]; ok {
			return nil, eris.Errorf("series %q given twice", name)
		}
		s, err := forcing.LoadCSV(fp, name, kind)
		if err != nil {
			return nil, err
		}
		sm := s.Summary()
		zap.L().Debug("series loaded",
			zap.String("series", sm.Name),
			zap.String("kind", sm.Kind),
			zap.Time("start", sm.Start),
			zap.Time("end", sm.End),
			zap.Int("n", sm.N),
			zap.Int("missing", sm.Missing),
			zap.Float64("mean", sm.Mean),
			zap.Float64("annual_total", sm.AnnualTotal),
		)
		o[name] = s
	}
	return o, nil
}

// buildModel reads a model definition, completes it from the configuration
// and binds it to the series.
func buildModel(fp string, seriesFlags []string) (*model.Model, error) {
	d, err := model.LoadDefinition(fp)
	if err != nil {
		return nil, err
	}
	if err := cfg.FillDefinition(&d); err != nil {
		return nil, err
	}
	series, err := loadSeries(seriesFlags)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ModelOptions()
	if err != nil {
		return nil, err
	}
	return model.FromDefinition(d, series, opts...)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, l := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("date %q: want YYYY-MM-DD or RFC3339", s)
}

func parseWindow(tmin, tmax string) (time.Time, time.Time, error) {
	t0, err := parseDate(tmin)
	if err != nil {
		return t0, t0, err
	}
	t1, err := parseDate(tmax)
	return t0, t1, err
}
