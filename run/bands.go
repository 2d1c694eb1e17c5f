package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/darigovresearch/pastas/forcing"
	"github.com/darigovresearch/pastas/opt"
)

// writeBands draws the configured number of parameter sets around the
// optimum and writes the optimal series with its lower and upper band. An
// empty unit gives bands of the head; with recharge set, of the unit's
// recharge flux.
func writeBands(ctx context.Context, fit *opt.Fit, fp, unit string, recharge bool) error {
	mc := cfg.MonteCarlo
	var (
		ref, lo, hi *forcing.Series
		err         error
	)
	switch {
	case unit != "" && recharge:
		if ref, err = fit.Model.RechargeFlux(unit, fit.Optimal, fit.Tmin, fit.Tmax); err == nil {
			lo, hi, err = fit.CIRecharge(ctx, unit, mc.Samples, mc.Alpha, mc.Seed)
		}
	case unit != "":
		if ref, err = fit.Model.Contribution(unit, fit.Optimal, fit.Tmin, fit.Tmax); err == nil {
			lo, hi, err = fit.CIContribution(ctx, unit, mc.Samples, mc.Alpha, mc.Seed)
		}
	case recharge:
		return eris.New("--bands-recharge needs --bands-unit")
	default:
		if ref, err = fit.Model.Simulate(fit.Optimal, fit.Tmin, fit.Tmax); err == nil {
			lo, hi, err = fit.CISimulation(ctx, mc.Samples, mc.Alpha, mc.Seed)
		}
	}
	if err != nil {
		return eris.Wrap(err, "bands")
	}

	f, err := os.Create(fp)
	if err != nil {
		return eris.Wrapf(err, "create %s", fp)
	}
	if err := forcing.WriteTableCSV(f, ref, lo, hi); err != nil {
		f.Close()
		return err
	}
	zap.L().Info("bands written",
		zap.String("path", fp),
		zap.Int("samples", mc.Samples),
		zap.Float64("alpha", mc.Alpha),
	)
	return eris.Wrapf(f.Close(), "close %s", fp)
}

// writeMetrics writes the calibration metrics gathered by reg in the
// prometheus text format.
func writeMetrics(reg *prometheus.Registry, fp string) error {
	if fp == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(fp, reg); err != nil {
		return eris.Wrapf(err, "write metrics %s", fp)
	}
	zap.L().Debug("metrics written", zap.String("path", fp))
	return nil
}
