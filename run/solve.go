package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/darigovresearch/pastas/internal/monitoring"
	"github.com/darigovresearch/pastas/internal/store"
	"github.com/darigovresearch/pastas/opt"
	"github.com/darigovresearch/pastas/param"
	"github.com/darigovresearch/pastas/stats"
)

var solveCmd = &cobra.Command{
	Use:   "solve <model.yaml>",
	Short: "Calibrate a model and print its parameter table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		seriesFlags, _ := cmd.Flags().GetStringArray("series")
		tminFlag, _ := cmd.Flags().GetString("tmin")
		tmaxFlag, _ := cmd.Flags().GetString("tmax")
		out, _ := cmd.Flags().GetString("out")
		storePath, _ := cmd.Flags().GetString("store")
		warm, _ := cmd.Flags().GetBool("warm")
		ci, _ := cmd.Flags().GetBool("ci")
		bands, _ := cmd.Flags().GetString("bands")
		bandsUnit, _ := cmd.Flags().GetString("bands-unit")
		bandsRecharge, _ := cmd.Flags().GetBool("bands-recharge")
		metricsPath, _ := cmd.Flags().GetString("metrics")

		m, err := buildModel(args[0], seriesFlags)
		if err != nil {
			return err
		}
		tmin, tmax, err := parseWindow(tminFlag, tmaxFlag)
		if err != nil {
			return err
		}
		mz, err := cfg.Minimizer()
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		opts := []opt.Option{
			opt.WithMinimizer(mz),
			opt.WithWindow(tmin, tmax),
			opt.WithNoise(cfg.Solver.Noise),
			opt.WithMetrics(monitoring.NewMetrics(reg)),
		}
		if warm {
			opts = append(opts, opt.WithWarmStart())
		}
		if cfg.MonteCarlo.Workers > 0 {
			opts = append(opts, opt.WithWorkers(cfg.MonteCarlo.Workers))
		}
		fit, err := opt.Solve(ctx, m, opts...)
		if err != nil {
			if merr := writeMetrics(reg, metricsPath); merr != nil {
				zap.L().Warn("metrics not written", zap.Error(merr))
			}
			return eris.Wrap(err, "solve")
		}

		w := cmd.OutOrStdout()
		formatParameters(w, m.Parameters())
		sum, err := fit.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		formatStats(w, sum)

		if ci {
			fmt.Fprintln(w)
			formatGains(w, fit, cfg.MonteCarlo.Alpha)
		}
		if bands != "" {
			if err := writeBands(ctx, fit, bands, bandsUnit, bandsRecharge); err != nil {
				return err
			}
		}

		if out != "" {
			if err := m.Save(out); err != nil {
				return err
			}
			zap.L().Info("model saved", zap.String("path", out))
		}

		if storePath == "" {
			storePath = cfg.Store.Path
		}
		if storePath != "" {
			st, err := store.Open(storePath)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			r, err := store.NewRecord(fit)
			if err != nil {
				return err
			}
			id, err := st.SaveFit(ctx, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\narchived as %s\n", id)
		}
		return writeMetrics(reg, metricsPath)
	},
}

func init() {
	solveCmd.Flags().StringArray("series", nil, "series as name=path.csv[:kind], repeatable")
	solveCmd.Flags().String("tmin", "", "start of the calibration period (default: first observation)")
	solveCmd.Flags().String("tmax", "", "end of the calibration period (default: last observation)")
	solveCmd.Flags().String("out", "", "write the solved model definition to this file")
	solveCmd.Flags().String("store", "", "archive the fit in this sqlite database (default: store.path)")
	solveCmd.Flags().Bool("warm", false, "start from the current optimal values")
	solveCmd.Flags().Bool("ci", false, "print confidence intervals of the unit gains")
	solveCmd.Flags().String("bands", "", "write Monte Carlo confidence bands over the fit window to this CSV file")
	solveCmd.Flags().String("bands-unit", "", "with --bands, band the contribution of this unit instead of the head")
	solveCmd.Flags().Bool("bands-recharge", false, "with --bands-unit, band the unit's recharge flux")
	solveCmd.Flags().String("metrics", "", "write calibration metrics in prometheus text format to this file")
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.6g", v)
}

func formatParameters(w io.Writer, ps []param.Parameter) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINITIAL\tPMIN\tPMAX\tVARY\tOPTIMAL\tSTDERR")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			p.Name(), formatFloat(p.Initial), formatFloat(p.PMin), formatFloat(p.PMax),
			p.Vary, formatFloat(p.Optimal), formatFloat(p.Stderr),
		)
	}
	tw.Flush()
}

func formatStats(w io.Writer, s stats.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "N\t%d\n", s.N)
	for _, r := range []struct {
		k string
		v float64
	}{
		{"RMSE", s.RMSE}, {"SSE", s.SSE}, {"BIAS", s.Bias}, {"AVGDEV", s.AvgDev},
		{"NSE", s.NSE}, {"KGE", s.KGE}, {"EVP", s.EVP}, {"RSQ", s.RSquared},
		{"AIC", s.AIC}, {"BIC", s.BIC},
	} {
		fmt.Fprintf(tw, "%s\t%s\n", r.k, formatFloat(r.v))
	}
	tw.Flush()
}

// formatGains skips units without a single response function.
func formatGains(w io.Writer, fit *opt.Fit, alpha float64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "UNIT\tGAIN\tLOWER\tUPPER\t(alpha %g)\n", alpha)
	for _, name := range fit.Model.Units() {
		v, lo, hi, err := fit.CIGain(name, alpha)
		if err != nil {
			zap.L().Debug("no gain interval", zap.String("unit", name), zap.Error(err))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", name, formatFloat(v), formatFloat(lo), formatFloat(hi))
	}
	tw.Flush()
}
