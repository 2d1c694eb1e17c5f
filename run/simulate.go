package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/darigovresearch/pastas/forcing"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <model.yaml>",
	Short: "Simulate heads with the model's current parameters",
	Long:  "Simulates with the optimal values of a solved model, or the initial values otherwise, and writes time,value CSV.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seriesFlags, _ := cmd.Flags().GetStringArray("series")
		tminFlag, _ := cmd.Flags().GetString("tmin")
		tmaxFlag, _ := cmd.Flags().GetString("tmax")
		unit, _ := cmd.Flags().GetString("contribution")
		flux, _ := cmd.Flags().GetBool("recharge")
		out, _ := cmd.Flags().GetString("out")

		m, err := buildModel(args[0], seriesFlags)
		if err != nil {
			return err
		}
		tmin, tmax, err := parseWindow(tminFlag, tmaxFlag)
		if err != nil {
			return err
		}

		var s *forcing.Series
		switch {
		case unit != "" && flux:
			s, err = m.RechargeFlux(unit, nil, tmin, tmax)
		case unit != "":
			s, err = m.Contribution(unit, nil, tmin, tmax)
		case flux:
			return eris.New("--recharge needs --contribution")
		default:
			s, err = m.Simulate(nil, tmin, tmax)
		}
		if err != nil {
			return err
		}

		if out == "" {
			return s.WriteCSV(cmd.OutOrStdout())
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		if err := s.WriteCSV(f); err != nil {
			f.Close()
			return err
		}
		return eris.Wrapf(f.Close(), "close %s", out)
	},
}

func init() {
	simulateCmd.Flags().StringArray("series", nil, "series as name=path.csv[:kind], repeatable")
	simulateCmd.Flags().String("tmin", "", "start of the output (default: first observation)")
	simulateCmd.Flags().String("tmax", "", "end of the output (default: last observation)")
	simulateCmd.Flags().String("contribution", "", "write the contribution of this unit instead of the head")
	simulateCmd.Flags().Bool("recharge", false, "with --contribution, write the unit's recharge flux")
	simulateCmd.Flags().String("out", "", "write to this file (default: stdout)")
}
