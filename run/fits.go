package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/darigovresearch/pastas/internal/store"
)

var fitsCmd = &cobra.Command{
	Use:   "fits [model-name]",
	Short: "List the archived fits of a model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		storePath, _ := cmd.Flags().GetString("store")
		show, _ := cmd.Flags().GetString("show")
		if storePath == "" {
			storePath = cfg.Store.Path
		}
		if storePath == "" {
			return eris.New("fits: no store configured")
		}

		st, err := store.Open(storePath)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if show != "" {
			ps, err := st.Parameters(ctx, show)
			if err != nil {
				return eris.Wrap(err, "fits show")
			}
			formatParameters(w, ps)
			return nil
		}

		if len(args) == 0 {
			return eris.New("fits: give a model name or --show <id>")
		}
		fits, err := st.Fits(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "fits list")
		}
		if len(fits) == 0 {
			fmt.Fprintln(os.Stderr, "No fits found.")
			return nil
		}
		formatFits(w, fits)
		return nil
	},
}

func init() {
	fitsCmd.Flags().String("store", "", "sqlite database (default: store.path)")
	fitsCmd.Flags().String("show", "", "print the parameter table of this fit id")
}

func formatFits(w io.Writer, fits []store.FitRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTMIN\tTMAX\tNOISE\tSTATUS\tRMSE\tEVP")
	for _, f := range fits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			f.ID, f.CreatedAt.Format(time.RFC3339), f.Tmin.Format("2006-01-02"), f.Tmax.Format("2006-01-02"),
			f.Noise, f.Status, formatFloat(f.Stats.RMSE), formatFloat(f.Stats.EVP),
		)
	}
	tw.Flush()
}
