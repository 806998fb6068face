package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/trauma-access/internal/access"
	"github.com/sells-group/trauma-access/internal/facility"
	"github.com/sells-group/trauma-access/internal/tiger"
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List states with trauma centers and their facility metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), cfg, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		printStates(cmd.OutOrStdout(), env.Catalog, access.MetricsOptions{
			Level1Match:            access.Level1Match(cfg.Facilities.Level1Match),
			HelipadCaseInsensitive: cfg.Facilities.HelipadCaseInsensitive,
		})
		return nil
	},
}

func printStates(out io.Writer, catalog *facility.Catalog, opts access.MetricsOptions) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATE\tFIPS\tHOSPITALS\tHELIPADS\tLEVEL_I\tLEVEL_I_BEDS")
	_, _ = fmt.Fprintln(w, "-----\t----\t---------\t--------\t-------\t------------")
	for _, st := range catalog.States() {
		fips, ok := tiger.FIPSFor(st)
		if !ok {
			fips = "-"
		}
		m := access.Aggregate(catalog.ForState(st), opts)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			st, fips, m.HospitalCount, m.HelipadCount, m.Level1Count, m.Level1BedTotal)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statesCmd)
}
