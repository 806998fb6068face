package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/trauma-access/internal/export"
	"github.com/sells-group/trauma-access/internal/pipeline"
)

var (
	facilitiesState  string
	facilitiesFormat string
)

var facilitiesCmd = &cobra.Command{
	Use:   "facilities",
	Short: "List a state's trauma centers with address, level, helipad and beds",
	Example: `  trauma-access facilities --state AK
  trauma-access facilities --state PR --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if facilitiesState == "" {
			return eris.New("facilities: --state is required")
		}
		format, err := export.ParseFormat(facilitiesFormat)
		if err != nil {
			return err
		}

		env, err := initApp(cmd.Context(), cfg, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		return runFacilities(env.Pipeline, cmd.OutOrStdout(), facilitiesState, format)
	},
}

func runFacilities(p *pipeline.Pipeline, out io.Writer, state string, format export.Format) error {
	recs, err := p.FacilityListing(state)
	if err != nil {
		return err
	}
	return export.WriteFacilities(out, format, recs)
}

func init() {
	facilitiesCmd.Flags().StringVar(&facilitiesState, "state", "", "state code (e.g. AK)")
	facilitiesCmd.Flags().StringVar(&facilitiesFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(facilitiesCmd)
}
