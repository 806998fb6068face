package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trauma-access/internal/export"
	"github.com/sells-group/trauma-access/internal/pipeline"
)

var (
	analyzeStates     []string
	analyzeRadiusKm   float64
	analyzeXMaxKm     float64
	analyzeBinWidthKm float64
	analyzeFormat     string
	analyzeXLSX       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute tract distances to the nearest trauma center",
	Example: `  trauma-access analyze --state AK
  trauma-access analyze --state AK,HI --radius-km 150 --format json
  trauma-access analyze --state CA --xlsx ca.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		states := parseStates(analyzeStates)
		if len(states) == 0 {
			return eris.New("analyze: --state is required")
		}
		format, err := export.ParseFormat(analyzeFormat)
		if err != nil {
			return err
		}

		env, err := initApp(cmd.Context(), cfg, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		return runAnalyze(cmd.Context(), env.Pipeline, cmd.OutOrStdout(), states, pipeline.Request{
			RadiusKm:   analyzeRadiusKm,
			XMaxKm:     analyzeXMaxKm,
			BinWidthKm: analyzeBinWidthKm,
		}, format, analyzeXLSX)
	},
}

func runAnalyze(ctx context.Context, p *pipeline.Pipeline, out io.Writer, states []string, req pipeline.Request, format export.Format, xlsxPath string) error {
	reports, err := p.RunAll(ctx, states, req)
	if err != nil {
		return err
	}
	if err := export.Write(out, format, reports); err != nil {
		return err
	}
	if xlsxPath != "" {
		if err := export.SaveXLSX(xlsxPath, reports); err != nil {
			return err
		}
		zap.L().Info("workbook written", zap.String("path", xlsxPath), zap.Int("states", len(reports)))
	}
	return nil
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&analyzeStates, "state", nil, "state codes, comma-separated (e.g. AK,HI)")
	analyzeCmd.Flags().Float64Var(&analyzeRadiusKm, "radius-km", 0, "catchment radius in km (default from config)")
	analyzeCmd.Flags().Float64Var(&analyzeXMaxKm, "xmax-km", 0, "histogram x-axis maximum in km (default 1.1 x max distance)")
	analyzeCmd.Flags().Float64Var(&analyzeBinWidthKm, "bin-width-km", 0, "histogram bin width in km (default derived from x-axis maximum)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "table", "output format: table, json or yaml")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "also write an XLSX workbook to this path")
	rootCmd.AddCommand(analyzeCmd)
}
