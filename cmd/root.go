package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trauma-access/internal/config"
)

var cfg *config.Config

// Persistent overrides applied on top of config.yaml and TRAUMA_* env.
var (
	sourceOverride   string
	cacheOverride    string
	logLevelOverride string
)

var rootCmd = &cobra.Command{
	Use:   "trauma-access",
	Short: "Trauma center accessibility analysis for US census tracts",
	Long: `Measures how far each census tract sits from its nearest trauma center.

Trauma hospitals come from a HIFLD GeoJSON export (file, URL or s3://).
Tract boundaries are pulled from the Census Bureau and cached per state.
Both are projected into an equal-area CRS for the state before distances,
summary statistics and histograms are computed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyOverrides(c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func applyOverrides(c *config.Config) {
	if sourceOverride != "" {
		c.Facilities.Source = sourceOverride
	}
	if cacheOverride != "" {
		c.Cache.Driver = cacheOverride
	}
	if logLevelOverride != "" {
		c.Log.Level = logLevelOverride
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sourceOverride, "source", "", "trauma center GeoJSON (path, http(s) URL or s3://bucket/key)")
	rootCmd.PersistentFlags().StringVar(&cacheOverride, "cache", "", "tract cache driver: sqlite, postgres or none")
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "log level: debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
