package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trauma-access/internal/store"
)

var tractsCmd = &cobra.Command{
	Use:   "tracts",
	Short: "Manage the census tract cache",
	Long:  "Commands for prefetching, invalidating, pruning and inspecting cached census tract boundaries.",
}

var tractsFetchStates []string

var tractsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and cache tracts for states (all states when none given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tracts"); err != nil {
			return err
		}
		env, err := initTracts(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		states := parseStates(tractsFetchStates)
		start := time.Now()
		if err := env.Tracts.Prefetch(cmd.Context(), states); err != nil {
			return err
		}
		zap.L().Info("tracts cached",
			zap.Strings("states", states),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	},
}

var tractsInvalidateState string

var tractsInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop the cached tracts of one state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tractsInvalidateState == "" {
			return eris.New("tracts invalidate: --state is required")
		}
		if err := cfg.Validate("tracts"); err != nil {
			return err
		}
		env, err := initTracts(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Tracts.Invalidate(cmd.Context(), tractsInvalidateState)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached tracts for %s\n", n, tractsInvalidateState)
		return nil
	},
}

var tractsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tracts"); err != nil {
			return err
		}
		env, err := initTracts(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Tracts.Prune(cmd.Context())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired tracts\n", n)
		return nil
	},
}

var tractsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List cached tract sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tracts"); err != nil {
			return err
		}
		env, err := initTracts(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Tracts.Entries(cmd.Context())
		if err != nil {
			return err
		}
		printEntries(cmd.OutOrStdout(), entries, time.Now())
		return nil
	},
}

func printEntries(out io.Writer, entries []store.Entry, now time.Time) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No cached tracts.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tTRACTS\tCACHED\tEXPIRES\tSTATUS")
	_, _ = fmt.Fprintln(w, "---\t------\t------\t-------\t------")
	for _, e := range entries {
		status := "fresh"
		if e.Expired(now) {
			status = "expired"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			e.Key, e.Tracts,
			e.CachedAt.Format(time.RFC3339), e.ExpiresAt.Format(time.RFC3339),
			status,
		)
	}
	_ = w.Flush()
}

func init() {
	tractsFetchCmd.Flags().StringSliceVar(&tractsFetchStates, "states", nil, "state codes, comma-separated (default all)")
	tractsInvalidateCmd.Flags().StringVar(&tractsInvalidateState, "state", "", "state code")

	tractsCmd.AddCommand(tractsFetchCmd)
	tractsCmd.AddCommand(tractsInvalidateCmd)
	tractsCmd.AddCommand(tractsPruneCmd)
	tractsCmd.AddCommand(tractsStatusCmd)
	rootCmd.AddCommand(tractsCmd)
}
