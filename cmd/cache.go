package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/tabular"
	"github.com/fiberscope/coverage-cli/pkg/geocode"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and export the persistent geocode cache",
}

var cacheExportOutput string

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the persistent cache as a snapshot table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.LoadCacheEntries(ctx)
		if err != nil {
			return eris.Wrap(err, "load cache")
		}

		cache := geocode.NewCache()
		for addr, coord := range entries {
			cache.Insert(addr, coord)
		}

		headers, rows := cache.ExportSnapshot()
		if err := tabular.WriteTable(cacheExportOutput, "Cache", headers, rows); err != nil {
			return eris.Wrap(err, "write snapshot")
		}

		zap.L().Info("cache exported",
			zap.String("output", cacheExportOutput),
			zap.Int("entries", len(rows)),
		)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show persistent cache statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.CacheSize(ctx)
		if err != nil {
			return eris.Wrap(err, "cache size")
		}

		fmt.Fprintf(os.Stdout, "cached addresses: %d\n", n)
		return nil
	},
}

func init() {
	cacheExportCmd.Flags().StringVar(&cacheExportOutput, "output", "geocode_cache.csv", "snapshot output table")
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
