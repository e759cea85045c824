package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/pipeline"
	"github.com/fiberscope/coverage-cli/internal/tabular"
	"github.com/fiberscope/coverage-cli/pkg/registry"
)

var (
	discoverCategories []string
	discoverCities     []string
	discoverOutput     string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover businesses from OpenStreetMap by category and city",
	Long:  "Searches the registry for every category and city pair and writes the discovered businesses, coordinates included, as a table usable by the match command.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("discover"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client := registry.NewClient(
			registry.WithBaseURL(cfg.Registry.BaseURL),
			registry.WithPaging(cfg.Registry.PageSize, cfg.Registry.MaxPages),
			registry.WithRateLimit(cfg.Geocode.RPS),
			registry.WithHTTPClient(httpClientWithTimeout(time.Duration(cfg.Registry.TimeoutSecs)*time.Second)),
		)

		source := &pipeline.RegistrySource{
			Finder:     client,
			Categories: discoverCategories,
			Cities:     discoverCities,
		}

		run, err := st.CreateRun(ctx, "discover")
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		records, _, err := source.Load(ctx)
		if err != nil {
			failErr := st.FailRun(ctx, run.ID, err.Error())
			if failErr != nil {
				zap.L().Warn("record failed run", zap.Error(failErr))
			}
			return eris.Wrap(err, "discover")
		}

		headers, rows := pipeline.GeocodedRows(records)
		if err := tabular.WriteTable(discoverOutput, "Discovered", headers, rows); err != nil {
			return eris.Wrap(err, "write output")
		}

		summary := summarizeDiscovery(records)
		if err := st.CompleteRun(ctx, run.ID, summary); err != nil {
			zap.L().Warn("record run failed", zap.Error(err))
		}

		zap.L().Info("discovery written",
			zap.String("run_id", run.ID),
			zap.String("output", discoverOutput),
			zap.Int("businesses", len(records)),
		)
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringSliceVar(&discoverCategories, "categories", nil, "business categories to search (required)")
	discoverCmd.Flags().StringSliceVar(&discoverCities, "cities", nil, "cities to search in (required)")
	discoverCmd.Flags().StringVar(&discoverOutput, "output", "discovered.csv", "discovered business table")
	_ = discoverCmd.MarkFlagRequired("categories")
	_ = discoverCmd.MarkFlagRequired("cities")
	rootCmd.AddCommand(discoverCmd)
}
