package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/pipeline"
)

var (
	geocodeInput    string
	geocodeOutput   string
	geocodeCacheOut string
	geocodeResume   string
	geocodeWorkers  int
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode a business table without coverage matching",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if geocodeWorkers > 0 {
			cfg.Geocode.Workers = geocodeWorkers
		}
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		importResume(env, geocodeResume)

		source := &pipeline.FileSource{Path: geocodeInput, Aliases: env.Aliases}
		records, malformed, err := source.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "load input")
		}

		p := pipeline.New(env.Resolver, pipeline.WithWorkers(cfg.Geocode.Workers))

		run, err := env.Store.CreateRun(ctx, "geocode")
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		res, err := p.Geocode(ctx, records)
		if err != nil {
			env.failRun(ctx, run.ID, err)
			return eris.Wrap(err, "geocode")
		}
		res.Summary.MalformedCoords = malformed

		if err := writeOutputs(env, res, geocodeOutput, "", geocodeCacheOut); err != nil {
			env.failRun(ctx, run.ID, err)
			return err
		}

		env.finishRun(ctx, run.ID, res)
		zap.L().Info("geocode output written",
			zap.String("run_id", run.ID),
			zap.String("output", geocodeOutput),
			zap.Int("resolved", res.Summary.Resolved),
			zap.Int("failures", res.Summary.Failures),
		)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeInput, "input", "", "business table, CSV or XLSX (required)")
	geocodeCmd.Flags().StringVar(&geocodeOutput, "output", "geocoded.csv", "full geocoded output table")
	geocodeCmd.Flags().StringVar(&geocodeCacheOut, "cache-out", "geocode_cache.csv", "cache snapshot output, empty to skip")
	geocodeCmd.Flags().StringVar(&geocodeResume, "resume", "", "cache snapshot from a previous run")
	geocodeCmd.Flags().IntVar(&geocodeWorkers, "workers", 0, "geocode worker count (default from config)")
	_ = geocodeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(geocodeCmd)
}
