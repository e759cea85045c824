package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/pipeline"
	"github.com/fiberscope/coverage-cli/internal/spatial"
	"github.com/fiberscope/coverage-cli/internal/tabular"
)

var (
	matchInput     string
	matchCoverage  string
	matchOutput    string
	matchesOutput  string
	matchCacheOut  string
	matchResume    string
	matchThreshold float64
	matchMode      string
	matchWorkers   int
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Geocode a business table and match it against coverage points",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyMatchFlags()
		if err := cfg.Validate("match"); err != nil {
			return err
		}
		mode, err := spatial.ParseMode(cfg.Match.Mode)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		importResume(env, matchResume)

		points, droppedPoints, err := tabular.LoadCoveragePoints(matchCoverage, env.Aliases)
		if err != nil {
			return eris.Wrap(err, "load coverage")
		}
		zap.L().Info("coverage loaded",
			zap.String("path", matchCoverage),
			zap.Int("points", len(points)),
			zap.Int("dropped", droppedPoints),
		)

		source := &pipeline.FileSource{Path: matchInput, Aliases: env.Aliases}
		records, malformed, err := source.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "load input")
		}

		p := pipeline.New(env.Resolver,
			pipeline.WithMatcher(spatial.NewMatcher(points, cfg.Match.ThresholdMeters, mode)),
			pipeline.WithWorkers(cfg.Geocode.Workers),
		)

		run, err := env.Store.CreateRun(ctx, "match")
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		res, err := p.Run(ctx, records)
		if err != nil {
			env.failRun(ctx, run.ID, err)
			return eris.Wrap(err, "run")
		}
		res.Summary.MalformedCoords = malformed + droppedPoints

		if err := writeOutputs(env, res, matchOutput, matchesOutput, matchCacheOut); err != nil {
			env.failRun(ctx, run.ID, err)
			return err
		}

		env.finishRun(ctx, run.ID, res)
		zap.L().Info("match outputs written",
			zap.String("run_id", run.ID),
			zap.String("geocoded", matchOutput),
			zap.String("matches", matchesOutput),
			zap.Int("matched", res.Summary.Matches),
		)
		return nil
	},
}

// applyMatchFlags folds explicit flags over the configured defaults.
func applyMatchFlags() {
	if matchThreshold > 0 {
		cfg.Match.ThresholdMeters = matchThreshold
	}
	if matchMode != "" {
		cfg.Match.Mode = matchMode
	}
	if matchWorkers > 0 {
		cfg.Geocode.Workers = matchWorkers
	}
}

// importResume seeds the cache from a previous run's exported snapshot. A
// missing or malformed snapshot is skipped, never fatal.
func importResume(env *pipelineEnv, path string) {
	if path == "" {
		return
	}
	table, err := tabular.ReadTable(path, env.Aliases, tabular.FieldAddress, tabular.FieldLat, tabular.FieldLon)
	if err != nil {
		zap.L().Warn("resume snapshot unreadable, skipping",
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	imported := env.Cache.ImportSnapshot(table, env.Aliases)
	zap.L().Info("resume snapshot imported",
		zap.String("path", path),
		zap.Int("entries", imported),
	)
}

// writeOutputs writes the geocoded table, the match table, and the cache
// snapshot. The match path may be empty for geocode-only runs.
func writeOutputs(env *pipelineEnv, res *pipeline.Result, geocodedPath, matchesPath, cachePath string) error {
	headers, rows := pipeline.GeocodedRows(res.Records)
	if err := tabular.WriteTable(geocodedPath, "Geocoded", headers, rows); err != nil {
		return eris.Wrap(err, "write geocoded table")
	}

	if matchesPath != "" {
		mHeaders, mRows := pipeline.MatchRows(res.Records)
		if err := tabular.WriteTable(matchesPath, "Matches", mHeaders, mRows); err != nil {
			return eris.Wrap(err, "write match table")
		}
	}

	if cachePath != "" {
		cHeaders, cRows := env.Cache.ExportSnapshot()
		if err := tabular.WriteTable(cachePath, "Cache", cHeaders, cRows); err != nil {
			return eris.Wrap(err, "write cache snapshot")
		}
	}
	return nil
}

func init() {
	matchCmd.Flags().StringVar(&matchInput, "input", "", "business table, CSV or XLSX (required)")
	matchCmd.Flags().StringVar(&matchCoverage, "coverage", "", "coverage points, CSV, XLSX, or SHP (required)")
	matchCmd.Flags().StringVar(&matchOutput, "output", "geocoded.csv", "full geocoded output table")
	matchCmd.Flags().StringVar(&matchesOutput, "matches", "matches.csv", "coverage match output table")
	matchCmd.Flags().StringVar(&matchCacheOut, "cache-out", "geocode_cache.csv", "cache snapshot output, empty to skip")
	matchCmd.Flags().StringVar(&matchResume, "resume", "", "cache snapshot from a previous run")
	matchCmd.Flags().Float64Var(&matchThreshold, "threshold", 0, "match distance threshold in meters (default from config)")
	matchCmd.Flags().StringVar(&matchMode, "mode", "", "match mode, first or best (default from config)")
	matchCmd.Flags().IntVar(&matchWorkers, "workers", 0, "geocode worker count (default from config)")
	_ = matchCmd.MarkFlagRequired("input")
	_ = matchCmd.MarkFlagRequired("coverage")
	rootCmd.AddCommand(matchCmd)
}
