package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cafescrape/internal/config"
	"github.com/sells-group/cafescrape/internal/extract"
	"github.com/sells-group/cafescrape/internal/fetcher"
	"github.com/sells-group/cafescrape/internal/model"
	"github.com/sells-group/cafescrape/internal/pipeline"
	"github.com/sells-group/cafescrape/pkg/google"
)

var (
	runOutput  string
	runFixture string
	runMetrics string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover coffee shops and export their contacts",
	Long:  "Runs live discovery for the configured cities, or replays a fixture file when --fixture (pipeline.fixture_path) is set, then writes the CSV export.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		applyRunFlags(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		metrics := pipeline.NewMetrics()
		opts := []pipeline.Option{
			pipeline.WithMetrics(metrics),
			pipeline.WithMaxResultsPerCity(cfg.Pipeline.MaxResultsPerCity),
			pipeline.WithExtractor(extract.New(extract.Options{
				MinNameWords:  cfg.Extract.MinNameWords,
				MaxNameWords:  cfg.Extract.MaxNameWords,
				NameTrimChars: cfg.Extract.NameTrimChars,
			})),
		}

		var (
			p       *pipeline.Pipeline
			records []model.EmailRecord
			err     error
		)
		if cfg.FixtureMode() {
			entries, loadErr := pipeline.LoadFixture(cfg.Pipeline.FixturePath)
			if loadErr != nil {
				return loadErr
			}
			p = pipeline.New(nil, nil, opts...)
			records, err = p.RunFixture(ctx, entries)
		} else {
			if cfg.Google.GeocodeCities {
				opts = append(opts, pipeline.WithGeocodeBias(cfg.Google.SearchRadiusM))
			}
			client := google.NewClient(cfg.Google.APIKey,
				google.WithRequestDelay(seconds(cfg.Google.RequestDelaySecs)),
			)
			web := fetcher.NewWebFetcher(webOptions(cfg.Web, metrics))
			p = pipeline.New(client, web, opts...)
			records, err = p.Run(ctx, cfg.Cities)
		}
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		written, err := pipeline.WriteEmailRecords(records, cfg.Pipeline.OutputPath)
		if err != nil {
			return err
		}
		p.LogSummary(cfg.Pipeline.OutputPath, written)

		if cfg.Pipeline.MetricsPath != "" {
			if err := metrics.WriteTextfile(cfg.Pipeline.MetricsPath); err != nil {
				zap.L().Warn("metrics textfile not written", zap.Error(err))
			}
		}
		return nil
	},
}

// applyRunFlags lets command-line flags override the loaded config.
func applyRunFlags(c *config.Config) {
	if runOutput != "" {
		c.Pipeline.OutputPath = runOutput
	}
	if runFixture != "" {
		c.Pipeline.FixturePath = runFixture
	}
	if runMetrics != "" {
		c.Pipeline.MetricsPath = runMetrics
	}
}

func webOptions(wc config.WebConfig, metrics *pipeline.Metrics) fetcher.WebOptions {
	return fetcher.WebOptions{
		UserAgent:         wc.UserAgent,
		Timeout:           time.Duration(wc.TimeoutSecs) * time.Second,
		MaxRetries:        wc.MaxRetries,
		Backoff:           seconds(wc.BackoffSecs),
		RetryStatuses:     wc.RetryStatuses,
		RequestsPerSecond: wc.RequestsPerSecond,
		OnBlocked:         metrics.ObserveBlocked,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func init() {
	runCmd.Flags().StringVar(&runOutput, "output", "", "CSV output path (overrides pipeline.output_path)")
	runCmd.Flags().StringVar(&runFixture, "fixture", "", "replay a JSON/YAML fixture instead of calling Google (overrides pipeline.fixture_path)")
	runCmd.Flags().StringVar(&runMetrics, "metrics", "", "write Prometheus textfile metrics to this path")
	rootCmd.AddCommand(runCmd)
}
