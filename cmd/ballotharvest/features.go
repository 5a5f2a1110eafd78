package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/ballotharvest/internal/config"
	"github.com/nao1215/ballotharvest/internal/featureservice"
	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/model"
	"github.com/nao1215/ballotharvest/internal/pipeline"
)

// NewFeaturesCmd creates the features command.
func NewFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features [query-url]",
		Short: "Query per-precinct totals from a JSON feature service",
		Long: `Features lists the precincts of a feature service layer and queries the
vote totals of every configured contest in every precinct. Each candidate
total contributes one row:

  Contest, Precinct, Candidate, Party, Votes

A failed query for one contest and precinct is recorded as an issue and the
harvest continues.

Examples:
  # Query the default layer with the default contest list
  ballotharvest features

  # Query two contests only
  ballotharvest features --contest "State Treasurer" --contest "Auditor General"

  # Run four queries at a time
  ballotharvest features --concurrency 4`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFeaturesCmd,
	}

	addCommonFlags(cmd)

	cmd.Flags().StringArray("contest", nil,
		"Contest title to query (repeatable; default: the built-in list)")
	cmd.Flags().String("precinct-contest", "",
		"Contest used to list precincts (default: the first contest)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Queries in flight at once")

	return cmd
}

func runFeaturesCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, model.SourceFeatures, args)
	if err != nil {
		return err
	}
	if err := applyFeaturesFlags(cmd, cfg); err != nil {
		return err
	}
	return runHarvest(cmd, cfg, featuresEngine(cfg))
}

// applyFeaturesFlags copies explicitly set feature-service flags into cfg.
func applyFeaturesFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("contest") {
		if cfg.Contests, err = flags.GetStringArray("contest"); err != nil {
			return err
		}
	}
	if flags.Changed("precinct-contest") {
		if cfg.PrecinctContest, err = flags.GetString("precinct-contest"); err != nil {
			return err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	return nil
}

// featuresEngine returns a factory of feature-service harvesters configured from cfg.
func featuresEngine(cfg *config.Config) engineFactory {
	return func(client *fetch.Client, out io.Writer, logger *slog.Logger) pipeline.HarvestFunc {
		return featureservice.NewHarvester(client,
			featureservice.WithContests(cfg.Contests),
			featureservice.WithPrecinctContest(cfg.PrecinctContest),
			featureservice.WithConcurrency(cfg.Concurrency),
			featureservice.WithLogger(logger),
			featureservice.WithProgress(out),
		).Harvest
	}
}
