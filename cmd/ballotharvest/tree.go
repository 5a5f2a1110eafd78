package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/ballotharvest/internal/config"
	"github.com/nao1215/ballotharvest/internal/crawler"
	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/model"
	"github.com/nao1215/ballotharvest/internal/pipeline"
)

// NewTreeCmd creates the tree command.
func NewTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [root-url...]",
		Short: "Crawl results and navigation pages recursively",
		Long: `Tree starts at a root page and follows every navigation link depth first.
Each results page contributes one row per candidate:

  Contest, Vote For, Candidate, Votes

Links whose label is on the denylist (RETURN, QUESTIONS, CATEGORIES by
default) are never followed. Several root URLs are harvested concurrently,
each into its own numbered workbook.

Examples:
  # Crawl the default election returns site
  ballotharvest tree

  # Crawl another election of the same site family
  ballotharvest tree https://vote.example.gov/2021_Primary/Categories.html

  # Crawl sibling pages four at a time and write a summary
  ballotharvest tree --concurrency 4 --summary summary.md

  # Use the settings of a profile
  ballotharvest tree --profile lancaster-2020`,
		Args: cobra.ArbitraryArgs,
		RunE: runTreeCmd,
	}

	addCommonFlags(cmd)

	cmd.Flags().StringSlice("denylist", crawler.DefaultDenylist,
		"Link labels never followed")
	cmd.Flags().IntP("depth", "d", crawler.DefaultMaxDepth,
		"Maximum link depth from the root page")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Sibling pages fetched in parallel")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Root URLs harvested concurrently")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path patterns to skip (e.g. /archive/*)")
	cmd.Flags().Bool("same-host", false,
		"Only follow links on the root page's host")

	return cmd
}

func runTreeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, model.SourceTree, args)
	if err != nil {
		return err
	}
	if err := applyTreeFlags(cmd, cfg); err != nil {
		return err
	}
	return runHarvest(cmd, cfg, treeEngine(cfg))
}

// applyTreeFlags copies explicitly set tree flags into cfg.
func applyTreeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("denylist") {
		if cfg.Denylist, err = flags.GetStringSlice("denylist"); err != nil {
			return err
		}
	}
	if flags.Changed("depth") {
		if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
			return err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return err
		}
	}
	if flags.Changed("ignore") {
		if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
			return err
		}
	}
	if flags.Changed("same-host") {
		if cfg.SameHostOnly, err = flags.GetBool("same-host"); err != nil {
			return err
		}
	}
	return nil
}

// treeEngine returns a factory of tree crawlers configured from cfg.
func treeEngine(cfg *config.Config) engineFactory {
	return func(client *fetch.Client, out io.Writer, logger *slog.Logger) pipeline.HarvestFunc {
		return crawler.NewTreeCrawler(client,
			crawler.WithDenylist(cfg.Denylist),
			crawler.WithIgnorePatterns(cfg.IgnorePatterns),
			crawler.WithMaxDepth(cfg.MaxDepth),
			crawler.WithConcurrency(cfg.Concurrency),
			crawler.WithSameHostOnly(cfg.SameHostOnly),
			crawler.WithLogger(logger),
			crawler.WithProgress(out),
		).Crawl
	}
}
