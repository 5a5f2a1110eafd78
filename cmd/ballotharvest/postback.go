package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/nao1215/ballotharvest/internal/config"
	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/model"
	"github.com/nao1215/ballotharvest/internal/pipeline"
	"github.com/nao1215/ballotharvest/internal/postback"
)

// NewPostbackCmd creates the postback command.
func NewPostbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postback [root-url]",
		Short: "Walk a postback-paginated candidate listing",
		Long: `Postback walks a server-side paginated candidate listing page by page.
On every list page it harvests the session tokens, opens each candidate
detail link and then requests the next page, until the pager marks the
last page. Each candidate contributes one row:

  Candidate ID, Name, Office, District, Party, Mailing Address, Email,
  Phone, Municipality, County

Requests are strictly sequential; each one depends on the tokens of the
previous response.

Examples:
  # Walk the default candidate listing
  ballotharvest postback

  # Stop after 20 list pages
  ballotharvest postback --max-pages 20

  # Resolve detail links against another base URL
  ballotharvest postback --detail-base https://vote.example.gov/ElectionInfo/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPostbackCmd,
	}

	addCommonFlags(cmd)

	cmd.Flags().IntP("max-pages", "p", postback.DefaultMaxPages,
		"Maximum number of list pages")
	cmd.Flags().String("detail-base", "",
		"Base URL detail links are resolved against (default: the root URL)")

	return cmd
}

func runPostbackCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, model.SourcePostback, args)
	if err != nil {
		return err
	}
	if err := applyPostbackFlags(cmd, cfg); err != nil {
		return err
	}

	var detailBase *url.URL
	if cfg.DetailBaseURL != "" {
		if detailBase, err = url.Parse(cfg.DetailBaseURL); err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalidDetailBaseURL, err)
		}
	}
	return runHarvest(cmd, cfg, postbackEngine(cfg, detailBase))
}

// applyPostbackFlags copies explicitly set postback flags into cfg.
func applyPostbackFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return err
		}
	}
	if flags.Changed("detail-base") {
		if cfg.DetailBaseURL, err = flags.GetString("detail-base"); err != nil {
			return err
		}
	}
	return nil
}

// postbackEngine returns a factory of pagination walkers configured from cfg.
func postbackEngine(cfg *config.Config, detailBase *url.URL) engineFactory {
	return func(client *fetch.Client, out io.Writer, logger *slog.Logger) pipeline.HarvestFunc {
		opts := []postback.Option{
			postback.WithMaxPages(cfg.MaxPages),
			postback.WithLogger(logger),
			postback.WithProgress(out),
		}
		if detailBase != nil {
			opts = append(opts, postback.WithDetailBase(detailBase))
		}
		return postback.NewWalker(client, opts...).Walk
	}
}
