package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/ballotharvest/internal/config"
	"github.com/nao1215/ballotharvest/internal/database"
	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/log"
	"github.com/nao1215/ballotharvest/internal/model"
	"github.com/nao1215/ballotharvest/internal/pipeline"
	"github.com/nao1215/ballotharvest/internal/report"
)

// addCommonFlags registers the flags shared by every harvest command.
func addCommonFlags(cmd *cobra.Command) {
	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Profile file path (default: .ballotharvest in current or home directory, then the XDG config directory)")
	cmd.Flags().StringP("profile", "P", "",
		"Name of the profile to apply from the profile file")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", ".",
		"Directory receiving the xlsx workbook")
	cmd.Flags().String("output-prefix", "",
		"Workbook filename prefix (default depends on the command)")
	cmd.Flags().StringArrayP("summary", "s", nil,
		"Write a run summary to this file ('-' for stdout, repeatable)")
	cmd.Flags().String("summary-format", report.FormatMarkdown,
		"Summary format for '-' and files without a .json, .md or .txt extension")

	// Transport flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries,
		"Retries after a network error, 429 or 5xx response")
	cmd.Flags().String("user-agent", fetch.DefaultUserAgent,
		"User-Agent header sent with every request")

	// History flags
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
}

// buildConfig creates the Config of a harvest command: defaults, then the
// profile file, then positional arguments and explicitly set flags.
func buildConfig(cmd *cobra.Command, source model.Source, args []string) (*config.Config, error) {
	cfg := config.NewConfig(source)
	flags := cmd.Flags()

	var err error
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Profile, err = flags.GetString("profile"); err != nil {
		return nil, err
	}
	if err := applyProfileFile(cfg); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.RootURLs = args
	}

	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output-prefix") {
		if cfg.OutputPrefix, err = flags.GetString("output-prefix"); err != nil {
			return nil, err
		}
	}
	if cfg.SummaryFiles, err = flags.GetStringArray("summary"); err != nil {
		return nil, err
	}
	if cfg.SummaryFormat, err = flags.GetString("summary-format"); err != nil {
		return nil, err
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retries") {
		if cfg.Retries, err = flags.GetInt("retries"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	return cfg, nil
}

// applyProfileFile loads the profile file and applies the selected profile.
// A missing file is only an error when it was named explicitly.
func applyProfileFile(cfg *config.Config) error {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		if cfg.Profile != "" {
			return fmt.Errorf("%w: %q (no profile file found)", config.ErrProfileNotFound, cfg.Profile)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load profile file %s: %w", path, err)
	}
	profile, err := file.GetProfile(cfg.Profile)
	if err != nil {
		return err
	}
	if err := cfg.ApplyProfile(profile); err != nil {
		return fmt.Errorf("profile %q: %w", cfg.Profile, err)
	}
	return nil
}

// getBoolFlag retrieves a flag from the command or the root's persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// newLogger creates the redacting logger selected by the config.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// engineFactory builds a fresh engine for one root and returns its harvest
// function. out receives progress lines.
type engineFactory func(client *fetch.Client, out io.Writer, logger *slog.Logger) pipeline.HarvestFunc

// syncWriter serializes progress output of concurrent runs.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// runHarvest validates cfg and harvests every root URL, one pipeline per root.
func runHarvest(cmd *cobra.Command, cfg *config.Config, newEngine engineFactory) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &syncWriter{w: cmd.OutOrStdout()}

	client, err := fetch.NewClient(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithRetries(cfg.Retries),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Info("history database opened", "path", db.Path())
	}

	factory := func(index int, _ string) *pipeline.Pipeline {
		p := pipeline.New(pipeline.WithLogger(logger))
		p.AddStep(pipeline.NewHarvestStep(newEngine(client, out, logger), pipeline.WithHarvestLogger(logger)))
		p.AddStep(pipeline.NewExportStep(
			tableWriter(cfg, index),
			pipeline.WithExportProgress(out),
			pipeline.WithExportLogger(logger),
		))
		if db != nil {
			p.AddStep(pipeline.NewPersistStep(db, pipeline.WithPersistLogger(logger)))
		}
		return p
	}

	startTime := time.Now()
	var reports []*model.HarvestReport
	if len(cfg.RootURLs) == 1 {
		root := cfg.RootURLs[0]
		_, _ = fmt.Fprintf(out, "Harvesting %s...\n", root)
		r := model.NewHarvestReport(cfg.Source, root)
		_ = factory(0, root).Execute(ctx, r) //nolint:errcheck // error is kept in the report
		reports = append(reports, r)
	} else {
		_, _ = fmt.Fprintf(out, "Harvesting %d roots (concurrency: %d)...\n", len(cfg.RootURLs), cfg.BatchSize)
		bp := pipeline.NewBatchProcessor(cfg.Source, factory,
			pipeline.WithConcurrency(cfg.BatchSize),
			pipeline.WithBatchLogger(logger),
		)
		reports, err = bp.ProcessBatch(ctx, cfg.RootURLs)
		if err != nil {
			logger.Warn("batch interrupted", "error", err)
		}
	}

	for _, r := range reports {
		if r != nil {
			printOutcome(out, r)
		}
	}
	_, _ = fmt.Fprintf(out, "Done in %s\n", time.Since(startTime).Round(time.Millisecond))

	if err := writeSummary(cmd.OutOrStdout(), cfg, reports); err != nil {
		logger.Error("failed to write summary", "error", err)
	}

	return firstFailure(ctx, reports)
}

// tableWriter returns the workbook writer of the index-th root. Batch runs
// number their files so roots harvested on the same day do not collide.
func tableWriter(cfg *config.Config, index int) *report.TableWriter {
	prefix := cfg.OutputPrefix
	if len(cfg.RootURLs) > 1 {
		if prefix == "" {
			prefix = report.DefaultPrefix(cfg.Source)
		}
		prefix = fmt.Sprintf("%s_%d", prefix, index+1)
	}
	var opts []report.TableOption
	if prefix != "" {
		opts = append(opts, report.WithPrefix(prefix))
	}
	return report.NewTableWriter(cfg.OutputDir, opts...)
}

// printOutcome prints the one-line result of a run.
func printOutcome(w io.Writer, r *model.HarvestReport) {
	switch {
	case r.TimedOut:
		_, _ = fmt.Fprintf(w, "Interrupted %s after %d rows\n", r.RootURL, r.Rows.Len())
	case r.Failed():
		_, _ = fmt.Fprintf(w, "Failed %s: %s\n", r.RootURL, r.ErrorMessage)
	default:
		_, _ = fmt.Fprintf(w, "Harvested %d rows from %s\n", r.Rows.Len(), r.RootURL)
		if n := r.Issues.Len(); n > 0 {
			_, _ = fmt.Fprintf(w, "  %d issue(s) recorded (use --summary for details)\n", n)
		}
		if r.RunID != 0 {
			_, _ = fmt.Fprintf(w, "  saved as run #%d\n", r.RunID)
		}
	}
}

// writeSummary writes the summaries of reports to every summary destination.
// The format of a file follows its extension, falling back to cfg.SummaryFormat.
func writeSummary(stdout io.Writer, cfg *config.Config, reports []*model.HarvestReport) (err error) {
	if len(cfg.SummaryFiles) == 0 {
		return nil
	}

	writers := make([]report.Writer, 0, len(cfg.SummaryFiles))
	for _, path := range cfg.SummaryFiles {
		output := stdout
		if path != "-" {
			f, ferr := createSummaryFile(path)
			if ferr != nil {
				return ferr
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			output = f
		}
		w, werr := report.NewWriter(report.FormatForPath(path, cfg.SummaryFormat), output, getVersion())
		if werr != nil {
			return werr
		}
		writers = append(writers, w)
	}

	w := report.NewMultiWriter(writers...)
	for _, r := range reports {
		if r == nil {
			continue
		}
		if _, err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func createSummaryFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create summary directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to create summary file: %w", err)
	}
	return f, nil
}

// errInterrupted is returned when the run was stopped by a signal.
var errInterrupted = errors.New("harvest interrupted")

// firstFailure returns the error that makes the process exit non-zero.
func firstFailure(ctx context.Context, reports []*model.HarvestReport) error {
	if ctx.Err() != nil {
		return errInterrupted
	}
	var errs []error
	for _, r := range reports {
		if r != nil && r.Failed() {
			errs = append(errs, r.Error)
		}
	}
	return errors.Join(errs...)
}
