package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/ballotharvest/internal/model"
)

// ErrNoResult is returned when a harvest engine reports success without a result.
var ErrNoResult = errors.New("harvest returned no result")

// HarvestFunc runs one harvesting engine from rootURL. The method values
// TreeCrawler.Crawl, Walker.Walk and Harvester.Harvest all satisfy it.
type HarvestFunc func(ctx context.Context, rootURL string) (*model.HarvestResult, error)

// HarvestStep runs an engine and merges its rows, issues and stats into
// the report. An engine error is fatal to the run.
type HarvestStep struct {
	harvest HarvestFunc
	logger  *slog.Logger
}

// HarvestStepOption configures a HarvestStep.
type HarvestStepOption func(*HarvestStep)

// WithHarvestLogger sets a custom logger for the harvest step.
func WithHarvestLogger(logger *slog.Logger) HarvestStepOption {
	return func(s *HarvestStep) {
		s.logger = logger
	}
}

// NewHarvestStep creates a harvest step around fn.
func NewHarvestStep(fn HarvestFunc, opts ...HarvestStepOption) *HarvestStep {
	s := &HarvestStep{
		harvest: fn,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *HarvestStep) Name() string {
	return "harvest"
}

// Do executes the harvest step.
func (s *HarvestStep) Do(ctx context.Context, report *model.HarvestReport) error {
	result, err := s.harvest(ctx, report.RootURL)
	report.DateFinished = time.Now()
	if err != nil {
		return fmt.Errorf("harvest %s: %w", report.RootURL, err)
	}
	if result == nil {
		return ErrNoResult
	}

	if err := report.Rows.AppendAll(result.Rows); err != nil {
		return err
	}
	if result.Issues != nil {
		for _, issue := range result.Issues.Issues() {
			report.Issues.Record(issue.Kind, issue.URL, issue.Detail)
		}
	}
	report.Stats = result.Stats

	s.logger.Info("harvest completed",
		"root", report.RootURL,
		"rows", report.Rows.Len(),
		"issues", report.Issues.Len(),
		"pages_visited", report.Stats.PagesVisited,
	)
	return nil
}

// TableExporter writes the rows of a report and returns the file path.
// *report.TableWriter implements it.
type TableExporter interface {
	WriteTable(report *model.HarvestReport) (string, error)
}

// ExportStep writes the collected rows once, after the harvest finished.
type ExportStep struct {
	exporter TableExporter
	progress io.Writer
	logger   *slog.Logger
}

// ExportStepOption configures an ExportStep.
type ExportStepOption func(*ExportStep)

// WithExportProgress sets where the written path and row count are printed.
func WithExportProgress(w io.Writer) ExportStepOption {
	return func(s *ExportStep) {
		s.progress = w
	}
}

// WithExportLogger sets a custom logger for the export step.
func WithExportLogger(logger *slog.Logger) ExportStepOption {
	return func(s *ExportStep) {
		s.logger = logger
	}
}

// NewExportStep creates an export step.
func NewExportStep(exporter TableExporter, opts ...ExportStepOption) *ExportStep {
	s := &ExportStep{
		exporter: exporter,
		progress: io.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do executes the export step.
func (s *ExportStep) Do(_ context.Context, report *model.HarvestReport) error {
	path, err := s.exporter.WriteTable(report)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	report.OutputFile = path

	_, _ = fmt.Fprintf(s.progress, "Wrote %d rows to %s\n", report.Rows.Len(), path)
	s.logger.Debug("table written", "path", path)
	return nil
}

// RunStore saves a finished report and returns its run ID.
// *database.HistoryDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, report *model.HarvestReport) (int64, error)
}

// PersistStep records the run in the history database.
type PersistStep struct {
	store  RunStore
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a persist step.
func NewPersistStep(store RunStore, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, report *model.HarvestReport) error {
	id, err := s.store.SaveRun(ctx, report)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	report.RunID = id
	s.logger.Debug("run saved", "run_id", id)
	return nil
}
