package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/ballotharvest/internal/model"
)

// Factory builds the pipeline of the index-th root. It is called once per
// root so per-root state (crawler visited set, output filename) never leaks
// between runs.
type Factory func(index int, rootURL string) *Pipeline

// BatchProcessor harvests several roots of one source concurrently.
type BatchProcessor struct {
	source      model.Source
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of roots harvested at once.
// Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// DefaultBatchConcurrency is the number of roots harvested at once unless
// WithConcurrency says otherwise.
const DefaultBatchConcurrency = 4

// NewBatchProcessor creates a BatchProcessor for source.
func NewBatchProcessor(source model.Source, factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		source:      source,
		factory:     factory,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch harvests every root and returns one report per root, in
// input order. A failed root does not stop the others; its error is kept in
// its report. The returned error is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, roots []string) ([]*model.HarvestReport, error) {
	results := make([]*model.HarvestReport, len(roots))
	err := bp.ProcessBatchWithCallback(ctx, roots, func(report *model.HarvestReport, index int) {
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback harvests every root and calls callback as each
// one completes. The callback runs on the worker goroutine, so it must be
// safe for concurrent use when it touches shared state.
// Roots not started before cancellation get no callback.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	roots []string,
	callback func(report *model.HarvestReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"source", bp.source,
		"total_roots", len(roots),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("harvesting root",
				"root", root,
				"index", i+1,
				"total", len(roots),
			)

			report := model.NewHarvestReport(bp.source, root)
			if err := bp.factory(i, root).Execute(gctx, report); err != nil {
				bp.logger.Warn("harvest failed",
					"root", root,
					"error", err,
				)
			}
			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total_roots", len(roots),
		"elapsed", time.Since(startTime),
	)
	if err == nil {
		err = ctx.Err()
	}
	return err
}
