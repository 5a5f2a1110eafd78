package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/ballotharvest/internal/model"
)

// Step is one stage of a harvest run. A step returns an error only when
// the run cannot go on; per-page problems go to report.Issues.
type Step interface {
	Do(ctx context.Context, report *model.HarvestReport) error
	Name() string
}

// Pipeline runs steps in order against one HarvestReport.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger of the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running the remaining steps after a failure.
// The report then holds the last error.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0, 3)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps against report. The context is checked between
// steps; a cancelled run is marked TimedOut and the remaining steps are
// skipped. Step names are appended to report.PerformedSteps as they finish.
func (p *Pipeline) Execute(ctx context.Context, report *model.HarvestReport) error {
	logger := p.logger.With("root", report.RootURL)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			logger.Warn("pipeline cancelled", "before", step.Name(), "reason", err)
			markCancelled(report, err)
			return err
		}

		if err := p.run(ctx, logger, step, report); err != nil {
			setError(report, err)
			if ctx.Err() != nil {
				report.TimedOut = true
			}
			if !p.continueOnError {
				return err
			}
		}
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, step Step, report *model.HarvestReport) error {
	logger.Info("executing step", "step", step.Name())
	start := time.Now()
	err := step.Do(ctx, report)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		logger.Error("step failed", "step", step.Name(), "elapsed", elapsed, "error", err)
		return err
	}
	logger.Debug("step completed", "step", step.Name(), "elapsed", elapsed)
	return nil
}

// markCancelled records a cancellation unless an earlier step already failed.
func markCancelled(report *model.HarvestReport, err error) {
	report.TimedOut = true
	if report.Error == nil {
		setError(report, err)
	}
}

func setError(report *model.HarvestReport, err error) {
	report.Error = err
	report.ErrorMessage = err.Error()
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
