package model

import "time"

// Source identifies which harvesting engine produced a report.
type Source string

// Supported sources.
const (
	// SourceTree is the recursive tree crawler over result/navigation pages.
	SourceTree Source = "tree"

	// SourcePostback is the postback pagination walker over candidate listings.
	SourcePostback Source = "postback"

	// SourceFeatures is the JSON feature-service harvester.
	SourceFeatures Source = "features"
)

// SchemaFor returns the output schema produced by the source.
func SchemaFor(source Source) Schema {
	switch source {
	case SourceTree:
		return ContestSchema
	case SourcePostback:
		return CandidateSchema
	case SourceFeatures:
		return PrecinctSchema
	default:
		return nil
	}
}

// HarvestReport is the result of one harvest run.
// It travels through the pipeline; each step fills in its part.
type HarvestReport struct {
	// Source is the engine that produced the rows.
	Source Source `json:"source"`

	// RootURL is the URL the harvest started from.
	RootURL string `json:"root_url"`

	// DateStarted is when the run began.
	DateStarted time.Time `json:"date_started"`

	// DateFinished is when the harvest step ended.
	DateFinished time.Time `json:"date_finished"`

	// Rows is the accumulated output.
	Rows *ResultSet `json:"-"`

	// Issues collects per-page and per-record problems.
	Issues *IssueLog `json:"-"`

	// Stats holds request counters of the run.
	Stats Stats `json:"stats"`

	// OutputFile is the path of the written table, once exported.
	OutputFile string `json:"output_file,omitempty"`

	// RunID is the history database identifier, once persisted.
	RunID int64 `json:"run_id,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// TimedOut is set when the run was cancelled.
	TimedOut bool `json:"timed_out"`

	// Error is the fatal error of the run, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as a string for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// Stats are request counters of a run. Fields not used by a source stay zero.
type Stats struct {
	PagesVisited    int `json:"pages_visited"`
	ResultsPages    int `json:"results_pages,omitempty"`
	NavigationPages int `json:"navigation_pages,omitempty"`
	ListPages       int `json:"list_pages,omitempty"`
	DetailRequests  int `json:"detail_requests,omitempty"`
	AdvanceRequests int `json:"advance_requests,omitempty"`
	Queries         int `json:"queries,omitempty"`
}

// NewHarvestReport creates a report for a run of source starting at rootURL.
func NewHarvestReport(source Source, rootURL string) *HarvestReport {
	return &HarvestReport{
		Source:         source,
		RootURL:        rootURL,
		DateStarted:    time.Now(),
		Rows:           NewResultSet(SchemaFor(source)),
		Issues:         NewIssueLog(),
		PerformedSteps: make([]string, 0),
	}
}

// Elapsed returns the duration of the harvest step.
func (r *HarvestReport) Elapsed() time.Duration {
	if r.DateFinished.IsZero() {
		return time.Since(r.DateStarted)
	}
	return r.DateFinished.Sub(r.DateStarted)
}

// Failed reports whether the run ended with a fatal error.
func (r *HarvestReport) Failed() bool {
	return r.Error != nil
}

// HarvestResult is the output of one engine run, before it is merged into
// a HarvestReport.
type HarvestResult struct {
	// Rows are the extracted rows in harvest order.
	Rows []ResultRow

	// Issues are the recoverable problems met on the way.
	Issues *IssueLog

	// Stats are the request counters of the run.
	Stats Stats
}
