package model

import (
	"sort"
	"sync"
)

// IssueKind classifies a recoverable per-page or per-record problem.
type IssueKind string

// Issue kinds recorded during a harvest.
const (
	// IssueRowParse means a data row's count cell was not an integer.
	IssueRowParse IssueKind = "row_parse"

	// IssueIncompleteRow means a row lacked a required value.
	IssueIncompleteRow IssueKind = "incomplete_row"

	// IssueUnresolvedVoteFor means the seat count of a contest could not be read.
	IssueUnresolvedVoteFor IssueKind = "unresolved_vote_for"

	// IssueMissingTable means a results page had no detail table where expected.
	IssueMissingTable IssueKind = "missing_table"

	// IssueMissingField means a detail page lacked a required field.
	IssueMissingField IssueKind = "missing_field"

	// IssueDepthExceeded means a link was not followed because of the depth cap.
	IssueDepthExceeded IssueKind = "depth_exceeded"

	// IssuePageCap means pagination stopped at the configured page limit.
	IssuePageCap IssueKind = "page_cap"

	// IssueRequestFailed means a non-fatal request returned an error status.
	IssueRequestFailed IssueKind = "request_failed"

	// IssueNotHTML means a linked page was not an HTML document.
	IssueNotHTML IssueKind = "not_html"

	// IssueBodyTooLarge means a linked page exceeded the response size limit.
	IssueBodyTooLarge IssueKind = "body_too_large"
)

// Issue is a structured warning attributable to one page or record.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	URL    string    `json:"url"`
	Detail string    `json:"detail"`
}

// IssueLog collects issues during a harvest. It is safe for concurrent use.
type IssueLog struct {
	mu     sync.Mutex
	issues []Issue
}

// NewIssueLog creates an empty IssueLog.
func NewIssueLog() *IssueLog {
	return &IssueLog{issues: make([]Issue, 0)}
}

// Record appends an issue.
func (l *IssueLog) Record(kind IssueKind, url, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issues = append(l.issues, Issue{Kind: kind, URL: url, Detail: detail})
}

// Issues returns a copy of the recorded issues in recording order.
func (l *IssueLog) Issues() []Issue {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Issue, len(l.issues))
	copy(out, l.issues)
	return out
}

// Len returns the number of recorded issues.
func (l *IssueLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.issues)
}

// CountByKind returns the number of issues per kind.
func (l *IssueLog) CountByKind() map[IssueKind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[IssueKind]int)
	for _, is := range l.issues {
		counts[is.Kind]++
	}
	return counts
}

// Kinds returns the distinct kinds recorded, sorted by name.
func (l *IssueLog) Kinds() []IssueKind {
	counts := l.CountByKind()
	kinds := make([]IssueKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
