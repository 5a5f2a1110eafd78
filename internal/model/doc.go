// Package model defines the data structures shared by the harvesting engines.
//
// This package contains the following main types:
//   - Page: a fetched document, immutable and short-lived
//   - ResultRow and ResultSet: output records and their append-only accumulation
//   - ContestContext: per-results-page context attached to every row
//   - SessionState: postback tokens harvested from one rendered list page
//   - Issue and IssueLog: per-page and per-record problems reported at the end of a run
//   - HarvestReport: the result of one run as it travels through the pipeline
//
// The models live in their own package because the crawler, postback,
// report and database packages all need them.
package model
