// Package pipeline runs a harvest as a sequence of steps.
//
// A run goes harvest → export → persist. HarvestStep wraps one of the
// engines (tree crawler, postback walker, feature-service harvester) and
// merges its rows, issues and stats into a model.HarvestReport; ExportStep
// writes the table once the dataset is complete; PersistStep records the
// run in the history database. A failing step stops the run and its error
// is kept in the report.
//
// BatchProcessor harvests several roots of the same source concurrently
// with errgroup, returning reports in input order.
package pipeline
