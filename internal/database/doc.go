// Package database stores the history of harvest runs in SQLite
// (modernc.org/sqlite, no cgo).
//
// Each saved run keeps its metadata, its rows as JSON arrays in harvest
// order, and its issues. Two runs of the same source can be compared row by
// row, which makes re-runs against an unchanged site checkable.
package database
