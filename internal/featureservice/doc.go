// Package featureservice harvests precinct-level results from an ArcGIS
// feature service layer.
//
// Unlike the HTML sources, the service already returns structured records,
// so harvesting is two kinds of statistics queries: one listing the
// precincts, then one per (contest, precinct) pair summing the total votes
// per candidate and party.
package featureservice
