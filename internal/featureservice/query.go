package featureservice

import (
	"fmt"
	"net/url"
	"strings"
)

// outStatistics parameters of the two query kinds.
const (
	precinctStatistics = `[{"statisticType":"count","onStatisticField":"Precinct_Sort","outStatisticFieldName":"count_result"}]`
	resultStatistics   = `[{"statisticType":"sum","onStatisticField":"Votes","outStatisticFieldName":"value"}]`
)

// baseParams are shared by every query: JSON output, no geometry, standard results.
func baseParams() url.Values {
	v := url.Values{}
	v.Set("f", "json")
	v.Set("returnGeometry", "false")
	v.Set("spatialRel", "esriSpatialRelIntersects")
	v.Set("outFields", "*")
	v.Set("resultType", "standard")
	v.Set("cacheHint", "true")
	return v
}

// PrecinctQuery lists the distinct precincts reporting on contest.
func PrecinctQuery(contest string) url.Values {
	v := baseParams()
	v.Set("where", fmt.Sprintf("Contest_title=%s", quote(contest)))
	v.Set("groupByFieldsForStatistics", "Precinct_Sort")
	v.Set("orderByFields", "Precinct_Sort asc")
	v.Set("outStatistics", precinctStatistics)
	return v
}

// ResultsQuery sums the total votes per candidate and party for one
// contest in one precinct.
func ResultsQuery(contest, precinct string) url.Values {
	v := baseParams()
	v.Set("where", fmt.Sprintf("(Vote_Type='Total Votes') AND (Precinct_Sort=%s) AND (Contest_title=%s)",
		quote(precinct), quote(contest)))
	v.Set("groupByFieldsForStatistics", "candidate_name,Party_Code")
	v.Set("orderByFields", "value desc")
	v.Set("outStatistics", resultStatistics)
	return v
}

// quote renders s as an SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// queryResponse is the body of a feature service query.
// The service reports query errors with status 200 and an error object.
type queryResponse struct {
	Features []feature     `json:"features"`
	Error    *serviceError `json:"error,omitempty"`
}

type feature struct {
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	PrecinctSort  string   `json:"Precinct_Sort"`
	CandidateName string   `json:"candidate_name"`
	PartyCode     *string  `json:"Party_Code"`
	Value         *float64 `json:"value"`
}

type serviceError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *serviceError) String() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("service error %d: %s (%s)", e.Code, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("service error %d: %s", e.Code, e.Message)
}
