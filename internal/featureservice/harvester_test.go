package featureservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/model"
)

func newTestClient(t *testing.T) *fetch.Client {
	t.Helper()
	client, err := fetch.NewClient(
		fetch.WithTimeout(5*time.Second),
		fetch.WithRetries(0),
		fetch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// featureServer answers precinct and results queries from fixed data.
func featureServer(t *testing.T, queries *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries.Add(1)
		q := r.URL.Query()
		if q.Get("f") != "json" {
			t.Errorf("expected f=json, got %q", q.Get("f"))
		}
		where := q.Get("where")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case q.Get("groupByFieldsForStatistics") == "Precinct_Sort":
			if where != "Contest_title='Attorney General'" {
				t.Errorf("unexpected precinct filter %q", where)
			}
			_, _ = w.Write([]byte(`{"features":[
				{"attributes":{"Precinct_Sort":"Abington 1-1","count_result":3}},
				{"attributes":{"Precinct_Sort":"Ambler 1","count_result":3}}
			]}`))
		case strings.Contains(where, "Precinct_Sort='Ambler 1'") && strings.Contains(where, "Contest_title='State Treasurer'"):
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid query","details":[]}}`))
		case strings.Contains(where, "Precinct_Sort='Abington 1-1'"):
			_, _ = w.Write([]byte(`{"features":[
				{"attributes":{"candidate_name":"Jane Doe","Party_Code":"DEM","value":120}},
				{"attributes":{"candidate_name":"John Roe","Party_Code":"REP","value":80}},
				{"attributes":{"candidate_name":"","Party_Code":"IND","value":1}}
			]}`))
		default:
			_, _ = w.Write([]byte(`{"features":[
				{"attributes":{"candidate_name":"Write-In","Party_Code":null,"value":2}}
			]}`))
		}
	}))
}

// TestHarvester tests the feature-service harvest.
func TestHarvester(t *testing.T) {
	t.Parallel()

	t.Run("queries every contest and precinct pair", func(t *testing.T) {
		t.Parallel()

		var queries atomic.Int32
		server := featureServer(t, &queries)
		defer server.Close()

		harvester := NewHarvester(newTestClient(t),
			WithContests([]string{"Attorney General", "State Treasurer"}),
			WithLogger(discardLogger()),
		)
		result, err := harvester.Harvest(context.Background(), server.URL+"/query")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []model.ResultRow{
			{"Attorney General", "Abington 1-1", "Jane Doe", "DEM", 120},
			{"Attorney General", "Abington 1-1", "John Roe", "REP", 80},
			{"Attorney General", "Ambler 1", "Write-In", "", 2},
			{"State Treasurer", "Abington 1-1", "Jane Doe", "DEM", 120},
			{"State Treasurer", "Abington 1-1", "John Roe", "REP", 80},
		}
		if diff := cmp.Diff(want, result.Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}

		counts := result.Issues.CountByKind()
		if counts[model.IssueRequestFailed] != 1 || counts[model.IssueIncompleteRow] != 2 {
			t.Errorf("unexpected issues %v", result.Issues.Issues())
		}
		if result.Stats.Queries != 5 || queries.Load() != 5 {
			t.Errorf("expected 5 queries, got stats %d and server %d", result.Stats.Queries, queries.Load())
		}
		for _, row := range result.Rows {
			if err := row.Validate(model.PrecinctSchema); err != nil {
				t.Errorf("row does not fit the schema: %v", err)
			}
		}
	})

	t.Run("parallel queries keep the order", func(t *testing.T) {
		t.Parallel()

		var queries atomic.Int32
		server := featureServer(t, &queries)
		defer server.Close()

		contests := []string{"Attorney General", "State Treasurer"}
		sequential, err := NewHarvester(newTestClient(t), WithContests(contests), WithLogger(discardLogger())).
			Harvest(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		parallel, err := NewHarvester(newTestClient(t), WithContests(contests), WithLogger(discardLogger()), WithConcurrency(4)).
			Harvest(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(sequential.Rows, parallel.Rows); diff != "" {
			t.Errorf("parallel order differs (-sequential +parallel):\n%s", diff)
		}
	})

	t.Run("client errors on a pair are recorded", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("groupByFieldsForStatistics") == "Precinct_Sort" {
				_, _ = w.Write([]byte(`{"features":[{"attributes":{"Precinct_Sort":"P1"}}]}`))
				return
			}
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		result, err := NewHarvester(newTestClient(t), WithContests([]string{"C"}), WithLogger(discardLogger())).
			Harvest(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Rows) != 0 || result.Issues.Len() != 1 {
			t.Errorf("expected one issue and no rows, got %v / %v", result.Rows, result.Issues.Issues())
		}
	})

	t.Run("oversized responses on a pair are recorded", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("groupByFieldsForStatistics") == "Precinct_Sort" {
				_, _ = w.Write([]byte(`{"features":[{"attributes":{"Precinct_Sort":"P1"}}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"features":[` + strings.Repeat(`{"attributes":{"candidate_name":"A","value":1}},`, 200) +
				`{"attributes":{"candidate_name":"B","value":2}}]}`))
		}))
		defer server.Close()

		client, err := fetch.NewClient(
			fetch.WithTimeout(5*time.Second),
			fetch.WithRetries(0),
			fetch.WithMaxBodySize(1024),
			fetch.WithLogger(discardLogger()),
		)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		result, err := NewHarvester(client, WithContests([]string{"C"}), WithLogger(discardLogger())).
			Harvest(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Rows) != 0 {
			t.Errorf("expected no rows, got %v", result.Rows)
		}
		if got := result.Issues.CountByKind()[model.IssueBodyTooLarge]; got != 1 {
			t.Errorf("expected a body_too_large issue, got %v", result.Issues.Issues())
		}
	})

	t.Run("server errors are fatal", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewHarvester(newTestClient(t), WithContests([]string{"C"}), WithLogger(discardLogger())).
			Harvest(context.Background(), server.URL)
		if !fetch.IsTransportError(err) {
			t.Errorf("expected TransportError, got %v", err)
		}
	})

	t.Run("configuration errors", func(t *testing.T) {
		t.Parallel()

		h := NewHarvester(newTestClient(t), WithLogger(discardLogger()))
		if _, err := h.Harvest(context.Background(), DefaultQueryURL); !errors.Is(err, ErrNoContests) {
			t.Errorf("expected ErrNoContests, got %v", err)
		}
		if _, err := h.Harvest(context.Background(), "query"); !errors.Is(err, ErrInvalidQueryURL) {
			t.Errorf("expected ErrInvalidQueryURL, got %v", err)
		}
	})
}

// TestQueries tests query parameter construction.
func TestQueries(t *testing.T) {
	t.Parallel()

	q := ResultsQuery("Attorney General", "O'Neill 2")
	wantWhere := "(Vote_Type='Total Votes') AND (Precinct_Sort='O''Neill 2') AND (Contest_title='Attorney General')"
	if q.Get("where") != wantWhere {
		t.Errorf("unexpected where clause %q", q.Get("where"))
	}
	if q.Get("groupByFieldsForStatistics") != "candidate_name,Party_Code" {
		t.Errorf("unexpected grouping %q", q.Get("groupByFieldsForStatistics"))
	}

	var stats []map[string]string
	if err := json.Unmarshal([]byte(q.Get("outStatistics")), &stats); err != nil {
		t.Fatalf("outStatistics is not JSON: %v", err)
	}
	want := []map[string]string{{"statisticType": "sum", "onStatisticField": "Votes", "outStatisticFieldName": "value"}}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("statistics mismatch (-want +got):\n%s", diff)
	}

	precinct := PrecinctQuery("Attorney General")
	if got := precinct.Get("orderByFields"); got != "Precinct_Sort asc" {
		t.Errorf("unexpected precinct ordering %q", got)
	}
	stats = nil
	if err := json.Unmarshal([]byte(precinct.Get("outStatistics")), &stats); err != nil {
		t.Fatalf("precinct outStatistics is not JSON: %v", err)
	}
	want = []map[string]string{{"statisticType": "count", "onStatisticField": "Precinct_Sort", "outStatisticFieldName": "count_result"}}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("precinct statistics mismatch (-want +got):\n%s", diff)
	}
}
