package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/ballotharvest/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func treeReport(t *testing.T, rows ...model.ResultRow) *model.HarvestReport {
	t.Helper()

	report := model.NewHarvestReport(model.SourceTree, "https://vote.example.gov/index.html")
	report.DateFinished = report.DateStarted.Add(time.Second)
	report.Stats = model.Stats{PagesVisited: 4, ResultsPages: 3}
	if err := report.Rows.AppendAll(rows); err != nil {
		t.Fatalf("failed to add rows: %v", err)
	}
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false requires an existing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		id, err := db.SaveRun(context.Background(), treeReport(t, model.ResultRow{"Mayor", 1, "A", 1}))
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()
		if _, err := db.GetRun(context.Background(), id); err != nil {
			t.Errorf("expected run to survive reopening: %v", err)
		}
	})
}

// TestSaveRun tests storing and reading back runs.
func TestSaveRun(t *testing.T) {
	t.Parallel()

	t.Run("round-trips rows, issues and stats", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		rows := []model.ResultRow{
			{"President", 1, "Jane Doe", 12345},
			{"President", 1, "John Roe", 6789},
			{"Council", 3, "Sam Poe", 0},
		}
		report := treeReport(t, rows...)
		report.OutputFile = "lancaster_election_results_20241106.xlsx"
		report.Issues.Record(model.IssueRowParse, "https://vote.example.gov/a.html", "bad count")

		id, err := db.SaveRun(ctx, report)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		got, err := db.GetRunRows(ctx, id)
		if err != nil {
			t.Fatalf("failed to get rows: %v", err)
		}
		if diff := cmp.Diff(rows, got); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}

		issues, err := db.GetRunIssues(ctx, id)
		if err != nil {
			t.Fatalf("failed to get issues: %v", err)
		}
		wantIssues := []model.Issue{{Kind: model.IssueRowParse, URL: "https://vote.example.gov/a.html", Detail: "bad count"}}
		if diff := cmp.Diff(wantIssues, issues); diff != "" {
			t.Errorf("issues mismatch (-want +got):\n%s", diff)
		}

		rec, err := db.GetRun(ctx, id)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if rec.Source != model.SourceTree || rec.RowCount != 3 || rec.IssueCount != 1 {
			t.Errorf("unexpected record %+v", rec)
		}
		if rec.Stats.ResultsPages != 3 || rec.OutputFile != report.OutputFile {
			t.Errorf("unexpected record %+v", rec)
		}
		if !rec.StartedAt.Equal(report.DateStarted) {
			t.Errorf("expected start %v, got %v", report.DateStarted, rec.StartedAt)
		}
	})

	t.Run("stores the error of a failed run", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := treeReport(t)
		report.Error = errors.New("root unreachable")

		id, err := db.SaveRun(context.Background(), report)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		rec, err := db.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if rec.Error != "root unreachable" {
			t.Errorf("unexpected error %q", rec.Error)
		}
	})

	t.Run("missing run", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		if _, err := db.GetRun(context.Background(), 42); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if _, err := db.GetRunRows(context.Background(), 42); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

// TestListRuns tests listing with and without a source filter.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	first, err := db.SaveRun(ctx, treeReport(t))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	second, err := db.SaveRun(ctx, model.NewHarvestReport(model.SourcePostback, "https://example.com/list.aspx"))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	third, err := db.SaveRun(ctx, treeReport(t))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	all, err := db.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	ids := make([]int64, len(all))
	for i, r := range all {
		ids[i] = r.ID
	}
	if diff := cmp.Diff([]int64{third, second, first}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	trees, err := db.ListRuns(ctx, model.SourceTree)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(trees) != 2 {
		t.Errorf("expected 2 tree runs, got %d", len(trees))
	}

	none, err := db.ListRuns(ctx, model.SourceFeatures)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected an empty, non-nil list, got %v", none)
	}
}

// TestCompareRuns tests row comparison between runs.
func TestCompareRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	a := model.ResultRow{"Mayor", 1, "Ann", 10}
	b := model.ResultRow{"Mayor", 1, "Bob", 20}
	c := model.ResultRow{"Mayor", 1, "Cy", 30}

	older, err := db.SaveRun(ctx, treeReport(t, a, b))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	same, err := db.SaveRun(ctx, treeReport(t, b, a))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	changed, err := db.SaveRun(ctx, treeReport(t, a, c))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	diff, err := db.CompareRuns(ctx, older, same)
	if err != nil {
		t.Fatalf("failed to compare: %v", err)
	}
	if !diff.Identical() || diff.Unchanged != 2 {
		t.Errorf("expected identical runs, got %+v", diff)
	}

	diff, err = db.CompareRuns(ctx, older, changed)
	if err != nil {
		t.Fatalf("failed to compare: %v", err)
	}
	if d := cmp.Diff([]model.ResultRow{c}, diff.Added); d != "" {
		t.Errorf("added mismatch (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]model.ResultRow{b}, diff.Removed); d != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", d)
	}

	other, err := db.SaveRun(ctx, model.NewHarvestReport(model.SourceFeatures, "https://example.com/query"))
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if _, err := db.CompareRuns(ctx, older, other); !errors.Is(err, ErrSourceMismatch) {
		t.Errorf("expected ErrSourceMismatch, got %v", err)
	}
}

// TestDecodeRow tests restoring stored values.
func TestDecodeRow(t *testing.T) {
	t.Parallel()

	row, err := decodeRow(`["Mayor", 2, "Ann", 12345]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(model.ResultRow{"Mayor", 2, "Ann", 12345}, row); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}

	if _, err := decodeRow("not json"); err == nil {
		t.Error("expected decode error")
	}
}
