package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/ballotharvest/internal/config"
	"github.com/nao1215/ballotharvest/internal/database"
	"github.com/nao1215/ballotharvest/internal/model"
)

// Output formats of the history command.
const (
	historyFormatText     = "text"
	historyFormatMarkdown = "markdown"
	historyFormatJSON     = "json"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [--compare OLDER NEWER]",
		Short: "List recorded runs or compare two of them",
		Long: `History lists the runs recorded in the history database, newest first.

With --compare, it prints the rows added and removed between two runs of
the same source. Row order is ignored, so a parallel crawl compares equal
to a sequential one. Two identical runs show that the harvest is repeatable.

Examples:
  # List every recorded run
  ballotharvest history

  # List tree crawler runs only
  ballotharvest history --source tree

  # Compare run 3 with run 7
  ballotharvest history --compare 3 7

  # Comparison as Markdown
  ballotharvest history --compare 3 7 --format markdown`,
		Args: cobra.MaximumNArgs(2),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("source", "",
		"Only list runs of this source (tree, postback or features)")
	cmd.Flags().Bool("compare", false,
		"Compare the two run IDs given as arguments")
	cmd.Flags().StringP("format", "f", historyFormatText,
		"Output format: text, markdown or json")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	source  model.Source
	compare bool
	older   int64
	newer   int64
	format  string
	dbDir   string
}

func parseHistoryOptions(cmd *cobra.Command, args []string) (*historyOptions, error) {
	opts := &historyOptions{dbDir: config.XDGDataDir()}
	flags := cmd.Flags()

	source, err := flags.GetString("source")
	if err != nil {
		return nil, err
	}
	switch model.Source(source) {
	case "", model.SourceTree, model.SourcePostback, model.SourceFeatures:
		opts.source = model.Source(source)
	default:
		return nil, fmt.Errorf("unknown source %q (use tree, postback or features)", source)
	}

	if opts.format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	switch opts.format {
	case historyFormatText, historyFormatMarkdown, historyFormatJSON:
	default:
		return nil, fmt.Errorf("unknown format %q (use text, markdown or json)", opts.format)
	}

	if flags.Changed("db-dir") {
		if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}

	if opts.compare, err = flags.GetBool("compare"); err != nil {
		return nil, err
	}
	if !opts.compare {
		if len(args) > 0 {
			return nil, errors.New("run IDs are only accepted with --compare")
		}
		return opts, nil
	}
	if len(args) != 2 {
		return nil, errors.New("--compare needs two run IDs: OLDER NEWER")
	}
	if opts.older, err = parseRunID(args[0]); err != nil {
		return nil, err
	}
	if opts.newer, err = parseRunID(args[1]); err != nil {
		return nil, err
	}
	return opts, nil
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run ID %q", s)
	}
	return id, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening the database.
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if opts.compare {
		return compareRuns(ctx, out, db, opts)
	}
	return listRuns(ctx, out, db, opts)
}

// listRuns prints the recorded runs, newest first.
func listRuns(ctx context.Context, w io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.source)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	switch opts.format {
	case historyFormatJSON:
		return writeJSON(w, runs)
	case historyFormatMarkdown:
		return listRunsMarkdown(w, runs)
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded.")
		_, _ = fmt.Fprintln(w, "\nUse 'ballotharvest tree', 'postback' or 'features' to harvest a site.")
		return nil
	}

	_, _ = fmt.Fprintf(w, "Recorded runs (%d):\n\n", len(runs))
	_, _ = fmt.Fprintf(w, "  %-6s  %-9s  %-19s  %-8s  %-7s  %-7s  %s\n",
		"ID", "Source", "Started", "Rows", "Issues", "Status", "Root URL")
	_, _ = fmt.Fprintln(w, "  "+strings.Repeat("-", 90))
	for _, run := range runs {
		_, _ = fmt.Fprintf(w, "  %-6d  %-9s  %-19s  %-8d  %-7d  %-7s  %s\n",
			run.ID,
			run.Source,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.RowCount,
			run.IssueCount,
			runStatus(run),
			run.RootURL,
		)
	}
	_, _ = fmt.Fprintln(w, "\nUse 'ballotharvest history --compare <older> <newer>' to compare two runs.")
	return nil
}

func listRunsMarkdown(w io.Writer, runs []database.RunRecord) error {
	md := markdown.NewMarkdown(w).H1("Recorded Runs")
	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return md.Build()
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			string(run.Source),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(run.RowCount),
			strconv.Itoa(run.IssueCount),
			runStatus(run),
			run.RootURL,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Source", "Started", "Rows", "Issues", "Status", "Root URL"},
		Rows:   rows,
	})
	return md.Build()
}

func runStatus(run database.RunRecord) string {
	if run.Error != "" {
		return "failed"
	}
	return "ok"
}

// comparison is the result of comparing two runs.
type comparison struct {
	Older     database.RunRecord `json:"older"`
	Newer     database.RunRecord `json:"newer"`
	Identical bool               `json:"identical"`
	Added     []model.ResultRow  `json:"added"`
	Removed   []model.ResultRow  `json:"removed"`
	Unchanged int                `json:"unchanged"`
}

// compareRuns prints the row differences between two runs.
func compareRuns(ctx context.Context, w io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	older, err := db.GetRun(ctx, opts.older)
	if err != nil {
		return fmt.Errorf("run %d: %w", opts.older, err)
	}
	newer, err := db.GetRun(ctx, opts.newer)
	if err != nil {
		return fmt.Errorf("run %d: %w", opts.newer, err)
	}
	diff, err := db.CompareRuns(ctx, opts.older, opts.newer)
	if err != nil {
		return err
	}

	result := &comparison{
		Older:     *older,
		Newer:     *newer,
		Identical: diff.Identical(),
		Added:     diff.Added,
		Removed:   diff.Removed,
		Unchanged: diff.Unchanged,
	}

	switch opts.format {
	case historyFormatJSON:
		return writeJSON(w, result)
	case historyFormatMarkdown:
		return compareMarkdown(w, result)
	default:
		compareText(w, result)
		return nil
	}
}

func compareText(w io.Writer, c *comparison) {
	_, _ = fmt.Fprintf(w, "Run comparison: #%d -> #%d (%s)\n", c.Older.ID, c.Newer.ID, c.Newer.Source)
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 60))
	_, _ = fmt.Fprintf(w, "\nOlder run: %s  %d rows  %s\n",
		c.Older.StartedAt.Local().Format("2006-01-02 15:04:05"), c.Older.RowCount, c.Older.RootURL)
	_, _ = fmt.Fprintf(w, "Newer run: %s  %d rows  %s\n",
		c.Newer.StartedAt.Local().Format("2006-01-02 15:04:05"), c.Newer.RowCount, c.Newer.RootURL)

	if c.Identical {
		_, _ = fmt.Fprintf(w, "\nIDENTICAL: both runs produced the same %d rows\n", c.Unchanged)
		return
	}

	if len(c.Added) > 0 {
		_, _ = fmt.Fprintf(w, "\nAdded rows (%d):\n", len(c.Added))
		for _, row := range c.Added {
			_, _ = fmt.Fprintf(w, "  [+] %s\n", strings.Join(row.Strings(), " | "))
		}
	}
	if len(c.Removed) > 0 {
		_, _ = fmt.Fprintf(w, "\nRemoved rows (%d):\n", len(c.Removed))
		for _, row := range c.Removed {
			_, _ = fmt.Fprintf(w, "  [-] %s\n", strings.Join(row.Strings(), " | "))
		}
	}
	_, _ = fmt.Fprintf(w, "\nUnchanged: %d rows\n", c.Unchanged)
}

func compareMarkdown(w io.Writer, c *comparison) error {
	md := markdown.NewMarkdown(w).
		H1f("Run Comparison: #%d → #%d", c.Older.ID, c.Newer.ID).
		Table(markdown.TableSet{
			Header: []string{"Run", "Started", "Rows", "Root URL"},
			Rows: [][]string{
				{"#" + strconv.FormatInt(c.Older.ID, 10), c.Older.StartedAt.Local().Format("2006-01-02 15:04"), strconv.Itoa(c.Older.RowCount), c.Older.RootURL},
				{"#" + strconv.FormatInt(c.Newer.ID, 10), c.Newer.StartedAt.Local().Format("2006-01-02 15:04"), strconv.Itoa(c.Newer.RowCount), c.Newer.RootURL},
			},
		})

	if c.Identical {
		md.Tipf("Both runs produced the same %d rows.", c.Unchanged)
		return md.Build()
	}

	if len(c.Added) > 0 {
		md.H2f("Added Rows (%d)", len(c.Added)).BulletList(joinRows(c.Added)...)
	}
	if len(c.Removed) > 0 {
		md.H2f("Removed Rows (%d)", len(c.Removed)).BulletList(joinRows(c.Removed)...)
	}
	md.HorizontalRule().PlainTextf("*%d rows unchanged*", c.Unchanged)
	return md.Build()
}

func joinRows(rows []model.ResultRow) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = strings.Join(row.Strings(), " | ")
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
