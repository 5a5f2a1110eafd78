package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/ballotharvest/internal/model"
)

// ErrNoSchema is returned when a report's source has no output schema.
var ErrNoSchema = errors.New("no schema for source")

// Default filename prefixes per source.
var defaultPrefixes = map[model.Source]string{
	model.SourceTree:     "lancaster_election_results",
	model.SourcePostback: "candidates",
	model.SourceFeatures: "montco_precinct_results",
}

// DefaultPrefix returns the output filename prefix of source.
func DefaultPrefix(source model.Source) string {
	if p, ok := defaultPrefixes[source]; ok {
		return p
	}
	return string(source)
}

// TableWriter writes harvested rows to a dated xlsx workbook.
type TableWriter struct {
	dir    string
	prefix string
	now    func() time.Time
}

// TableOption configures a TableWriter.
type TableOption func(*TableWriter)

// WithPrefix overrides the per-source filename prefix.
func WithPrefix(prefix string) TableOption {
	return func(w *TableWriter) {
		w.prefix = prefix
	}
}

// WithClock sets the clock used to date the filename.
func WithClock(now func() time.Time) TableOption {
	return func(w *TableWriter) {
		w.now = now
	}
}

// NewTableWriter creates a TableWriter saving workbooks into dir.
func NewTableWriter(dir string, opts ...TableOption) *TableWriter {
	w := &TableWriter{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the workbook path for source: <dir>/<prefix>_<YYYYMMDD>.xlsx.
func (w *TableWriter) Path(source model.Source) string {
	prefix := w.prefix
	if prefix == "" {
		prefix = DefaultPrefix(source)
	}
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.xlsx", prefix, w.now().Format("20060102")))
}

// WriteTable saves the rows of report to one sheet named after the source,
// header row first. Integer fields are stored as numbers.
// It returns the path of the written file.
func (w *TableWriter) WriteTable(report *model.HarvestReport) (path string, err error) {
	schema := model.SchemaFor(report.Source)
	if schema == nil {
		return "", fmt.Errorf("%w: %q", ErrNoSchema, report.Source)
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sheet := string(report.Source)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, name := range schema {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	var rows []model.ResultRow
	if report.Rows != nil {
		rows = report.Rows.Rows()
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return "", err
		}
		values := []any(row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	if w.dir != "" {
		if err := os.MkdirAll(w.dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	path = w.Path(report.Source)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	return path, nil
}
