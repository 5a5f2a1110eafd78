package crawler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/ballotharvest/internal/dom"
	"github.com/nao1215/ballotharvest/internal/model"
)

// byPrecinctLabel marks the start of the precinct breakdown sub-table.
const byPrecinctLabel = "BY PRECINCT"

// voteForLexicon maps seat-count words to numbers.
// Lookup follows table order, so "ONE" wins when several words appear.
var voteForLexicon = []struct {
	word  string
	seats int
}{
	{"ONE", 1},
	{"TWO", 2},
	{"THREE", 3},
	{"FOUR", 4},
	{"FIVE", 5},
}

// ParseVoteFor reads the number of seats from a summary cell such as
// "(VOTE FOR TWO)". Lexicon words take precedence; a bare positive integer
// token such as "2" or "(2)" is accepted otherwise. The second result is
// false when the text names no seat count.
func ParseVoteFor(text string) (int, bool) {
	upper := cases.Upper(language.Und).String(strings.Trim(strings.TrimSpace(text), "()"))
	tokens := strings.Fields(upper)
	for i, tok := range tokens {
		tokens[i] = strings.Trim(tok, "()")
	}

	for _, entry := range voteForLexicon {
		if slices.Contains(tokens, entry.word) {
			return entry.seats, true
		}
	}
	for _, tok := range tokens {
		if n, err := strconv.Atoi(tok); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// ParseVotes parses a vote count cell. Thousands separators are accepted.
func ParseVotes(cell string) (int, error) {
	value := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, ErrVoteCount
	}
	return n, nil
}

// Extraction is the outcome of extracting one results page.
type Extraction struct {
	// Context is the contest read from the summary table.
	Context model.ContestContext

	// Rows are the complete rows of the page, in table order.
	Rows []model.ResultRow

	// Issues are the problems found on the page.
	Issues []model.Issue

	// HeaderRows counts the office and vote-for rows left out of a detail
	// table that is also the summary table.
	HeaderRows int
}

// Extractor turns a results page into rows.
type Extractor struct {
	separator string
}

// NewExtractor creates an Extractor for pages bracketed by the separator tag.
func NewExtractor(separator string) *Extractor {
	if separator == "" {
		separator = DefaultSeparator
	}
	return &Extractor{separator: separator}
}

// Extract reads the contest context and the candidate rows of a results page.
//
// The summary table is the second sibling after the first separator and the
// detail table the second sibling before the last one; they may be the same
// table. Only rows with exactly two cells are data rows, and reading stops
// at the "BY PRECINCT" label. Rows that cannot be completed are reported as
// issues and left out, so every returned row carries a value per column.
func (e *Extractor) Extract(doc *dom.Document) Extraction {
	var out Extraction
	pageURL := doc.URL()
	issue := func(kind model.IssueKind, format string, args ...any) {
		out.Issues = append(out.Issues, model.Issue{Kind: kind, URL: pageURL, Detail: fmt.Sprintf(format, args...)})
	}

	seps := doc.All(e.separator)
	if len(seps) == 0 {
		issue(model.IssueMissingTable, "no %s separator on page", e.separator)
		return out
	}

	summary := dom.NextSibling(seps[0], 2)
	if !dom.IsElement(summary, "table") {
		issue(model.IssueMissingTable, "no summary table after first %s", e.separator)
		return out
	}
	summaryRows := dom.Rows(summary)
	if len(summaryRows) == 0 {
		issue(model.IssueMissingTable, "summary table has no rows")
		return out
	}

	office := dom.TrimmedText(summaryRows[0])
	voteForText := ""
	if cells := dom.Cells(summaryRows[len(summaryRows)-1]); len(cells) > 0 {
		voteForText = dom.TrimmedText(cells[len(cells)-1])
	}
	voteFor, resolved := ParseVoteFor(voteForText)
	out.Context = model.ContestContext{Office: office, VoteFor: voteFor}

	detail := dom.PrevSibling(seps[len(seps)-1], 2)
	if !dom.IsElement(detail, "table") {
		issue(model.IssueMissingTable, "no detail table before last %s", e.separator)
		return out
	}

	// When one table carries both regions, its office and vote-for rows
	// are not candidates.
	var skip []*html.Node
	if detail == summary {
		skip = []*html.Node{summaryRows[0], summaryRows[len(summaryRows)-1]}
	}

	rows := make([]model.ResultRow, 0)
	for _, tr := range dom.Rows(detail) {
		if slices.Contains(skip, tr) {
			out.HeaderRows++
			continue
		}
		cells := dom.Cells(tr)
		if len(cells) != 2 {
			continue
		}

		name := dom.TrimmedText(cells[0])
		if strings.EqualFold(name, byPrecinctLabel) {
			break
		}

		raw := dom.Text(cells[1])
		votes, err := ParseVotes(raw)
		if err != nil {
			perr := &RowParseError{URL: pageURL, Label: name, Value: strings.TrimSpace(raw), Err: err}
			issue(model.IssueRowParse, "%s", perr.Error())
			continue
		}
		if name == "" {
			issue(model.IssueIncompleteRow, "blank candidate name with %d votes", votes)
			continue
		}
		rows = append(rows, model.NewContestRow(out.Context, name, votes))
	}

	switch {
	case office == "":
		issue(model.IssueIncompleteRow, "blank contest name; %d rows withheld", len(rows))
	case !resolved:
		issue(model.IssueUnresolvedVoteFor, "%s: %q; %d rows withheld", office, voteForText, len(rows))
	default:
		out.Rows = rows
	}
	return out
}
