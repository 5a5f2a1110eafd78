package featureservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/model"
)

// DefaultQueryURL is the query endpoint of the Montgomery County 2020
// general election results layer.
const DefaultQueryURL = "https://services1.arcgis.com/kOChldNuKsox8qZD/arcgis/rest/services/ElectionResults_GE20_dashboard/FeatureServer/1/query"

var (
	// ErrNoContests is returned when no contest titles are configured.
	ErrNoContests = errors.New("no contests configured")

	// ErrInvalidQueryURL is returned when the query URL is not an absolute http(s) URL.
	ErrInvalidQueryURL = errors.New("invalid query URL")
)

// Client issues JSON queries.
type Client interface {
	GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error
}

// Harvester collects per-precinct totals of each configured contest.
type Harvester struct {
	client   Client
	contests []string

	// precinctContest is the contest used to list the precincts.
	// Defaults to the first configured contest.
	precinctContest string

	concurrency int
	logger      *slog.Logger
	progress    io.Writer
	mu          sync.Mutex
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithContests sets the contest titles to query.
func WithContests(contests []string) Option {
	return func(h *Harvester) {
		h.contests = contests
	}
}

// WithPrecinctContest sets the contest used to list precincts.
func WithPrecinctContest(contest string) Option {
	return func(h *Harvester) {
		h.precinctContest = contest
	}
}

// WithConcurrency sets the number of queries in flight.
func WithConcurrency(n int) Option {
	return func(h *Harvester) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harvester) {
		h.logger = logger
	}
}

// WithProgress sets the writer receiving one line per queried pair.
func WithProgress(w io.Writer) Option {
	return func(h *Harvester) {
		h.progress = w
	}
}

// NewHarvester creates a Harvester querying through client.
func NewHarvester(client Client, opts ...Option) *Harvester {
	h := &Harvester{
		client:      client,
		concurrency: 1,
		logger:      slog.Default(),
		progress:    io.Discard,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Harvest lists the precincts, then queries every (contest, precinct) pair
// and returns one row per candidate and party. Rows are ordered by contest,
// then precinct, then service order.
//
// A pair answered with a client error or a service error object is
// recorded as an issue and skipped. Failing to list the precincts and
// transport exhaustion are fatal.
func (h *Harvester) Harvest(ctx context.Context, queryURL string) (*model.HarvestResult, error) {
	u, err := url.Parse(queryURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQueryURL, queryURL)
	}
	if len(h.contests) == 0 {
		return nil, ErrNoContests
	}

	result := &model.HarvestResult{Issues: model.NewIssueLog()}

	precincts, err := h.precincts(ctx, queryURL)
	if err != nil {
		return nil, err
	}
	result.Stats.Queries++
	h.logger.Info("precincts listed", "count", len(precincts))

	type pair struct{ contest, precinct string }
	pairs := make([]pair, 0, len(h.contests)*len(precincts))
	for _, c := range h.contests {
		for _, p := range precincts {
			pairs = append(pairs, pair{c, p})
		}
	}

	slots := make([][]model.ResultRow, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, p := range pairs {
		g.Go(func() error {
			rows, err := h.query(gctx, queryURL, p.contest, p.precinct, result.Issues)
			if err != nil {
				return err
			}
			slots[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Stats.Queries += len(pairs)
	result.Rows = make([]model.ResultRow, 0)
	for _, rows := range slots {
		result.Rows = append(result.Rows, rows...)
	}
	return result, nil
}

func (h *Harvester) precincts(ctx context.Context, queryURL string) ([]string, error) {
	contest := h.precinctContest
	if contest == "" {
		contest = h.contests[0]
	}

	var res queryResponse
	if err := h.client.GetJSON(ctx, queryURL, PrecinctQuery(contest), &res); err != nil {
		return nil, fmt.Errorf("failed to list precincts: %w", err)
	}
	if res.Error != nil {
		return nil, fmt.Errorf("failed to list precincts: %s", res.Error)
	}

	precincts := make([]string, 0, len(res.Features))
	for _, f := range res.Features {
		if name := strings.TrimSpace(f.Attributes.PrecinctSort); name != "" {
			precincts = append(precincts, name)
		}
	}
	return precincts, nil
}

func (h *Harvester) query(ctx context.Context, queryURL, contest, precinct string, issues *model.IssueLog) ([]model.ResultRow, error) {
	where := fmt.Sprintf("%s / %s", contest, precinct)
	h.report("%s", where)

	var res queryResponse
	if err := h.client.GetJSON(ctx, queryURL, ResultsQuery(contest, precinct), &res); err != nil {
		var te *fetch.TransportError
		if errors.As(err, &te) && te.StatusCode >= http.StatusBadRequest && te.StatusCode < http.StatusInternalServerError && te.StatusCode != http.StatusTooManyRequests {
			issues.Record(model.IssueRequestFailed, queryURL, fmt.Sprintf("%s: status %d", where, te.StatusCode))
			return nil, nil
		}
		if fetch.IsBodyTooLarge(err) {
			issues.Record(model.IssueBodyTooLarge, queryURL, fmt.Sprintf("%s: %v", where, err))
			return nil, nil
		}
		if errors.Is(err, fetch.ErrDecode) {
			issues.Record(model.IssueRequestFailed, queryURL, fmt.Sprintf("%s: %v", where, err))
			return nil, nil
		}
		return nil, err
	}
	if res.Error != nil {
		issues.Record(model.IssueRequestFailed, queryURL, fmt.Sprintf("%s: %s", where, res.Error))
		return nil, nil
	}

	rows := make([]model.ResultRow, 0, len(res.Features))
	for _, f := range res.Features {
		attrs := f.Attributes
		candidate := strings.TrimSpace(attrs.CandidateName)
		if candidate == "" || attrs.Value == nil {
			issues.Record(model.IssueIncompleteRow, queryURL, fmt.Sprintf("%s: candidate %q without name or votes", where, candidate))
			continue
		}
		party := ""
		if attrs.PartyCode != nil {
			party = strings.TrimSpace(*attrs.PartyCode)
		}
		rows = append(rows, model.ResultRow{contest, precinct, candidate, party, int(math.Round(*attrs.Value))})
	}
	return rows, nil
}

func (h *Harvester) report(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.progress, format+"\n", args...)
}
