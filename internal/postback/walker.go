package postback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/nao1215/ballotharvest/internal/dom"
	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/model"
)

// Protocol constants of the observed candidate listing.
const (
	// DefaultNextTarget is the event target of the "next page" pager button.
	DefaultNextTarget = "ctl00$ContentPlaceHolder1$GridPager1$ctl02$ctl00"

	// DefaultTerminalClass marks the disabled "next page" control on the last page.
	DefaultTerminalClass = "NextItemDisabled"

	// DefaultMaxPages bounds the number of list pages of one walk.
	DefaultMaxPages = 500
)

// State is a step of the walk.
type State int

const (
	// StateFetchingListPage receives a list page and harvests its tokens.
	StateFetchingListPage State = iota

	// StateExtractingRowLinks collects the detail links of the list page.
	StateExtractingRowLinks

	// StateFollowingDetailLink requests one detail page.
	StateFollowingDetailLink

	// StateRequestingNextPage checks the terminal marker and advances the pager.
	StateRequestingNextPage

	// StateDone ends the walk.
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFetchingListPage:
		return "FETCHING_LIST_PAGE"
	case StateExtractingRowLinks:
		return "EXTRACTING_ROW_LINKS"
	case StateFollowingDetailLink:
		return "FOLLOWING_DETAIL_LINK"
	case StateRequestingNextPage:
		return "REQUESTING_NEXT_PAGE"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Client is the session-bound transport of a walk.
// Cookies must persist across calls.
type Client interface {
	Get(ctx context.Context, pageURL string) (*model.Page, error)
	PostForm(ctx context.Context, pageURL string, form url.Values) (*model.Page, error)
}

// Walker drives a postback-paginated list of detail links to its last page.
//
// The walk is strictly sequential. The tokens of a list page are used for
// every detail request of that page and for exactly one advance request;
// the next list page always brings fresh tokens. Cancellation is checked
// between state transitions.
type Walker struct {
	client Client

	tokens        []TokenSpec
	fields        []FieldSpec
	nextTarget    string
	terminalClass string
	maxPages      int

	// detailBase overrides the list page URL as base for detail links.
	detailBase *url.URL

	logger   *slog.Logger
	progress io.Writer

	// onTransition observes every state change.
	onTransition func(from, to State)
}

// Option configures a Walker.
type Option func(*Walker)

// WithTokens replaces the harvested token set.
func WithTokens(specs []TokenSpec) Option {
	return func(w *Walker) {
		w.tokens = specs
	}
}

// WithFields replaces the detail page fields.
func WithFields(fields []FieldSpec) Option {
	return func(w *Walker) {
		w.fields = fields
	}
}

// WithNextTarget sets the event target that advances the pager.
func WithNextTarget(target string) Option {
	return func(w *Walker) {
		w.nextTarget = target
	}
}

// WithTerminalClass sets the class marking the last list page.
func WithTerminalClass(class string) Option {
	return func(w *Walker) {
		w.terminalClass = class
	}
}

// WithMaxPages sets the list page limit.
func WithMaxPages(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxPages = n
		}
	}
}

// WithDetailBase sets the base URL detail links are resolved against.
func WithDetailBase(base *url.URL) Option {
	return func(w *Walker) {
		w.detailBase = base
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		w.logger = logger
	}
}

// WithProgress sets the writer receiving one line per list page.
func WithProgress(out io.Writer) Option {
	return func(w *Walker) {
		w.progress = out
	}
}

// WithTransitionHook registers fn to observe state changes.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(w *Walker) {
		w.onTransition = fn
	}
}

// NewWalker creates a Walker issuing requests through client.
func NewWalker(client Client, opts ...Option) *Walker {
	w := &Walker{
		client:        client,
		tokens:        DefaultTokens,
		fields:        CandidateFields,
		nextTarget:    DefaultNextTarget,
		terminalClass: DefaultTerminalClass,
		maxPages:      DefaultMaxPages,
		logger:        slog.Default(),
		progress:      io.Discard,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// walk is the mutable state of one Walk call.
type walk struct {
	rootURL string
	state   State

	// pending is a list page received but not yet processed.
	pending *model.Page

	list    *dom.Document
	session model.SessionState
	links   []string
	next    int

	result *model.HarvestResult
}

// Walk pages through the list starting at rootURL and returns one record per
// detail link. Missing required tokens, transport exhaustion and
// cancellation are fatal; malformed detail pages are recorded as issues.
func (w *Walker) Walk(ctx context.Context, rootURL string) (*model.HarvestResult, error) {
	root, err := url.Parse(rootURL)
	if err != nil || (root.Scheme != "http" && root.Scheme != "https") || root.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRootURL, rootURL)
	}

	s := &walk{
		rootURL: root.String(),
		state:   StateFetchingListPage,
		result: &model.HarvestResult{
			Rows:   make([]model.ResultRow, 0),
			Issues: model.NewIssueLog(),
		},
	}

	for s.state != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next State
		switch s.state {
		case StateFetchingListPage:
			next, err = w.fetchListPage(ctx, s)
		case StateExtractingRowLinks:
			next = w.extractRowLinks(s)
		case StateFollowingDetailLink:
			next, err = w.followDetailLink(ctx, s)
		case StateRequestingNextPage:
			next, err = w.requestNextPage(ctx, s)
		default:
			err = fmt.Errorf("unexpected walker state %s", s.state)
		}
		if err != nil {
			return nil, err
		}
		w.transition(s, next)
	}

	return s.result, nil
}

func (w *Walker) transition(s *walk, to State) {
	if s.state == to {
		return
	}
	w.logger.Debug("walker transition", "from", s.state, "to", to)
	if w.onTransition != nil {
		w.onTransition(s.state, to)
	}
	s.state = to
}

// fetchListPage loads the root page on the first call and processes the
// page returned by the last advance request afterwards. The tokens are
// harvested before anything else is read from the page.
func (w *Walker) fetchListPage(ctx context.Context, s *walk) (State, error) {
	page := s.pending
	s.pending = nil
	if page == nil {
		var err error
		page, err = w.client.Get(ctx, s.rootURL)
		if err != nil {
			return s.state, err
		}
	}

	doc, err := dom.Parse(page)
	if err != nil {
		return s.state, err
	}
	session, err := HarvestTokens(doc, w.tokens)
	if err != nil {
		return s.state, err
	}

	s.list = doc
	s.session = session
	s.result.Stats.ListPages++
	s.result.Stats.PagesVisited++
	fmt.Fprintf(w.progress, "Getting page %d...\n", s.result.Stats.ListPages)
	return StateExtractingRowLinks, nil
}

func (w *Walker) extractRowLinks(s *walk) State {
	base := w.detailBase
	if base == nil {
		base, _ = url.Parse(s.list.URL())
	}
	s.links = DetailLinks(s.list, base)
	s.next = 0
	w.logger.Debug("detail links", "page", s.result.Stats.ListPages, "count", len(s.links))
	return StateFollowingDetailLink
}

// followDetailLink requests the next detail page of the current list page.
// The request names the link as event target and carries the list page's
// tokens.
func (w *Walker) followDetailLink(ctx context.Context, s *walk) (State, error) {
	if s.next >= len(s.links) {
		return StateRequestingNextPage, nil
	}
	link := s.links[s.next]
	s.next++

	page, err := w.client.PostForm(ctx, link, s.session.Form(link))
	s.result.Stats.DetailRequests++
	if err != nil {
		var te *fetch.TransportError
		if errors.As(err, &te) && isClientError(te.StatusCode) {
			s.result.Issues.Record(model.IssueRequestFailed, link, te.Error())
			return StateFollowingDetailLink, nil
		}
		if fetch.IsBodyTooLarge(err) {
			s.result.Issues.Record(model.IssueBodyTooLarge, link, err.Error())
			w.logger.Warn("skipping oversized detail page", "url", link)
			return StateFollowingDetailLink, nil
		}
		return s.state, err
	}
	s.result.Stats.PagesVisited++

	doc, err := dom.Parse(page)
	if err != nil {
		s.result.Issues.Record(model.IssueNotHTML, link, page.ContentType)
		return StateFollowingDetailLink, nil
	}

	row, err := ParseDetail(doc, w.fields)
	if err != nil {
		s.result.Issues.Record(model.IssueMissingField, link, err.Error())
		w.logger.Warn("malformed detail page", "url", link, "error", err)
		return StateFollowingDetailLink, nil
	}
	s.result.Rows = append(s.result.Rows, row)
	return StateFollowingDetailLink, nil
}

// requestNextPage ends the walk on the last page or submits the pager.
// The current tokens are consumed by this request.
func (w *Walker) requestNextPage(ctx context.Context, s *walk) (State, error) {
	if s.list.HasClass(w.terminalClass) {
		return StateDone, nil
	}
	if s.result.Stats.ListPages >= w.maxPages {
		s.result.Issues.Record(model.IssuePageCap, s.rootURL,
			fmt.Sprintf("stopped after %d list pages without reaching the last page", w.maxPages))
		w.logger.Warn("page limit reached", "pages", w.maxPages)
		return StateDone, nil
	}

	page, err := w.client.PostForm(ctx, s.rootURL, s.session.Form(w.nextTarget))
	s.result.Stats.AdvanceRequests++
	if err != nil {
		return s.state, err
	}

	s.session = nil
	s.list = nil
	s.pending = page
	return StateFetchingListPage, nil
}

func isClientError(status int) bool {
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusTooManyRequests
}
