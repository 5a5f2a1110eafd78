package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/ballotharvest/internal/dom"
	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/model"
)

// DefaultDenylist holds the structural link labels that are never followed.
var DefaultDenylist = []string{"RETURN", "QUESTIONS", "CATEGORIES"}

// DefaultMaxDepth bounds the link depth from the root page.
const DefaultMaxDepth = 10

// Fetcher retrieves pages with GET requests.
type Fetcher interface {
	Get(ctx context.Context, pageURL string) (*model.Page, error)
}

// TreeCrawler visits every results page reachable from a root page.
//
// Navigation pages are expanded depth first in link order, results pages
// are extracted. On a tree-shaped site the rows keep that order also when
// sibling subtrees are crawled in parallel. A page reached from more than
// one branch is extracted once, under whichever branch visits it first, so
// a parallel crawl of such a site may order its rows differently from a
// sequential one.
type TreeCrawler struct {
	fetcher    Fetcher
	classifier *Classifier
	extractor  *Extractor

	// denylist holds upper-cased link labels that are not followed.
	denylist map[string]struct{}

	// ignorePatterns are URL path patterns that are not followed.
	ignorePatterns []string

	// maxDepth limits how deep to crawl from the root page.
	// 0 means only the root page.
	maxDepth int

	// concurrency is the number of fetches allowed in flight.
	concurrency int

	// sameHostOnly restricts the crawl to the host of the root URL.
	sameHostOnly bool

	logger   *slog.Logger
	progress io.Writer

	// mutex protects visited, stats and progress output.
	mutex   sync.Mutex
	visited map[string]bool
	stats   model.Stats
}

// TreeOption configures a TreeCrawler.
type TreeOption func(*TreeCrawler)

// WithDenylist replaces the link labels that are not followed.
// Labels are compared case-insensitively after trimming.
func WithDenylist(labels []string) TreeOption {
	return func(c *TreeCrawler) {
		c.denylist = make(map[string]struct{}, len(labels))
		for _, label := range labels {
			c.denylist[normalizeLabel(label)] = struct{}{}
		}
	}
}

// WithIgnorePatterns sets URL path patterns that are not followed.
// Patterns use glob syntax (e.g., "/ElectionReturns/*/Precincts*", "*.pdf").
func WithIgnorePatterns(patterns []string) TreeOption {
	return func(c *TreeCrawler) {
		c.ignorePatterns = patterns
	}
}

// WithMaxDepth sets the maximum link depth from the root page.
func WithMaxDepth(depth int) TreeOption {
	return func(c *TreeCrawler) {
		if depth >= 0 {
			c.maxDepth = depth
		}
	}
}

// WithConcurrency sets the number of fetches allowed in flight.
// 1 keeps the crawl strictly sequential.
func WithConcurrency(n int) TreeOption {
	return func(c *TreeCrawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithSameHostOnly restricts the crawl to the root URL's host.
func WithSameHostOnly(enabled bool) TreeOption {
	return func(c *TreeCrawler) {
		c.sameHostOnly = enabled
	}
}

// WithSeparator sets the tag that brackets results tables.
func WithSeparator(tag string) TreeOption {
	return func(c *TreeCrawler) {
		c.classifier = NewClassifier(tag)
		c.extractor = NewExtractor(tag)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TreeOption {
	return func(c *TreeCrawler) {
		c.logger = logger
	}
}

// WithProgress sets the writer receiving one line per visited URL.
func WithProgress(w io.Writer) TreeOption {
	return func(c *TreeCrawler) {
		c.progress = w
	}
}

// NewTreeCrawler creates a TreeCrawler fetching pages through fetcher.
func NewTreeCrawler(fetcher Fetcher, opts ...TreeOption) *TreeCrawler {
	c := &TreeCrawler{
		fetcher:     fetcher,
		classifier:  NewClassifier(DefaultSeparator),
		extractor:   NewExtractor(DefaultSeparator),
		maxDepth:    DefaultMaxDepth,
		concurrency: 1,
		logger:      slog.Default(),
		progress:    io.Discard,
	}
	WithDenylist(DefaultDenylist)(c)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// crawlState is the per-call state shared by all branches of one crawl.
type crawlState struct {
	rootHost string
	issues   *model.IssueLog
	sem      *semaphore.Weighted
}

// Crawl visits the site below rootURL and returns the rows of every results
// page reached.
//
// Transport failures after retries and an unparseable root page are fatal.
// Everything else (malformed rows, unresolved contests, broken child links)
// is recorded in the result's issue log and the crawl goes on.
func (c *TreeCrawler) Crawl(ctx context.Context, rootURL string) (*model.HarvestResult, error) {
	root, err := url.Parse(rootURL)
	if err != nil || (root.Scheme != "http" && root.Scheme != "https") || root.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRootURL, rootURL)
	}

	c.mutex.Lock()
	c.visited = make(map[string]bool)
	c.stats = model.Stats{}
	c.mutex.Unlock()

	state := &crawlState{
		rootHost: strings.ToLower(root.Host),
		issues:   model.NewIssueLog(),
		sem:      semaphore.NewWeighted(int64(c.concurrency)),
	}

	rows, err := c.crawl(ctx, state, root.String(), 0)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	stats := c.stats
	c.mutex.Unlock()

	return &model.HarvestResult{Rows: rows, Issues: state.issues, Stats: stats}, nil
}

// crawl fetches one page and returns the rows below it.
func (c *TreeCrawler) crawl(ctx context.Context, state *crawlState, pageURL string, depth int) ([]model.ResultRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.markVisited(pageURL) {
		c.logger.Debug("skipping visited page", "url", pageURL)
		return nil, nil
	}

	page, err := c.fetch(ctx, state, pageURL)
	if err != nil {
		var te *fetch.TransportError
		if depth > 0 && errors.As(err, &te) && isClientError(te.StatusCode) {
			state.issues.Record(model.IssueRequestFailed, pageURL, te.Error())
			c.logger.Warn("skipping broken link", "url", pageURL, "status", te.StatusCode)
			return nil, nil
		}
		if depth > 0 && fetch.IsBodyTooLarge(err) {
			state.issues.Record(model.IssueBodyTooLarge, pageURL, err.Error())
			c.logger.Warn("skipping oversized page", "url", pageURL)
			return nil, nil
		}
		return nil, err
	}

	doc, err := dom.Parse(page)
	if err != nil {
		if depth == 0 {
			return nil, fmt.Errorf("%w: %w", ErrUnclassifiableRoot, err)
		}
		state.issues.Record(model.IssueNotHTML, pageURL, page.ContentType)
		return nil, nil
	}

	if c.classifier.Classify(doc) == PageResults {
		ext := c.extractor.Extract(doc)
		for _, is := range ext.Issues {
			state.issues.Record(is.Kind, is.URL, is.Detail)
			c.logger.Warn("extraction issue", "kind", is.Kind, "url", is.URL, "detail", is.Detail)
		}
		if ext.HeaderRows > 0 {
			c.logger.Debug("summary and detail share a table", "url", pageURL, "skipped_rows", ext.HeaderRows)
		}
		c.count(func(s *model.Stats) { s.ResultsPages++ })
		c.report("  %s: %d rows", ext.Context.Office, len(ext.Rows))
		return ext.Rows, nil
	}

	c.count(func(s *model.Stats) { s.NavigationPages++ })
	links := c.links(doc, state)
	if len(links) == 0 {
		return nil, nil
	}
	if depth+1 > c.maxDepth {
		for _, link := range links {
			state.issues.Record(model.IssueDepthExceeded, link.URL, fmt.Sprintf("linked from %s at depth %d", pageURL, depth))
		}
		return nil, nil
	}

	return c.crawlLinks(ctx, state, links, depth+1)
}

// crawlLinks crawls the targets of links and concatenates their rows in link order.
func (c *TreeCrawler) crawlLinks(ctx context.Context, state *crawlState, links []model.NavigationLink, depth int) ([]model.ResultRow, error) {
	slots := make([][]model.ResultRow, len(links))

	if c.concurrency <= 1 {
		for i, link := range links {
			rows, err := c.crawl(ctx, state, link.URL, depth)
			if err != nil {
				return nil, err
			}
			slots[i] = rows
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, link := range links {
			g.Go(func() error {
				rows, err := c.crawl(gctx, state, link.URL, depth)
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
	}

	rows := make([]model.ResultRow, 0)
	for _, slot := range slots {
		rows = append(rows, slot...)
	}
	return rows, nil
}

// fetch retrieves a page while holding a concurrency slot.
func (c *TreeCrawler) fetch(ctx context.Context, state *crawlState, pageURL string) (*model.Page, error) {
	if err := state.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer state.sem.Release(1)

	c.report("%s", pageURL)
	page, err := c.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	c.count(func(s *model.Stats) { s.PagesVisited++ })
	return page, nil
}

// links returns the followable links of a navigation page in document order.
func (c *TreeCrawler) links(doc *dom.Document, state *crawlState) []model.NavigationLink {
	links := make([]model.NavigationLink, 0)
	for _, link := range doc.Links() {
		if link.URL == "" {
			continue
		}
		if _, denied := c.denylist[normalizeLabel(link.Text)]; denied {
			c.logger.Debug("skipping denylisted link", "label", link.Text, "url", link.URL)
			continue
		}
		if !c.shouldFollow(link.URL, state.rootHost) {
			continue
		}
		links = append(links, model.NavigationLink{Text: link.Text, URL: link.URL})
	}
	return links
}

// shouldFollow applies the host restriction and the ignore patterns.
func (c *TreeCrawler) shouldFollow(target, rootHost string) bool {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if c.sameHostOnly && !strings.EqualFold(u.Host, rootHost) {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	for _, pattern := range c.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

// markVisited records pageURL and reports whether it was new.
func (c *TreeCrawler) markVisited(pageURL string) bool {
	key := normalizeURL(pageURL)
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.visited[key] {
		return false
	}
	c.visited[key] = true
	return true
}

func (c *TreeCrawler) count(update func(*model.Stats)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	update(&c.stats)
}

func (c *TreeCrawler) report(format string, args ...any) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	fmt.Fprintf(c.progress, format+"\n", args...)
}

// normalizeURL canonicalizes a URL for the visited set.
// The fragment is dropped, scheme and host are lower-cased and an empty
// path becomes "/".
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// normalizeLabel trims and upper-cases a link label.
// A Caser is not safe for concurrent use, so one is made per call.
func normalizeLabel(label string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(label))
}

func isClientError(status int) bool {
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusTooManyRequests
}
