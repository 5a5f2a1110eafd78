package config

import (
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/ballotharvest/internal/crawler"
	"github.com/nao1215/ballotharvest/internal/featureservice"
	"github.com/nao1215/ballotharvest/internal/fetch"
	"github.com/nao1215/ballotharvest/internal/model"
	"github.com/nao1215/ballotharvest/internal/postback"
	"github.com/nao1215/ballotharvest/internal/report"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "ballotharvest"

	// DefaultTreeRootURL is the election returns index of Lancaster County.
	DefaultTreeRootURL = "http://vr.co.lancaster.pa.us/ElectionReturns/November_3,_2020_-_General_Election/Categories.html"

	// DefaultPostbackRootURL is the candidate listing of PA Voter Services.
	DefaultPostbackRootURL = "https://www.pavoterservices.pa.gov/ElectionInfo/ElectionInfo.aspx"

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = fetch.DefaultTimeout

	// DefaultRetries is the number of retries after a failed request.
	DefaultRetries = fetch.DefaultRetries

	// DefaultConcurrency crawls sibling pages one at a time.
	DefaultConcurrency = 1

	// DefaultBatchSize is the number of roots harvested concurrently in batch mode.
	DefaultBatchSize = 4

	// DefaultMaxBodySize limits the response body size to read.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize
)

// DefaultContests are the contest titles of the Montgomery County 2020
// general election layer.
var DefaultContests = []string{
	"Attorney General",
	"Auditor General",
	"Lower Frederick Township Question",
	"Presidential Electors",
	"Representative in Congress 1st District",
	"Representative in Congress 4th District",
	"Representative in Congress 5th District",
	"Representative in the General Assembly 131st District",
	"Representative in the General Assembly 146th District",
	"Representative in the General Assembly 147th District",
	"Representative in the General Assembly 148th District",
	"Representative in the General Assembly 149th District",
	"Representative in the General Assembly 150th District",
	"Representative in the General Assembly 151st District",
	"Representative in the General Assembly 152nd District",
	"Representative in the General Assembly 153rd District",
	"Representative in the General Assembly 154th District",
	"Representative in the General Assembly 157th District",
	"Representative in the General Assembly 166th District",
	"Representative in the General Assembly 172nd District",
	"Representative in the General Assembly 194th District",
	"Representative in the General Assembly 26th District",
	"Representative in the General Assembly 53rd District",
	"Representative in the General Assembly 61st District",
	"Representative in the General Assembly 70th District",
	"Senator in the General Assembly 17th District",
	"Senator in the General Assembly 7th District",
	"State Treasurer",
}

// DefaultRootURL returns the observed site harvested by source.
func DefaultRootURL(source model.Source) string {
	switch source {
	case model.SourceTree:
		return DefaultTreeRootURL
	case model.SourcePostback:
		return DefaultPostbackRootURL
	case model.SourceFeatures:
		return featureservice.DefaultQueryURL
	default:
		return ""
	}
}

// Config holds every option of one harvest run.
// It is populated from a profile and CLI flags and passed down explicitly.
type Config struct {
	// Source selects the harvesting engine.
	Source model.Source

	// RootURLs are the starting points. Tree runs accept several (batch mode);
	// the other sources use the first.
	RootURLs []string

	// Denylist holds link labels the tree crawler never follows.
	Denylist []string

	// MaxDepth bounds the link depth of the tree crawler.
	MaxDepth int

	// Concurrency is the number of pages fetched in parallel within one run.
	Concurrency int

	// BatchSize is the number of roots harvested concurrently.
	BatchSize int

	// SameHostOnly keeps the tree crawler on the root's host.
	SameHostOnly bool

	// IgnorePatterns are URL path patterns the tree crawler skips.
	IgnorePatterns []string

	// MaxPages bounds the list pages of a postback walk.
	MaxPages int

	// DetailBaseURL overrides the base detail links are resolved against.
	DetailBaseURL string

	// Contests are the contest titles queried from the feature service.
	Contests []string

	// PrecinctContest is the contest used to list precincts.
	// Empty means the first of Contests.
	PrecinctContest string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Retries is the number of retries after a failed request.
	Retries int

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the largest response body read, in bytes.
	MaxBodySize int64

	// OutputDir receives the xlsx workbook.
	OutputDir string

	// OutputPrefix overrides the per-source filename prefix.
	OutputPrefix string

	// SummaryFiles receive the run summary. "-" means stdout; none disables it.
	SummaryFiles []string

	// SummaryFormat is text, markdown or json.
	SummaryFormat string

	// DBDir is the run history database directory.
	DBDir string

	// SaveToDB stores completed runs in the history database.
	SaveToDB bool

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON selects the JSON log handler.
	LogJSON bool

	// ConfigFilePath is the profile file path. Empty means search for
	// .ballotharvest in the working directory, then the home directory.
	ConfigFilePath string

	// Profile names the profile applied from the profile file.
	Profile string
}

// NewConfig creates a Config with default values for source.
func NewConfig(source model.Source) *Config {
	cfg := &Config{
		Source:        source,
		Denylist:      slices.Clone(crawler.DefaultDenylist),
		MaxDepth:      crawler.DefaultMaxDepth,
		Concurrency:   DefaultConcurrency,
		BatchSize:     DefaultBatchSize,
		MaxPages:      postback.DefaultMaxPages,
		Timeout:       DefaultTimeout,
		Retries:       DefaultRetries,
		UserAgent:     fetch.DefaultUserAgent,
		MaxBodySize:   DefaultMaxBodySize,
		OutputDir:     ".",
		SummaryFormat: report.FormatMarkdown,
		DBDir:         XDGDataDir(),
		SaveToDB:      true,
	}
	if root := DefaultRootURL(source); root != "" {
		cfg.RootURLs = []string{root}
	}
	if source == model.SourceFeatures {
		cfg.Contests = slices.Clone(DefaultContests)
	}
	return cfg
}

// ApplyProfile copies the fields set in p into the config.
// A profile of another kind is rejected.
func (c *Config) ApplyProfile(p Profile) error {
	if p.Kind != "" && model.Source(p.Kind) != c.Source {
		return ErrProfileKind
	}
	if p.RootURL != "" {
		c.RootURLs = []string{p.RootURL}
	}
	if len(p.Denylist) > 0 {
		c.Denylist = p.Denylist
	}
	if p.MaxDepth != 0 {
		c.MaxDepth = p.MaxDepth
	}
	if p.Concurrency != 0 {
		c.Concurrency = p.Concurrency
	}
	if p.SameHostOnly {
		c.SameHostOnly = true
	}
	if len(p.IgnorePatterns) > 0 {
		c.IgnorePatterns = p.IgnorePatterns
	}
	if p.MaxPages != 0 {
		c.MaxPages = p.MaxPages
	}
	if p.DetailBaseURL != "" {
		c.DetailBaseURL = p.DetailBaseURL
	}
	if len(p.Contests) > 0 {
		c.Contests = p.Contests
	}
	if p.PrecinctContest != "" {
		c.PrecinctContest = p.PrecinctContest
	}
	if p.OutputPrefix != "" {
		c.OutputPrefix = p.OutputPrefix
	}
	if p.UserAgent != "" {
		c.UserAgent = p.UserAgent
	}
	return nil
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/ballotharvest on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/ballotharvest on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first invalid setting found.
func (c *Config) Validate() error {
	if len(c.RootURLs) == 0 {
		return ErrNoRootURL
	}
	for _, root := range c.RootURLs {
		if !isHTTPURL(root) {
			return ErrInvalidRootURL
		}
	}
	if c.DetailBaseURL != "" && !isHTTPURL(c.DetailBaseURL) {
		return ErrInvalidDetailBaseURL
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Source == model.SourceFeatures && len(c.Contests) == 0 {
		return ErrNoContests
	}
	switch c.SummaryFormat {
	case report.FormatText, report.FormatMarkdown, report.FormatJSON:
	default:
		return ErrInvalidSummaryFormat
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
