package config

import (
	"fmt"
	"maps"
	"slices"
)

// Profile holds the settings of one named harvest target.
type Profile struct {
	// Kind is the engine the profile is meant for: tree, postback or features.
	Kind string `yaml:"kind,omitempty"`

	// RootURL is the starting page, or the query endpoint for features.
	RootURL string `yaml:"rootURL,omitempty"`

	// Denylist replaces the default link-label denylist.
	Denylist []string `yaml:"denylist,omitempty"`

	MaxDepth       int      `yaml:"maxDepth,omitempty"`
	Concurrency    int      `yaml:"concurrency,omitempty"`
	SameHostOnly   bool     `yaml:"sameHostOnly,omitempty"`
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	MaxPages      int    `yaml:"maxPages,omitempty"`
	DetailBaseURL string `yaml:"detailBaseURL,omitempty"`

	Contests        []string `yaml:"contests,omitempty"`
	PrecinctContest string   `yaml:"precinctContest,omitempty"`

	// OutputPrefix overrides the workbook filename prefix.
	OutputPrefix string `yaml:"outputPrefix,omitempty"`

	UserAgent string `yaml:"userAgent,omitempty"`
}

// File represents the structure of the .ballotharvest profile file.
type File struct {
	// Profiles maps profile names to their settings.
	Profiles map[string]Profile `yaml:"profiles,omitempty"`

	// Defaults applies to every profile unless the profile overrides it.
	Defaults Profile `yaml:"defaults,omitempty"`
}

// GetProfile returns the named profile merged over the defaults.
// An empty name returns the defaults alone.
func (f *File) GetProfile(name string) (Profile, error) {
	result := f.Defaults
	if name == "" {
		return result, nil
	}

	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}

	if p.Kind != "" {
		result.Kind = p.Kind
	}
	if p.RootURL != "" {
		result.RootURL = p.RootURL
	}
	if len(p.Denylist) > 0 {
		result.Denylist = p.Denylist
	}
	if p.MaxDepth != 0 {
		result.MaxDepth = p.MaxDepth
	}
	if p.Concurrency != 0 {
		result.Concurrency = p.Concurrency
	}
	if p.SameHostOnly {
		result.SameHostOnly = true
	}
	if len(p.IgnorePatterns) > 0 {
		result.IgnorePatterns = p.IgnorePatterns
	}
	if p.MaxPages != 0 {
		result.MaxPages = p.MaxPages
	}
	if p.DetailBaseURL != "" {
		result.DetailBaseURL = p.DetailBaseURL
	}
	if len(p.Contests) > 0 {
		result.Contests = p.Contests
	}
	if p.PrecinctContest != "" {
		result.PrecinctContest = p.PrecinctContest
	}
	if p.OutputPrefix != "" {
		result.OutputPrefix = p.OutputPrefix
	}
	if p.UserAgent != "" {
		result.UserAgent = p.UserAgent
	}
	return result, nil
}

// Names returns the profile names in sorted order.
func (f *File) Names() []string {
	return slices.Sorted(maps.Keys(f.Profiles))
}
