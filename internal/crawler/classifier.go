package crawler

import (
	"github.com/nao1215/ballotharvest/internal/dom"
)

// DefaultSeparator is the tag that brackets a results table on the
// observed site family.
const DefaultSeparator = "br"

// PageKind is the classification of a fetched page.
type PageKind int

const (
	// PageNavigation is a page holding only links to other pages.
	PageNavigation PageKind = iota

	// PageResults is a page holding one vote-tally table.
	PageResults
)

// String returns the kind name.
func (k PageKind) String() string {
	switch k {
	case PageResults:
		return "results"
	case PageNavigation:
		return "navigation"
	default:
		return "unknown"
	}
}

// Classifier decides whether a page is a results page or a navigation page
// from its shape alone.
//
// A results page has exactly two separator elements, and the second sibling
// following the first separator (text nodes count) is a table. Anything
// else is navigation, including pages with two separators and no table at
// that offset. The signature is brittle on purpose: nothing else on the
// sites takes this shape.
type Classifier struct {
	separator string
}

// NewClassifier creates a Classifier that brackets tables with the given
// separator tag. An empty tag means DefaultSeparator.
func NewClassifier(separator string) *Classifier {
	if separator == "" {
		separator = DefaultSeparator
	}
	return &Classifier{separator: separator}
}

// Separator returns the separator tag.
func (c *Classifier) Separator() string {
	return c.separator
}

// Classify returns the kind of the document.
func (c *Classifier) Classify(doc *dom.Document) PageKind {
	seps := doc.All(c.separator)
	if len(seps) != 2 {
		return PageNavigation
	}
	if !dom.IsElement(dom.NextSibling(seps[0], 2), "table") {
		return PageNavigation
	}
	return PageResults
}
