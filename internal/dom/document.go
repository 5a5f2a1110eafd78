package dom

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/ballotharvest/internal/model"
)

// ErrNotHTML is returned when a page is not an HTML document.
var ErrNotHTML = errors.New("page is not an HTML document")

// Document is a parsed page with typed query operations.
// Element order in every returned slice is document order.
type Document struct {
	doc     *goquery.Document
	baseURL *url.URL
}

// Parse parses the page into a Document.
// The page URL is used as the base for resolving relative links.
func Parse(page *model.Page) (*Document, error) {
	if !page.IsHTML() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotHTML, page.URL, page.ContentType)
	}

	doc, err := goquery.NewDocumentFromReader(page.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", page.URL, err)
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", page.URL, err)
	}

	return &Document{doc: doc, baseURL: base}, nil
}

// ParseString parses raw markup. It is mostly useful in tests.
func ParseString(pageURL, markup string) (*Document, error) {
	return Parse(model.NewPage(pageURL, 200, nil, []byte(markup)))
}

// URL returns the URL the document was fetched from.
func (d *Document) URL() string {
	return d.baseURL.String()
}

// All returns every element with the given tag name.
func (d *Document) All(tag string) []*html.Node {
	return d.doc.Find(tag).Nodes
}

// First returns the first element with the given tag name, or nil.
func (d *Document) First(tag string) *html.Node {
	nodes := d.All(tag)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Last returns the last element with the given tag name, or nil.
func (d *Document) Last(tag string) *html.Node {
	nodes := d.All(tag)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// ByID returns the element whose id attribute equals id, or nil.
func (d *Document) ByID(id string) *html.Node {
	sel := d.doc.Find(fmt.Sprintf("[id=%q]", id))
	if sel.Length() == 0 {
		return nil
	}
	return sel.Nodes[0]
}

// ByClass returns every element carrying the given class.
func (d *Document) ByClass(class string) []*html.Node {
	return d.doc.Find("." + class).Nodes
}

// HasClass reports whether any element carries the given class.
func (d *Document) HasClass(class string) bool {
	return len(d.ByClass(class)) > 0
}

// InputValue returns the value attribute of the input element with the given id.
// The second result is false when no such input exists.
func (d *Document) InputValue(id string) (string, bool) {
	sel := d.doc.Find(fmt.Sprintf("input[id=%q]", id))
	if sel.Length() == 0 {
		return "", false
	}
	return sel.AttrOr("value", ""), true
}

// Link is an anchor with its resolved target.
type Link struct {
	// Text is the trimmed text content of the anchor.
	Text string

	// Href is the raw href attribute.
	Href string

	// URL is Href resolved against the document URL.
	// Empty when the href is not a navigable link.
	URL string
}

// Links returns every anchor carrying an href attribute, in document order.
func (d *Document) Links() []Link {
	links := make([]Link, 0)
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		links = append(links, Link{
			Text: strings.TrimSpace(s.Text()),
			Href: href,
			URL:  d.Resolve(href),
		})
	})
	return links
}

// Resolve resolves href against the document URL.
// Script, mail, telephone, data and bare fragment links resolve to "".
func (d *Document) Resolve(href string) string {
	return ResolveURL(d.baseURL, href)
}

// ResolveURL resolves href against base.
// Script, mail, telephone, data and bare fragment links resolve to "".
func ResolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// NextSibling returns the k-th following sibling of n, counting every node
// kind (text nodes included), or nil when there are fewer than k.
func NextSibling(n *html.Node, k int) *html.Node {
	for i := 0; i < k && n != nil; i++ {
		n = n.NextSibling
	}
	return n
}

// PrevSibling returns the k-th preceding sibling of n, counting every node
// kind, or nil when there are fewer than k.
func PrevSibling(n *html.Node, k int) *html.Node {
	for i := 0; i < k && n != nil; i++ {
		n = n.PrevSibling
	}
	return n
}

// IsElement reports whether n is an element with the given tag name.
func IsElement(n *html.Node, tag string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if a := atom.Lookup([]byte(tag)); a != 0 {
		return n.DataAtom == a
	}
	return n.Data == tag
}

// Descendants returns the descendant elements of n with the given tag name.
func Descendants(n *html.Node, tag string) []*html.Node {
	if n == nil {
		return nil
	}
	return goquery.NewDocumentFromNode(n).Find(tag).Nodes
}

// Rows returns the table rows below n.
func Rows(table *html.Node) []*html.Node {
	return Descendants(table, "tr")
}

// Cells returns the data cells below a row.
func Cells(row *html.Node) []*html.Node {
	return Descendants(row, "td")
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			return
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

// TrimmedText returns the text content of n without surrounding whitespace.
func TrimmedText(n *html.Node) string {
	return strings.TrimSpace(Text(n))
}

// Attr returns the value of the named attribute of n, or "".
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
