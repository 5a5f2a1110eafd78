// Package crawler implements the recursive tree crawler for result sites
// that publish one contest per page behind a tree of link pages.
//
// # Components
//
//   - Classifier: decides from page shape alone whether a page holds a
//     results table or only navigation links
//   - Extractor: reads the contest context and candidate rows of a results page
//   - TreeCrawler: visits every results page reachable from a root URL
//
// The sites carry no ids or classes, so both classification and extraction
// are positional. A results table is bracketed by exactly two separator
// elements (<br> by default), with the summary table two siblings after the
// first separator and the detail table two siblings before the last one.
//
// # Traversal
//
// The crawl is depth first in link order. A visited set keyed by canonical
// URL and a depth cap guard against cycles. With concurrency above one,
// sibling subtrees are crawled in parallel and their rows are joined per
// link, so the output order does not change.
//
// # Usage
//
//	c := crawler.NewTreeCrawler(client, crawler.WithConcurrency(4))
//	result, err := c.Crawl(ctx, "http://vr.co.lancaster.pa.us/ElectionReturns/.../Categories.html")
package crawler
