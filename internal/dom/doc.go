// Package dom provides the tree query operations used by the harvesting
// engines.
//
// The election sites carry no ids or classes on their result tables, so
// most lookups are positional: the n-th sibling of a separator, the rows of
// a table, the cells of a row. Sibling navigation counts every node kind,
// text nodes included, because the sites rely on whitespace between
// elements and the positional signatures are defined over that layout.
//
// Selector lookups (by tag, id or class) go through goquery; raw node
// navigation uses golang.org/x/net/html directly.
package dom
