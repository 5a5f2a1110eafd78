package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
)

// Page is a fetched document.
// It exists only for the duration of one processing step and is never
// mutated after the transport hands it out.
type Page struct {
	// URL is the final URL of the document after redirects.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains the HTTP response headers.
	Headers http.Header `json:"headers,omitempty"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type"`

	// Raw contains the response body bytes, limited by the transport.
	Raw []byte `json:"-"`

	// Hash is the SHA-256 hash of Raw.
	// Two fetches of an unchanged page produce the same hash.
	Hash string `json:"hash"`
}

// NewPage creates a Page and computes its content hash.
func NewPage(url string, statusCode int, headers http.Header, raw []byte) *Page {
	p := &Page{
		URL:        url,
		StatusCode: statusCode,
		Headers:    headers,
		Raw:        raw,
	}
	if headers != nil {
		p.ContentType = headers.Get("Content-Type")
	}
	p.ComputeHash()
	return p
}

// ComputeHash calculates the SHA-256 hash of the raw content.
// An empty body produces an empty hash.
func (p *Page) ComputeHash() {
	if len(p.Raw) == 0 {
		p.Hash = ""
		return
	}
	sum := sha256.Sum256(p.Raw)
	p.Hash = hex.EncodeToString(sum[:])
}

// Body returns a reader over the raw content.
func (p *Page) Body() io.Reader {
	return bytes.NewReader(p.Raw)
}

// GetHeader returns the first value of the named header.
func (p *Page) GetHeader(name string) string {
	if p.Headers == nil {
		return ""
	}
	return p.Headers.Get(name)
}

// IsHTML reports whether the page declares an HTML content type.
// Pages without a content type are assumed to be HTML, which is how the
// election sites serve their static result pages.
func (p *Page) IsHTML() bool {
	if p.ContentType == "" {
		return true
	}
	ct := strings.ToLower(p.ContentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
