package postback

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/ballotharvest/internal/dom"
	"github.com/nao1215/ballotharvest/internal/model"
)

const (
	// DetailPathFragment identifies per-candidate detail links.
	DetailPathFragment = "CandidateInfo.aspx"

	// shortcutMarker identifies the petition tab shortcut next to each detail link.
	shortcutMarker = "&Tab=PET"

	// detailTab selects the detail tab of a candidate page.
	detailTab = "DET"

	// headingPrefix precedes the candidate name in the page heading.
	headingPrefix = "Candidate Information -"
)

// IsDetailLink reports whether href points at a candidate detail page and
// is not a tab shortcut.
func IsDetailLink(href string) bool {
	return strings.Contains(href, DetailPathFragment) && !strings.Contains(href, shortcutMarker)
}

// CanonicalDetailURL resolves href against base and selects the detail tab.
// An existing Tab parameter is replaced; otherwise Tab=DET is appended so
// the remaining query keeps its order.
func CanonicalDetailURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidDetailLink, href, err)
	}
	u := base.ResolveReference(ref)
	u.Fragment = ""

	query := u.Query()
	switch {
	case query.Has("Tab"):
		query.Set("Tab", detailTab)
		u.RawQuery = query.Encode()
	case u.RawQuery == "":
		u.RawQuery = "Tab=" + detailTab
	default:
		u.RawQuery += "&Tab=" + detailTab
	}
	return u.String(), nil
}

// DetailLinks returns the canonical detail URLs of a list page in document
// order. A URL listed twice on the page is returned once.
func DetailLinks(doc *dom.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	links := make([]string, 0)
	for _, link := range doc.Links() {
		if !IsDetailLink(link.Href) {
			continue
		}
		canonical, err := CanonicalDetailURL(base, link.Href)
		if err != nil || seen[canonical] {
			continue
		}
		seen[canonical] = true
		links = append(links, canonical)
	}
	return links
}

// FieldSpec maps an output column to the element id holding its value.
type FieldSpec struct {
	Column string
	ID     string
}

// CandidateFields are the detail page elements, in CandidateSchema order.
var CandidateFields = []FieldSpec{
	{Column: "Candidate ID", ID: "ctl00_ContentPlaceHolder1_lblCandID"},
	{Column: "Name", ID: "ctl00_ContentPlaceHolder1_VRSHeading1"},
	{Column: "Office", ID: "ctl00_ContentPlaceHolder1_lblOffice"},
	{Column: "District", ID: "ctl00_ContentPlaceHolder1_lblDistrict"},
	{Column: "Party", ID: "ctl00_ContentPlaceHolder1_lblParty"},
	{Column: "Mailing Address", ID: "ctl00_ContentPlaceHolder1_tabs_TabPanel1_lblMailingAddress"},
	{Column: "Email", ID: "ctl00_ContentPlaceHolder1_tabs_TabPanel1_lblEmail"},
	{Column: "Phone", ID: "ctl00_ContentPlaceHolder1_tabs_TabPanel1_lblPhone"},
	{Column: "Municipality", ID: "ctl00_ContentPlaceHolder1_tabs_TabPanel1_lblMunicipality"},
	{Column: "County", ID: "ctl00_ContentPlaceHolder1_tabs_TabPanel1_lblCounty"},
}

// ParseDetail reads one candidate record from a detail page.
// Every field must resolve to an element; a missing element yields a
// *MissingFieldError. Empty elements give empty values.
func ParseDetail(doc *dom.Document, fields []FieldSpec) (model.ResultRow, error) {
	row := make(model.ResultRow, 0, len(fields))
	for _, field := range fields {
		node := doc.ByID(field.ID)
		if node == nil {
			return nil, &MissingFieldError{URL: doc.URL(), Field: field.Column, ID: field.ID}
		}
		value := dom.TrimmedText(node)
		if field.Column == "Name" {
			value = strings.TrimSpace(strings.TrimPrefix(value, headingPrefix))
		}
		row = append(row, value)
	}
	return row, nil
}
