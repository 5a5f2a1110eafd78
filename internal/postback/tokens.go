package postback

import (
	"fmt"

	"github.com/nao1215/ballotharvest/internal/dom"
	"github.com/nao1215/ballotharvest/internal/model"
)

// TokenSpec names one hidden form field the server expects echoed back.
type TokenSpec struct {
	// Name is the id (and form name) of the hidden input.
	Name string

	// Required tokens must be present on every list page. Optional tokens
	// are carried only when present with a non-empty value.
	Required bool
}

// DefaultTokens are the view-state fields of an ASP.NET WebForms page.
// Large view states are split over __VIEWSTATE1..3, announced by
// __VIEWSTATEFIELDCOUNT.
var DefaultTokens = []TokenSpec{
	{Name: "__VIEWSTATE", Required: true},
	{Name: "__EVENTVALIDATION", Required: true},
	{Name: "__VIEWSTATEFIELDCOUNT"},
	{Name: "__VIEWSTATE1"},
	{Name: "__VIEWSTATE2"},
	{Name: "__VIEWSTATE3"},
}

// HarvestTokens reads the tokens of specs from the hidden inputs of doc.
// It fails with ErrMissingToken when a required input is absent.
func HarvestTokens(doc *dom.Document, specs []TokenSpec) (model.SessionState, error) {
	state := make(model.SessionState, len(specs))
	for _, spec := range specs {
		value, ok := doc.InputValue(spec.Name)
		switch {
		case !ok && spec.Required:
			return nil, fmt.Errorf("%w: %s on %s", ErrMissingToken, spec.Name, doc.URL())
		case !ok, value == "" && !spec.Required:
			continue
		}
		state[spec.Name] = value
	}
	return state, nil
}
