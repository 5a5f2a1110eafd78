package model

import "net/url"

// ContestContext is read once from a results page's summary table and
// attached to every row extracted from that page.
type ContestContext struct {
	// Office is the contest or office name.
	Office string

	// VoteFor is the number of seats to be filled.
	// Zero means the value could not be determined.
	VoteFor int
}

// HasVoteFor reports whether the seat count was resolved.
func (c ContestContext) HasVoteFor() bool {
	return c.VoteFor > 0
}

// NavigationLink is a link discovered on a navigation page.
type NavigationLink struct {
	// Text is the display text of the anchor, trimmed.
	Text string

	// URL is the absolute target URL.
	URL string
}

// SessionState holds the server-issued postback tokens of one rendered
// list page. A SessionState is valid for requests derived from that page
// only; the next list page always comes with a fresh one.
type SessionState map[string]string

// Form merges the tokens with the event target into a form body.
func (s SessionState) Form(eventTarget string) url.Values {
	form := url.Values{}
	for name, value := range s {
		form.Set(name, value)
	}
	form.Set(EventTargetField, eventTarget)
	return form
}

// Equal reports whether both states carry the same tokens.
func (s SessionState) Equal(other SessionState) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// EventTargetField is the form field naming the control that triggered a postback.
const EventTargetField = "__EVENTTARGET"
