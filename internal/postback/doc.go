// Package postback walks a server-rendered list that pages by form
// postback, such as the candidate listing of PA Voter Services.
//
// Every list page carries hidden view-state tokens. They are harvested
// before anything else happens on the page, echoed with each detail request
// made from that page, and consumed by the single request that advances the
// pager. The next list page brings fresh tokens, so a stale token set can
// never be sent.
//
// The walk is a small state machine:
//
//	FETCHING_LIST_PAGE -> EXTRACTING_ROW_LINKS -> FOLLOWING_DETAIL_LINK (per link)
//	    -> REQUESTING_NEXT_PAGE -> FETCHING_LIST_PAGE | DONE
//
// DONE is reached when the disabled "next" control is present on the list
// page, or when the page limit is hit.
package postback
