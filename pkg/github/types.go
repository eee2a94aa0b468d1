package github

import "starcleaner/pkg/stars"

// PageSize is the fixed number of repositories requested per page
const PageSize = 100

// Cursor is the GitHub page index of the next page to fetch
type Cursor int

const (
	// End means no further pages exist
	End Cursor = 0
	// FirstPage is the cursor of a fresh fetch session
	FirstPage Cursor = 1
)

// Done reports whether pagination is complete
func (c Cursor) Done() bool {
	return c == End
}

// ListOptions controls server-side ordering of the starred list
type ListOptions struct {
	Sort      stars.SortField
	Direction stars.Direction
}

// Page is one page of starred repositories
type Page struct {
	Repositories []stars.Repository
	Next         Cursor
}

// UnstarResult is the outcome of unstarring one repository in a batch
type UnstarResult struct {
	FullName string
	Err      error
}

// OK reports whether the unstar succeeded
func (r UnstarResult) OK() bool {
	return r.Err == nil
}

// TokenInfo contains information about the authenticated token
type TokenInfo struct {
	User   string   `json:"user"`
	Scopes []string `json:"scopes"`
}
