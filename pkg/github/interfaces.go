package github

import "context"

// StarsAPI defines the GitHub operations the session controller depends on
type StarsAPI interface {
	// ListStarred fetches a single page of starred repositories
	ListStarred(ctx context.Context, cursor Cursor, opts ListOptions) (*Page, error)

	// Unstar removes one repository, given as owner/name, from the user's stars
	Unstar(ctx context.Context, fullName string) error

	// BatchUnstar unstars every repository and reports per-item outcomes in input order
	BatchUnstar(ctx context.Context, fullNames []string) []UnstarResult
}

// Ensure Client implements the interface
var _ StarsAPI = (*Client)(nil)
