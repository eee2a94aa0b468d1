package session

import (
	"errors"

	"starcleaner/pkg/stars"
)

// State is the lifecycle state of a session
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Error
	// NeedsToken means GitHub rejected the token; the front-end should ask for a new one
	NeedsToken
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	case NeedsToken:
		return "needs_token"
	default:
		return "unknown"
	}
}

// ErrUnknownRepository is returned for ids that are not in the loaded set
var ErrUnknownRepository = errors.New("repository is not loaded")

// ErrNoOpener is returned when a repository is opened in a session without a browser
var ErrNoOpener = errors.New("session cannot open repositories")

// ErrNoTokenHandler is returned when a token is submitted to a session that cannot use it
var ErrNoTokenHandler = errors.New("session does not accept tokens")

// Row is one entry of the visible list as the front-end renders it
type Row struct {
	Repository stars.Repository
	Selected   bool
}

// FetchResult describes the outcome of a page fetch
type FetchResult struct {
	// Added is the number of repositories appended to the loaded set
	Added int
	// Done is true once the last page has been loaded
	Done bool
	// Stale is true when a reload superseded the fetch and its page was dropped
	Stale bool
}

// ItemResult is the outcome of unstarring one repository
type ItemResult struct {
	ID       int64
	FullName string
	Err      error
}

// OK reports whether the repository was unstarred
func (r ItemResult) OK() bool {
	return r.Err == nil
}

// Status is a point-in-time summary of the session for status lines
type Status struct {
	State    State
	Err      error
	Sort     stars.SortSpec
	Filter   string
	Loaded   int
	Visible  int
	Selected int
	Done     bool
}
