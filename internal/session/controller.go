package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"starcleaner/pkg/github"
	"starcleaner/pkg/stars"
)

// TokenHandler validates a submitted token and returns a client that uses it
type TokenHandler func(ctx context.Context, token string) (github.StarsAPI, error)

// Opener shows a URL to the user, usually in a browser
type Opener interface {
	Open(url string) error
}

// Option configures a Controller
type Option func(*Controller)

// WithSort sets the initial sort spec
func WithSort(spec stars.SortSpec) Option {
	return func(c *Controller) { c.sort = spec }
}

// WithTokenHandler enables the submit-token action
func WithTokenHandler(h TokenHandler) Option {
	return func(c *Controller) { c.onToken = h }
}

// WithOpener enables opening repositories
func WithOpener(o Opener) Option {
	return func(c *Controller) { c.opener = o }
}

// Controller owns the state of one browsing session. Every mutation goes
// through its methods; network calls run without holding the lock and their
// results are applied only if no reload happened in the meantime.
type Controller struct {
	mu      sync.Mutex
	api     github.StarsAPI
	onToken TokenHandler
	opener  Opener
	fetches singleflight.Group

	generation uint64
	cursor     github.Cursor
	listOpts   github.ListOptions

	repos     []stars.Repository
	loadedIDs map[int64]struct{}
	selection *stars.Selection
	sort      stars.SortSpec
	filter    string
	visible   []stars.Repository

	state   State
	lastErr error
}

// New creates a controller in the Uninitialized state
func New(api github.StarsAPI, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		sort:      stars.DefaultSortSpec(),
		selection: stars.NewSelection(),
		loadedIDs: make(map[int64]struct{}),
		cursor:    github.FirstPage,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.listOpts = listOptionsFor(c.sort)
	return c
}

// listOptionsFor returns the server ordering for a fetch session. Fields the
// API cannot order by fall back to the default server order.
func listOptionsFor(spec stars.SortSpec) github.ListOptions {
	if !spec.Field.ServerSortable() {
		return github.ListOptions{}
	}
	return github.ListOptions{Sort: spec.Field, Direction: spec.Direction}
}

// FetchNextPageAsync starts loading the next page and returns a channel that
// receives its outcome. A call made while a fetch of the same session is in
// flight joins that fetch instead of issuing another request.
func (c *Controller) FetchNextPageAsync(ctx context.Context) <-chan FetchOutcome {
	out := make(chan FetchOutcome, 1)

	c.mu.Lock()
	if c.cursor.Done() {
		c.mu.Unlock()
		out <- FetchOutcome{Result: FetchResult{Done: true}}
		close(out)
		return out
	}

	gen := c.generation
	cursor := c.cursor
	opts := c.listOpts
	api := c.api
	if c.state != NeedsToken {
		c.state = Loading
	}

	// Callers leaving early must not cancel a fetch other callers share.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return c.fetch(fetchCtx, api, gen, cursor, opts)
	})
	c.mu.Unlock()

	go func() {
		res := <-ch
		outcome := FetchOutcome{Err: res.Err, Shared: res.Shared}
		if r, ok := res.Val.(FetchResult); ok {
			outcome.Result = r
		}
		out <- outcome
		close(out)
	}()
	return out
}

// FetchOutcome is delivered by FetchNextPageAsync
type FetchOutcome struct {
	Result FetchResult
	Err    error
	// Shared is true when the outcome came from a fetch another caller started
	Shared bool
}

// FetchNextPage loads the next page and blocks until it is applied. It is a
// no-op once the last page has been loaded.
func (c *Controller) FetchNextPage(ctx context.Context) (FetchResult, error) {
	select {
	case outcome := <-c.FetchNextPageAsync(ctx):
		return outcome.Result, outcome.Err
	case <-ctx.Done():
		return FetchResult{}, ctx.Err()
	}
}

// FetchAll loads pages until the last one or until limit pages were loaded
// by this call. A limit of zero means no limit. onPage, if set, is called
// after every page that was applied.
func (c *Controller) FetchAll(ctx context.Context, limit int, onPage func(FetchResult)) (FetchResult, error) {
	var total FetchResult
	for pages := 0; limit <= 0 || pages < limit; pages++ {
		res, err := c.FetchNextPage(ctx)
		total.Added += res.Added
		total.Done = res.Done
		total.Stale = res.Stale
		if err != nil || res.Stale {
			return total, err
		}
		if onPage != nil {
			onPage(res)
		}
		if res.Done {
			return total, nil
		}
	}
	return total, nil
}

func (c *Controller) fetch(ctx context.Context, api github.StarsAPI, gen uint64, cursor github.Cursor, opts github.ListOptions) (FetchResult, error) {
	page, err := api.ListStarred(ctx, cursor, opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		slog.Debug("discarding page from superseded session", "page", int(cursor), "generation", gen)
		return FetchResult{Stale: true}, nil
	}

	if err != nil {
		c.fail(err)
		slog.Warn("failed to fetch starred repositories", "page", int(cursor), "error", err)
		return FetchResult{}, fmt.Errorf("failed to fetch page %d: %w", cursor, err)
	}

	added := 0
	for _, repo := range page.Repositories {
		// Offset pagination can repeat an entry when stars change between pages.
		if _, dup := c.loadedIDs[repo.ID]; dup {
			continue
		}
		c.loadedIDs[repo.ID] = struct{}{}
		c.repos = append(c.repos, repo)
		added++
	}
	c.cursor = page.Next
	c.state = Ready
	c.lastErr = nil
	c.rederive()

	slog.Debug("applied page", "page", int(cursor), "added", added, "loaded", len(c.repos), "done", c.cursor.Done())
	return FetchResult{Added: added, Done: c.cursor.Done()}, nil
}

// fail records err; must be called with c.mu held
func (c *Controller) fail(err error) {
	c.lastErr = err
	if github.IsUnauthorized(err) {
		c.state = NeedsToken
		return
	}
	if c.state == Loading || c.state == Uninitialized {
		c.state = Error
	}
}

// Reload starts a new fetch session with the current sort spec and loads
// its first page. Loaded data and selection are dropped, and a fetch still
// in flight from the previous session is discarded when it completes.
func (c *Controller) Reload(ctx context.Context) (FetchResult, error) {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
	return c.FetchNextPage(ctx)
}

// reset must be called with c.mu held
func (c *Controller) reset() {
	c.generation++
	c.cursor = github.FirstPage
	c.listOpts = listOptionsFor(c.sort)
	c.repos = nil
	c.loadedIDs = make(map[int64]struct{})
	c.selection.Clear()
	c.visible = nil
	c.lastErr = nil
	c.state = Uninitialized
}

// SubmitToken swaps in a client for token and reloads
func (c *Controller) SubmitToken(ctx context.Context, token string) (FetchResult, error) {
	if c.onToken == nil {
		return FetchResult{}, ErrNoTokenHandler
	}

	api, err := c.onToken(ctx, token)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.state = NeedsToken
		c.mu.Unlock()
		return FetchResult{}, err
	}

	c.mu.Lock()
	c.api = api
	c.mu.Unlock()

	slog.Info("token accepted, reloading starred repositories")
	return c.Reload(ctx)
}

// ToggleSelection flips the selection of a loaded repository
func (c *Controller) ToggleSelection(id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.loadedIDs[id]; !ok {
		return false, ErrUnknownRepository
	}
	return c.selection.Toggle(id), nil
}

// SelectAllVisible makes the selection exactly the visible repositories
func (c *Controller) SelectAllVisible() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selection.Set(stars.IDs(c.visible))
	return c.selection.Len()
}

// ClearSelection empties the selection
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selection.Clear()
}

// UnstarOne unstars a loaded repository. The caller is responsible for
// confirmation. On failure the session is left unchanged.
func (c *Controller) UnstarOne(ctx context.Context, id int64) error {
	c.mu.Lock()
	repo, ok := c.lookup(id)
	api := c.api
	c.mu.Unlock()

	if !ok {
		return ErrUnknownRepository
	}

	if err := api.Unstar(ctx, repo.FullName); err != nil {
		if github.IsUnauthorized(err) {
			c.mu.Lock()
			c.fail(err)
			c.mu.Unlock()
		}
		return fmt.Errorf("failed to unstar %s: %w", repo.FullName, err)
	}

	c.mu.Lock()
	c.remove(id)
	c.rederive()
	c.mu.Unlock()

	slog.Info("unstarred repository", "repository", repo.FullName)
	return nil
}

// Open shows the page of a loaded repository
func (c *Controller) Open(id int64) error {
	c.mu.Lock()
	repo, ok := c.lookup(id)
	c.mu.Unlock()

	if !ok {
		return ErrUnknownRepository
	}
	if c.opener == nil {
		return ErrNoOpener
	}
	if repo.HTMLURL == "" {
		return fmt.Errorf("repository %s has no web page", repo.FullName)
	}
	if err := c.opener.Open(repo.HTMLURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", repo.FullName, err)
	}
	return nil
}

// UnstarSelected unstars a snapshot of the selection in loaded order. Every
// repository gets a result; only successful ones leave the loaded set.
func (c *Controller) UnstarSelected(ctx context.Context) []ItemResult {
	c.mu.Lock()
	ids := c.selection.In(c.repos)
	items := make([]ItemResult, len(ids))
	names := make([]string, len(ids))
	for i, id := range ids {
		repo, _ := c.lookup(id)
		items[i] = ItemResult{ID: id, FullName: repo.FullName}
		names[i] = repo.FullName
	}
	api := c.api
	c.mu.Unlock()

	if len(items) == 0 {
		return nil
	}

	results := api.BatchUnstar(ctx, names)

	c.mu.Lock()
	defer c.mu.Unlock()

	failed := 0
	for i := range items {
		if i >= len(results) {
			items[i].Err = fmt.Errorf("no result returned for %s", items[i].FullName)
			failed++
			continue
		}
		items[i].Err = results[i].Err
		if items[i].OK() {
			c.remove(items[i].ID)
			continue
		}
		failed++
		if github.IsUnauthorized(items[i].Err) {
			c.fail(items[i].Err)
		}
	}
	c.rederive()

	slog.Info("batch unstar finished", "requested", len(items), "failed", failed)
	return items
}

// ChangeSort reorders the visible list. Already loaded data is kept and
// nothing is fetched; the next Reload asks GitHub for the new order.
func (c *Controller) ChangeSort(spec stars.SortSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sort = spec
	c.rederive()
	return nil
}

// SelectSortField switches to field ascending, or flips the direction when
// field is already active
func (c *Controller) SelectSortField(field stars.SortField) error {
	c.mu.Lock()
	spec := c.sort
	c.mu.Unlock()

	if spec.Field == field {
		spec.Direction = spec.Direction.Toggle()
	} else {
		spec = stars.SortSpec{Field: field, Direction: stars.Asc}
	}
	return c.ChangeSort(spec)
}

// ToggleDirection flips the sort direction
func (c *Controller) ToggleDirection() stars.Direction {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sort.Direction = c.sort.Direction.Toggle()
	c.rederive()
	return c.sort.Direction
}

// ChangeFilter sets the filter query
func (c *Controller) ChangeFilter(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filter = query
	c.rederive()
}

// Visible returns the filtered, sorted rows with their selection state
func (c *Controller) Visible() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]Row, len(c.visible))
	for i, repo := range c.visible {
		rows[i] = Row{Repository: repo, Selected: c.selection.Has(repo.ID)}
	}
	return rows
}

// Loaded returns the loaded repositories in fetch order
func (c *Controller) Loaded() []stars.Repository {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]stars.Repository(nil), c.repos...)
}

// SelectedIDs returns the selected ids in loaded order
func (c *Controller) SelectedIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.selection.In(c.repos)
}

// Status returns a summary of the session
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		State:    c.state,
		Err:      c.lastErr,
		Sort:     c.sort,
		Filter:   c.filter,
		Loaded:   len(c.repos),
		Visible:  len(c.visible),
		Selected: c.selection.Len(),
		Done:     c.cursor.Done(),
	}
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// rederive recomputes the visible list; must be called with c.mu held
func (c *Controller) rederive() {
	c.visible = stars.Sort(stars.Filter(c.repos, c.filter), c.sort)
}

// lookup must be called with c.mu held
func (c *Controller) lookup(id int64) (stars.Repository, bool) {
	if _, ok := c.loadedIDs[id]; !ok {
		return stars.Repository{}, false
	}
	for _, repo := range c.repos {
		if repo.ID == id {
			return repo, true
		}
	}
	return stars.Repository{}, false
}

// remove must be called with c.mu held
func (c *Controller) remove(id int64) {
	if _, ok := c.loadedIDs[id]; !ok {
		return
	}
	delete(c.loadedIDs, id)
	c.selection.Remove(id)
	for i, repo := range c.repos {
		if repo.ID == id {
			c.repos = append(c.repos[:i:i], c.repos[i+1:]...)
			return
		}
	}
}
