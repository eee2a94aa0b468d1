package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"starcleaner/pkg/stars"
)

// Client implements StarsAPI using the GitHub REST API
type Client struct {
	client      *github.Client
	v4          *githubv4.Client
	tracker     *rateTracker
	concurrency int
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	cacheDir    string
	baseURL     string
	graphQLURL  string
	concurrency int
	pacing      *RateTrackerConfig
	transport   http.RoundTripper
}

// WithCacheDir enables an on-disk HTTP cache revalidated with ETags
func WithCacheDir(dir string) Option {
	return func(o *clientOptions) { o.cacheDir = dir }
}

// WithBaseURL points the client at a GitHub Enterprise or test server
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

// WithGraphQLURL overrides the GraphQL endpoint
func WithGraphQLURL(graphQLURL string) Option {
	return func(o *clientOptions) { o.graphQLURL = graphQLURL }
}

// WithConcurrency sets how many unstar calls a batch may run in parallel
func WithConcurrency(n int) Option {
	return func(o *clientOptions) { o.concurrency = n }
}

// WithPacing overrides the batch pacing configuration
func WithPacing(cfg *RateTrackerConfig) Option {
	return func(o *clientOptions) { o.pacing = cfg }
}

// WithTransport sets the base transport under the token and cache layers
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

// NewClient creates a new GitHub API client with the provided token
func NewClient(token string, opts ...Option) (*Client, error) {
	o := clientOptions{concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}

	base := o.transport
	if base == nil {
		base = http.DefaultTransport
	}
	if o.cacheDir != "" {
		cache := httpcache.NewTransport(diskcache.New(o.cacheDir))
		cache.Transport = base
		base = revalidate{next: cache}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
	}

	client := github.NewClient(httpClient)
	graphQLURL := o.graphQLURL
	if o.baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", o.baseURL, err)
		}
		if graphQLURL == "" {
			graphQLURL = graphQLEndpoint(client.BaseURL.String())
		}
	}

	v4 := githubv4.NewClient(httpClient)
	if graphQLURL != "" {
		v4 = githubv4.NewEnterpriseClient(graphQLURL, httpClient)
	}

	return &Client{
		client:      client,
		v4:          v4,
		tracker:     newRateTracker(o.pacing),
		concurrency: o.concurrency,
	}, nil
}

// graphQLEndpoint derives the GraphQL URL from a REST base URL: GitHub
// Enterprise serves REST at /api/v3/ and GraphQL at /api/graphql.
func graphQLEndpoint(restBase string) string {
	if strings.HasSuffix(restBase, "/api/v3/") {
		return strings.TrimSuffix(restBase, "v3/") + "graphql"
	}
	return strings.TrimSuffix(restBase, "/") + "/graphql"
}

// revalidate marks every cached GET as stale so httpcache sends it with
// If-None-Match. GitHub answers an unchanged list with 304, which does not
// count against the rate limit, and a changed list is never served stale.
type revalidate struct {
	next http.RoundTripper
}

func (r revalidate) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodGet {
		req = req.Clone(req.Context())
		req.Header.Set("Cache-Control", "max-age=0")
	}
	return r.next.RoundTrip(req)
}

// ListStarred fetches one page of the authenticated user's starred repositories
func (c *Client) ListStarred(ctx context.Context, cursor Cursor, opts ListOptions) (*Page, error) {
	if cursor.Done() {
		return &Page{Next: End}, nil
	}

	listOpts := &github.ActivityListStarredOptions{
		Sort:      apiSortValue(opts.Sort),
		Direction: string(opts.Direction),
		ListOptions: github.ListOptions{
			Page:    int(cursor),
			PerPage: PageSize,
		},
	}

	slog.Debug("fetching starred repositories", "page", int(cursor), "sort", listOpts.Sort, "direction", listOpts.Direction)

	starred, resp, err := c.client.Activity.ListStarred(ctx, "", listOpts)
	c.tracker.Update(resp)
	if err != nil {
		return nil, WrapError(err, fmt.Sprintf("starred repositories page %d", cursor))
	}

	base := (int(cursor) - 1) * PageSize
	page := &Page{
		Repositories: make([]stars.Repository, 0, len(starred)),
		Next:         Cursor(resp.NextPage),
	}
	for i, s := range starred {
		page.Repositories = append(page.Repositories, convertStarredRepository(s, base+i))
	}

	slog.Debug("fetched starred repositories", "page", int(cursor), "count", len(page.Repositories), "next", resp.NextPage)
	return page, nil
}

// Unstar removes a repository, given as owner/name, from the user's stars
func (c *Client) Unstar(ctx context.Context, fullName string) error {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return err
	}

	resp, err := c.client.Activity.Unstar(ctx, owner, name)
	c.tracker.Update(resp)
	if err != nil {
		return WrapError(err, "repository "+fullName)
	}

	slog.Debug("unstarred repository", "repository", fullName)
	return nil
}

// BatchUnstar unstars each repository independently. Failures are reported
// per item and never stop the remaining items; results follow input order.
func (c *Client) BatchUnstar(ctx context.Context, fullNames []string) []UnstarResult {
	results := make([]UnstarResult, len(fullNames))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, fullName := range fullNames {
		results[i].FullName = fullName
		g.Go(func() error {
			if err := c.tracker.Wait(ctx); err != nil {
				results[i].Err = WrapError(err, "repository "+fullName)
				return nil
			}
			results[i].Err = c.Unstar(ctx, fullName)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return results
}

// ValidateToken checks the token by fetching the authenticated user
func (c *Client) ValidateToken(ctx context.Context) (*TokenInfo, error) {
	user, resp, err := c.client.Users.Get(ctx, "")
	c.tracker.Update(resp)
	if err != nil {
		return nil, WrapError(err, "authenticated user")
	}

	scopes := []string{}
	if scopeHeader := resp.Header.Get("X-OAuth-Scopes"); scopeHeader != "" {
		scopes = strings.Split(strings.ReplaceAll(scopeHeader, " ", ""), ",")
	}

	return &TokenInfo{
		User:   user.GetLogin(),
		Scopes: scopes,
	}, nil
}

// StarCount returns the total number of repositories the user has starred.
// The REST API exposes no total, so this goes through GraphQL.
func (c *Client) StarCount(ctx context.Context) (int, error) {
	var q struct {
		Viewer struct {
			StarredRepositories struct {
				TotalCount githubv4.Int
			}
		}
	}
	if err := c.v4.Query(ctx, &q, nil); err != nil {
		return 0, WrapError(err, "starred repositories count")
	}
	return int(q.Viewer.StarredRepositories.TotalCount), nil
}

// RateStats returns the last rate limit observed by this client
func (c *Client) RateStats() RateStats {
	return c.tracker.Stats()
}

// apiSortValue maps a sort field to the list-starred sort parameter;
// fields GitHub cannot sort by fall back to the server default.
func apiSortValue(field stars.SortField) string {
	switch field {
	case stars.SortByStarred:
		return "created"
	case stars.SortByPushed:
		return "updated"
	default:
		return ""
	}
}

func splitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository name %q: expected owner/name", fullName)
	}
	return owner, name, nil
}

// convertStarredRepository converts a GitHub API starred repository to our model
func convertStarredRepository(s *github.StarredRepository, order int) stars.Repository {
	repo := s.GetRepository()
	return stars.Repository{
		ID:           repo.GetID(),
		FullName:     repo.GetFullName(),
		Owner:        repo.GetOwner().GetLogin(),
		Name:         repo.GetName(),
		Description:  repo.GetDescription(),
		Language:     repo.GetLanguage(),
		Stars:        repo.GetStargazersCount(),
		Forks:        repo.GetForksCount(),
		OpenIssues:   repo.GetOpenIssuesCount(),
		License:      repo.GetLicense().GetName(),
		Topics:       repo.Topics,
		Archived:     repo.GetArchived(),
		StarredAt:    s.GetStarredAt().Time,
		PushedAt:     repo.GetPushedAt().Time,
		UpdatedAt:    repo.GetUpdatedAt().Time,
		HTMLURL:      repo.GetHTMLURL(),
		StarredOrder: order,
	}
}
