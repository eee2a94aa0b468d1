package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starcleaner/pkg/stars"
)

// createTestClient creates a GitHub client configured to use the test server
func createTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{
		WithGraphQLURL(server.URL + "/graphql"),
		WithPacing(&RateTrackerConfig{MaxDelay: time.Second}),
	}, opts...)
	client, err := NewClient("test-token", opts...)
	require.NoError(t, err)

	// Parse the test server URL and ensure it has a trailing slash
	serverURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)

	// Override the base URL to point to our test server
	client.client.BaseURL = serverURL

	return client
}

func starredJSON(id int64, fullName string, starredAt time.Time) map[string]interface{} {
	owner, name, _ := splitFullName(fullName)
	return map[string]interface{}{
		"starred_at": starredAt.Format(time.RFC3339),
		"repo": map[string]interface{}{
			"id":                id,
			"name":              name,
			"full_name":         fullName,
			"owner":             map[string]interface{}{"login": owner},
			"description":       "desc of " + name,
			"language":          "Go",
			"stargazers_count":  42,
			"forks_count":       7,
			"open_issues_count": 3,
			"topics":            []string{"cli", "github"},
			"license":           map[string]interface{}{"name": "MIT License"},
			"pushed_at":         "2022-05-01T00:00:00Z",
			"updated_at":        "2022-06-01T00:00:00Z",
			"html_url":          "https://github.com/" + fullName,
		},
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient("test-token")
	require.NoError(t, err)
	require.NotNil(t, client.client)
	require.NotNil(t, client.v4)
	assert.Equal(t, 1, client.concurrency)

	client, err = NewClient("test-token", WithConcurrency(0), WithCacheDir(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, 1, client.concurrency)
}

func TestNewClient_EnterpriseBaseURL(t *testing.T) {
	client, err := NewClient("test-token", WithBaseURL("https://ghe.example.com/api/v3/"))
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", client.client.BaseURL.String())
}

func TestGraphQLEndpoint(t *testing.T) {
	assert.Equal(t, "https://ghe.example.com/api/graphql", graphQLEndpoint("https://ghe.example.com/api/v3/"))
	assert.Equal(t, "http://127.0.0.1:8080/graphql", graphQLEndpoint("http://127.0.0.1:8080/"))
}

func TestListStarred(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GET /user/starred", r.Method+" "+r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		gotQuery = r.URL.Query()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Link", fmt.Sprintf(`<%s/user/starred?page=3>; rel="next"`, "http://"+r.Host))
		_ = json.NewEncoder(w).Encode([]interface{}{
			starredJSON(11, "octo/alpha", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
			starredJSON(12, "octo/beta", time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)),
		})
	}))
	defer server.Close()

	client := createTestClient(t, server)

	page, err := client.ListStarred(context.Background(), Cursor(2), ListOptions{Sort: stars.SortByStarred, Direction: stars.Desc})
	require.NoError(t, err)

	assert.Equal(t, "2", gotQuery.Get("page"))
	assert.Equal(t, "100", gotQuery.Get("per_page"))
	assert.Equal(t, "created", gotQuery.Get("sort"))
	assert.Equal(t, "desc", gotQuery.Get("direction"))

	assert.Equal(t, Cursor(3), page.Next)
	require.Len(t, page.Repositories, 2)

	repo := page.Repositories[0]
	assert.Equal(t, int64(11), repo.ID)
	assert.Equal(t, "octo/alpha", repo.FullName)
	assert.Equal(t, "octo", repo.Owner)
	assert.Equal(t, "alpha", repo.Name)
	assert.Equal(t, "desc of alpha", repo.Description)
	assert.Equal(t, "Go", repo.Language)
	assert.Equal(t, 42, repo.Stars)
	assert.Equal(t, 7, repo.Forks)
	assert.Equal(t, 3, repo.OpenIssues)
	assert.Equal(t, "MIT License", repo.License)
	assert.Equal(t, []string{"cli", "github"}, repo.Topics)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), repo.StarredAt.UTC())
	assert.Equal(t, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC), repo.PushedAt.UTC())
	assert.Equal(t, "https://github.com/octo/alpha", repo.HTMLURL)
	assert.Equal(t, 100, repo.StarredOrder)
	assert.Equal(t, 101, page.Repositories[1].StarredOrder)
}

func TestListStarred_LastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]interface{}{
			starredJSON(1, "octo/only", time.Now()),
		})
	}))
	defer server.Close()

	client := createTestClient(t, server)

	page, err := client.ListStarred(context.Background(), FirstPage, ListOptions{Sort: stars.SortByPushed, Direction: stars.Asc})
	require.NoError(t, err)
	assert.True(t, page.Next.Done())
	assert.Len(t, page.Repositories, 1)
}

func TestListStarred_EndCursorMakesNoRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := createTestClient(t, server)

	page, err := client.ListStarred(context.Background(), End, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Repositories)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestListStarred_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		headers    map[string]string
		message    string
		expected   ErrorType
		retryAfter time.Duration
	}{
		{
			name:     "bad credentials",
			status:   http.StatusUnauthorized,
			message:  "Bad credentials",
			expected: ErrorTypeAuth,
		},
		{
			name:   "primary rate limit",
			status: http.StatusForbidden,
			headers: map[string]string{
				"X-RateLimit-Limit":     "5000",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     fmt.Sprint(time.Now().Add(time.Hour).Unix()),
			},
			message:  "API rate limit exceeded",
			expected: ErrorTypeRateLimit,
		},
		{
			name:       "too many requests with retry-after",
			status:     http.StatusTooManyRequests,
			headers:    map[string]string{"Retry-After": "30"},
			message:    "You have exceeded a secondary rate limit",
			expected:   ErrorTypeRateLimit,
			retryAfter: 30 * time.Second,
		},
		{
			name:     "unexpected status",
			status:   http.StatusBadGateway,
			message:  "Server Error",
			expected: ErrorTypeAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": tt.message})
			}))
			defer server.Close()

			client := createTestClient(t, server)

			_, err := client.ListStarred(context.Background(), FirstPage, ListOptions{})
			require.Error(t, err)
			assert.Equal(t, tt.expected, TypeOf(err))

			var ghErr *Error
			require.ErrorAs(t, err, &ghErr)
			assert.Equal(t, tt.status, ghErr.Status)
			if tt.expected == ErrorTypeRateLimit {
				assert.True(t, ghErr.IsRetryable())
				assert.Positive(t, ghErr.RetryAfter)
			}
			if tt.retryAfter > 0 {
				assert.Equal(t, tt.retryAfter, ghErr.RetryAfter)
			}
		})
	}
}

func TestListStarred_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := createTestClient(t, server)
	server.Close()

	_, err := client.ListStarred(context.Background(), FirstPage, ListOptions{})
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestUnstar(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := createTestClient(t, server)

	require.NoError(t, client.Unstar(context.Background(), "octo/alpha"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/user/starred/octo/alpha", gotPath)
}

func TestUnstar_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user/starred/octo/gone":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Bad credentials"})
		}
	}))
	defer server.Close()

	client := createTestClient(t, server)

	err := client.Unstar(context.Background(), "octo/gone")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "octo/gone")

	err = client.Unstar(context.Background(), "octo/other")
	assert.True(t, IsUnauthorized(err))

	err = client.Unstar(context.Background(), "not-a-full-name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected owner/name")
}

func TestBatchUnstar(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			var mu sync.Mutex
			var seen []string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				seen = append(seen, r.URL.Path)
				mu.Unlock()

				if r.URL.Path == "/user/starred/octo/b" {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusNotFound)
					_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			client := createTestClient(t, server, WithConcurrency(concurrency))

			results := client.BatchUnstar(context.Background(), []string{"octo/a", "octo/b", "octo/c"})

			require.Len(t, results, 3)
			assert.Equal(t, "octo/a", results[0].FullName)
			assert.True(t, results[0].OK())
			assert.Equal(t, "octo/b", results[1].FullName)
			assert.True(t, IsNotFound(results[1].Err))
			assert.Equal(t, "octo/c", results[2].FullName)
			assert.True(t, results[2].OK())
			assert.Len(t, seen, 3)
		})
	}
}

func TestBatchUnstar_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := createTestClient(t, server)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := client.BatchUnstar(ctx, []string{"octo/a", "octo/b"})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.OK())
		assert.True(t, IsNetwork(r.Err))
	}
}

func TestValidateToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-OAuth-Scopes", "public_repo, read:user")
		_ = json.NewEncoder(w).Encode(&github.User{Login: github.String("octocat")})
	}))
	defer server.Close()

	client := createTestClient(t, server)

	info, err := client.ValidateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", info.User)
	assert.Equal(t, []string{"public_repo", "read:user"}, info.Scopes)
	assert.NoError(t, CheckScopes(info))
}

func TestStarCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"viewer":{"starredRepositories":{"totalCount":1234}}}}`))
	}))
	defer server.Close()

	client := createTestClient(t, server)

	count, err := client.StarCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234, count)
}

func TestListStarred_CacheRevalidatesWithETag(t *testing.T) {
	var calls int32
	var lastIfNoneMatch string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		lastIfNoneMatch = r.Header.Get("If-None-Match")

		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
		if lastIfNoneMatch == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]interface{}{starredJSON(5, "octo/cached", time.Now())})
	}))
	defer server.Close()

	client := createTestClient(t, server, WithCacheDir(t.TempDir()))

	first, err := client.ListStarred(context.Background(), FirstPage, ListOptions{})
	require.NoError(t, err)
	second, err := client.ListStarred(context.Background(), FirstPage, ListOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, `"v1"`, lastIfNoneMatch)
	assert.Equal(t, first.Repositories[0].FullName, second.Repositories[0].FullName)
}

func TestRateStatsTrackResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4321")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Hour).Unix()))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := createTestClient(t, server)
	require.NoError(t, client.Unstar(context.Background(), "octo/a"))

	stats := client.RateStats()
	assert.Equal(t, 5000, stats.Limit)
	assert.Equal(t, 4321, stats.Remaining)
}
