package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeGitHub serves the subset of the GitHub API starcleaner uses
type fakeGitHub struct {
	mu        sync.Mutex
	starred   []string
	pageSize  int
	unstarred []string
	failing   map[string]int
	status    int
	scopes    string
	server    *httptest.Server
}

func newFakeGitHub(t *testing.T, starred ...string) *fakeGitHub {
	t.Helper()

	f := &fakeGitHub{
		starred:  starred,
		pageSize: 100,
		failing:  map[string]int{},
		scopes:   "repo, read:user",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/user", f.handleUser)
	mux.HandleFunc("GET /api/v3/user/starred", f.handleList)
	mux.HandleFunc("DELETE /api/v3/user/starred/{owner}/{repo}", f.handleUnstar)
	mux.HandleFunc("POST /api/graphql", f.handleGraphQL)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitHub) rejected(w http.ResponseWriter) bool {
	f.mu.Lock()
	status := f.status
	f.mu.Unlock()
	if status == 0 {
		return false
	}
	w.WriteHeader(status)
	_, _ = fmt.Fprint(w, `{"message": "Bad credentials"}`)
	return true
}

func (f *fakeGitHub) handleUser(w http.ResponseWriter, _ *http.Request) {
	if f.rejected(w) {
		return
	}
	w.Header().Set("X-OAuth-Scopes", f.scopes)
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "4999")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	_, _ = fmt.Fprint(w, `{"login": "octocat"}`)
}

func (f *fakeGitHub) handleList(w http.ResponseWriter, r *http.Request) {
	if f.rejected(w) {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	f.mu.Lock()
	names := append([]string(nil), f.starred...)
	f.mu.Unlock()

	start := (page - 1) * f.pageSize
	end := min(start+f.pageSize, len(names))
	if end < len(names) {
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v3/user/starred?page=%d>; rel="next"`, f.server.URL, page+1))
	}

	items := []map[string]any{}
	for i := start; i < end; i++ {
		items = append(items, starredRepo(int64(i+1), names[i], i))
	}
	_ = json.NewEncoder(w).Encode(items)
}

func (f *fakeGitHub) handleUnstar(w http.ResponseWriter, r *http.Request) {
	if f.rejected(w) {
		return
	}

	name := r.PathValue("owner") + "/" + r.PathValue("repo")

	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.failing[name]; ok {
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, `{"message": "Not Found"}`)
		return
	}
	f.unstarred = append(f.unstarred, name)
	for i, s := range f.starred {
		if s == name {
			f.starred = append(f.starred[:i], f.starred[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeGitHub) handleGraphQL(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	count := len(f.starred)
	f.mu.Unlock()
	_, _ = fmt.Fprintf(w, `{"data": {"viewer": {"starredRepositories": {"totalCount": %d}}}}`, count)
}

func (f *fakeGitHub) Unstarred() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unstarred...)
}

// starredRepo builds a starred repository payload. Later entries were
// starred later and pushed earlier.
func starredRepo(id int64, fullName string, i int) map[string]any {
	owner, name, _ := strings.Cut(fullName, "/")
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	return map[string]any{
		"starred_at": base.AddDate(0, 0, i).Format(time.RFC3339),
		"repo": map[string]any{
			"id":               id,
			"name":             name,
			"full_name":        fullName,
			"owner":            map[string]any{"login": owner},
			"description":      "about " + name,
			"language":         "Go",
			"stargazers_count": 10 * (i + 1),
			"pushed_at":        base.AddDate(0, 0, -i).Format(time.RFC3339),
			"html_url":         "https://github.com/" + fullName,
		},
	}
}

// writeTestConfig writes a config pointing at the fake server and returns its path
func writeTestConfig(t *testing.T, f *fakeGitHub, token string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf("[github]\nbase_url = %q\ncache = false\n", f.server.URL+"/")
	if token != "" {
		content += fmt.Sprintf("token = %q\n", token)
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func resetFlags() {
	debugMode = false
	configPath = ""
	listSort, listDesc, listFilter, listPages, listAll, listOutput = "", false, "", 1, false, outputTable
	unstarYes = false
	cleanSort, cleanDesc, cleanFilter, cleanYes = "", false, "", false
	loginToken, loginWeb = "", false
	openFilter = ""
}

// executeCommand runs the root command with args and stdin, returning stdout and stderr
func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return executeCommandWithEnv(t, nil, stdin, args...)
}

func executeCommandWithEnv(t *testing.T, env map[string]string, stdin string, args ...string) (string, string, error) {
	t.Helper()

	resetFlags()
	oldGetenv := getenv
	getenv = func(key string) string { return env[key] }
	t.Cleanup(func() { getenv = oldGetenv })

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
