// Package auth helps the user obtain a GitHub personal access token.
package auth

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// TokenDescription pre-fills the note of a new token
	TokenDescription = "starcleaner"
	// TokenScopes are the classic scopes needed to unstar public repositories
	TokenScopes = "public_repo"
)

// NewTokenURL returns the page that creates a classic token with the scopes
// starcleaner needs. baseURL is the configured API base URL; empty means
// github.com. Enterprise API paths such as /api/v3/ are dropped.
func NewTokenURL(baseURL string) (string, error) {
	host := "https://github.com"
	if strings.TrimSpace(baseURL) != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("invalid GitHub base URL %q: %w", baseURL, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return "", fmt.Errorf("invalid GitHub base URL %q: missing scheme or host", baseURL)
		}
		host = u.Scheme + "://" + strings.TrimPrefix(u.Host, "api.")
	}

	q := url.Values{}
	q.Set("description", TokenDescription)
	q.Set("scopes", TokenScopes)
	return host + "/settings/tokens/new?" + q.Encode(), nil
}
