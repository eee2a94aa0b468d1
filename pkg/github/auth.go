package github

import (
	"fmt"
	"strings"
)

// CheckScopes verifies that a classic token can unstar repositories. Fine
// grained tokens report no scopes and are accepted as-is.
func CheckScopes(info *TokenInfo) error {
	if info == nil || len(info.Scopes) == 0 {
		return nil
	}

	for _, scope := range info.Scopes {
		if scope == "repo" || scope == "public_repo" {
			return nil
		}
	}

	return fmt.Errorf("GitHub token missing required permissions: has [%s], needs one of: repo, public_repo",
		strings.Join(info.Scopes, ", "))
}

// GetAuthInstructions returns instructions for setting up GitHub authentication
func GetAuthInstructions() string {
	return `GitHub authentication is required. Please set up authentication using one of the following methods:

1. Interactive login (stores the token in the starcleaner config file):
   starcleaner auth login

2. Environment Variable (takes precedence over the config file):
   export GITHUB_TOKEN="your_personal_access_token"

To create a personal access token:
1. Go to GitHub Settings > Developer settings > Personal access tokens
2. Generate a classic token with the public_repo scope (or repo for private stars),
   or a fine-grained token with "Starring" read and write user permission
3. Copy the generated token and use it with one of the methods above

Note: the token is stored in plain text with 0600 permissions.`
}
