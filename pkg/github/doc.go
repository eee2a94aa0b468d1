// Package github wraps the GitHub API calls starcleaner needs: listing the
// authenticated user's starred repositories page by page, unstarring them one
// at a time or in batches, and validating the token.
//
// The package includes:
// - Client, built on go-github with an oauth2 static token source
// - Error, the typed error taxonomy every call maps API failures into
// - a rate tracker that paces batch unstar calls from response headers
package github
