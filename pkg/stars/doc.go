// Package stars holds the in-memory model of a user's starred repositories
// and the client-side engine that sorts and filters them.
//
// Everything in this package is pure: no network or filesystem access. The
// session controller owns the loaded set and re-derives the visible rows from
// it with Sort and Filter whenever the sort spec or the filter query changes.
package stars
