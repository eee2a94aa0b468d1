package stars

import "strings"

// Filter keeps repositories where the query is a case-insensitive substring
// of the full name, description, language or any topic. An empty or blank
// query returns a copy of the input in the same order; any other query is
// matched as typed, surrounding spaces included.
func Filter(repos []Repository, query string) []Repository {
	blank := strings.TrimSpace(query) == ""
	q := strings.ToLower(query)

	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		if blank || Matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether r matches an already lower-cased query
func Matches(r Repository, q string) bool {
	if strings.Contains(strings.ToLower(r.FullName), q) ||
		strings.Contains(strings.ToLower(r.Description), q) ||
		strings.Contains(strings.ToLower(r.Language), q) {
		return true
	}
	for _, topic := range r.Topics {
		if strings.Contains(strings.ToLower(topic), q) {
			return true
		}
	}
	return false
}
