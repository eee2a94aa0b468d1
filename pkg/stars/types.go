package stars

import "time"

// Repository represents a starred GitHub repository as fetched from the API
type Repository struct {
	ID           int64     `json:"id" yaml:"id"`
	FullName     string    `json:"full_name" yaml:"full_name"`
	Owner        string    `json:"owner" yaml:"owner"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Language     string    `json:"language,omitempty" yaml:"language,omitempty"`
	Stars        int       `json:"stars" yaml:"stars"`
	Forks        int       `json:"forks" yaml:"forks"`
	OpenIssues   int       `json:"open_issues" yaml:"open_issues"`
	License      string    `json:"license,omitempty" yaml:"license,omitempty"`
	Topics       []string  `json:"topics,omitempty" yaml:"topics,omitempty"`
	Archived     bool      `json:"archived" yaml:"archived"`
	StarredAt    time.Time `json:"starred_at" yaml:"starred_at"`
	PushedAt     time.Time `json:"pushed_at" yaml:"pushed_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
	HTMLURL      string    `json:"html_url" yaml:"html_url"`
	StarredOrder int       `json:"starred_order" yaml:"starred_order"`
}

// IDs returns the ids of repos in order
func IDs(repos []Repository) []int64 {
	ids := make([]int64, len(repos))
	for i, r := range repos {
		ids[i] = r.ID
	}
	return ids
}
