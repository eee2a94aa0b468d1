package stars

import (
	"fmt"
	"sort"
	"strings"
)

// SortField is the repository attribute used for ordering
type SortField string

const (
	SortByStarred SortField = "starred_at"
	SortByPushed  SortField = "pushed_at"
	SortByName    SortField = "name"
	SortByStars   SortField = "stars"
)

// Direction is the sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortSpec describes how the visible list is ordered
type SortSpec struct {
	Field     SortField `toml:"sort" json:"field"`
	Direction Direction `toml:"direction" json:"direction"`
}

// DefaultSortSpec returns pushed_at ascending
func DefaultSortSpec() SortSpec {
	return SortSpec{Field: SortByPushed, Direction: Asc}
}

// Toggle returns the opposite direction
func (d Direction) Toggle() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// Label returns the arrow shown next to the active sort field
func (d Direction) Label() string {
	if d == Desc {
		return "↓"
	}
	return "↑"
}

// ParseSortField accepts the canonical names plus a few aliases
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "starred", "starred_at", "created":
		return SortByStarred, nil
	case "pushed", "pushed_at", "updated":
		return SortByPushed, nil
	case "name", "full_name":
		return SortByName, nil
	case "stars", "stargazers":
		return SortByStars, nil
	default:
		return "", fmt.Errorf("unknown sort field %q: use starred, pushed, name or stars", s)
	}
}

// ParseDirection parses asc/desc
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q: use asc or desc", s)
	}
}

// Validate reports whether the spec names a known field and direction
func (s SortSpec) Validate() error {
	switch s.Field {
	case SortByStarred, SortByPushed, SortByName, SortByStars:
	default:
		return fmt.Errorf("unknown sort field %q: use starred_at, pushed_at, name or stars", s.Field)
	}
	if s.Direction != Asc && s.Direction != Desc {
		return fmt.Errorf("unknown sort direction %q: use asc or desc", s.Direction)
	}
	return nil
}

// ServerSortable reports whether GitHub can order by this field itself
func (f SortField) ServerSortable() bool {
	return f == SortByStarred || f == SortByPushed
}

// Sort returns a new slice ordered by spec. Ties are broken by full name
// ascending regardless of direction so the result is total and reproducible.
func Sort(repos []Repository, spec SortSpec) []Repository {
	out := make([]Repository, len(repos))
	copy(out, repos)

	desc := spec.Direction == Desc
	sort.SliceStable(out, func(i, j int) bool {
		c := compareField(out[i], out[j], spec.Field)
		if c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].FullName < out[j].FullName
	})

	return out
}

func compareField(a, b Repository, field SortField) int {
	switch field {
	case SortByStarred:
		return a.StarredAt.Compare(b.StarredAt)
	case SortByPushed:
		return a.PushedAt.Compare(b.PushedAt)
	case SortByStars:
		switch {
		case a.Stars < b.Stars:
			return -1
		case a.Stars > b.Stars:
			return 1
		}
		return 0
	case SortByName:
		return strings.Compare(strings.ToLower(a.FullName), strings.ToLower(b.FullName))
	default:
		return 0
	}
}
