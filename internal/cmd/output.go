package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"starcleaner/pkg/github"
	"starcleaner/pkg/stars"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"

	descriptionWidth = 60
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	dimStyle      = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	archivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func validateOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use table, json or yaml", format)
	}
}

// writeRepositories renders repos in the requested format
func writeRepositories(w io.Writer, repos []stars.Repository, spec stars.SortSpec, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if repos == nil {
			repos = []stars.Repository{}
		}
		return enc.Encode(repos)

	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(repos); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()

	default:
		_, err := fmt.Fprintln(w, repositoryTable(repos, spec))
		return err
	}
}

func repositoryTable(repos []stars.Repository, spec stars.SortSpec) string {
	headers := []string{"REPOSITORY", "LANGUAGE", "STARS", "PUSHED", "STARRED", "DESCRIPTION"}
	for i, h := range headers {
		if (h == "PUSHED" && spec.Field == stars.SortByPushed) ||
			(h == "STARRED" && spec.Field == stars.SortByStarred) ||
			(h == "STARS" && spec.Field == stars.SortByStars) ||
			(h == "REPOSITORY" && spec.Field == stars.SortByName) {
			headers[i] = h + " " + spec.Direction.Label()
		}
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(repos) && repos[row].Archived:
				return archivedStyle
			case col == 5:
				return dimStyle
			default:
				return cellStyle
			}
		})

	for _, r := range repos {
		name := r.FullName
		if r.Archived {
			name += " (archived)"
		}
		t.Row(
			name,
			r.Language,
			strconv.Itoa(r.Stars),
			formatDate(r.PushedAt),
			formatDate(r.StarredAt),
			truncate(r.Description, descriptionWidth),
		)
	}

	return t.String()
}

// describeRepository is the one-line summary shown next to a name in the picker
func describeRepository(r stars.Repository) string {
	var parts []string
	if r.Language != "" {
		parts = append(parts, r.Language)
	}
	parts = append(parts, "★"+strconv.Itoa(r.Stars))
	if !r.PushedAt.IsZero() {
		parts = append(parts, "pushed "+formatDate(r.PushedAt))
	}
	if r.Archived {
		parts = append(parts, "archived")
	}
	if r.Description != "" {
		parts = append(parts, truncate(r.Description, descriptionWidth))
	}
	return strings.Join(parts, " · ")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// writeResults prints one line per unstar attempt and a summary
func writeResults(w io.Writer, results []github.UnstarResult) {
	failed := 0
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(w, "%s %s\n", successStyle.Render("✓"), r.FullName)
			continue
		}
		failed++
		fmt.Fprintf(w, "%s %s: %v\n", failureStyle.Render("✗"), r.FullName, r.Err)
	}

	fmt.Fprintf(w, "\nUnstarred %d of %d repositories", len(results)-failed, len(results))
	if failed > 0 {
		fmt.Fprintf(w, ", %d failed", failed)
	}
	fmt.Fprintln(w)
}
