package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"starcleaner/internal/session"
	"starcleaner/pkg/fuzzy"
	"starcleaner/pkg/github"
)

var (
	cleanSort   string
	cleanDesc   bool
	cleanFilter string
	cleanYes    bool
)

// repoPicker is the multi-select used by clean
type repoPicker interface {
	SetOptions(options []fuzzy.Option) error
	SelectMulti() ([]string, error)
}

// newPicker is replaced in tests
var newPicker = func(cmd *cobra.Command, prompt string) repoPicker {
	finder := fuzzy.NewFzf(prompt)
	finder.SetIO(inputReader(cmd), cmd.OutOrStdout())
	return finder
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Pick starred repositories interactively and unstar them",
	Long: `Load all starred repositories, pick the ones to remove with a fuzzy finder,
and unstar them in one batch.

In the finder, TAB marks a repository, CTRL-A toggles all and ENTER confirms.
When no terminal is available a numbered list is shown instead.

Examples:
  starcleaner clean
  starcleaner clean --sort pushed --filter javascript`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanSort, "sort", "s", "", "Sort field: starred, pushed, name or stars (default from config, else pushed)")
	cleanCmd.Flags().BoolVar(&cleanDesc, "desc", false, "Sort in descending order")
	cleanCmd.Flags().StringVarP(&cleanFilter, "filter", "f", "", "Only offer repositories matching this text")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Do not ask for confirmation after picking")
}

func runClean(cmd *cobra.Command, _ []string) error {
	cfg, client, err := loadClient()
	if err != nil {
		return err
	}

	spec, err := sortSpecFromFlags(cfg, cleanSort, cleanDesc)
	if err != nil {
		return err
	}

	ctrl := session.New(client, session.WithSort(spec))
	if err := loadStars(cmd, ctrl, 0); err != nil {
		return err
	}

	ctrl.ChangeFilter(cleanFilter)
	rows := ctrl.Visible()
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No starred repositories to show.")
		return nil
	}

	ids := make(map[string]int64, len(rows))
	options := make([]fuzzy.Option, len(rows))
	for i, row := range rows {
		ids[row.Repository.FullName] = row.Repository.ID
		options[i] = fuzzy.Option{
			Value:       row.Repository.FullName,
			Description: describeRepository(row.Repository),
		}
	}

	picker := newPicker(cmd, fmt.Sprintf("⭐ Unstar (%d) ›", len(rows)))
	if err := picker.SetOptions(options); err != nil {
		return fmt.Errorf("failed to set finder options: %w", err)
	}

	chosen, err := picker.SelectMulti()
	if errors.Is(err, fuzzy.ErrCancelled) {
		fmt.Fprintln(cmd.OutOrStdout(), "No repositories selected.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("repository selection failed: %w", err)
	}

	for _, name := range chosen {
		id, ok := ids[name]
		if !ok {
			return fmt.Errorf("picked repository %q is not in the list", name)
		}
		if _, err := ctrl.ToggleSelection(id); err != nil {
			return err
		}
	}

	if !cleanYes {
		fmt.Fprintln(cmd.OutOrStdout(), "Selected:")
		for _, name := range chosen {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
		}
		ok, err := confirm(cmd, fmt.Sprintf("Unstar %d repositories?", len(chosen)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	items := ctrl.UnstarSelected(cmd.Context())
	results := make([]github.UnstarResult, len(items))
	for i, item := range items {
		results[i] = github.UnstarResult{FullName: item.FullName, Err: item.Err}
	}
	writeResults(cmd.OutOrStdout(), results)

	if failure := github.NewPartialFailureError(results); failure != nil {
		return explain(failure)
	}
	return nil
}
