package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"starcleaner/internal/session"
	"starcleaner/pkg/fuzzy"
)

var openFilter string

var openCmd = &cobra.Command{
	Use:   "open [owner/repo]...",
	Short: "Open starred repositories in your browser",
	Long: `Open the GitHub page of starred repositories.

Named repositories must be among your stars. Without names, a fuzzy finder
lets you pick which ones to open.

Examples:
  starcleaner open octocat/Hello-World
  starcleaner open --filter terraform`,
	RunE: runOpen,
}

func init() {
	openCmd.Flags().StringVarP(&openFilter, "filter", "f", "", "Only offer repositories matching this text")
}

func runOpen(cmd *cobra.Command, args []string) error {
	_, client, err := loadClient()
	if err != nil {
		return err
	}

	ctrl := session.New(client, session.WithOpener(browser))
	if err := loadStars(cmd, ctrl, 0); err != nil {
		return err
	}

	ids, err := resolveLoaded(ctrl, args)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		ids, err = pickToOpen(cmd, ctrl)
		if errors.Is(err, fuzzy.ErrNoOptions) {
			fmt.Fprintln(cmd.OutOrStdout(), "No starred repositories to show.")
			return nil
		}
		if errors.Is(err, fuzzy.ErrCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), "No repositories selected.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	for _, id := range ids {
		if _, err := ctrl.Dispatch(cmd.Context(), session.Action{Kind: session.ActionOpen, ID: id}); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🌐 Opened %d repositories\n", len(ids))
	return nil
}

// resolveLoaded maps full names to the ids of loaded repositories
func resolveLoaded(ctrl *session.Controller, names []string) ([]int64, error) {
	byName := make(map[string]int64)
	for _, r := range ctrl.Loaded() {
		byName[r.FullName] = r.ID
	}

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%s is not among your starred repositories", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pickToOpen(cmd *cobra.Command, ctrl *session.Controller) ([]int64, error) {
	ctrl.ChangeFilter(openFilter)
	rows := ctrl.Visible()
	if len(rows) == 0 {
		return nil, fuzzy.ErrNoOptions
	}

	options := make([]fuzzy.Option, len(rows))
	for i, row := range rows {
		options[i] = fuzzy.Option{Value: row.Repository.FullName, Description: describeRepository(row.Repository)}
	}

	picker := newPicker(cmd, fmt.Sprintf("🌐 Open (%d) ›", len(rows)))
	if err := picker.SetOptions(options); err != nil {
		return nil, fmt.Errorf("failed to set finder options: %w", err)
	}
	chosen, err := picker.SelectMulti()
	if err != nil {
		return nil, err
	}
	return resolveLoaded(ctrl, chosen)
}
