package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"starcleaner/internal/session"
	"starcleaner/pkg/stars"
)

var (
	listSort   string
	listDesc   bool
	listFilter string
	listPages  int
	listAll    bool
	listOutput string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List starred repositories",
	Long: `List the repositories you have starred.

Stars are loaded 100 at a time. By default only the first page is loaded;
use --pages to load more or --all to load everything. Sorting by starred or
pushed date is done by GitHub, name and stars are sorted locally.

Examples:
  starcleaner list
  starcleaner list --all --sort starred --desc
  starcleaner list --all --filter rust -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listSort, "sort", "s", "", "Sort field: starred, pushed, name or stars (default from config, else pushed)")
	listCmd.Flags().BoolVar(&listDesc, "desc", false, "Sort in descending order")
	listCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "Only show repositories whose name, description, language or topics contain this text")
	listCmd.Flags().IntVar(&listPages, "pages", 1, "Number of pages of 100 repositories to load")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Load every page")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", outputTable, "Output format: table, json or yaml")
}

func runList(cmd *cobra.Command, _ []string) error {
	if err := validateOutputFormat(listOutput); err != nil {
		return err
	}
	if listPages < 1 && !listAll {
		return fmt.Errorf("--pages must be at least 1")
	}

	cfg, client, err := loadClient()
	if err != nil {
		return err
	}

	spec, err := sortSpecFromFlags(cfg, listSort, listDesc)
	if err != nil {
		return err
	}

	ctrl := session.New(client, session.WithSort(spec))

	limit := listPages
	if listAll {
		limit = 0
	}
	if err := loadStars(cmd, ctrl, limit); err != nil {
		return err
	}

	ctrl.ChangeFilter(listFilter)
	rows := ctrl.Visible()

	repos := make([]stars.Repository, len(rows))
	for i, row := range rows {
		repos[i] = row.Repository
	}

	if err := writeRepositories(cmd.OutOrStdout(), repos, spec, listOutput); err != nil {
		return err
	}

	if listOutput == outputTable {
		status := ctrl.Status()
		fmt.Fprintf(cmd.ErrOrStderr(), "Showing %d of %d loaded repositories", status.Visible, status.Loaded)
		if !status.Done {
			fmt.Fprint(cmd.ErrOrStderr(), " (more available, use --all)")
		}
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	return nil
}
