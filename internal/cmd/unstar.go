package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"starcleaner/pkg/github"
)

var unstarYes bool

var unstarCmd = &cobra.Command{
	Use:   "unstar <owner/repo>...",
	Short: "Unstar one or more repositories by name",
	Long: `Unstar the named repositories.

Every repository is attempted even if some fail; failures are listed at the end
and the command exits non-zero.

Examples:
  starcleaner unstar octocat/Hello-World
  starcleaner unstar owner/one owner/two --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUnstar,
}

func init() {
	unstarCmd.Flags().BoolVarP(&unstarYes, "yes", "y", false, "Do not ask for confirmation")
}

func runUnstar(cmd *cobra.Command, args []string) error {
	for _, name := range args {
		owner, repo, ok := strings.Cut(name, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return fmt.Errorf("invalid repository %q: expected owner/repo", name)
		}
	}

	_, client, err := loadClient()
	if err != nil {
		return err
	}

	if !unstarYes {
		fmt.Fprintf(cmd.OutOrStdout(), "About to unstar:\n  %s\n", strings.Join(args, "\n  "))
		ok, err := confirm(cmd, fmt.Sprintf("Unstar %d repositories?", len(args)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	results := client.BatchUnstar(cmd.Context(), args)
	writeResults(cmd.OutOrStdout(), results)

	if failure := github.NewPartialFailureError(results); failure != nil {
		return explain(failure)
	}
	return nil
}
