package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"starcleaner/internal/logger"
)

var (
	debugMode  bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "starcleaner",
	Short: "Browse, sort, filter and unstar your GitHub starred repositories",
	Long: `Starcleaner is a command-line tool for cleaning up the list of repositories
you have starred on GitHub. It loads your stars page by page, lets you sort and
filter them, and unstars the ones you pick, one at a time or in bulk.

Get started:
  starcleaner auth login
  starcleaner list --sort starred --desc
  starcleaner clean --filter archived`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetDebug(debugMode)
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	logger.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default is the per-user config directory)")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(unstarCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(openCmd)
}
