package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"starcleaner/internal/auth"
	"starcleaner/pkg/config"
	"starcleaner/pkg/github"
)

var (
	loginToken string
	loginWeb   bool
)

// browser is replaced in tests
var browser auth.BrowserOpener = auth.NewBrowserOpener()

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long: `Commands for managing the GitHub token used by starcleaner.

The token is stored in plain text in the starcleaner config file with 0600
permissions. GITHUB_TOKEN, when set, takes precedence over the stored token.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a GitHub personal access token",
	Long: `Validate a GitHub personal access token and store it in the config file.

Without --token the token is read from the terminal without echo, or from the
first line of standard input when it is not a terminal.

With --web the token creation page is opened in your browser first, with the
public_repo scope already selected.

Examples:
  starcleaner auth login
  starcleaner auth login --web
  echo "$TOKEN" | starcleaner auth login
  starcleaner auth login --token ghp_xxx`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored GitHub token",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which token is used and whether GitHub accepts it",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	authLoginCmd.Flags().StringVar(&loginToken, "token", "", "Token to store instead of prompting")
	authLoginCmd.Flags().BoolVar(&loginWeb, "web", false, "Open the GitHub token creation page in your browser")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadWritableConfig()
	if err != nil {
		return err
	}

	token := strings.TrimSpace(loginToken)
	if token == "" && loginWeb {
		openTokenPage(cmd, cfg.GitHub.BaseURL)
	}
	if token == "" {
		if token, err = readToken(cmd); err != nil {
			return err
		}
	}
	if token == "" {
		return fmt.Errorf("no token provided\n\n%s", github.GetAuthInstructions())
	}

	client, err := newClient(token, clientOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	info, err := client.ValidateToken(cmd.Context())
	if err != nil {
		return fmt.Errorf("token validation failed: %w", explain(err))
	}
	if err := github.CheckScopes(info); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠️  %v\n", err)
	}

	if err := config.SaveToken(path, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Logged in to GitHub as %s\n", info.User)
	fmt.Fprintf(cmd.OutOrStdout(), "📁 Token saved to %s\n", path)
	if getenv(config.TokenEnv) != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "💡 %s is set and will be used instead of the saved token\n", config.TokenEnv)
	}
	return nil
}

// openTokenPage opens the token creation page, printing the URL when no
// browser can be started
func openTokenPage(cmd *cobra.Command, baseURL string) {
	tokenURL, err := auth.NewTokenURL(baseURL)
	if err != nil {
		slog.Warn("cannot build token page URL", "error", err)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "🌐 Create a token at: %s\n", tokenURL)
	if err := browser.Open(tokenURL); err != nil {
		slog.Debug("browser not opened", "error", err)
	}
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := config.LoadFromPath(path); errors.Is(err, config.ErrCorrupt) {
		slog.Warn("config file is corrupt, it will be replaced", "path", path, "backup", path+config.BackupSuffix, "error", err)
	}

	if err := config.ClearToken(path); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Token removed from %s\n", path)
	if getenv(config.TokenEnv) != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "💡 %s is still set in your environment\n", config.TokenEnv)
	}
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return explain(err)
	}

	token, err := cfg.Token(getenv)
	if errors.Is(err, config.ErrNotConfigured) {
		fmt.Fprintln(cmd.OutOrStdout(), "❌ Not logged in")
		return fmt.Errorf("%w\n\n%s", err, github.GetAuthInstructions())
	}
	if err != nil {
		return err
	}

	source := "config file " + path
	if getenv(config.TokenEnv) != "" {
		source = "environment variable " + config.TokenEnv
	}

	client, err := newClient(token, clientOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	info, err := client.ValidateToken(cmd.Context())
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "❌ Token from %s was rejected\n", source)
		return explain(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ Logged in to GitHub as %s\n", info.User)
	fmt.Fprintf(out, "🔑 Token source: %s\n", source)
	if len(info.Scopes) > 0 {
		fmt.Fprintf(out, "📋 Scopes: %s\n", strings.Join(info.Scopes, ", "))
	} else {
		fmt.Fprintln(out, "📋 Scopes: none reported (fine-grained token)")
	}
	if err := github.CheckScopes(info); err != nil {
		fmt.Fprintf(out, "⚠️  %v\n", err)
	}

	count, err := client.StarCount(cmd.Context())
	if err != nil {
		slog.Warn("could not count starred repositories", "error", err)
	} else {
		fmt.Fprintf(out, "⭐ Starred repositories: %d\n", count)
	}

	if stats := client.RateStats(); stats.Limit > 0 {
		fmt.Fprintf(out, "⏱  API rate limit: %d/%d remaining, resets at %s\n",
			stats.Remaining, stats.Limit, stats.ResetTime.Local().Format(time.Kitchen))
	}
	return nil
}
