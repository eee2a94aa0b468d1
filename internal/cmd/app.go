package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"starcleaner/internal/session"
	"starcleaner/pkg/config"
	"starcleaner/pkg/github"
	"starcleaner/pkg/stars"
)

// getenv and newClient are replaced in tests
var (
	getenv    = os.Getenv
	newClient = github.NewClient
)

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// loadConfig loads the config file. A missing file or token is not an error
// here; commands that need a token ask for it with Token.
func loadConfig() (*config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get config path: %w", err)
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil && !errors.Is(err, config.ErrNotConfigured) {
		return nil, path, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return cfg, path, nil
}

func clientOptions(cfg *config.Config) []github.Option {
	opts := []github.Option{github.WithConcurrency(cfg.BatchConcurrency())}
	if cfg.GitHub.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.GitHub.BaseURL))
	}
	if cfg.CacheEnabled() {
		dir, err := config.GetCacheDir()
		if err != nil {
			slog.Warn("HTTP cache disabled", "error", err)
		} else {
			opts = append(opts, github.WithCacheDir(dir))
		}
	}
	return opts
}

// loadWritableConfig is loadConfig for commands that rewrite the config file.
// A corrupt file is not an error there: it gets replaced.
func loadWritableConfig() (*config.Config, string, error) {
	cfg, path, err := loadConfig()
	if errors.Is(err, config.ErrCorrupt) {
		slog.Warn("config file is corrupt, it will be replaced", "path", path, "backup", path+config.BackupSuffix, "error", err)
		return &config.Config{}, path, nil
	}
	return cfg, path, err
}

// loadClient resolves the token and returns a client configured from the config file
func loadClient() (*config.Config, *github.Client, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, explain(err)
	}

	token, err := cfg.Token(getenv)
	if err != nil {
		return nil, nil, fmt.Errorf("%w\n\n%s", err, github.GetAuthInstructions())
	}

	client, err := newClient(token, clientOptions(cfg)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return cfg, client, nil
}

// sortSpecFromFlags starts from the configured sort and applies --sort and --desc
func sortSpecFromFlags(cfg *config.Config, field string, desc bool) (stars.SortSpec, error) {
	spec, err := cfg.SortSpec()
	if err != nil {
		return spec, err
	}
	if field != "" {
		if spec.Field, err = stars.ParseSortField(field); err != nil {
			return spec, err
		}
	}
	if desc {
		spec.Direction = stars.Desc
	}
	return spec, nil
}

// explain adds a hint to errors the user can act on
func explain(err error) error {
	if errors.Is(err, config.ErrCorrupt) {
		return fmt.Errorf("%w\n\nRun 'starcleaner auth login' to replace the config file", err)
	}

	var failure *github.PartialFailureError
	if errors.As(err, &failure) && anyRetryable(failure) {
		err = fmt.Errorf("%w\n\nRetry the failed repositories with:\n  starcleaner unstar %s",
			err, strings.Join(failure.GetFailedOperations(), " "))
	}

	var ghErr *github.Error
	if !errors.As(err, &ghErr) {
		return err
	}

	switch ghErr.Type {
	case github.ErrorTypeAuth:
		return fmt.Errorf("%w\n\nRun 'starcleaner auth login' to store a new token", err)
	case github.ErrorTypeRateLimit:
		if ghErr.RetryAfter > 0 {
			return fmt.Errorf("%w\n\nTry again in %s", err, ghErr.RetryAfter.Round(time.Second))
		}
	case github.ErrorTypeNetwork:
		return fmt.Errorf("%w\n\nCheck your connection and run the command again", err)
	}
	if ghErr.IsRetryable() {
		return fmt.Errorf("%w\n\nThis may be temporary, run the command again", err)
	}
	return err
}

func anyRetryable(failure *github.PartialFailureError) bool {
	for _, r := range failure.Failed {
		var ghErr *github.Error
		if errors.As(r.Err, &ghErr) && ghErr.IsRetryable() {
			return true
		}
	}
	return false
}

// loadStars fetches up to limit pages (all pages when limit is zero) while
// showing progress on stderr
func loadStars(cmd *cobra.Command, ctrl *session.Controller, limit int) error {
	p := startProgress(cmd, "Loading starred repositories...")
	defer p.Stop()

	_, err := ctrl.FetchAll(cmd.Context(), limit, func(session.FetchResult) {
		p.Update(fmt.Sprintf("Loading starred repositories... %d loaded", ctrl.Status().Loaded))
	})
	if err != nil {
		return explain(err)
	}
	return nil
}

type progress struct {
	s *spinner.Spinner
}

// startProgress shows a spinner when stderr is a terminal
func startProgress(cmd *cobra.Command, msg string) *progress {
	f, ok := cmd.ErrOrStderr().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return &progress{}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " " + msg
	s.Start()
	return &progress{s: s}
}

func (p *progress) Update(msg string) {
	if p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = " " + msg
	p.s.Unlock()
}

func (p *progress) Stop() {
	if p.s != nil {
		p.s.Stop()
	}
}

// lineInput shares one buffered reader per input stream so the picker and
// the confirmation prompt do not steal each other's lines
var lineInput struct {
	src io.Reader
	r   *bufio.Reader
}

func inputReader(cmd *cobra.Command) *bufio.Reader {
	src := cmd.InOrStdin()
	if lineInput.r == nil || lineInput.src != src {
		lineInput.src = src
		lineInput.r = bufio.NewReader(src)
	}
	return lineInput.r
}

// confirm asks a yes/no question; anything but y or yes is a no
func confirm(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (y/N): ", question)

	line, err := inputReader(cmd).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// readToken reads a token without echo on a terminal, or a line otherwise
func readToken(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "🔑 GitHub personal access token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := inputReader(cmd).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
