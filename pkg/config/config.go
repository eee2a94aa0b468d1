package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"starcleaner/pkg/stars"
)

const (
	// AppDir is the directory name under the user config directory
	AppDir = "github-starcleaner"
	// FileName is the config file name
	FileName = "config.toml"
	// TokenEnv overrides the token stored in the config file
	TokenEnv = "GITHUB_TOKEN"
	// BackupSuffix names the copy of a corrupt config file kept when it is replaced
	BackupSuffix = ".bak"
)

var (
	// ErrNotConfigured is returned when no config file or no token exists
	ErrNotConfigured = errors.New("starcleaner is not configured: run 'starcleaner auth login'")
	// ErrCorrupt is returned when the config file cannot be parsed
	ErrCorrupt = errors.New("config file is corrupt")
)

// Config represents the starcleaner configuration
type Config struct {
	GitHub GitHubConfig `toml:"github"`
	UI     UIConfig     `toml:"ui"`
}

// GitHubConfig holds the credentials and API settings
type GitHubConfig struct {
	Token       string `toml:"token"`
	BaseURL     string `toml:"base_url,omitempty"`
	Cache       *bool  `toml:"cache,omitempty"`
	Concurrency int    `toml:"concurrency,omitempty"`
}

// UIConfig holds the startup sort spec
type UIConfig struct {
	Sort      string `toml:"sort,omitempty"`
	Direction string `toml:"direction,omitempty"`
}

// HasToken reports whether a non-empty token is stored
func (c *Config) HasToken() bool {
	return strings.TrimSpace(c.GitHub.Token) != ""
}

// CacheEnabled reports whether the HTTP cache should be used; defaults to true
func (c *Config) CacheEnabled() bool {
	return c.GitHub.Cache == nil || *c.GitHub.Cache
}

// BatchConcurrency returns the number of parallel unstar calls, at least 1
func (c *Config) BatchConcurrency() int {
	if c.GitHub.Concurrency < 1 {
		return 1
	}
	return c.GitHub.Concurrency
}

// SortSpec returns the startup sort spec, defaulting to pushed_at ascending
func (c *Config) SortSpec() (stars.SortSpec, error) {
	spec := stars.DefaultSortSpec()
	if c.UI.Sort != "" {
		field, err := stars.ParseSortField(c.UI.Sort)
		if err != nil {
			return spec, fmt.Errorf("ui.sort: %w", err)
		}
		spec.Field = field
	}
	if c.UI.Direction != "" {
		direction, err := stars.ParseDirection(c.UI.Direction)
		if err != nil {
			return spec, fmt.Errorf("ui.direction: %w", err)
		}
		spec.Direction = direction
	}
	return spec, nil
}

// Token resolves the token to use, preferring the environment over the file
func (c *Config) Token(getenv func(string) string) (string, error) {
	if getenv != nil {
		if token := strings.TrimSpace(getenv(TokenEnv)); token != "" {
			return token, nil
		}
	}
	if c.HasToken() {
		return strings.TrimSpace(c.GitHub.Token), nil
	}
	return "", ErrNotConfigured
}

// Load loads configuration from the default location
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific path. A missing file or a
// file without a token yields ErrNotConfigured together with whatever settings
// were readable, so callers can keep non-credential settings.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}

	if !cfg.HasToken() {
		return &cfg, ErrNotConfigured
	}
	return &cfg, nil
}

// Save saves configuration to the default location
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return c.SaveToPath(path)
}

// SaveToPath writes the config atomically: the data goes to a temp file in the
// same directory which is then renamed over the target, so a crash never
// leaves a half-written file behind.
func (c *Config) SaveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// SaveToken stores token in the config at path, keeping the other settings.
// A corrupt file is moved to path+BackupSuffix and replaced.
func SaveToken(path, token string) error {
	cfg, err := loadForUpdate(path)
	if err != nil {
		return err
	}
	cfg.GitHub.Token = strings.TrimSpace(token)
	return cfg.SaveToPath(path)
}

// ClearToken removes the token from the config at path. A missing file is
// left missing; a corrupt one is moved aside like in SaveToken.
func ClearToken(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	cfg, err := loadForUpdate(path)
	if err != nil {
		return err
	}
	cfg.GitHub.Token = ""
	return cfg.SaveToPath(path)
}

// loadForUpdate loads the config at path before rewriting it
func loadForUpdate(path string) (*Config, error) {
	cfg, err := LoadFromPath(path)
	switch {
	case err == nil, errors.Is(err, ErrNotConfigured):
		return cfg, nil
	case errors.Is(err, ErrCorrupt):
		if err := os.Rename(path, path+BackupSuffix); err != nil {
			return nil, fmt.Errorf("failed to move corrupt config file aside: %w", err)
		}
		return &Config{}, nil
	default:
		return nil, err
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, AppDir, FileName), nil
}

// GetCacheDir returns the directory for the HTTP response cache
func GetCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get cache directory: %w", err)
	}
	return filepath.Join(cacheDir, AppDir, "http"), nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GitHub.Concurrency < 0 {
		return fmt.Errorf("github.concurrency must not be negative")
	}
	if c.GitHub.BaseURL != "" && !strings.HasPrefix(c.GitHub.BaseURL, "http") {
		return fmt.Errorf("github.base_url must be an http(s) URL")
	}
	if _, err := c.SortSpec(); err != nil {
		return err
	}
	return nil
}
