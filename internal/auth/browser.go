package auth

import (
	"fmt"
	"os/exec"
	"runtime"
)

// BrowserOpener defines the interface for opening URLs in the default browser
type BrowserOpener interface {
	Open(url string) error
}

// DefaultBrowserOpener opens URLs with the platform's default handler
type DefaultBrowserOpener struct {
	goos  string
	start func(name string, args ...string) error
}

// NewBrowserOpener creates a new browser opener instance
func NewBrowserOpener() *DefaultBrowserOpener {
	return &DefaultBrowserOpener{goos: runtime.GOOS, start: startDetached}
}

func startDetached(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open opens the specified URL in the default browser
func (b *DefaultBrowserOpener) Open(url string) error {
	name, args, err := openCommand(b.goos, url)
	if err != nil {
		return err
	}

	if err := b.start(name, args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// openCommand returns the command that opens url on goos. Windows goes
// through rundll32 because cmd /c start splits the URL at '&'.
func openCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
