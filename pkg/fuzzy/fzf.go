package fuzzy

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	fzf "github.com/junegunn/fzf/src"
)

const columnSeparator = "  │  "

// FzfRunner defines the interface for running fzf
type FzfRunner interface {
	Run(opts *fzf.Options) (int, error)
}

// DefaultFzfRunner implements the FzfRunner interface using the real fzf library
type DefaultFzfRunner struct{}

// Run executes fzf with the given options
func (r *DefaultFzfRunner) Run(opts *fzf.Options) (int, error) {
	return fzf.Run(opts)
}

// FzfFinder implements fuzzy finding using the fzf library
type FzfFinder struct {
	options []Option
	prompt  string
	runner  FzfRunner
	in      io.Reader
	out     io.Writer
}

// NewFzf creates a new fzf-style fuzzy finder
func NewFzf(prompt string) *FzfFinder {
	return NewFzfWithRunner(prompt, &DefaultFzfRunner{})
}

// NewFzfWithRunner creates a new fzf-style fuzzy finder with a custom runner (for testing)
func NewFzfWithRunner(prompt string, runner FzfRunner) *FzfFinder {
	return &FzfFinder{
		prompt:  prompt,
		options: make([]Option, 0),
		runner:  runner,
		in:      os.Stdin,
		out:     os.Stdout,
	}
}

// SetOptions sets the available options for selection
func (f *FzfFinder) SetOptions(options []Option) error {
	if options == nil {
		return fmt.Errorf("options cannot be nil")
	}

	f.options = make([]Option, len(options))
	copy(f.options, options)
	return nil
}

// SetPrompt sets the display prompt
func (f *FzfFinder) SetPrompt(prompt string) {
	f.prompt = prompt
}

// SetIO sets the streams used by the numbered picker when fzf cannot run
func (f *FzfFinder) SetIO(in io.Reader, out io.Writer) {
	f.in = in
	f.out = out
}

// Select lets the user pick exactly one option
func (f *FzfFinder) Select() (string, error) {
	values, err := f.run(false)
	if err != nil {
		return "", err
	}
	return values[0], nil
}

// SelectMulti lets the user mark any number of options
func (f *FzfFinder) SelectMulti() ([]string, error) {
	return f.run(true)
}

func (f *FzfFinder) run(multi bool) ([]string, error) {
	if len(f.options) == 0 {
		return nil, ErrNoOptions
	}

	args := []string{
		"--prompt=" + f.prompt + " ",
		"--height=40%",
		"--layout=reverse",
		"--cycle",
		"--extended",
		"--algo=v2",
		"--tiebreak=index",
		"--no-mouse",
		"--border=none",
	}
	if multi {
		args = append(args,
			"--multi",
			"--bind=ctrl-a:toggle-all",
			"--header=TAB to mark, CTRL-A to toggle all, ENTER to confirm",
		)
	} else {
		args = append(args, "--no-multi")
	}

	opts, err := fzf.ParseOptions(true, args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fzf options: %w", err)
	}

	input := make(chan string, len(f.options))
	for _, option := range f.options {
		input <- displayText(option)
	}
	close(input)

	// fzf sends every accepted line before Run returns; the buffer holds them all.
	output := make(chan string, len(f.options)+1)
	opts.Input = input
	opts.Output = output

	exitCode, err := f.runner.Run(opts)
	if err != nil {
		slog.Debug("fzf unavailable, falling back to numbered picker", "error", err)
		return f.fallbackSelect(multi)
	}

	switch exitCode {
	case fzf.ExitOk:
	case fzf.ExitNoMatch, fzf.ExitInterrupt:
		return nil, ErrCancelled
	default:
		return nil, fmt.Errorf("fzf exited with code %d", exitCode)
	}

	var values []string
drain:
	for {
		select {
		case line := <-output:
			if value := f.valueOf(line); value != "" {
				values = append(values, value)
			}
		default:
			break drain
		}
	}

	if len(values) == 0 {
		return nil, ErrCancelled
	}
	return values, nil
}

func displayText(option Option) string {
	if option.Description == "" {
		return option.Value
	}
	return option.Value + columnSeparator + option.Description
}

// valueOf maps a line printed by fzf back to its option value
func (f *FzfFinder) valueOf(line string) string {
	value, _, _ := strings.Cut(strings.TrimSpace(line), columnSeparator)
	value = strings.TrimSpace(value)

	for _, option := range f.options {
		if option.Value == value {
			return option.Value
		}
	}
	return value
}

// FzfFinderInterface defines the interface for fzf-based fuzzy finding
type FzfFinderInterface interface {
	SetOptions(options []Option) error
	SetPrompt(prompt string)
	Select() (string, error)
	SelectMulti() ([]string, error)
}

// fallbackSelect uses the numbered picker when fzf fails to start
func (f *FzfFinder) fallbackSelect(multi bool) ([]string, error) {
	finder := NewWithIO(f.prompt, f.in, f.out)
	for _, option := range f.options {
		finder.AddOption(option.Value, option.Description)
	}

	if multi {
		return finder.SelectMany()
	}
	value, err := finder.Select()
	if err != nil {
		return nil, err
	}
	return []string{value}, nil
}

// Ensure FzfFinder implements the interface
var _ FzfFinderInterface = (*FzfFinder)(nil)
