package fuzzy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrCancelled is returned when the user leaves a picker without choosing
var ErrCancelled = errors.New("selection cancelled")

// ErrNoOptions is returned when a picker has nothing to offer
var ErrNoOptions = errors.New("no options available")

// Option represents a selectable option in the fuzzy finder
type Option struct {
	Value       string
	Description string
}

// Finder is a line-based picker for terminals fzf cannot drive. Options are
// listed with numbers and picked by typing them.
type Finder struct {
	prompt  string
	options []Option
	in      *bufio.Reader
	out     io.Writer
}

// New creates a new finder reading stdin and writing stdout
func New(prompt string) *Finder {
	return NewWithIO(prompt, os.Stdin, os.Stdout)
}

// NewWithIO creates a new finder on the given streams
func NewWithIO(prompt string, in io.Reader, out io.Writer) *Finder {
	return &Finder{
		prompt:  prompt,
		options: make([]Option, 0),
		in:      bufio.NewReader(in),
		out:     out,
	}
}

// AddOption adds an option to the finder
func (f *Finder) AddOption(value, description string) {
	f.options = append(f.options, Option{
		Value:       value,
		Description: description,
	})
}

// Select displays options and lets the user pick one by number
func (f *Finder) Select() (string, error) {
	if len(f.options) == 0 {
		return "", ErrNoOptions
	}

	f.list(f.options)
	fmt.Fprintf(f.out, "\nSelect option (1-%d): ", len(f.options))

	input, err := f.readLine()
	if err != nil {
		return "", err
	}
	if input == "" {
		return "", ErrCancelled
	}

	selection, err := strconv.Atoi(input)
	if err != nil {
		return "", fmt.Errorf("invalid selection: %s", input)
	}
	if selection < 1 || selection > len(f.options) {
		return "", fmt.Errorf("selection out of range: %d", selection)
	}

	return f.options[selection-1].Value, nil
}

// SelectMany lets the user pick several options. Input is a list of numbers
// and ranges such as "1,3,5-7", "all", or a filter word prefixed with "/"
// that narrows the list before picking. An empty line cancels.
func (f *Finder) SelectMany() ([]string, error) {
	if len(f.options) == 0 {
		return nil, ErrNoOptions
	}

	shown := f.options
	for {
		f.list(shown)
		fmt.Fprintf(f.out, "\nSelect options (e.g. 1,3,5-7 or all, /text to filter, Enter to cancel): ")

		input, err := f.readLine()
		if err != nil {
			return nil, err
		}
		if input == "" {
			return nil, ErrCancelled
		}

		if filter, ok := strings.CutPrefix(input, "/"); ok {
			filtered := f.filterOptions(filter)
			if len(filtered) == 0 {
				fmt.Fprintf(f.out, "No options match filter: %s\n\n", filter)
				continue
			}
			shown = filtered
			continue
		}

		indexes, err := ParseSelection(input, len(shown))
		if err != nil {
			fmt.Fprintf(f.out, "%v\n\n", err)
			continue
		}

		values := make([]string, len(indexes))
		for i, idx := range indexes {
			values[i] = shown[idx].Value
		}
		return values, nil
	}
}

// ParseSelection turns "1,3,5-7" or "all" into sorted zero-based indexes
// within [0, n)
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "all") || input == "*" {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]struct{})
	for _, part := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' }) {
		lo, hi := part, part
		if a, b, ok := strings.Cut(part, "-"); ok {
			lo, hi = a, b
		}

		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid selection: %s", part)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid selection: %s", part)
		}
		if start > end {
			start, end = end, start
		}
		if start < 1 || end > n {
			return nil, fmt.Errorf("selection out of range (1-%d): %s", n, part)
		}
		for i := start; i <= end; i++ {
			seen[i-1] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("invalid selection: %s", input)
	}

	indexes := make([]int, 0, len(seen))
	for i := range seen {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes, nil
}

func (f *Finder) list(options []Option) {
	fmt.Fprintln(f.out, f.prompt)
	fmt.Fprintln(f.out, strings.Repeat("-", len(f.prompt)))

	for i, option := range options {
		fmt.Fprintf(f.out, "%d. %s", i+1, option.Value)
		if option.Description != "" {
			fmt.Fprintf(f.out, " - %s", option.Description)
		}
		fmt.Fprintln(f.out)
	}
}

func (f *Finder) readLine() (string, error) {
	input, err := f.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		if input == "" {
			return "", ErrCancelled
		}
	}
	return strings.TrimSpace(input), nil
}

// filterOptions filters options based on the input string
func (f *Finder) filterOptions(filter string) []Option {
	filter = strings.ToLower(strings.TrimSpace(filter))
	var filtered []Option

	for _, option := range f.options {
		if strings.Contains(strings.ToLower(option.Value), filter) ||
			strings.Contains(strings.ToLower(option.Description), filter) {
			filtered = append(filtered, option)
		}
	}

	return filtered
}

// GetOptions returns all available options
func (f *Finder) GetOptions() []Option {
	return f.options
}

// SetPrompt updates the prompt message
func (f *Finder) SetPrompt(prompt string) {
	f.prompt = prompt
}
