// Package directive parses the tile directive line that may open a query file.
//
// A directive is a SQL line comment whose content is a list of long flags:
//
//	-- --width 6 --height 4 --title 'Daily users' --filter country city
//	SELECT ...
//
// Only the first line of a query file is inspected.
package directive

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// Directive holds the tile settings declared in a query file.
// Zero values mean "not set".
type Directive struct {
	Width       int
	Height      int
	Order       *float64
	Title       string
	Description string
	Filters     []string
	// Overrides is merged into the synthesized widget last
	Overrides map[string]any
}

// DirectiveError reports a malformed directive line.
type DirectiveError struct {
	// Path is the query file, when known
	Path    string
	Message string
	Err     error
}

func (e *DirectiveError) Error() string {
	msg := "invalid directive: " + e.Message
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, msg)
	}
	return msg
}

func (e *DirectiveError) Unwrap() error {
	return e.Err
}

// Parse splits query text into its directive and the remaining SQL body.
// Text whose first line is not a directive is returned whole as the body.
func Parse(text string) (Directive, string, error) {
	first, body, _ := strings.Cut(text, "\n")
	line := strings.TrimSpace(first)
	if !isDirective(line) {
		return Directive{}, text, nil
	}

	args, err := shellquote.Split(strings.TrimPrefix(line, "--"))
	if err != nil {
		return Directive{}, "", &DirectiveError{Message: "bad quoting", Err: err}
	}

	d, err := parseArgs(expandFilters(args))
	if err != nil {
		return Directive{}, "", err
	}
	return d, body, nil
}

// isDirective reports whether line is a comment starting with a long flag.
func isDirective(line string) bool {
	rest, ok := strings.CutPrefix(line, "--")
	if !ok {
		return false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return false
	}
	flag := fields[0]
	return len(flag) > 2 && strings.HasPrefix(flag, "--") && isLetter(flag[2])
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// expandFilters turns the variadic "--filter a b" form into repeated flags.
func expandFilters(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] != "--filter" {
			out = append(out, args[i])
			continue
		}
		j := i + 1
		for j < len(args) && !strings.HasPrefix(args[j], "--") {
			out = append(out, "--filter="+args[j])
			j++
		}
		if j == i+1 {
			// no values, let the flag set report the missing argument
			out = append(out, args[i])
		}
		i = j - 1
	}
	return out
}

func parseArgs(args []string) (Directive, error) {
	fs := pflag.NewFlagSet("directive", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	width := fs.Int("width", 0, "tile width in grid columns")
	height := fs.Int("height", 0, "tile height in grid rows")
	order := fs.Float64("order", 0, "tile order on the page")
	title := fs.String("title", "", "widget title")
	description := fs.String("description", "", "widget description")
	filters := fs.StringArray("filter", nil, "columns to filter on")
	overrides := fs.String("overrides", "", "JSON object merged into the widget")

	if err := fs.Parse(args); err != nil {
		return Directive{}, &DirectiveError{Message: err.Error(), Err: err}
	}
	if extra := fs.Args(); len(extra) > 0 {
		return Directive{}, &DirectiveError{Message: fmt.Sprintf("unexpected arguments %q", extra)}
	}

	d := Directive{
		Title:       *title,
		Description: *description,
		Filters:     *filters,
	}
	if fs.Changed("width") {
		if *width < 1 {
			return Directive{}, &DirectiveError{Message: fmt.Sprintf("width must be at least 1, got %d", *width)}
		}
		d.Width = *width
	}
	if fs.Changed("height") {
		if *height < 1 {
			return Directive{}, &DirectiveError{Message: fmt.Sprintf("height must be at least 1, got %d", *height)}
		}
		d.Height = *height
	}
	if fs.Changed("order") {
		o := *order
		d.Order = &o
	}
	if fs.Changed("overrides") {
		m, err := ParseOverrides(*overrides)
		if err != nil {
			return Directive{}, err
		}
		d.Overrides = m
	}
	return d, nil
}

// ParseOverrides decodes an overrides object. Comments and trailing commas are accepted.
func ParseOverrides(text string) (map[string]any, error) {
	standard, err := hujson.Standardize([]byte(text))
	if err != nil {
		return nil, &DirectiveError{Message: "bad JSON in overrides", Err: err}
	}
	var value any
	if err := json.Unmarshal(standard, &value); err != nil {
		return nil, &DirectiveError{Message: "bad JSON in overrides", Err: err}
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, &DirectiveError{Message: "overrides must be a JSON object"}
	}
	return m, nil
}
