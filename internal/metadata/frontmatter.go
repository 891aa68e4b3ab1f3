package metadata

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML header of a markdown tile.
// Unknown fields cause parse errors.
type Frontmatter struct {
	Order  *float64 `yaml:"order"`
	Width  *int     `yaml:"width"`
	Height *int     `yaml:"height"`
}

// frontmatterPattern matches a leading --- ... --- block
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*---[ \t]*\r?\n(?:(.*?)\r?\n)?---[ \t]*(?:\r?\n|$)`)

// frontmatterOpening matches the first line of a header block
var frontmatterOpening = regexp.MustCompile(`^\s*---[ \t]*(?:\r?\n|$)`)

var knownFrontmatterFields = map[string]bool{
	"order":  true,
	"width":  true,
	"height": true,
}

// ExtractFrontmatter splits markdown content into its header and text.
// Content without a header yields an empty Frontmatter and the content trimmed.
// A header that is opened but never closed is an error.
func ExtractFrontmatter(content string) (Frontmatter, string, error) {
	matches := frontmatterPattern.FindStringSubmatch(content)
	if matches == nil {
		if frontmatterOpening.MatchString(content) {
			return Frontmatter{}, "", &MetadataError{Message: "unterminated front matter: missing closing ---"}
		}
		return Frontmatter{}, strings.TrimSpace(content), nil
	}

	text := strings.TrimSpace(content[len(matches[0]):])
	fm, err := parseFrontmatterYAML(matches[1])
	if err != nil {
		return Frontmatter{}, "", err
	}
	return fm, text, nil
}

func parseFrontmatterYAML(yamlContent string) (Frontmatter, error) {
	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &rawMap); err != nil {
		return Frontmatter{}, &MetadataError{Message: fmt.Sprintf("invalid front matter: %v", err), Err: err}
	}
	for field := range rawMap {
		if !knownFrontmatterFields[field] {
			return Frontmatter{}, &MetadataError{Message: fmt.Sprintf("unknown front matter field %q", field)}
		}
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		return Frontmatter{}, &MetadataError{Message: fmt.Sprintf("invalid front matter: %v", err), Err: err}
	}
	if fm.Width != nil && *fm.Width < 1 {
		return Frontmatter{}, &MetadataError{Message: fmt.Sprintf("width must be at least 1, got %d", *fm.Width)}
	}
	if fm.Height != nil && *fm.Height < 1 {
		return Frontmatter{}, &MetadataError{Message: fmt.Sprintf("height must be at least 1, got %d", *fm.Height)}
	}
	return fm, nil
}
