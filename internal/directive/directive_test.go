package directive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	order := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		input    string
		want     Directive
		wantBody string
	}{
		{
			name:     "no directive",
			input:    "SELECT 1",
			wantBody: "SELECT 1",
		},
		{
			name:     "plain comment stays in the body",
			input:    "-- the answer\nSELECT 42",
			wantBody: "-- the answer\nSELECT 42",
		},
		{
			name:     "separator comment is not a directive",
			input:    "------------\nSELECT 42",
			wantBody: "------------\nSELECT 42",
		},
		{
			name:     "size and order",
			input:    "-- --width 6 --height 4 --order -1.5\nSELECT 1",
			want:     Directive{Width: 6, Height: 4, Order: order(-1.5)},
			wantBody: "SELECT 1",
		},
		{
			name:     "quoted title and description",
			input:    "-- --title 'Counting' --description \"The answer to life\"\nSELECT 42",
			want:     Directive{Title: "Counting", Description: "The answer to life"},
			wantBody: "SELECT 42",
		},
		{
			name:     "variadic filters",
			input:    "-- --filter country city --width 3\nSELECT country, city, n FROM t",
			want:     Directive{Width: 3, Filters: []string{"country", "city"}},
			wantBody: "SELECT country, city, n FROM t",
		},
		{
			name:     "repeated filter flag",
			input:    "-- --filter a --filter=b\nSELECT a, b FROM t",
			want:     Directive{Filters: []string{"a", "b"}},
			wantBody: "SELECT a, b FROM t",
		},
		{
			name:  "overrides with comments and trailing comma",
			input: "-- --overrides '{\"spec\": {\"version\": 3}, /* note */ \"name\": \"x\",}'\nSELECT 1",
			want: Directive{Overrides: map[string]any{
				"spec": map[string]any{"version": float64(3)},
				"name": "x",
			}},
			wantBody: "SELECT 1",
		},
		{
			name:     "directive only",
			input:    "-- --height 2",
			want:     Directive{Height: 2},
			wantBody: "",
		},
		{
			name:     "windows line endings",
			input:    "-- --width 2\r\nSELECT 1",
			want:     Directive{Width: 2},
			wantBody: "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, body, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{name: "unknown flag", input: "-- --colour red\nSELECT 1", message: "unknown flag: --colour"},
		{name: "bad quoting", input: "-- --title 'open\nSELECT 1", message: "bad quoting"},
		{name: "bad json", input: "-- --overrides '{nope'\nSELECT 1", message: "bad JSON in overrides"},
		{name: "json array", input: "-- --overrides '[1, 2]'\nSELECT 1", message: "must be a JSON object"},
		{name: "zero width", input: "-- --width 0\nSELECT 1", message: "width must be at least 1"},
		{name: "negative height", input: "-- --height=-2\nSELECT 1", message: "height must be at least 1"},
		{name: "not a number", input: "-- --width wide\nSELECT 1", message: "invalid argument"},
		{name: "stray argument", input: "-- --width 2 extra\nSELECT 1", message: "unexpected arguments"},
		{name: "filter without columns", input: "-- --filter\nSELECT 1", message: "flag needs an argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.input)
			require.Error(t, err)

			var de *DirectiveError
			require.True(t, errors.As(err, &de), "expected *DirectiveError, got %T", err)
			assert.Contains(t, de.Error(), tt.message)
		})
	}
}

func TestDirectiveError_Path(t *testing.T) {
	err := &DirectiveError{Path: "queries/a.sql", Message: "bad quoting"}
	assert.Equal(t, "queries/a.sql: invalid directive: bad quoting", err.Error())
}
