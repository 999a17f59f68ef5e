// Package formatting renders registry entries for the command line.
//
// Four output formats are supported: a rich table for terminals, a plain
// column layout for piping into grep or awk, and JSON or YAML for scripts.
package formatting

import (
	"fmt"
	"io"
	"strings"

	"discover/internal/registry"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatPlain OutputFormat = "plain" // Column output without box drawing
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// Formats lists the supported output formats in flag help order.
var Formats = []OutputFormat{FormatTable, FormatPlain, FormatJSON, FormatYAML}

// ParseFormat validates a format name.
func ParseFormat(s string) (OutputFormat, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown output format %q (valid: %s)", s, strings.Join(names, ", "))
}

// Options configures the formatter behavior
type Options struct {
	Format    OutputFormat
	NoHeaders bool // Suppress the header row of table and plain output
	Color     bool // Enable colored output
	Wide      bool // Include the agent and registration time columns
}

// Formatter renders registry entries.
type Formatter interface {
	FormatEntries(w io.Writer, entries []registry.Entry) error

	SetOptions(options Options)
	GetOptions() Options
}

// NewFormatter creates the formatter for options.Format. Unknown formats fall
// back to the table formatter.
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatPlain:
		return NewPlainFormatter(options)
	case FormatTable:
		fallthrough
	default:
		return NewTableFormatter(options)
	}
}
