package formatting

import (
	"encoding/json"
	"fmt"
	"io"

	"discover/internal/registry"
)

// JSONFormatter renders entries as an indented JSON array.
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{options: options}
}

// FormatEntries writes the entries, sorted by key. An empty list is written
// as [] rather than null. Nothing is written when encoding fails.
func (f *JSONFormatter) FormatEntries(w io.Writer, entries []registry.Entry) error {
	data, err := json.MarshalIndent(Views(entries), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode entries as JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}
