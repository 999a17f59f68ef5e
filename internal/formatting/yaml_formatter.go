package formatting

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"discover/internal/registry"
)

// YAMLFormatter renders entries as a YAML sequence.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

// FormatEntries writes the entries, sorted by key.
func (f *YAMLFormatter) FormatEntries(w io.Writer, entries []registry.Entry) error {
	out, err := yaml.Marshal(Views(entries))
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}
