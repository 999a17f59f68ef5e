package formatting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"discover/internal/registry"
	dstrings "discover/pkg/strings"
)

// TableFormatter renders entries as a rounded box table.
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{options: options}
}

// FormatEntries writes one row per entry followed by a summary line.
func (f *TableFormatter) FormatEntries(w io.Writer, entries []registry.Entry) error {
	if len(entries) == 0 {
		_, err := io.WriteString(w, f.formatEmptyMessage("No services registered"))
		return err
	}

	t := f.createTable(w)

	if !f.options.NoHeaders {
		var header table.Row
		for _, c := range columns(f.options.Wide) {
			header = append(header, f.colorize(text.FgHiCyan, c))
		}
		t.AppendHeader(header)
	}

	for _, e := range sortEntries(entries) {
		cells := row(e, f.options.Wide)
		if !f.options.Wide {
			cells[tagsColumn] = dstrings.JoinTruncated(e.Tags, ",", dstrings.DefaultListMaxLen)
		}
		r := make(table.Row, len(cells))
		for i, c := range cells {
			r[i] = c
		}
		r[0] = f.colorize(text.FgHiWhite, cells[0])
		t.AppendRow(r)
	}

	t.Render()

	_, err := fmt.Fprintf(w, "%s %s %s\n",
		f.colorize(text.FgHiBlue, "Total:"),
		f.colorize(text.FgHiWhite, fmt.Sprint(len(entries))),
		f.colorize(text.FgHiBlue, "services"))
	return err
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(message string) string {
	return f.colorize(text.FgYellow, message) + "\n"
}

func (f *TableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}
