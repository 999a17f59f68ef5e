package formatting

import (
	"fmt"
	"io"
	"strings"

	"discover/internal/registry"
)

// PlainFormatter renders entries as aligned columns without box-drawing
// characters, so the output can be piped to grep, awk or cut.
type PlainFormatter struct {
	options Options
}

// NewPlainFormatter creates a new plain formatter
func NewPlainFormatter(options Options) Formatter {
	return &PlainFormatter{options: options}
}

// FormatEntries writes the header row (unless suppressed) and one line per
// entry. Nothing is written for an empty list without headers.
func (f *PlainFormatter) FormatEntries(w io.Writer, entries []registry.Entry) error {
	tw := newPlainTableWriter(w)
	tw.setHeaders(columns(f.options.Wide))
	tw.showHeaders = !f.options.NoHeaders
	for _, e := range sortEntries(entries) {
		tw.appendRow(row(e, f.options.Wide))
	}
	return tw.render()
}

// SetOptions updates the formatter options
func (f *PlainFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *PlainFormatter) GetOptions() Options {
	return f.options
}

// plainTableWriter pads every column to its widest cell.
type plainTableWriter struct {
	headers      []string
	rows         [][]string
	columnWidths []int
	// minPadding is the minimum space between columns
	minPadding  int
	showHeaders bool
	output      io.Writer
}

func newPlainTableWriter(output io.Writer) *plainTableWriter {
	return &plainTableWriter{
		minPadding:  3,
		showHeaders: true,
		output:      output,
	}
}

func (w *plainTableWriter) setHeaders(headers []string) {
	w.headers = make([]string, len(headers))
	w.columnWidths = make([]int, len(headers))
	for i, h := range headers {
		upper := strings.ToUpper(h)
		w.headers[i] = upper
		w.columnWidths[i] = len(upper)
	}
}

func (w *plainTableWriter) appendRow(row []string) {
	normalized := make([]string, len(w.headers))
	for i := range w.headers {
		if i < len(row) {
			normalized[i] = row[i]
			if len(row[i]) > w.columnWidths[i] {
				w.columnWidths[i] = len(row[i])
			}
		}
	}
	w.rows = append(w.rows, normalized)
}

func (w *plainTableWriter) render() error {
	if len(w.headers) == 0 {
		return nil
	}
	if w.showHeaders {
		if err := w.printRow(w.headers); err != nil {
			return err
		}
	}
	for _, r := range w.rows {
		if err := w.printRow(r); err != nil {
			return err
		}
	}
	return nil
}

func (w *plainTableWriter) printRow(row []string) error {
	var sb strings.Builder
	for i, cell := range row {
		if i == len(row)-1 {
			sb.WriteString(cell)
			continue
		}
		fmt.Fprintf(&sb, "%-*s", w.columnWidths[i]+w.minPadding, cell)
	}
	_, err := fmt.Fprintln(w.output, strings.TrimRight(sb.String(), " "))
	return err
}
