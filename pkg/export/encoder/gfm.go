package encoder

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"mercator-hq/dbxport/pkg/export"
)

// Align is a GFM column alignment.
type Align int

const (
	AlignNone Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// ParseAlign parses "left", "center" or "right". An empty string is
// AlignNone.
func ParseAlign(s string) (Align, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AlignNone, nil
	case "left":
		return AlignLeft, nil
	case "center", "centre":
		return AlignCenter, nil
	case "right":
		return AlignRight, nil
	}
	return AlignNone, fmt.Errorf("unknown alignment %q", s)
}

// String returns the alignment name.
func (a Align) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	}
	return "none"
}

// marker returns the separator cell for a column of the given width.
func (a Align) marker(width int) string {
	switch a {
	case AlignLeft:
		return ":" + strings.Repeat("-", max(width-1, 3))
	case AlignCenter:
		return ":" + strings.Repeat("-", max(width-2, 3)) + ":"
	case AlignRight:
		return strings.Repeat("-", max(width-1, 3)) + ":"
	}
	return strings.Repeat("-", max(width, 3))
}

// GFMOptions configures the Markdown table encoder.
type GFMOptions struct {
	// Pad pads every cell to its column's widest value even when no
	// alignment is configured.
	Pad bool

	// Align maps column names to alignments. Any entry enables padding.
	Align map[string]Align
}

// GFMEncoder renders a GitHub-flavored Markdown table. It materializes the
// Dataset because padded columns need every row's width before the
// separator row can be written.
type GFMEncoder struct {
	pad   bool
	align map[string]Align
}

// NewGFM creates a Markdown table encoder.
func NewGFM(opts GFMOptions) *GFMEncoder {
	return &GFMEncoder{pad: opts.Pad, align: opts.Align}
}

// Format returns FormatGFM.
func (e *GFMEncoder) Format() Format { return FormatGFM }

// Mode returns Materializing.
func (e *GFMEncoder) Mode() Mode { return Materializing }

// Encode writes the whole table.
func (e *GFMEncoder) Encode(w io.Writer, ds *export.Dataset) error {
	schema := ds.Schema
	n := schema.Len()

	aligns := make([]Align, n)
	padded := e.pad
	for i, name := range schema.Names() {
		aligns[i] = e.align[name]
		if aligns[i] != AlignNone {
			padded = true
		}
	}

	header := make([]string, n)
	widths := make([]int, n)
	for i, name := range schema.Names() {
		header[i] = escapeCell(name)
		widths[i] = runewidth.StringWidth(header[i])
	}

	body := make([][]string, len(ds.Rows))
	for r, row := range ds.Rows {
		if len(row) != n {
			return export.NewEncodingError(string(FormatGFM), r, "", export.ErrRowShape)
		}
		cells := make([]string, n)
		for i, v := range row {
			cells[i] = escapeCell(v.String())
			if width := runewidth.StringWidth(cells[i]); width > widths[i] {
				widths[i] = width
			}
		}
		body[r] = cells
	}

	bw := bufio.NewWriter(w)
	writeLine := func(cells []string) {
		bw.WriteString("|")
		for i, cell := range cells {
			bw.WriteString(" ")
			if padded {
				cell = padCell(cell, widths[i], aligns[i])
			}
			bw.WriteString(cell)
			bw.WriteString(" |")
		}
		bw.WriteString("\n")
	}

	writeLine(header)

	sep := make([]string, n)
	for i := range sep {
		width := 0
		if padded {
			width = widths[i]
		}
		sep[i] = aligns[i].marker(width)
	}
	bw.WriteString("|")
	for _, m := range sep {
		bw.WriteString(" " + m + " |")
	}
	bw.WriteString("\n")

	for _, cells := range body {
		writeLine(cells)
	}

	if err := bw.Flush(); err != nil {
		return export.NewEncodingError(string(FormatGFM), -1, "", err)
	}
	return nil
}

// escapeCell escapes pipes and replaces line breaks so that a cell stays on
// one table row. Backslashes directly before a pipe are doubled so they
// survive the table's own \| unescaping.
func escapeCell(s string) string {
	if !strings.ContainsAny(s, "|\r\n") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	slashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			slashes++
			continue
		}
		if c == '|' {
			slashes *= 2
		}
		b.WriteString(strings.Repeat(`\`, slashes))
		slashes = 0

		switch c {
		case '|':
			b.WriteString(`\|`)
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			b.WriteString("<br>")
		case '\n':
			b.WriteString("<br>")
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString(strings.Repeat(`\`, slashes))
	return b.String()
}

func padCell(s string, width int, a Align) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	switch a {
	case AlignRight:
		return strings.Repeat(" ", gap) + s
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	}
	return s + strings.Repeat(" ", gap)
}
