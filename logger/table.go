package logger

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

type Table struct {
	headers     []string
	rows        [][]string
	columnWidth []int
	out         io.Writer
}

func NewTable(headers []string, out io.Writer) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}

	return &Table{
		headers:     headers,
		columnWidth: widths,
		out:         out,
	}
}

func (t *Table) AddRow(cells ...string) {
	if len(cells) > len(t.headers) {
		cells = cells[:len(t.headers)]
	} else if len(cells) < len(t.headers) {
		padded := make([]string, len(t.headers))
		copy(padded, cells)
		cells = padded
	}

	for i, cell := range cells {
		if n := utf8.RuneCountInString(cell); n > t.columnWidth[i] {
			t.columnWidth[i] = n
		}
	}

	t.rows = append(t.rows, cells)
}

func (t *Table) border(left, mid, right string) string {
	parts := make([]string, len(t.columnWidth))
	for i, width := range t.columnWidth {
		parts[i] = strings.Repeat("─", width+2)
	}
	return left + strings.Join(parts, mid) + right + "\n"
}

func (t *Table) row(cells []string) string {
	var sb strings.Builder
	sb.WriteString("│")
	for i, cell := range cells {
		pad := t.columnWidth[i] - utf8.RuneCountInString(cell)
		sb.WriteString(" " + cell + strings.Repeat(" ", pad) + " │")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (t *Table) String() string {
	var sb strings.Builder
	sb.WriteString(t.border("┌", "┬", "┐"))
	sb.WriteString(t.row(t.headers))
	sb.WriteString(t.border("├", "┼", "┤"))
	for _, r := range t.rows {
		sb.WriteString(t.row(r))
	}
	sb.WriteString(t.border("└", "┴", "┘"))
	return sb.String()
}

func (t *Table) Print() {
	fmt.Fprint(t.out, t.String())
}
