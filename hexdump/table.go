package hexdump

import (
	"fmt"
	"io"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// FormatFunc decorates a cell after its width has been measured.
type FormatFunc func(value string) string

// ColumnSpec describes one table column.
type ColumnSpec struct {
	Header     string
	BlankValue string // shown for empty cells, "-" when unset
	FormatFunc FormatFunc
	MinWidth   int
	AlignRight bool
}

// Table collects rows and renders them as aligned columns.
type Table struct {
	columns []ColumnSpec
	rows    [][]string
	widths  []int
}

func NewTable(cols ...ColumnSpec) *Table {
	t := &Table{
		columns: cols,
		widths:  make([]int, len(cols)),
	}
	for i := range t.columns {
		if t.columns[i].BlankValue == "" {
			t.columns[i].BlankValue = "-"
		}
		t.widths[i] = max(t.columns[i].MinWidth, len(t.columns[i].Header))
	}
	return t
}

// AddRow appends a row. Missing cells take the column's BlankValue, extra cells are dropped.
func (t *Table) AddRow(data ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(data) && data[i] != "" {
			row[i] = data[i]
		} else {
			row[i] = t.columns[i].BlankValue
		}
		t.widths[i] = max(t.widths[i], visibleLength(row[i]))
	}
	t.rows = append(t.rows, row)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Render(w io.Writer) error {
	headers := make([]string, len(t.columns))
	rules := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = t.pad(i, col.Header)
		rules[i] = strings.Repeat("-", t.widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(headers, " "), " ")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Join(rules, " ")); err != nil {
		return err
	}

	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, val := range row {
			if f := t.columns[i].FormatFunc; f != nil && val != t.columns[i].BlankValue {
				val = f(val)
			}
			cells[i] = t.pad(i, val)
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, " "), " ")); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) String() string {
	var sb strings.Builder
	t.Render(&sb)
	return sb.String()
}

func (t *Table) pad(col int, s string) string {
	n := t.widths[col] - visibleLength(s)
	if n <= 0 {
		return s
	}
	if t.columns[col].AlignRight {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// visibleLength counts runes outside ANSI SGR sequences.
func visibleLength(s string) int {
	n := 0
	escape := false
	for _, r := range s {
		switch {
		case r == '\033':
			escape = true
		case escape:
			if r == 'm' {
				escape = false
			}
		default:
			n++
		}
	}
	return n
}

// Colorize returns a FormatFunc painting cells in fg.
func Colorize(fg coloransi.ColorCode) FormatFunc {
	return func(s string) string {
		return coloransi.Foreground(fg, s)
	}
}
