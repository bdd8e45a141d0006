package tabular

import (
	"strconv"
	"strings"
	"time"
)

// Kind classifies a column's values. Columns start as text; number columns
// come from coercion at construction (or an explicit transform), time columns
// only from an explicit date coercion.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	default:
		return "text"
	}
}

type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Cell holds one value of its column's kind, or null. A padded short row
// yields empty text cells, which count as present, not null; null only comes
// from failed coercion or explicit missing-value handling.
type Cell struct {
	Text   string
	Number float64
	Time   time.Time
	Null   bool
}

func TextCell(s string) Cell    { return Cell{Text: s} }
func NumberCell(v float64) Cell { return Cell{Number: v} }
func TimeCell(t time.Time) Cell { return Cell{Time: t} }
func NullCell() Cell            { return Cell{Null: true} }

// Display renders the cell the way it would appear in an export. Null cells
// render empty.
func (c Cell) Display(kind Kind) string {
	if c.Null {
		return ""
	}
	switch kind {
	case KindNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case KindTime:
		return c.Time.Format("2006-01-02 15:04:05")
	default:
		return c.Text
	}
}

// Table is an ordered set of rows over a fixed column set. Every row has
// exactly len(Columns) cells and no row repeats the header verbatim; both
// invariants are established at construction and must survive any caller-side
// mutation.
type Table struct {
	Columns []Column
	Rows    [][]Cell
}

func NewEmpty() *Table {
	return &Table{}
}

func (t *Table) IsEmpty() bool {
	return len(t.Columns) == 0 || len(t.Rows) == 0
}

func (t *Table) NumRows() int { return len(t.Rows) }
func (t *Table) NumCols() int { return len(t.Columns) }

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns -1 when the column does not exist.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// NumericColumns returns the indices of number-kind columns in table order.
func (t *Table) NumericColumns() []int {
	var cols []int
	for i, c := range t.Columns {
		if c.Kind == KindNumber {
			cols = append(cols, i)
		}
	}
	return cols
}

func (t *Table) TextColumns() []int {
	var cols []int
	for i, c := range t.Columns {
		if c.Kind == KindText {
			cols = append(cols, i)
		}
	}
	return cols
}

func (t *Table) TimeColumns() []int {
	var cols []int
	for i, c := range t.Columns {
		if c.Kind == KindTime {
			cols = append(cols, i)
		}
	}
	return cols
}

// NumberValues returns the non-null values of a numeric column alongside the
// row index each value came from.
func (t *Table) NumberValues(col int) ([]float64, []int) {
	var values []float64
	var rows []int
	for i, row := range t.Rows {
		if row[col].Null {
			continue
		}
		values = append(values, row[col].Number)
		rows = append(rows, i)
	}
	return values, rows
}

// TextValues returns the non-null values of a text column.
func (t *Table) TextValues(col int) []string {
	var values []string
	for _, row := range t.Rows {
		if row[col].Null {
			continue
		}
		values = append(values, row[col].Text)
	}
	return values
}

// TimeValues returns the non-null values of a time column alongside row
// indices.
func (t *Table) TimeValues(col int) ([]time.Time, []int) {
	var values []time.Time
	var rows []int
	for i, row := range t.Rows {
		if row[col].Null {
			continue
		}
		values = append(values, row[col].Time)
		rows = append(rows, i)
	}
	return values, rows
}

func (t *Table) NullCount(col int) int {
	count := 0
	for _, row := range t.Rows {
		if row[col].Null {
			count++
		}
	}
	return count
}

// rowKey builds a comparison key over every cell, used for full-row duplicate
// detection.
func (t *Table) rowKey(row []Cell) string {
	parts := make([]string, len(row))
	for i, c := range row {
		if c.Null {
			parts[i] = "\x00"
		} else {
			parts[i] = c.Display(t.Columns[i].Kind)
		}
	}
	return strings.Join(parts, "\x1f")
}

// DuplicateRows returns the indices of rows that repeat an earlier row
// (first occurrences are not reported).
func (t *Table) DuplicateRows() []int {
	seen := make(map[string]bool, len(t.Rows))
	var dups []int
	for i, row := range t.Rows {
		key := t.rowKey(row)
		if seen[key] {
			dups = append(dups, i)
		}
		seen[key] = true
	}
	return dups
}

// DuplicateValueRows returns the indices of every row participating in a
// duplicated value of the given column, keeping all occurrences.
func (t *Table) DuplicateValueRows(col int) []int {
	counts := make(map[string]int)
	for _, row := range t.Rows {
		if row[col].Null {
			continue
		}
		counts[row[col].Display(t.Columns[col].Kind)]++
	}
	var rows []int
	for i, row := range t.Rows {
		if row[col].Null {
			continue
		}
		if counts[row[col].Display(t.Columns[col].Kind)] > 1 {
			rows = append(rows, i)
		}
	}
	return rows
}

// Clone deep-copies the table so independent analyzers can hold their own
// snapshot.
func (t *Table) Clone() *Table {
	clone := &Table{
		Columns: make([]Column, len(t.Columns)),
		Rows:    make([][]Cell, len(t.Rows)),
	}
	copy(clone.Columns, t.Columns)
	for i, row := range t.Rows {
		clone.Rows[i] = make([]Cell, len(row))
		copy(clone.Rows[i], row)
	}
	return clone
}

// Records renders rows as column-name keyed maps for JSON responses. Numbers
// stay float64, times are formatted, nulls are nil.
func (t *Table) Records() []map[string]any {
	records := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, col := range t.Columns {
			switch {
			case row[j].Null:
				rec[col.Name] = nil
			case col.Kind == KindNumber:
				rec[col.Name] = row[j].Number
			case col.Kind == KindTime:
				rec[col.Name] = row[j].Time.Format("2006-01-02 15:04:05")
			default:
				rec[col.Name] = row[j].Text
			}
		}
		records[i] = rec
	}
	return records
}
