// Package transform reshapes tables: custom column mappings, missing-value
// handling, duplicate removal, date coercion, and regex extraction.
package transform

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"

	"github.com/serisow/datalens/stats"
	"github.com/serisow/datalens/tabular"
)

// StringTransform names a per-value text operation applied after mapping.
type StringTransform string

const (
	TransformNone          StringTransform = "None"
	TransformUppercase     StringTransform = "Uppercase"
	TransformLowercase     StringTransform = "Lowercase"
	TransformTitleCase     StringTransform = "Title Case"
	TransformTrim          StringTransform = "Trim"
	TransformRemoveSpecial StringTransform = "Remove Special Chars"
)

var specialChars = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// Mapping builds one output column from one or more source columns. Multiple
// sources are rendered to text and joined with Separator.
type Mapping struct {
	Name      string          `json:"name"`
	Sources   []string        `json:"sources"`
	Separator string          `json:"separator"`
	Transform StringTransform `json:"transform"`
}

// MissingStrategy selects how HandleMissing treats null cells.
type MissingStrategy string

const (
	MissingDropRows     MissingStrategy = "drop_rows"
	MissingFillMean     MissingStrategy = "fill_mean"
	MissingFillMedian   MissingStrategy = "fill_median"
	MissingFillMode     MissingStrategy = "fill_mode"
	MissingFillConstant MissingStrategy = "fill_constant"
)

type Transformer struct {
	logger *slog.Logger
}

func NewTransformer(logger *slog.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// ApplyMappings builds a new table from the mappings, leaving the input
// untouched. Mappings with no sources are skipped; a source naming a column
// that does not exist is an error. Single-source mappings keep the source
// column's kind unless a transform forces text; multi-source mappings always
// produce text.
func (tr *Transformer) ApplyMappings(t *tabular.Table, mappings []Mapping) (*tabular.Table, error) {
	out := &tabular.Table{
		Rows: make([][]tabular.Cell, len(t.Rows)),
	}
	for i := range out.Rows {
		out.Rows[i] = make([]tabular.Cell, 0, len(mappings))
	}

	for _, m := range mappings {
		if len(m.Sources) == 0 {
			continue
		}
		cols := make([]int, len(m.Sources))
		for i, src := range m.Sources {
			idx := t.ColumnIndex(src)
			if idx < 0 {
				return nil, fmt.Errorf("mapping %q: unknown source column %q", m.Name, src)
			}
			cols[i] = idx
		}

		kind := tabular.KindText
		if len(cols) == 1 && m.Transform == TransformNone {
			kind = t.Columns[cols[0]].Kind
		}
		out.Columns = append(out.Columns, tabular.Column{Name: m.Name, Kind: kind})

		for i, row := range t.Rows {
			var cell tabular.Cell
			switch {
			case len(cols) == 1 && m.Transform == TransformNone:
				cell = row[cols[0]]
			case len(cols) == 1:
				if row[cols[0]].Null {
					cell = tabular.NullCell()
				} else {
					value := row[cols[0]].Display(t.Columns[cols[0]].Kind)
					cell = tabular.TextCell(applyTransform(value, m.Transform))
				}
			default:
				parts := make([]string, len(cols))
				for j, c := range cols {
					parts[j] = row[c].Display(t.Columns[c].Kind)
				}
				cell = tabular.TextCell(applyTransform(strings.Join(parts, m.Separator), m.Transform))
			}
			out.Rows[i] = append(out.Rows[i], cell)
		}
	}

	tr.logger.Info("column mappings applied",
		slog.Int("input_columns", t.NumCols()),
		slog.Int("output_columns", out.NumCols()))
	return out, nil
}

func applyTransform(value string, transform StringTransform) string {
	switch transform {
	case TransformUppercase:
		return strings.ToUpper(value)
	case TransformLowercase:
		return strings.ToLower(value)
	case TransformTitleCase:
		return titleCase(value)
	case TransformTrim:
		return strings.TrimSpace(value)
	case TransformRemoveSpecial:
		return specialChars.ReplaceAllString(value, "")
	default:
		return value
	}
}

// titleCase uppercases the first letter of every alphabetic run and
// lowercases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

// HandleMissing resolves null cells in place. Drop removes any row holding a
// null; the fill strategies replace nulls per column. Mean and median only
// apply to numeric columns, mode applies to every column, and constant writes
// the given value as text into non-numeric columns and as a number where it
// parses.
func (tr *Transformer) HandleMissing(t *tabular.Table, strategy MissingStrategy, constant string) int {
	switch strategy {
	case MissingDropRows:
		return tr.dropNullRows(t)
	case MissingFillMean:
		return tr.fillNumeric(t, stats.Mean)
	case MissingFillMedian:
		return tr.fillNumeric(t, stats.Median)
	case MissingFillMode:
		return tr.fillMode(t)
	case MissingFillConstant:
		return tr.fillConstant(t, constant)
	default:
		return 0
	}
}

func (tr *Transformer) dropNullRows(t *tabular.Table) int {
	kept := t.Rows[:0]
	dropped := 0
	for _, row := range t.Rows {
		hasNull := false
		for _, c := range row {
			if c.Null {
				hasNull = true
				break
			}
		}
		if hasNull {
			dropped++
			continue
		}
		kept = append(kept, row)
	}
	t.Rows = kept
	if dropped > 0 {
		tr.logger.Info("rows with missing values removed", slog.Int("count", dropped))
	}
	return dropped
}

func (tr *Transformer) fillNumeric(t *tabular.Table, agg func([]float64) float64) int {
	filled := 0
	for _, col := range t.NumericColumns() {
		values, _ := t.NumberValues(col)
		if len(values) == 0 {
			continue
		}
		fill := agg(values)
		for i, row := range t.Rows {
			if row[col].Null {
				t.Rows[i][col] = tabular.NumberCell(fill)
				filled++
			}
		}
	}
	return filled
}

func (tr *Transformer) fillMode(t *tabular.Table) int {
	filled := 0
	for col, column := range t.Columns {
		mode, ok := columnMode(t, col, column.Kind)
		if !ok {
			continue
		}
		for i, row := range t.Rows {
			if row[col].Null {
				t.Rows[i][col] = mode
				filled++
			}
		}
	}
	return filled
}

// columnMode returns the most frequent non-null cell; earlier rows win ties.
func columnMode(t *tabular.Table, col int, kind tabular.Kind) (tabular.Cell, bool) {
	counts := make(map[string]int)
	first := make(map[string]tabular.Cell)
	order := make([]string, 0)
	for _, row := range t.Rows {
		if row[col].Null {
			continue
		}
		key := row[col].Display(kind)
		if _, seen := counts[key]; !seen {
			first[key] = row[col]
			order = append(order, key)
		}
		counts[key]++
	}
	if len(order) == 0 {
		return tabular.Cell{}, false
	}
	best := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[best] {
			best = key
		}
	}
	return first[best], true
}

func (tr *Transformer) fillConstant(t *tabular.Table, constant string) int {
	filled := 0
	for col, column := range t.Columns {
		cell := tabular.TextCell(constant)
		if column.Kind == tabular.KindNumber {
			n, err := parseNumber(constant)
			if err != nil {
				continue
			}
			cell = tabular.NumberCell(n)
		} else if column.Kind == tabular.KindTime {
			parsed, err := dateparse.ParseAny(constant)
			if err != nil {
				continue
			}
			cell = tabular.TimeCell(parsed)
		}
		for i, row := range t.Rows {
			if row[col].Null {
				t.Rows[i][col] = cell
				filled++
			}
		}
	}
	return filled
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// RemoveDuplicates drops rows that repeat an earlier row and reports how many
// were removed.
func (tr *Transformer) RemoveDuplicates(t *tabular.Table) int {
	dups := t.DuplicateRows()
	if len(dups) == 0 {
		return 0
	}
	drop := make(map[int]bool, len(dups))
	for _, i := range dups {
		drop[i] = true
	}
	kept := t.Rows[:0]
	for i, row := range t.Rows {
		if !drop[i] {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
	tr.logger.Info("duplicate rows removed", slog.Int("count", len(dups)))
	return len(dups)
}

// CoerceDates converts a column to times in place. A non-empty layout parses
// strictly against that Go reference layout; an empty layout falls back to
// flexible parsing. Values that fail to parse become null.
func (tr *Transformer) CoerceDates(t *tabular.Table, column, layout string) (int, error) {
	col := t.ColumnIndex(column)
	if col < 0 {
		return 0, fmt.Errorf("unknown column %q", column)
	}

	kind := t.Columns[col].Kind
	failed := 0
	for i, row := range t.Rows {
		if row[col].Null {
			continue
		}
		raw := row[col].Display(kind)
		parsed, err := parseDate(raw, layout)
		if err != nil {
			t.Rows[i][col] = tabular.NullCell()
			failed++
			continue
		}
		t.Rows[i][col] = tabular.TimeCell(parsed)
	}
	t.Columns[col].Kind = tabular.KindTime

	tr.logger.Info("date column coerced",
		slog.String("column", column),
		slog.Int("failed", failed))
	return failed, nil
}

func parseDate(raw, layout string) (parsed time.Time, err error) {
	if layout != "" {
		return time.Parse(layout, raw)
	}
	return dateparse.ParseAny(raw)
}

// ExtractPattern appends a text column holding the first capture group (or
// the whole match when the pattern has no groups) of each value; rows without
// a match get null.
func (tr *Transformer) ExtractPattern(t *tabular.Table, column, pattern, newName string) error {
	col := t.ColumnIndex(column)
	if col < 0 {
		return fmt.Errorf("unknown column %q", column)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	kind := t.Columns[col].Kind
	t.Columns = append(t.Columns, tabular.Column{Name: newName, Kind: tabular.KindText})
	for i, row := range t.Rows {
		cell := tabular.NullCell()
		if !row[col].Null {
			if m := re.FindStringSubmatch(row[col].Display(kind)); m != nil {
				if len(m) > 1 {
					cell = tabular.TextCell(m[1])
				} else {
					cell = tabular.TextCell(m[0])
				}
			}
		}
		t.Rows[i] = append(t.Rows[i], cell)
	}

	tr.logger.Info("pattern extracted",
		slog.String("column", column),
		slog.String("into", newName))
	return nil
}
