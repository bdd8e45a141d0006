package tabular

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Delimiter selection tokens accepted by the builder. A bare literal
// delimiter (",", ";", ":", "\t") is accepted as well.
const (
	DelimiterAuto      = "Auto-detect"
	DelimiterComma     = "Comma (,)"
	DelimiterSemicolon = "Semicolon (;)"
	DelimiterColon     = "Colon (:)"
	DelimiterTab       = "Tab"
	DelimiterMixed     = "Mixed"
)

// autoCandidates is the fixed candidate order for auto-detection; ties break
// toward the earlier entry.
var autoCandidates = []string{",", ";", ":", "\t"}

const defaultMixedPattern = `[,;:]`

// Options controls delimiter resolution. The zero value auto-detects.
type Options struct {
	// Delimiter is one of the Delimiter* tokens or a literal delimiter.
	// Empty means auto-detect.
	Delimiter string
	// MixedPattern is the split regex used with DelimiterMixed. Empty uses
	// the default pattern.
	MixedPattern string
}

// FailureReason classifies why text could not be turned into a table.
type FailureReason string

const (
	FailureNoLines    FailureReason = "no_lines"
	FailureNoHeader   FailureReason = "no_header"
	FailureNoDataRows FailureReason = "no_data_rows"
	FailureBadPattern FailureReason = "bad_pattern"
)

// ParseFailure is the failure side of table construction. The exported
// ParseTable entry point maps it to the documented empty-table default; Parse
// surfaces it for callers that want the taxonomy.
type ParseFailure struct {
	Reason  FailureReason
	Message string
}

func (f *ParseFailure) Error() string {
	return fmt.Sprintf("parse failure (%s): %s", f.Reason, f.Message)
}

type Builder struct {
	logger *slog.Logger
}

func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{logger: logger}
}

// ParseTable converts semi-structured text into a Table. It never fails: any
// construction failure is logged and yields an empty table, so one bad
// document can never take down an interactive session.
func (b *Builder) ParseTable(text string, opts Options) *Table {
	t, err := b.Parse(text, opts)
	if err != nil {
		b.logger.Warn("table construction failed, returning empty table",
			slog.String("reason", string(err.Reason)),
			slog.String("detail", err.Message))
		return NewEmpty()
	}
	return t
}

// Parse is the Result-style inner contract behind ParseTable.
func (b *Builder) Parse(text string, opts Options) (*Table, *ParseFailure) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, &ParseFailure{Reason: FailureNoLines, Message: "input contains no non-empty lines"}
	}

	split, failure := b.resolveSplitter(lines, opts)
	if failure != nil {
		return nil, failure
	}

	var header []string
	var data [][]string
	for _, line := range lines {
		parts := split(line)
		if len(parts) == 0 {
			// A line with no non-empty parts never produces a short row.
			continue
		}
		if header == nil {
			header = parts
		} else {
			data = append(data, parts)
		}
	}

	if header == nil {
		return nil, &ParseFailure{Reason: FailureNoHeader, Message: "no header row found"}
	}
	if len(data) == 0 {
		return nil, &ParseFailure{Reason: FailureNoDataRows, Message: "no data rows found"}
	}

	// Reconcile every row to the header width before anything else looks at
	// the rows: short rows are right-padded, long rows truncated.
	width := len(header)
	for i, row := range data {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			data[i] = padded
		} else if len(row) > width {
			data[i] = row[:width]
		}
	}

	// Header removal runs strictly after reconciliation.
	data = dropRepeatedHeaders(header, data)
	if len(data) == 0 {
		return nil, &ParseFailure{Reason: FailureNoDataRows, Message: "all data rows repeated the header"}
	}

	return buildTable(header, data), nil
}

// resolveSplitter turns the delimiter option into a line splitting function.
func (b *Builder) resolveSplitter(lines []string, opts Options) (func(string) []string, *ParseFailure) {
	delim := opts.Delimiter

	switch delim {
	case "", DelimiterAuto:
		delim = autoDetect(lines)
	case DelimiterComma:
		delim = ","
	case DelimiterSemicolon:
		delim = ";"
	case DelimiterColon:
		delim = ":"
	case DelimiterTab:
		delim = "\t"
	case DelimiterMixed:
		pattern := opts.MixedPattern
		if pattern == "" {
			pattern = defaultMixedPattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &ParseFailure{Reason: FailureBadPattern, Message: err.Error()}
		}
		return func(line string) []string {
			return cleanParts(re.Split(line, -1))
		}, nil
	}

	d := delim
	return func(line string) []string {
		return cleanParts(strings.Split(line, d))
	}, nil
}

// autoDetect picks the candidate with the highest occurrence count over the
// first 5 lines. The fixed candidate order makes ties deterministic.
func autoDetect(lines []string) string {
	sample := lines
	if len(sample) > 5 {
		sample = sample[:5]
	}

	best := autoCandidates[0]
	bestCount := -1
	for _, cand := range autoCandidates {
		count := 0
		for _, line := range sample {
			count += strings.Count(line, cand)
		}
		if count > bestCount {
			best = cand
			bestCount = count
		}
	}
	return best
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func cleanParts(parts []string) []string {
	var clean []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			clean = append(clean, p)
		}
	}
	return clean
}

// dropRepeatedHeaders removes rows whose every cell equals the column name at
// the same position. Paginated PDF extraction re-injects the header on every
// printed page; the check is positional and exact, not fuzzy.
func dropRepeatedHeaders(header []string, data [][]string) [][]string {
	var kept [][]string
	for _, row := range data {
		if !matchesHeader(header, row) {
			kept = append(kept, row)
		}
	}
	return kept
}

func matchesHeader(header []string, row []string) bool {
	for i := range header {
		if strings.TrimSpace(row[i]) != strings.TrimSpace(header[i]) {
			return false
		}
	}
	return true
}

// RemoveRepeatedHeaderRows drops any row whose cells all display as the
// column name at the same position. Construction already applies this, so a
// second application is a no-op; it is exported for callers that mutate
// tables and need to restore the invariant.
func RemoveRepeatedHeaderRows(t *Table) *Table {
	if t.IsEmpty() {
		return t
	}
	var kept [][]Cell
	for _, row := range t.Rows {
		match := true
		for i := range t.Columns {
			if strings.TrimSpace(row[i].Display(t.Columns[i].Kind)) != strings.TrimSpace(t.Columns[i].Name) {
				match = false
				break
			}
		}
		if !match {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
	return t
}

// buildTable assembles typed columns from reconciled string rows. Duplicate
// header names are disambiguated with a positional suffix so column names can
// serve as row-map keys.
func buildTable(header []string, data [][]string) *Table {
	names := uniqueNames(header)

	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Kind: KindText}
	}

	rows := make([][]Cell, len(data))
	for i, raw := range data {
		row := make([]Cell, len(names))
		for j, v := range raw {
			row[j] = TextCell(v)
		}
		rows[i] = row
	}

	t := &Table{Columns: columns, Rows: rows}

	for j := range t.Columns {
		// A column literally named Salary is always coerced; other columns
		// become numeric only when every non-empty value parses.
		if t.Columns[j].Name == "Salary" {
			coerceNumeric(t, j)
		} else if allNumeric(t, j) {
			coerceNumeric(t, j)
		}
	}

	return t
}

func uniqueNames(header []string) []string {
	seen := make(map[string]int, len(header))
	names := make([]string, len(header))
	for i, name := range header {
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			names[i] = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
			names[i] = name
		}
	}
	return names
}

func allNumeric(t *Table, col int) bool {
	nonEmpty := 0
	for _, row := range t.Rows {
		v := strings.TrimSpace(row[col].Text)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
		nonEmpty++
	}
	return nonEmpty > 0
}

// coerceNumeric converts a text column to numbers; unparseable or empty
// entries become null.
func coerceNumeric(t *Table, col int) {
	for i, row := range t.Rows {
		v := strings.TrimSpace(row[col].Text)
		if num, err := strconv.ParseFloat(v, 64); err == nil {
			t.Rows[i][col] = NumberCell(num)
		} else {
			t.Rows[i][col] = NullCell()
		}
	}
	t.Columns[col].Kind = KindNumber
}
