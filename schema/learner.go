// Package schema infers a tabular schema hint from a sample of raw text:
// dominant delimiter, structural class, field names and primitive types.
package schema

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/serisow/datalens/tabular"
)

// Structure is the learner's top-level guess at document shape.
type Structure string

const (
	StructureTable    Structure = "table"
	StructureKeyValue Structure = "key-value"
	StructureTabular  Structure = "tabular"
	StructureUnknown  Structure = "unknown"
)

// FieldType is a primitive type tag for a detected field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeDate    FieldType = "date"
	TypeEmail   FieldType = "email"
	TypePhone   FieldType = "phone"
	TypeBoolean FieldType = "boolean"
)

// Hint is the learner's read of a text sample. Confidence grows with the
// number of detected fields, capped at 100.
type Hint struct {
	Fields     []string             `json:"detected_fields"`
	FieldTypes map[string]FieldType `json:"field_types"`
	Delimiters []string             `json:"delimiters"`
	Structure  Structure            `json:"structure"`
	Confidence float64              `json:"confidence"`
}

// Delimiter candidates counted during learning, in tie-break order.
var delimiterCandidates = []string{",", ";", ":", "\t", "|"}

const sampleLines = 10

type Learner struct{}

func NewLearner() *Learner {
	return &Learner{}
}

// LearnSchema inspects at most the first 10 lines of text. It never fails:
// empty or delimiter-free input yields a zero-confidence hint.
func (l *Learner) LearnSchema(text string) *Hint {
	hint := &Hint{
		Structure:  StructureUnknown,
		FieldTypes: make(map[string]FieldType),
	}

	lines := sample(text)
	if len(lines) == 0 {
		return hint
	}

	counts := make(map[string]int, len(delimiterCandidates))
	for _, d := range delimiterCandidates {
		for _, line := range lines {
			counts[d] += strings.Count(line, d)
		}
		if counts[d] > 0 {
			hint.Delimiters = append(hint.Delimiters, d)
		}
	}

	switch {
	case counts["|"] > 0:
		hint.Structure = StructureTable
	case len(lines) > 1 && strings.Contains(lines[0], ":") && strings.Contains(lines[1], ":"):
		hint.Structure = StructureKeyValue
	default:
		hint.Structure = StructureTabular
	}

	primary := delimiterCandidates[0]
	for _, d := range delimiterCandidates[1:] {
		if counts[d] > counts[primary] {
			primary = d
		}
	}

	if counts[primary] > 0 {
		for _, f := range strings.Split(lines[0], primary) {
			hint.Fields = append(hint.Fields, strings.TrimSpace(f))
		}

		// Types are inferred only for fields present in both the header
		// line and the first value line.
		if len(lines) > 1 {
			values := strings.Split(lines[1], primary)
			for i, field := range hint.Fields {
				if i >= len(values) {
					break
				}
				hint.FieldTypes[field] = DetectType(strings.TrimSpace(values[i]))
			}
		}
	}

	if len(hint.Fields) > 0 {
		hint.Confidence = min(100, float64(len(hint.Fields))*10)
	}

	return hint
}

func sample(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == sampleLines {
			break
		}
	}
	return lines
}

// typeMatcher pairs a predicate with the type tag it proves. Matchers are
// evaluated in fixed precedence order; first match wins.
type typeMatcher struct {
	tag   FieldType
	match func(string) bool
}

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`), // YYYY-MM-DD
		regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`), // DD/MM/YYYY
		regexp.MustCompile(`^\d{2}-\d{2}-\d{4}`), // DD-MM-YYYY
	}
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]+$`)
)

var typeMatchers = []typeMatcher{
	{TypeDate, func(v string) bool {
		for _, p := range datePatterns {
			if p.MatchString(v) {
				return true
			}
		}
		return false
	}},
	{TypeNumber, func(v string) bool {
		_, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
		return err == nil
	}},
	{TypeEmail, func(v string) bool {
		return emailPattern.MatchString(v)
	}},
	{TypePhone, func(v string) bool {
		return phonePattern.MatchString(v) && len(v) >= 10
	}},
	{TypeBoolean, func(v string) bool {
		switch strings.ToLower(v) {
		case "true", "false", "yes", "no", "1", "0":
			return true
		}
		return false
	}},
}

// DetectType classifies a single value. Empty values and everything no
// matcher claims default to string.
func DetectType(value string) FieldType {
	value = strings.TrimSpace(value)
	if value == "" {
		return TypeString
	}

	for _, m := range typeMatchers {
		if m.match(value) {
			return m.tag
		}
	}
	return TypeString
}

var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

// SuggestColumnNames normalizes detected field names into clean title-cased
// column names.
func SuggestColumnNames(fields []string) []string {
	suggestions := make([]string, len(fields))
	for i, field := range fields {
		clean := strings.ToLower(strings.TrimSpace(field))
		clean = nonWordPattern.ReplaceAllString(clean, "")
		clean = strings.ReplaceAll(clean, " ", "_")

		parts := strings.Split(clean, "_")
		for j, p := range parts {
			if p != "" {
				parts[j] = strings.ToUpper(p[:1]) + p[1:]
			}
		}
		suggestions[i] = strings.Join(parts, " ")
	}
	return suggestions
}

// InferPrimaryKey proposes the column most likely to be a primary key: fully
// unique values, scored up for numeric kind and id-like naming. Returns ""
// when no column is unique.
func InferPrimaryKey(t *tabular.Table) string {
	best := ""
	bestScore := -1

	for i, col := range t.Columns {
		distinct := make(map[string]bool, t.NumRows())
		unique := true
		for _, row := range t.Rows {
			key := row[i].Display(col.Kind)
			if distinct[key] {
				unique = false
				break
			}
			distinct[key] = true
		}
		if !unique || t.NumRows() == 0 {
			continue
		}

		score := 0
		if col.Kind == tabular.KindNumber {
			score += 50
		}
		lower := strings.ToLower(col.Name)
		if strings.Contains(lower, "id") || strings.Contains(lower, "key") {
			score += 50
		}
		if score > bestScore {
			best = col.Name
			bestScore = score
		}
	}

	return best
}

// Relationship is a potential foreign-key style link between two columns:
// every distinct value of Child appears among the distinct values of Parent.
type Relationship struct {
	Child      string  `json:"child"`
	Parent     string  `json:"parent"`
	Confidence float64 `json:"confidence"`
}

// DetectRelationships finds subset relationships between same-kind columns.
func DetectRelationships(t *tabular.Table) []Relationship {
	var relationships []Relationship

	distincts := make([]map[string]bool, len(t.Columns))
	for i, col := range t.Columns {
		distincts[i] = make(map[string]bool)
		for _, row := range t.Rows {
			if row[i].Null {
				continue
			}
			distincts[i][row[i].Display(col.Kind)] = true
		}
	}

	for i := range t.Columns {
		for j := i + 1; j < len(t.Columns); j++ {
			if t.Columns[i].Kind != t.Columns[j].Kind {
				continue
			}
			if rel, ok := subsetOf(t.Columns[i].Name, t.Columns[j].Name, distincts[i], distincts[j]); ok {
				relationships = append(relationships, rel)
			} else if rel, ok := subsetOf(t.Columns[j].Name, t.Columns[i].Name, distincts[j], distincts[i]); ok {
				relationships = append(relationships, rel)
			}
		}
	}

	return relationships
}

func subsetOf(child, parent string, childSet, parentSet map[string]bool) (Relationship, bool) {
	if len(childSet) == 0 || len(childSet) >= len(parentSet) {
		return Relationship{}, false
	}
	for v := range childSet {
		if !parentSet[v] {
			return Relationship{}, false
		}
	}
	return Relationship{
		Child:      child,
		Parent:     parent,
		Confidence: float64(len(childSet)) / float64(len(parentSet)),
	}, true
}
