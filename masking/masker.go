// Package masking detects columns likely to hold personally identifiable
// information and applies masking transforms of varying strength.
package masking

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"

	"github.com/serisow/datalens/stats"
	"github.com/serisow/datalens/tabular"
)

// Method selects a masking transform. Hash and Tokenize are deterministic;
// Tokenize preserves join keys without revealing values.
type Method string

const (
	MethodPartial  Method = "Partial Mask"
	MethodFull     Method = "Full Mask"
	MethodHash     Method = "Hash"
	MethodTokenize Method = "Tokenize"
)

// SensitiveType classifies what a sensitive column holds.
type SensitiveType string

const (
	TypeEmail      SensitiveType = "email"
	TypePhone      SensitiveType = "phone"
	TypeSSN        SensitiveType = "ssn"
	TypeCreditCard SensitiveType = "credit_card"
	TypeAadhaar    SensitiveType = "aadhaar"
	TypePAN        SensitiveType = "pan"
	TypeSalary     SensitiveType = "salary"
	TypeAddress    SensitiveType = "address"
	TypeDOB        SensitiveType = "dob"
)

// SensitiveColumn reports one detected column. Confidence is the percentage
// of sampled values matching the type pattern; name-only types carry a fixed
// 70.
type SensitiveColumn struct {
	Column     string        `json:"column"`
	Type       SensitiveType `json:"type"`
	Confidence float64       `json:"confidence"`
}

// valuePatterns are exact full-string matchers per sensitive type. Types
// absent here are detected by column name alone.
var valuePatterns = map[SensitiveType]*regexp.Regexp{
	TypeEmail:      regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`),
	TypePhone:      regexp.MustCompile(`^[\+]?[(]?[0-9]{3}[)]?[-\s\.]?[0-9]{3}[-\s\.]?[0-9]{4,6}$`),
	TypeSSN:        regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`),
	TypeCreditCard: regexp.MustCompile(`^\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}$`),
	TypeAadhaar:    regexp.MustCompile(`^\d{4}\s\d{4}\s\d{4}$`),
	TypePAN:        regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]{1}$`),
}

// nameKeywords map sensitive types to column-name fragments, checked in a
// fixed order so a column claims exactly one type.
var nameKeywordOrder = []struct {
	stype    SensitiveType
	keywords []string
}{
	{TypeEmail, []string{"email", "e-mail", "mail"}},
	{TypePhone, []string{"phone", "mobile", "contact", "cell"}},
	{TypeSSN, []string{"ssn", "social security"}},
	{TypeAadhaar, []string{"aadhaar", "aadhar"}},
	{TypePAN, []string{"pan"}},
	{TypeSalary, []string{"salary", "compensation", "pay"}},
	{TypeAddress, []string{"address", "location", "residence"}},
	{TypeDOB, []string{"dob", "birth", "birthday"}},
}

const (
	sampleSize          = 10
	nameOnlyConfidence  = 70
	confidenceThreshold = 50
)

type Masker struct {
	logger *slog.Logger
}

func NewMasker(logger *slog.Logger) *Masker {
	return &Masker{logger: logger}
}

// DetectSensitiveColumns scans every column name against the keyword table
// and verifies hits by sampling up to 10 non-null values against the type's
// pattern. Only columns scoring above the confidence threshold are reported.
func (m *Masker) DetectSensitiveColumns(t *tabular.Table) []SensitiveColumn {
	var detected []SensitiveColumn

	for i, col := range t.Columns {
		lower := strings.ToLower(col.Name)

		for _, entry := range nameKeywordOrder {
			if !containsAny(lower, entry.keywords) {
				continue
			}
			confidence := m.verify(t, i, entry.stype)
			if confidence > confidenceThreshold {
				detected = append(detected, SensitiveColumn{
					Column:     col.Name,
					Type:       entry.stype,
					Confidence: confidence,
				})
			}
			break
		}
	}

	if len(detected) > 0 {
		m.logger.Info("sensitive columns detected", slog.Int("count", len(detected)))
	}
	return detected
}

// verify samples the first non-null values of a column against the type's
// pattern. Types without a pattern are name-only signals with fixed
// confidence.
func (m *Masker) verify(t *tabular.Table, col int, stype SensitiveType) float64 {
	pattern, ok := valuePatterns[stype]
	if !ok {
		return nameOnlyConfidence
	}

	sampled := 0
	matches := 0
	for _, row := range t.Rows {
		if row[col].Null {
			continue
		}
		if pattern.MatchString(row[col].Display(t.Columns[col].Kind)) {
			matches++
		}
		sampled++
		if sampled == sampleSize {
			break
		}
	}
	if sampled == 0 {
		return 0
	}
	return stats.Round2(float64(matches) / float64(sampled) * 100)
}

// MaskValue applies one masking method to a single string value.
func MaskValue(value string, method Method) string {
	switch method {
	case MethodPartial:
		return partialMask(value)
	case MethodFull:
		return strings.Repeat("*", len(value))
	case MethodHash:
		sum := sha256.Sum256([]byte(value))
		return hex.EncodeToString(sum[:])[:16]
	case MethodTokenize:
		sum := md5.Sum([]byte(value))
		return "TOKEN_" + hex.EncodeToString(sum[:])[:8]
	default:
		return value
	}
}

// partialMask keeps just enough of a value to stay recognizable: the first
// two characters and the domain for emails, the last four digits for
// phone-like strings, the outer two characters for everything else.
func partialMask(value string) string {
	if at := strings.Index(value, "@"); at >= 0 {
		local, domain := value[:at], value[at+1:]
		if len(local) > 2 {
			return local[:2] + strings.Repeat("*", len(local)-2) + "@" + domain
		}
		return value
	}

	cleaned := strings.NewReplacer("-", "", " ", "", "+", "").Replace(value)
	if cleaned != "" && isDigits(cleaned) {
		if len(cleaned) >= 4 {
			return strings.Repeat("*", len(cleaned)-4) + cleaned[len(cleaned)-4:]
		}
		return value
	}

	if len(value) > 4 {
		return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
	}
	return strings.Repeat("*", len(value))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ApplyMasking masks a column's cells in place; null cells pass through
// unchanged. The column becomes text regardless of its previous kind, since
// masked values are no longer numbers or times.
func (m *Masker) ApplyMasking(t *tabular.Table, column string, method Method) bool {
	col := t.ColumnIndex(column)
	if col < 0 {
		return false
	}

	kind := t.Columns[col].Kind
	for i, row := range t.Rows {
		if row[col].Null {
			continue
		}
		masked := MaskValue(row[col].Display(kind), method)
		t.Rows[i][col] = tabular.TextCell(masked)
	}
	t.Columns[col].Kind = tabular.KindText

	m.logger.Info("masking applied",
		slog.String("column", column),
		slog.String("method", string(method)))
	return true
}

// MaskTable applies a per-column method map.
func (m *Masker) MaskTable(t *tabular.Table, methods map[string]Method) []string {
	var masked []string
	for column, method := range methods {
		if m.ApplyMasking(t, column, method) {
			masked = append(masked, column)
		}
	}
	return masked
}

// AppliedMask records one auto-anonymization decision.
type AppliedMask struct {
	Column string        `json:"column"`
	Type   SensitiveType `json:"type"`
	Method Method        `json:"method"`
}

// AnonymizeTable detects sensitive columns and masks each with the method
// its type calls for: Hash for government identifiers, Partial Mask for the
// rest.
func (m *Masker) AnonymizeTable(t *tabular.Table) []AppliedMask {
	var applied []AppliedMask

	for _, sc := range m.DetectSensitiveColumns(t) {
		method := MethodPartial
		switch sc.Type {
		case TypeSSN, TypeAadhaar, TypePAN, TypeCreditCard:
			method = MethodHash
		}
		if m.ApplyMasking(t, sc.Column, method) {
			applied = append(applied, AppliedMask{Column: sc.Column, Type: sc.Type, Method: method})
		}
	}

	return applied
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
