// Package anomaly runs the five detection passes over a table: statistical
// outliers, impossible values, duplicates, activity spikes, and formatting
// inconsistencies.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/serisow/datalens/stats"
	"github.com/serisow/datalens/tabular"
)

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Finding is one detected anomaly. AffectedRows holds 0-based indices into
// the table as constructed; summary-level findings leave it empty.
type Finding struct {
	Type         string   `json:"type"`
	Column       string   `json:"column"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	Details      string   `json:"details"`
	AffectedRows []int    `json:"affected_rows"`
}

// Thresholds are the detection knobs. The defaults are the values the
// heuristics were tuned with; none of them is statistically principled, so
// they stay configurable.
type Thresholds struct {
	ZScore             float64
	IQRMultiplier      float64
	SeverityStdFactor  float64
	ExtremeValueFactor float64
	SpikeFactor        float64
	NullFractionCutoff float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ZScore:             3,
		IQRMultiplier:      1.5,
		SeverityStdFactor:  3,
		ExtremeValueFactor: 10,
		SpikeFactor:        2,
		NullFractionCutoff: 0.5,
	}
}

type Detector struct {
	logger     *slog.Logger
	thresholds Thresholds
	now        func() time.Time
}

func NewDetector(logger *slog.Logger, thresholds Thresholds) *Detector {
	return &Detector{
		logger:     logger,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Detect runs every pass in a fixed order; within a pass, columns are
// visited in table order. The table is never mutated.
func (d *Detector) Detect(t *tabular.Table) []Finding {
	if t.IsEmpty() {
		return nil
	}

	var findings []Finding
	findings = append(findings, d.statisticalOutliers(t)...)
	findings = append(findings, d.impossibleValues(t)...)
	findings = append(findings, d.duplicates(t)...)
	findings = append(findings, d.spikes(t)...)
	findings = append(findings, d.inconsistencies(t)...)

	d.logger.Info("anomaly detection completed",
		slog.Int("rows", t.NumRows()),
		slog.Int("findings", len(findings)))

	return findings
}

// statisticalOutliers unions the z-score and IQR row sets per numeric
// column. Columns with more than the null-fraction cutoff of missing values
// are skipped entirely; a degenerate standard deviation silently disables
// the z-score side only.
func (d *Detector) statisticalOutliers(t *tabular.Table) []Finding {
	var findings []Finding

	for _, col := range t.NumericColumns() {
		if float64(t.NullCount(col))/float64(t.NumRows()) > d.thresholds.NullFractionCutoff {
			continue
		}

		values, rowIdx := t.NumberValues(col)
		if len(values) == 0 {
			continue
		}

		outlierRows := make(map[int]bool)

		if zscores := stats.ZScores(values); zscores != nil {
			for i, z := range zscores {
				if math.Abs(z) > d.thresholds.ZScore {
					outlierRows[rowIdx[i]] = true
				}
			}
		}

		q1 := stats.QuantileLower(values, 0.25)
		q3 := stats.QuantileLower(values, 0.75)
		iqr := q3 - q1
		low := q1 - d.thresholds.IQRMultiplier*iqr
		high := q3 + d.thresholds.IQRMultiplier*iqr
		for i, v := range values {
			if v < low || v > high {
				outlierRows[rowIdx[i]] = true
			}
		}

		if len(outlierRows) == 0 {
			continue
		}

		mean := stats.Mean(values)

		// Severity compares the worst deviation against the spread of the
		// values that were not flagged; one extreme value should not raise
		// the yardstick it is judged by.
		var inliers []float64
		maxDeviation := 0.0
		for i, v := range values {
			if outlierRows[rowIdx[i]] {
				if dev := math.Abs(v - mean); dev > maxDeviation {
					maxDeviation = dev
				}
			} else {
				inliers = append(inliers, v)
			}
		}

		severity := SeverityHigh
		if std := stats.StdDev(inliers); !math.IsNaN(std) && std > 0 && maxDeviation <= d.thresholds.SeverityStdFactor*std {
			severity = SeverityMedium
		}

		name := t.Columns[col].Name
		findings = append(findings, Finding{
			Type:         "Statistical Outlier",
			Column:       name,
			Severity:     severity,
			Message:      fmt.Sprintf("Found %d outliers in %s", len(outlierRows), name),
			Details:      fmt.Sprintf("Values significantly differ from mean (%.2f)", mean),
			AffectedRows: sortedRows(outlierRows),
		})
	}

	return findings
}

// nonNegativeKeywords name quantities that can never be negative.
var nonNegativeKeywords = []string{"salary", "age", "price", "count", "amount"}

func (d *Detector) impossibleValues(t *tabular.Table) []Finding {
	var findings []Finding

	// Negative values in inherently non-negative columns.
	for i, col := range t.Columns {
		if col.Kind != tabular.KindNumber || !nameContainsAny(col.Name, nonNegativeKeywords) {
			continue
		}
		var rows []int
		for r, row := range t.Rows {
			if !row[i].Null && row[i].Number < 0 {
				rows = append(rows, r)
			}
		}
		if len(rows) > 0 {
			findings = append(findings, Finding{
				Type:         "Impossible Value",
				Column:       col.Name,
				Severity:     SeverityHigh,
				Message:      fmt.Sprintf("Found %d negative values in %s", len(rows), col.Name),
				Details:      fmt.Sprintf("%s should not contain negative values", col.Name),
				AffectedRows: rows,
			})
		}
	}

	// Dates strictly in the future.
	now := d.now()
	for i, col := range t.Columns {
		if !strings.Contains(strings.ToLower(col.Name), "date") {
			continue
		}
		var rows []int
		for r, row := range t.Rows {
			if row[i].Null {
				continue
			}
			var ts time.Time
			switch col.Kind {
			case tabular.KindTime:
				ts = row[i].Time
			case tabular.KindText:
				parsed, err := dateparse.ParseAny(row[i].Text)
				if err != nil {
					continue
				}
				ts = parsed
			default:
				continue
			}
			if ts.After(now) {
				rows = append(rows, r)
			}
		}
		if len(rows) > 0 {
			findings = append(findings, Finding{
				Type:         "Impossible Date",
				Column:       col.Name,
				Severity:     SeverityHigh,
				Message:      fmt.Sprintf("Found %d future dates in %s", len(rows), col.Name),
				Details:      "Dates are in the future",
				AffectedRows: rows,
			})
		}
	}

	// Ages outside the typical working range.
	for i, col := range t.Columns {
		if col.Kind != tabular.KindNumber || !strings.Contains(strings.ToLower(col.Name), "age") {
			continue
		}
		var rows []int
		for r, row := range t.Rows {
			if !row[i].Null && (row[i].Number < 18 || row[i].Number > 100) {
				rows = append(rows, r)
			}
		}
		if len(rows) > 0 {
			findings = append(findings, Finding{
				Type:         "Unrealistic Value",
				Column:       col.Name,
				Severity:     SeverityMedium,
				Message:      fmt.Sprintf("Found %d unrealistic age values in %s", len(rows), col.Name),
				Details:      "Ages are outside typical working range (18-100)",
				AffectedRows: rows,
			})
		}
	}

	return findings
}

func (d *Detector) duplicates(t *tabular.Table) []Finding {
	var findings []Finding

	if dups := t.DuplicateRows(); len(dups) > 0 {
		findings = append(findings, Finding{
			Type:         "Duplicate Records",
			Column:       "All columns",
			Severity:     SeverityMedium,
			Message:      fmt.Sprintf("Found %d duplicate records", len(dups)),
			Details:      "Complete row duplicates detected",
			AffectedRows: dups,
		})
	}

	for i, col := range t.Columns {
		lower := strings.ToLower(col.Name)
		var severity Severity
		var label string
		switch {
		case strings.Contains(lower, "phone"):
			severity, label = SeverityLow, "phone numbers"
		case strings.Contains(lower, "email"):
			severity, label = SeverityMedium, "email addresses"
		default:
			continue
		}

		rows := t.DuplicateValueRows(i)
		if len(rows) == 0 {
			continue
		}
		findings = append(findings, Finding{
			Type:         "Duplicate Values",
			Column:       col.Name,
			Severity:     severity,
			Message:      fmt.Sprintf("Found %d duplicate %s", len(rows), label),
			Details:      fmt.Sprintf("Same value used by multiple records in %s", col.Name),
			AffectedRows: rows,
		})
	}

	return findings
}

// spikes flags days whose record count exceeds the configured factor of a
// centered 3-day rolling mean. It only runs when the table has a time
// column; the finding is summary-level, with no row attribution.
func (d *Detector) spikes(t *tabular.Table) []Finding {
	timeCols := t.TimeColumns()
	if len(timeCols) == 0 {
		return nil
	}
	col := timeCols[0]

	values, _ := t.TimeValues(col)
	if len(values) == 0 {
		return nil
	}

	counts := make(map[time.Time]int)
	minDay := truncateDay(values[0])
	maxDay := minDay
	for _, ts := range values {
		day := truncateDay(ts)
		counts[day]++
		if day.Before(minDay) {
			minDay = day
		}
		if day.After(maxDay) {
			maxDay = day
		}
	}

	// Daily series over the full range; days without records count zero.
	var daily []int
	for day := minDay; !day.After(maxDay); day = day.AddDate(0, 0, 1) {
		daily = append(daily, counts[day])
	}
	if len(daily) <= 3 {
		return nil
	}

	// Centered rolling mean; edge days have no full window and are never
	// eligible.
	spikeCount := 0
	for i := 1; i < len(daily)-1; i++ {
		rolling := float64(daily[i-1]+daily[i]+daily[i+1]) / 3
		if float64(daily[i]) > d.thresholds.SpikeFactor*rolling {
			spikeCount++
		}
	}
	if spikeCount == 0 {
		return nil
	}

	name := t.Columns[col].Name
	return []Finding{{
		Type:     "Activity Spike",
		Column:   name,
		Severity: SeverityMedium,
		Message:  fmt.Sprintf("Detected %d unusual activity spikes", spikeCount),
		Details:  fmt.Sprintf("Activity levels more than %gx normal on certain dates", d.thresholds.SpikeFactor),
	}}
}

func (d *Detector) inconsistencies(t *tabular.Table) []Finding {
	var findings []Finding

	for _, col := range t.TextColumns() {
		values := t.TextValues(col)
		if len(values) == 0 {
			continue
		}

		distinct := make(map[string]bool, len(values))
		lowered := make(map[string]bool, len(values))
		for _, v := range values {
			distinct[v] = true
			lowered[strings.ToLower(v)] = true
		}

		if len(distinct) > len(lowered) {
			diff := len(distinct) - len(lowered)
			name := t.Columns[col].Name
			findings = append(findings, Finding{
				Type:     "Inconsistent Formatting",
				Column:   name,
				Severity: SeverityLow,
				Message:  fmt.Sprintf("Found %d case inconsistencies in %s", diff, name),
				Details:  "Same values with different capitalization",
			})
		}
	}

	for i, col := range t.Columns {
		if col.Kind != tabular.KindNumber || !strings.Contains(strings.ToLower(col.Name), "salary") {
			continue
		}
		values, rowIdx := t.NumberValues(i)
		if len(values) == 0 {
			continue
		}
		mean := stats.Mean(values)
		var rows []int
		for j, v := range values {
			if v > d.thresholds.ExtremeValueFactor*mean {
				rows = append(rows, rowIdx[j])
			}
		}
		if len(rows) > 0 {
			findings = append(findings, Finding{
				Type:         "Extreme Value",
				Column:       col.Name,
				Severity:     SeverityHigh,
				Message:      fmt.Sprintf("%d records have salary %gx higher than average", len(rows), d.thresholds.ExtremeValueFactor),
				Details:      fmt.Sprintf("Average salary: %.2f", mean),
				AffectedRows: rows,
			})
		}
	}

	return findings
}

// Summary aggregates findings by severity and type.
type Summary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByType     map[string]int   `json:"by_type"`
}

func Summarize(findings []Finding) Summary {
	summary := Summary{
		Total:      len(findings),
		BySeverity: make(map[Severity]int),
		ByType:     make(map[string]int),
	}
	for _, f := range findings {
		summary.BySeverity[f.Severity]++
		summary.ByType[f.Type]++
	}
	return summary
}

func sortedRows(set map[int]bool) []int {
	rows := make([]int, 0, len(set))
	for r := range set {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	return rows
}

func nameContainsAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncateDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}
