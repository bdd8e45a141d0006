// Package quality scores a table along the dimensions the governance surface
// reports: completeness, consistency, duplicate and anomaly risk, validity,
// and an overall accuracy estimate.
package quality

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/serisow/datalens/stats"
	"github.com/serisow/datalens/tabular"
)

// Risk is a coarse risk level. RiskNA is reported for empty tables, where the
// underlying ratio is undefined.
type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
	RiskNA     Risk = "N/A"
)

// Scores holds one full scoring pass. Numeric scores are percentages in
// [0,100]; an empty table scores vacuously complete.
type Scores struct {
	Completeness     float64 `json:"completeness"`
	Consistency      float64 `json:"consistency"`
	DuplicateRisk    Risk    `json:"duplicate_risk"`
	AnomalyRisk      Risk    `json:"anomaly_risk"`
	Validity         float64 `json:"validity"`
	AccuracyEstimate float64 `json:"accuracy_estimate"`
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]{10,}$`)
)

type Checker struct{}

func NewChecker() *Checker {
	return &Checker{}
}

// CalculateScores computes every metric in one pass over the table. The
// table is never mutated.
func (c *Checker) CalculateScores(t *tabular.Table) Scores {
	return Scores{
		Completeness:     c.completeness(t),
		Consistency:      c.consistency(t),
		DuplicateRisk:    c.duplicateRisk(t),
		AnomalyRisk:      c.anomalyRisk(t),
		Validity:         c.validity(t),
		AccuracyEstimate: c.accuracyEstimate(t),
	}
}

// completeness is the percentage of non-null cells. A table with no cells is
// vacuously complete.
func (c *Checker) completeness(t *tabular.Table) float64 {
	total := t.NumRows() * t.NumCols()
	if total == 0 {
		return 100
	}
	nulls := 0
	for col := range t.Columns {
		nulls += t.NullCount(col)
	}
	return stats.Round2(float64(total-nulls) / float64(total) * 100)
}

// consistency starts at 100 and is penalized for mixed numeric/text columns
// and for case-only duplicate collisions in text columns.
func (c *Checker) consistency(t *tabular.Table) float64 {
	score := 100.0

	for _, col := range t.TextColumns() {
		values := t.TextValues(col)
		if len(values) == 0 {
			continue
		}

		numericCount := 0
		for _, v := range values {
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				numericCount++
			}
		}
		if numericCount > 0 && numericCount < len(values) {
			score -= float64(numericCount) / float64(len(values)) * 10
		}

		distinct := distinctCount(values, false)
		lowered := distinctCount(values, true)
		if distinct > lowered {
			score -= float64(distinct-lowered) / float64(distinct) * 5
		}
	}

	if score < 0 {
		score = 0
	}
	return stats.Round2(score)
}

func (c *Checker) duplicateRisk(t *tabular.Table) Risk {
	if t.NumRows() == 0 {
		return RiskNA
	}
	ratio := float64(len(t.DuplicateRows())) / float64(t.NumRows())
	switch {
	case ratio == 0:
		return RiskLow
	case ratio < 0.05:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// anomalyRisk sums per-column z-score outlier fractions across numeric
// columns. Columns with a degenerate standard deviation contribute nothing.
func (c *Checker) anomalyRisk(t *tabular.Table) Risk {
	if t.NumRows() == 0 {
		return RiskNA
	}

	riskScore := 0.0
	for _, col := range t.NumericColumns() {
		values, _ := t.NumberValues(col)
		outliers := sampleZOutliers(values)
		if outliers > 0 {
			riskScore += float64(outliers) / float64(t.NumRows())
		}
	}

	switch {
	case riskScore == 0:
		return RiskLow
	case riskScore < 0.05:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// validity starts at 100 and is penalized per email-named and phone-named
// column by the fraction of values failing the respective pattern.
func (c *Checker) validity(t *tabular.Table) float64 {
	score := 100.0

	for i, col := range t.Columns {
		lower := strings.ToLower(col.Name)
		var pattern *regexp.Regexp
		switch {
		case strings.Contains(lower, "email"):
			pattern = emailPattern
		case strings.Contains(lower, "phone"):
			pattern = phonePattern
		default:
			continue
		}

		total := 0
		valid := 0
		for _, row := range t.Rows {
			if row[i].Null {
				continue
			}
			total++
			if pattern.MatchString(row[i].Display(col.Kind)) {
				valid++
			}
		}
		if total > 0 {
			score -= (1 - float64(valid)/float64(total)) * 10
		}
	}

	if score < 0 {
		score = 0
	}
	return stats.Round2(score)
}

// accuracyEstimate scales completeness by itself, then penalizes duplicates
// and the mean per-column outlier fraction.
func (c *Checker) accuracyEstimate(t *tabular.Table) float64 {
	completeness := c.completeness(t)
	score := completeness * (completeness / 100)

	if t.NumRows() > 0 {
		duplicateRatio := float64(len(t.DuplicateRows())) / float64(t.NumRows())
		score -= duplicateRatio * 20
	}

	numericCols := t.NumericColumns()
	if len(numericCols) > 0 && t.NumRows() > 0 {
		outlierRatio := 0.0
		for _, col := range numericCols {
			values, _ := t.NumberValues(col)
			outlierRatio += float64(sampleZOutliers(values)) / float64(t.NumRows())
		}
		outlierRatio /= float64(len(numericCols))
		score -= outlierRatio * 15
	}

	if score < 0 {
		score = 0
	}
	return stats.Round2(score)
}

// sampleZOutliers counts values more than 3 sample standard deviations from
// the mean. Zero or undefined deviation counts no outliers.
func sampleZOutliers(values []float64) int {
	std := stats.StdDev(values)
	if std == 0 || std != std {
		return 0
	}
	mean := stats.Mean(values)
	count := 0
	for _, v := range values {
		z := (v - mean) / std
		if z < 0 {
			z = -z
		}
		if z > 3 {
			count++
		}
	}
	return count
}

func distinctCount(values []string, lower bool) int {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if lower {
			v = strings.ToLower(v)
		}
		seen[v] = true
	}
	return len(seen)
}

// Recommendation is an actionable quality improvement suggestion.
type Recommendation struct {
	Priority       string `json:"priority"`
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

// Report is a full quality pass: the scores, their average, and what to do
// about them.
type Report struct {
	OverallScore    float64          `json:"overall_score"`
	Scores          Scores           `json:"scores"`
	Recommendations []Recommendation `json:"recommendations"`
}

// GenerateReport scores the table and derives prioritized recommendations.
func (c *Checker) GenerateReport(t *tabular.Table) Report {
	scores := c.CalculateScores(t)

	report := Report{
		OverallScore: stats.Round2((scores.Completeness + scores.Consistency + scores.Validity + scores.AccuracyEstimate) / 4),
		Scores:       scores,
	}

	if scores.Completeness < 90 {
		var missing []string
		for i, col := range t.Columns {
			if t.NullCount(i) > 0 {
				missing = append(missing, col.Name)
			}
		}
		if len(missing) > 5 {
			missing = missing[:5]
		}
		report.Recommendations = append(report.Recommendations, Recommendation{
			Priority:       "High",
			Issue:          "Low completeness",
			Recommendation: fmt.Sprintf("Fill missing values in columns: %s", strings.Join(missing, ", ")),
		})
	}
	if scores.Consistency < 85 {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Priority:       "Medium",
			Issue:          "Inconsistent formatting",
			Recommendation: "Standardize text formatting and data types",
		})
	}
	if scores.DuplicateRisk == RiskMedium || scores.DuplicateRisk == RiskHigh {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Priority:       "High",
			Issue:          "Duplicate records detected",
			Recommendation: "Review and remove duplicate entries",
		})
	}
	if scores.AnomalyRisk == RiskMedium || scores.AnomalyRisk == RiskHigh {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Priority:       "Medium",
			Issue:          "Anomalies detected",
			Recommendation: "Investigate and validate outlier values",
		})
	}
	if scores.Validity < 90 {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Priority:       "High",
			Issue:          "Invalid data values",
			Recommendation: "Validate email addresses and phone numbers",
		})
	}

	return report
}

// ColumnMetrics are per-column quality numbers for the deep-dive view.
type ColumnMetrics struct {
	Completeness float64  `json:"completeness"`
	Uniqueness   float64  `json:"uniqueness"`
	DataType     string   `json:"data_type"`
	Mean         *float64 `json:"mean,omitempty"`
	Median       *float64 `json:"median,omitempty"`
	StdDev       *float64 `json:"std,omitempty"`
	Outliers     *int     `json:"outliers,omitempty"`
}

// ColumnQuality computes metrics for one column; ok is false when the column
// does not exist.
func (c *Checker) ColumnQuality(t *tabular.Table, column string) (ColumnMetrics, bool) {
	col := t.ColumnIndex(column)
	if col < 0 || t.NumRows() == 0 {
		return ColumnMetrics{}, false
	}

	nonNull := t.NumRows() - t.NullCount(col)

	distinct := make(map[string]bool, t.NumRows())
	for _, row := range t.Rows {
		if !row[col].Null {
			distinct[row[col].Display(t.Columns[col].Kind)] = true
		}
	}

	metrics := ColumnMetrics{
		Completeness: stats.Round2(float64(nonNull) / float64(t.NumRows()) * 100),
		Uniqueness:   stats.Round2(float64(len(distinct)) / float64(t.NumRows()) * 100),
		DataType:     t.Columns[col].Kind.String(),
	}

	if t.Columns[col].Kind == tabular.KindNumber {
		values, _ := t.NumberValues(col)
		if len(values) > 0 {
			mean := stats.Round2(stats.Mean(values))
			median := stats.Round2(stats.Median(values))
			std := stats.Round2(stats.StdDev(values))
			outliers := sampleZOutliers(values)
			metrics.Mean = &mean
			metrics.Median = &median
			metrics.StdDev = &std
			metrics.Outliers = &outliers
		}
	}

	return metrics, true
}
