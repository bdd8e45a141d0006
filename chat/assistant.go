// Package chat turns classified queries into natural-language answers
// computed from the session's table.
package chat

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/serisow/datalens/anomaly"
	"github.com/serisow/datalens/intent"
	"github.com/serisow/datalens/quality"
	"github.com/serisow/datalens/stats"
	"github.com/serisow/datalens/tabular"
)

// Assistant answers dataset questions by routing each detected intent to a
// dedicated handler.
type Assistant struct {
	logger   *slog.Logger
	checker  *quality.Checker
	detector *anomaly.Detector
}

func NewAssistant(logger *slog.Logger, checker *quality.Checker, detector *anomaly.Detector) *Assistant {
	return &Assistant{logger: logger, checker: checker, detector: detector}
}

// Response is one answer plus a suggested follow-up question.
type Response struct {
	Text       string  `json:"text"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	FollowUp   string  `json:"follow_up"`
}

// Answer classifies the query and generates a reply from the table. A nil
// table short-circuits with an upload prompt.
func (a *Assistant) Answer(query string, t *tabular.Table) Response {
	det := intent.DetectIntent(query)

	if t == nil {
		return Response{
			Text:       "Please upload data first before I can help you analyze it.",
			Intent:     string(det.Primary),
			Confidence: det.Confidence,
			FollowUp:   intent.SuggestQuery(det.Primary),
		}
	}

	var text string
	switch det.Primary {
	case intent.IntentSummary:
		text = a.summarize(t)
	case intent.IntentAggregate:
		text = a.aggregate(query, t)
	case intent.IntentFilter:
		text = "I can help you filter the data. Please use the transform endpoint to apply filters, or ask me a more specific question about what you'd like to see."
	case intent.IntentTrend:
		text = a.trend(t)
	case intent.IntentAnomaly:
		text = a.anomalies(t)
	case intent.IntentQuality:
		text = a.qualityReport(t)
	default:
		text = a.general(query, t)
	}

	a.logger.Info("chat query answered",
		slog.String("intent", string(det.Primary)),
		slog.Float64("confidence", det.Confidence))

	return Response{
		Text:       text,
		Intent:     string(det.Primary),
		Confidence: det.Confidence,
		FollowUp:   intent.SuggestQuery(det.Primary),
	}
}

func (a *Assistant) summarize(t *tabular.Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset Summary\n")
	fmt.Fprintf(&b, "- Total Records: %s\n", withCommas(len(t.Rows)))
	fmt.Fprintf(&b, "- Total Columns: %d\n", t.NumCols())

	numeric := t.NumericColumns()
	if len(numeric) > 0 {
		fmt.Fprintf(&b, "\nNumeric Columns: %d\n", len(numeric))
		for _, col := range firstN(numeric, 3) {
			values, _ := t.NumberValues(col)
			fmt.Fprintf(&b, "  - %s: Mean = %.2f, Range = [%.2f, %.2f]\n",
				t.Columns[col].Name, stats.Mean(values), stats.Min(values), stats.Max(values))
		}
	}

	text := t.TextColumns()
	if len(text) > 0 {
		fmt.Fprintf(&b, "\nText Columns: %d\n", len(text))
		for _, col := range firstN(text, 3) {
			fmt.Fprintf(&b, "  - %s: %d unique values\n", t.Columns[col].Name, uniqueCount(t, col))
		}
	}

	if missing := totalNulls(t); missing > 0 {
		fmt.Fprintf(&b, "\nWarning: missing values detected: %d", missing)
	}

	return strings.TrimRight(b.String(), "\n")
}

func (a *Assistant) aggregate(query string, t *tabular.Table) string {
	lower := strings.ToLower(query)

	var fn, label string
	switch {
	case strings.Contains(lower, "sum") || strings.Contains(lower, "total"):
		fn, label = "sum", "Sum"
	case strings.Contains(lower, "average") || strings.Contains(lower, "mean"):
		fn, label = "mean", "Average"
	case strings.Contains(lower, "count") || strings.Contains(lower, "how many"):
		fn, label = "count", "Count"
	case strings.Contains(lower, "max") || strings.Contains(lower, "highest"):
		fn, label = "max", "Maximum"
	case strings.Contains(lower, "min") || strings.Contains(lower, "lowest"):
		fn, label = "min", "Minimum"
	default:
		fn, label = "count", "Count"
	}

	numeric := t.NumericColumns()

	target := -1
	for _, col := range numeric {
		if strings.Contains(lower, strings.ToLower(t.Columns[col].Name)) {
			target = col
			break
		}
	}
	if target < 0 && len(numeric) > 0 {
		target = numeric[0]
	}
	if target < 0 {
		return fmt.Sprintf("I couldn't find a numeric column to calculate %s. Available numeric columns: None", label)
	}

	values, _ := t.NumberValues(target)
	var result float64
	switch fn {
	case "sum":
		result = stats.Sum(values)
	case "mean":
		result = stats.Mean(values)
	case "count":
		result = float64(len(values))
	case "max":
		result = stats.Max(values)
	case "min":
		result = stats.Min(values)
	}

	return fmt.Sprintf("%s of %s: %.2f", label, t.Columns[target].Name, result)
}

func (a *Assistant) trend(t *tabular.Table) string {
	timeCols := t.TimeColumns()
	if len(timeCols) == 0 {
		var candidates []string
		for _, col := range t.ColumnNames() {
			if strings.Contains(strings.ToLower(col), "date") {
				candidates = append(candidates, col)
			}
		}
		if len(candidates) > 0 {
			return fmt.Sprintf("I found potential date columns: %s. Please convert them to date format first using the transform endpoint.", strings.Join(candidates, ", "))
		}
		return "I couldn't find any date columns to analyze trends. Please ensure your data has date information."
	}

	numeric := t.NumericColumns()
	if len(numeric) == 0 {
		return "No numeric columns found to analyze trends."
	}

	dateCol := timeCols[0]
	metricCol := numeric[0]
	metric := t.Columns[metricCol].Name

	// Order rows by the time column, then compare the first and last
	// non-null metric values.
	order := make([]int, 0, len(t.Rows))
	for i, row := range t.Rows {
		if !row[dateCol].Null {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return t.Rows[order[i]][dateCol].Time.Before(t.Rows[order[j]][dateCol].Time)
	})

	var series []float64
	for _, i := range order {
		if !t.Rows[i][metricCol].Null {
			series = append(series, t.Rows[i][metricCol].Number)
		}
	}
	if len(series) < 2 {
		return "Not enough data points to analyze a trend."
	}

	first, last := series[0], series[len(series)-1]
	change := last - first
	changePct := 0.0
	if first != 0 {
		changePct = change / first * 100
	}
	direction := "decreased"
	if change > 0 {
		direction = "increased"
	}
	if changePct < 0 {
		changePct = -changePct
	}

	return fmt.Sprintf("Trend Analysis:\n\n%s has %s by %.1f%% over the time period.\n\n- Start: %.2f\n- End: %.2f\n- Change: %+.2f",
		metric, direction, changePct, first, last, change)
}

func (a *Assistant) anomalies(t *tabular.Table) string {
	findings := a.detector.Detect(t)
	if len(findings) == 0 {
		return "Good news! I didn't find any significant anomalies in your data."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d potential issues:\n\n", len(findings))
	for i, f := range findings {
		if i == 5 {
			break
		}
		column := f.Column
		if column == "" {
			column = "data"
		}
		fmt.Fprintf(&b, "%d. %s in %s\n   - %s\n   - Severity: %s\n\n", i+1, f.Type, column, f.Message, f.Severity)
	}
	if len(findings) > 5 {
		fmt.Fprintf(&b, "...and %d more. Check the anomalies endpoint for full details.", len(findings)-5)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assistant) qualityReport(t *tabular.Table) string {
	scores := a.checker.CalculateScores(t)

	var b strings.Builder
	b.WriteString("Data Quality Report\n\n")

	fmt.Fprintf(&b, "- Completeness: %v%% %s\n", scores.Completeness, okOrWarn(scores.Completeness > 90))
	fmt.Fprintf(&b, "- Consistency: %v%% %s\n", scores.Consistency, okOrWarn(scores.Consistency > 85))
	fmt.Fprintf(&b, "- Duplicate Risk: %s\n", scores.DuplicateRisk)
	fmt.Fprintf(&b, "- Anomaly Risk: %s\n", scores.AnomalyRisk)

	var missingCols []string
	for i, col := range t.Columns {
		if t.NullCount(i) > 0 {
			missingCols = append(missingCols, col.Name)
		}
	}
	if len(missingCols) > 0 {
		fmt.Fprintf(&b, "\nWarning: columns with missing data: %s", strings.Join(firstNames(missingCols, 5), ", "))
	}

	if dups := len(t.DuplicateRows()); dups > 0 {
		fmt.Fprintf(&b, "\nWarning: found %d duplicate rows", dups)
	}

	return strings.TrimRight(b.String(), "\n")
}

func (a *Assistant) general(query string, t *tabular.Table) string {
	lower := strings.ToLower(query)

	switch {
	case strings.Contains(lower, "column"):
		cols := t.ColumnNames()
		extra := ""
		if len(cols) > 10 {
			extra = fmt.Sprintf(" (and %d more)", len(cols)-10)
		}
		return fmt.Sprintf("Your dataset has %d columns: %s%s", len(cols), strings.Join(firstNames(cols, 10), ", "), extra)
	case strings.Contains(lower, "row"):
		return fmt.Sprintf("Your dataset has %s rows.", withCommas(len(t.Rows)))
	case strings.Contains(lower, "help"):
		return helpMessage
	case strings.Contains(lower, "insight") || strings.Contains(lower, "tell me"):
		return a.insights(t)
	default:
		return "I'm not sure I understand. You can ask me about:\n- Data summary\n- Aggregations (sum, average, count, etc.)\n- Trends over time\n- Data quality issues\n- Anomalies\n\nOr simply ask 'help' for more options."
	}
}

const helpMessage = `I can help you with:

Data Analysis
- "Give me a summary of the data"
- "What's the total/average/count of [column]?"
- "Show me trends"

Data Quality
- "Are there any data quality issues?"
- "Find anomalies"
- "Check for duplicates"

Insights
- "What are the key insights?"
- "Tell me something interesting about this data"

Just ask in natural language and I'll do my best to help!`

func (a *Assistant) insights(t *tabular.Table) string {
	var insights []string

	insights = append(insights, fmt.Sprintf("Your dataset contains %s records across %d columns.",
		withCommas(len(t.Rows)), t.NumCols()))

	size := len(t.Rows) * t.NumCols()
	completeness := 100.0
	if size > 0 {
		completeness = (1 - float64(totalNulls(t))/float64(size)) * 100
	}
	switch {
	case completeness > 95:
		insights = append(insights, fmt.Sprintf("Data is %.1f%% complete - excellent!", completeness))
	case completeness > 80:
		insights = append(insights, fmt.Sprintf("Data is %.1f%% complete - some missing values detected.", completeness))
	default:
		insights = append(insights, fmt.Sprintf("Data is only %.1f%% complete - significant gaps found.", completeness))
	}

	// Coefficient of variation singles out the most volatile metric.
	mostVaried, bestCV := "", 0.0
	for _, col := range t.NumericColumns() {
		values, _ := t.NumberValues(col)
		mean := stats.Mean(values)
		if mean == 0 {
			continue
		}
		cv := stats.StdDev(values) / mean
		if mostVaried == "" || cv > bestCV {
			mostVaried, bestCV = t.Columns[col].Name, cv
		}
	}
	if mostVaried != "" {
		insights = append(insights, fmt.Sprintf("'%s' shows the highest variation in your data.", mostVaried))
	}

	if dups := len(t.DuplicateRows()); dups > 0 {
		insights = append(insights, fmt.Sprintf("Found %d duplicate records that may need review.", dups))
	} else {
		insights = append(insights, "No duplicate records found.")
	}

	return strings.Join(insights, "\n\n")
}

// SuggestedQuestions proposes starter questions matching the table's shape.
func (a *Assistant) SuggestedQuestions(t *tabular.Table) []string {
	suggestions := []string{
		"What's the summary of this data?",
		"Are there any data quality issues?",
		"Show me key insights",
	}
	if numeric := t.NumericColumns(); len(numeric) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("What's the total %s?", t.Columns[numeric[0]].Name))
	}
	if len(t.TimeColumns()) > 0 {
		suggestions = append(suggestions, "Show me trends over time")
	}
	return suggestions
}

func uniqueCount(t *tabular.Table, col int) int {
	values := t.TextValues(col)
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		seen[v] = true
	}
	return len(seen)
}

func totalNulls(t *tabular.Table) int {
	total := 0
	for i := range t.Columns {
		total += t.NullCount(i)
	}
	return total
}

func firstN(s []int, n int) []int {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func firstNames(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func okOrWarn(ok bool) string {
	if ok {
		return "(ok)"
	}
	return "(warning)"
}

// withCommas renders an integer with thousands separators.
func withCommas(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
