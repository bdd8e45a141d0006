// Package intent classifies natural-language queries about a dataset so the
// chat layer can route them to the right analysis.
package intent

import (
	"regexp"
	"strings"
)

// Intent names the broad goal of a query.
type Intent string

const (
	IntentSummary       Intent = "summary"
	IntentAggregate     Intent = "aggregate"
	IntentFilter        Intent = "filter"
	IntentTrend         Intent = "trend"
	IntentComparison    Intent = "comparison"
	IntentAnomaly       Intent = "anomaly"
	IntentExport        Intent = "export"
	IntentVisualization Intent = "visualization"
	IntentPrediction    Intent = "prediction"
	IntentQuality       Intent = "quality"
	IntentGeneral       Intent = "general_query"
)

// intentPatterns is ordered so tie scores resolve the same way every run.
var intentPatterns = []struct {
	intent   Intent
	patterns []*regexp.Regexp
}{
	{IntentSummary, compileAll(`summar`, `overview`, `what.*data`, `tell me about`, `describe`)},
	{IntentAggregate, compileAll(`total`, `sum`, `average`, `mean`, `count`, `how many`, `number of`)},
	{IntentFilter, compileAll(`show.*where`, `filter`, `only`, `with`, `having`)},
	{IntentTrend, compileAll(`trend`, `over time`, `change`, `growth`, `increase`, `decrease`)},
	{IntentComparison, compileAll(`compare`, `versus`, `vs`, `difference`, `between`)},
	{IntentAnomaly, compileAll(`anomal`, `outlier`, `unusual`, `strange`, `weird`, `wrong`)},
	{IntentExport, compileAll(`export`, `download`, `save`, `generate.*file`)},
	{IntentVisualization, compileAll(`chart`, `graph`, `plot`, `visuali[sz]e`, `show.*graph`)},
	{IntentPrediction, compileAll(`predict`, `forecast`, `future`, `what will`, `expect`)},
	{IntentQuality, compileAll(`quality`, `missing`, `duplicate`, `clean`, `valid`)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Entities holds tokens pulled out of the query for downstream handlers:
// capitalized words as candidate column names, literal dates and numbers,
// and quoted values.
type Entities struct {
	Columns []string `json:"columns"`
	Values  []string `json:"values"`
	Dates   []string `json:"dates"`
	Numbers []string `json:"numbers"`
}

// Detection is the classification result. Confidence caps at 1.0 once three
// distinct patterns of the primary intent match.
type Detection struct {
	Primary         Intent   `json:"primary_intent"`
	Confidence      float64  `json:"confidence"`
	Secondary       []Intent `json:"secondary_intents,omitempty"`
	Entities        Entities `json:"entities"`
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
}

var (
	columnEntityPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	numberEntityPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	quotedValuePattern  = regexp.MustCompile(`["']([^"']+)["']`)
	dateEntityPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
		regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}`),
	}
)

// DetectIntent scores the query against every intent's pattern set and picks
// the highest scorer. A query matching nothing falls back to general_query
// at half confidence.
func DetectIntent(query string) Detection {
	lower := strings.ToLower(query)

	type scored struct {
		intent   Intent
		score    int
		patterns []string
	}
	var all []scored
	for _, entry := range intentPatterns {
		var matched []string
		for _, p := range entry.patterns {
			if p.MatchString(lower) {
				matched = append(matched, p.String())
			}
		}
		if len(matched) > 0 {
			all = append(all, scored{entry.intent, len(matched), matched})
		}
	}

	if len(all) == 0 {
		return Detection{
			Primary:    IntentGeneral,
			Confidence: 0.5,
			Entities:   extractEntities(query),
		}
	}

	primary := all[0]
	for _, s := range all[1:] {
		if s.score > primary.score {
			primary = s
		}
	}

	var secondary []Intent
	for _, s := range all {
		if s.intent != primary.intent {
			secondary = append(secondary, s.intent)
		}
	}

	confidence := float64(primary.score) / 3
	if confidence > 1 {
		confidence = 1
	}

	return Detection{
		Primary:         primary.intent,
		Confidence:      confidence,
		Secondary:       secondary,
		Entities:        extractEntities(query),
		MatchedPatterns: primary.patterns,
	}
}

func extractEntities(query string) Entities {
	e := Entities{
		Columns: columnEntityPattern.FindAllString(query, -1),
		Numbers: numberEntityPattern.FindAllString(query, -1),
	}
	for _, p := range dateEntityPatterns {
		e.Dates = append(e.Dates, p.FindAllString(query, -1)...)
	}
	for _, m := range quotedValuePattern.FindAllStringSubmatch(query, -1) {
		e.Values = append(e.Values, m[1])
	}
	return e
}

// AggregationQuery names the aggregate function the query asks for and any
// grouping columns.
type AggregationQuery struct {
	Function string   `json:"function"`
	GroupBy  []string `json:"group_by"`
}

// aggFunctions are checked in order; the first keyword hit wins.
var aggFunctions = []struct {
	name     string
	keywords []string
}{
	{"sum", []string{"sum", "total"}},
	{"mean", []string{"average", "mean"}},
	{"count", []string{"count", "number of", "how many"}},
	{"min", []string{"minimum", "min", "lowest"}},
	{"max", []string{"maximum", "max", "highest"}},
}

var groupByPatterns = []*regexp.Regexp{
	regexp.MustCompile(`by\s+(\w+)`),
	regexp.MustCompile(`for each\s+(\w+)`),
	regexp.MustCompile(`per\s+(\w+)`),
	regexp.MustCompile(`grouped by\s+(\w+)`),
}

// ParseAggregationQuery resolves which aggregate function a query asks for,
// defaulting to count, and pulls out grouping fields.
func ParseAggregationQuery(query string) AggregationQuery {
	lower := strings.ToLower(query)

	function := "count"
	for _, f := range aggFunctions {
		if containsAny(lower, f.keywords) {
			function = f.name
			break
		}
	}

	return AggregationQuery{Function: function, GroupBy: detectGroupBy(lower)}
}

func detectGroupBy(lower string) []string {
	seen := make(map[string]bool)
	var groups []string
	for _, p := range groupByPatterns {
		for _, m := range p.FindAllStringSubmatch(lower, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				groups = append(groups, m[1])
			}
		}
	}
	return groups
}

// SuggestQuery proposes a follow-up question for an intent.
func SuggestQuery(intent Intent) string {
	suggestions := map[Intent]string{
		IntentSummary:       "Would you like to see specific statistics or a detailed breakdown?",
		IntentAggregate:     "Would you like to see this aggregation by specific groups?",
		IntentFilter:        "Would you like to apply additional filters?",
		IntentTrend:         "Would you like to see trends for a specific time period?",
		IntentComparison:    "Would you like to compare additional categories?",
		IntentAnomaly:       "Would you like to investigate the anomalies further?",
		IntentExport:        "What format would you prefer for the export?",
		IntentVisualization: "What type of chart would you prefer?",
		IntentPrediction:    "What time horizon would you like for the prediction?",
		IntentQuality:       "Would you like recommendations for fixing data quality issues?",
	}
	if s, ok := suggestions[intent]; ok {
		return s
	}
	return "How else can I help you with this data?"
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
