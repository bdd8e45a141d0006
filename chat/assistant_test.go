package chat

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/serisow/datalens/anomaly"
	"github.com/serisow/datalens/quality"
	"github.com/serisow/datalens/tabular"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAssistant() *Assistant {
	logger := testLogger()
	return NewAssistant(logger, quality.NewChecker(), anomaly.NewDetector(logger, anomaly.DefaultThresholds()))
}

func buildTable(t *testing.T, text string) *tabular.Table {
	t.Helper()
	return tabular.NewBuilder(testLogger()).ParseTable(text, tabular.Options{Delimiter: ","})
}

func TestAnswer_NilTable(t *testing.T) {
	resp := testAssistant().Answer("summarize the data", nil)
	if !strings.Contains(resp.Text, "upload data first") {
		t.Errorf("nil table response = %q, want upload prompt", resp.Text)
	}
}

func TestAnswer_Summary(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,45000\nCarol,200000")
	resp := testAssistant().Answer("give me an overview of the data", table)

	if resp.Intent != "summary" {
		t.Fatalf("intent = %s, want summary", resp.Intent)
	}
	if !strings.Contains(resp.Text, "Total Records: 3") {
		t.Errorf("summary missing record count: %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "Salary: Mean = 98333.33") {
		t.Errorf("summary missing salary mean: %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "Name: 3 unique values") {
		t.Errorf("summary missing text column stats: %q", resp.Text)
	}
}

func TestAnswer_AggregateSum(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,45000")
	resp := testAssistant().Answer("what is the total salary?", table)

	if resp.Intent != "aggregate" {
		t.Fatalf("intent = %s, want aggregate", resp.Intent)
	}
	if resp.Text != "Sum of Salary: 95000.00" {
		t.Errorf("aggregate response = %q", resp.Text)
	}
}

func TestAnswer_AggregateDefaultsToFirstNumeric(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,45000")
	resp := testAssistant().Answer("what is the average?", table)
	if resp.Text != "Average of Salary: 47500.00" {
		t.Errorf("aggregate response = %q", resp.Text)
	}
}

func TestAnswer_TrendWithoutDates(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000")
	resp := testAssistant().Answer("show me the trend over time", table)
	if !strings.Contains(resp.Text, "couldn't find any date columns") {
		t.Errorf("trend response = %q", resp.Text)
	}
}

func TestAnswer_TrendSuggestsDateNamedColumns(t *testing.T) {
	table := buildTable(t, "OrderDate,Amount\nnot-a-date,100")
	resp := testAssistant().Answer("show me the trend over time", table)
	if !strings.Contains(resp.Text, "potential date columns: OrderDate") {
		t.Errorf("trend response = %q", resp.Text)
	}
}

func TestAnswer_Anomalies(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,45000\nCarol,200000")
	resp := testAssistant().Answer("are there any outliers?", table)

	if !strings.Contains(resp.Text, "potential issues") {
		t.Errorf("anomaly response = %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "Statistical Outlier") {
		t.Errorf("anomaly response missing finding type: %q", resp.Text)
	}
}

func TestAnswer_AnomaliesClean(t *testing.T) {
	table := buildTable(t, "Name,Score\nAlice,10\nBob,11\nCarol,12")
	resp := testAssistant().Answer("anything unusual?", table)
	if !strings.Contains(resp.Text, "didn't find any significant anomalies") {
		t.Errorf("clean anomaly response = %q", resp.Text)
	}
}

func TestAnswer_Quality(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,abc\nCarol,45000")
	resp := testAssistant().Answer("any data quality issues?", table)

	if !strings.Contains(resp.Text, "Data Quality Report") {
		t.Errorf("quality response = %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "columns with missing data: Salary") {
		t.Errorf("quality response missing null column: %q", resp.Text)
	}
}

func TestAnswer_GeneralColumns(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000")
	resp := testAssistant().Answer("which columns do I have?", table)
	if !strings.Contains(resp.Text, "2 columns: Name, Salary") {
		t.Errorf("general response = %q", resp.Text)
	}
}

func TestAnswer_GeneralRows(t *testing.T) {
	table := buildTable(t, "Name\nAlice\nBob")
	resp := testAssistant().Answer("row details please", table)
	if !strings.Contains(resp.Text, "2 rows") {
		t.Errorf("general response = %q", resp.Text)
	}
}

func TestAnswer_Insights(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,45000\nAlice,50000")
	resp := testAssistant().Answer("tell me something interesting", table)

	if !strings.Contains(resp.Text, "3 records across 2 columns") {
		t.Errorf("insights missing shape: %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "Found 1 duplicate records") {
		t.Errorf("insights missing duplicates: %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "'Salary' shows the highest variation") {
		t.Errorf("insights missing variation: %q", resp.Text)
	}
}

func TestSuggestedQuestions(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000")
	got := testAssistant().SuggestedQuestions(table)

	found := false
	for _, q := range got {
		if q == "What's the total Salary?" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions = %v, want a total Salary question", got)
	}
}

func TestWithCommas(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := withCommas(tt.n); got != tt.want {
			t.Errorf("withCommas(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
