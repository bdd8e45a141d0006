package transform

import (
	"log/slog"
	"os"
	"testing"

	"github.com/serisow/datalens/tabular"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testTransformer() *Transformer {
	return NewTransformer(testLogger())
}

func buildTable(t *testing.T, text string) *tabular.Table {
	t.Helper()
	return tabular.NewBuilder(testLogger()).ParseTable(text, tabular.Options{Delimiter: ","})
}

func TestApplyMappings_SingleSource(t *testing.T) {
	table := buildTable(t, "First,Last,Salary\nalice,smith,50000")

	out, err := testTransformer().ApplyMappings(table, []Mapping{
		{Name: "Pay", Sources: []string{"Salary"}, Transform: TransformNone},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.NumCols() != 1 || out.Columns[0].Name != "Pay" {
		t.Fatalf("columns = %v", out.ColumnNames())
	}
	if out.Columns[0].Kind != tabular.KindNumber {
		t.Errorf("kind = %v, want number preserved", out.Columns[0].Kind)
	}
	if out.Rows[0][0].Number != 50000 {
		t.Errorf("value = %v, want 50000", out.Rows[0][0].Number)
	}
}

func TestApplyMappings_JoinAndTransform(t *testing.T) {
	table := buildTable(t, "First,Last\nalice,smith\nbob,jones")

	out, err := testTransformer().ApplyMappings(table, []Mapping{
		{Name: "Full Name", Sources: []string{"First", "Last"}, Separator: " ", Transform: TransformTitleCase},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Rows[0][0].Text; got != "Alice Smith" {
		t.Errorf("row 0 = %q, want Alice Smith", got)
	}
	if got := out.Rows[1][0].Text; got != "Bob Jones" {
		t.Errorf("row 1 = %q, want Bob Jones", got)
	}
	if out.Columns[0].Kind != tabular.KindText {
		t.Errorf("joined column kind = %v, want text", out.Columns[0].Kind)
	}
}

func TestApplyMappings_SkipsEmptyAndRejectsUnknown(t *testing.T) {
	table := buildTable(t, "Name\nAlice")
	tr := testTransformer()

	out, err := tr.ApplyMappings(table, []Mapping{
		{Name: "Empty"},
		{Name: "Kept", Sources: []string{"Name"}, Transform: TransformUppercase},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.NumCols() != 1 {
		t.Fatalf("columns = %v, want just Kept", out.ColumnNames())
	}
	if out.Rows[0][0].Text != "ALICE" {
		t.Errorf("value = %q, want ALICE", out.Rows[0][0].Text)
	}

	if _, err := tr.ApplyMappings(table, []Mapping{{Name: "X", Sources: []string{"Missing"}}}); err == nil {
		t.Error("expected error for unknown source column")
	}
}

func TestApplyMappings_DoesNotMutateInput(t *testing.T) {
	table := buildTable(t, "Name\nalice")
	if _, err := testTransformer().ApplyMappings(table, []Mapping{
		{Name: "Name", Sources: []string{"Name"}, Transform: TransformUppercase},
	}); err != nil {
		t.Fatal(err)
	}
	if table.Rows[0][0].Text != "alice" {
		t.Errorf("input mutated: %q", table.Rows[0][0].Text)
	}
}

func TestApplyTransform(t *testing.T) {
	tests := []struct {
		transform StringTransform
		value     string
		want      string
	}{
		{TransformUppercase, "hello", "HELLO"},
		{TransformLowercase, "HeLLo", "hello"},
		{TransformTitleCase, "john q. o'neil", "John Q. O'Neil"},
		{TransformTrim, "  padded  ", "padded"},
		{TransformRemoveSpecial, "a-b_c 1!", "abc 1"},
		{TransformNone, "as-is", "as-is"},
	}
	for _, tt := range tests {
		if got := applyTransform(tt.value, tt.transform); got != tt.want {
			t.Errorf("applyTransform(%q, %s) = %q, want %q", tt.value, tt.transform, got, tt.want)
		}
	}
}

func TestHandleMissing_DropRows(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,abc\nCarol,45000")

	dropped := testTransformer().HandleMissing(table, MissingDropRows, "")
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if table.NumRows() != 2 {
		t.Errorf("rows = %d, want 2", table.NumRows())
	}
	for _, row := range table.Rows {
		for _, c := range row {
			if c.Null {
				t.Error("null cell survived drop")
			}
		}
	}
}

func TestHandleMissing_FillMean(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,abc\nCarol,40000")

	filled := testTransformer().HandleMissing(table, MissingFillMean, "")
	if filled != 1 {
		t.Fatalf("filled = %d, want 1", filled)
	}
	if got := table.Rows[1][1].Number; got != 45000 {
		t.Errorf("filled value = %v, want 45000", got)
	}
	if table.Rows[1][1].Null {
		t.Error("cell still null after fill")
	}
}

func TestHandleMissing_FillMeanSkipsTextColumns(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,abc")
	// Only the numeric null is filled; a hypothetical text null stays.
	testTransformer().HandleMissing(table, MissingFillMean, "")
	if table.Rows[1][1].Null {
		t.Error("numeric null not filled")
	}
}

func TestHandleMissing_FillMode(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,100\nBob,100\nCarol,abc\nDan,200")

	filled := testTransformer().HandleMissing(table, MissingFillMode, "")
	if filled != 1 {
		t.Fatalf("filled = %d, want 1", filled)
	}
	if got := table.Rows[2][1].Number; got != 100 {
		t.Errorf("mode fill = %v, want 100", got)
	}
}

func TestHandleMissing_FillConstant(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,abc")

	filled := testTransformer().HandleMissing(table, MissingFillConstant, "0")
	if filled != 1 {
		t.Fatalf("filled = %d, want 1", filled)
	}
	if got := table.Rows[1][1].Number; got != 0 {
		t.Errorf("constant fill = %v, want 0", got)
	}
}

func TestHandleMissing_FillConstantUnparseableSkipsNumeric(t *testing.T) {
	table := buildTable(t, "Name,Salary\nAlice,50000\nBob,abc")
	filled := testTransformer().HandleMissing(table, MissingFillConstant, "n/a")
	if filled != 0 {
		t.Errorf("filled = %d, want 0 for unparseable constant in numeric column", filled)
	}
	if !table.Rows[1][1].Null {
		t.Error("numeric null overwritten with unparseable constant")
	}
}

func TestRemoveDuplicates(t *testing.T) {
	table := buildTable(t, "Name,City\nAlice,Lyon\nBob,Paris\nAlice,Lyon\nAlice,Lyon")

	removed := testTransformer().RemoveDuplicates(table)
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if table.NumRows() != 2 {
		t.Errorf("rows = %d, want 2", table.NumRows())
	}
	if table.Rows[0][0].Text != "Alice" || table.Rows[1][0].Text != "Bob" {
		t.Errorf("first occurrences not preserved: %v, %v", table.Rows[0][0].Text, table.Rows[1][0].Text)
	}
}

func TestCoerceDates_Layout(t *testing.T) {
	table := buildTable(t, "JoinDate,Name\n2024-01-15,Alice\nnot-a-date,Bob")

	failed, err := testTransformer().CoerceDates(table, "JoinDate", "2006-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	col := table.ColumnIndex("JoinDate")
	if table.Columns[col].Kind != tabular.KindTime {
		t.Errorf("kind = %v, want time", table.Columns[col].Kind)
	}
	if got := table.Rows[0][col].Time.Format("2006-01-02"); got != "2024-01-15" {
		t.Errorf("parsed date = %s, want 2024-01-15", got)
	}
	if !table.Rows[1][col].Null {
		t.Error("unparseable date not nulled")
	}
}

func TestCoerceDates_Flexible(t *testing.T) {
	table := buildTable(t, "JoinDate\nJan 15 2024")

	failed, err := testTransformer().CoerceDates(table, "JoinDate", "")
	if err != nil {
		t.Fatal(err)
	}
	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if got := table.Rows[0][0].Time.Format("2006-01-02"); got != "2024-01-15" {
		t.Errorf("parsed date = %s, want 2024-01-15", got)
	}
}

func TestCoerceDates_UnknownColumn(t *testing.T) {
	table := buildTable(t, "Name\nAlice")
	if _, err := testTransformer().CoerceDates(table, "Nope", ""); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestExtractPattern(t *testing.T) {
	table := buildTable(t, "Code\nORD-123\nORD-456\nbadvalue")

	if err := testTransformer().ExtractPattern(table, "Code", `(\d+)`, "OrderNum"); err != nil {
		t.Fatal(err)
	}
	col := table.ColumnIndex("OrderNum")
	if col < 0 {
		t.Fatal("OrderNum column not added")
	}
	if got := table.Rows[0][col].Text; got != "123" {
		t.Errorf("row 0 = %q, want 123", got)
	}
	if !table.Rows[2][col].Null {
		t.Error("non-matching row should be null")
	}
	// Every row still has one cell per column.
	for i, row := range table.Rows {
		if len(row) != table.NumCols() {
			t.Errorf("row %d has %d cells, want %d", i, len(row), table.NumCols())
		}
	}
}

func TestExtractPattern_BadRegex(t *testing.T) {
	table := buildTable(t, "Code\nX1")
	if err := testTransformer().ExtractPattern(table, "Code", `([`, "Out"); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
