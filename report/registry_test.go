package report

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/serisow/datalens/tabular"
)

func buildTable(t *testing.T) *tabular.Table {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return tabular.NewBuilder(logger).ParseTable("Name,Salary\nAlice,50000\nBob,abc", tabular.Options{Delimiter: ","})
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	formats := r.Formats()
	sort.Strings(formats)
	if len(formats) != 2 || formats[0] != "csv" || formats[1] != "json" {
		t.Errorf("formats = %v, want [csv json]", formats)
	}

	if _, err := r.Get("csv"); err != nil {
		t.Errorf("Get(csv) error: %v", err)
	}
	if _, err := r.Get("xml"); err == nil {
		t.Error("expected error for unregistered format")
	}
}

func TestCSVRenderer(t *testing.T) {
	data, err := (&CSVRenderer{}).Render(buildTable(t))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0] != "Name,Salary" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "Alice,50000" {
		t.Errorf("row 1 = %q", lines[1])
	}
	// The failed numeric coercion renders as an empty cell.
	if lines[2] != "Bob," {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestJSONRenderer(t *testing.T) {
	data, err := (&JSONRenderer{}).Render(buildTable(t))
	if err != nil {
		t.Fatal(err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0]["Name"] != "Alice" || records[0]["Salary"] != float64(50000) {
		t.Errorf("record 0 = %v", records[0])
	}
	if records[1]["Salary"] != nil {
		t.Errorf("record 1 salary = %v, want null", records[1]["Salary"])
	}
}

type fakeRenderer struct{}

func (fakeRenderer) Render(*tabular.Table) ([]byte, error) { return []byte("x"), nil }
func (fakeRenderer) ContentType() string                   { return "application/x-fake" }
func (fakeRenderer) FileExtension() string                 { return "fake" }

func TestRegisterReplaces(t *testing.T) {
	r := DefaultRegistry()
	r.Register("csv", fakeRenderer{})

	renderer, err := r.Get("csv")
	if err != nil {
		t.Fatal(err)
	}
	if renderer.ContentType() != "application/x-fake" {
		t.Error("Register did not replace the existing renderer")
	}
}
