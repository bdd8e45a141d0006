package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/serisow/datalens/anomaly"
	"github.com/serisow/datalens/audit"
	"github.com/serisow/datalens/chat"
	"github.com/serisow/datalens/config"
	"github.com/serisow/datalens/extraction"
	"github.com/serisow/datalens/masking"
	"github.com/serisow/datalens/quality"
	"github.com/serisow/datalens/report"
	"github.com/serisow/datalens/schema"
	"github.com/serisow/datalens/session"
	"github.com/serisow/datalens/tabular"
	"github.com/serisow/datalens/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestHandler() (*Handler, *audit.MemoryStore) {
	logger := testLogger()
	checker := quality.NewChecker()
	detector := anomaly.NewDetector(logger, anomaly.DefaultThresholds())
	auditStore := audit.NewMemoryStore()

	h := New(logger, Deps{
		Config:      config.Config{MaxUploadBytes: 1 << 20},
		Sessions:    session.NewStore(logger),
		Extractor:   extraction.NewExtractor(logger),
		Builder:     tabular.NewBuilder(logger),
		Learner:     schema.NewLearner(),
		Checker:     checker,
		Detector:    detector,
		Masker:      masking.NewMasker(logger),
		Transformer: transform.NewTransformer(logger),
		Assistant:   chat.NewAssistant(logger, checker, detector),
		Registry:    report.DefaultRegistry(),
		Audit:       auditStore,
	})
	return h, auditStore
}

func testRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/documents", h.UploadDocument).Methods("POST")
	r.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/table", h.GetTable).Methods("GET")
	r.HandleFunc("/sessions/{id}/reset", h.ResetSession).Methods("POST")
	r.HandleFunc("/sessions/{id}/quality", h.GetQuality).Methods("GET")
	r.HandleFunc("/sessions/{id}/anomalies", h.GetAnomalies).Methods("GET")
	r.HandleFunc("/sessions/{id}/sensitive", h.GetSensitive).Methods("GET")
	r.HandleFunc("/sessions/{id}/mask", h.MaskColumn).Methods("POST")
	r.HandleFunc("/sessions/{id}/anonymize", h.Anonymize).Methods("POST")
	r.HandleFunc("/sessions/{id}/transform", h.Transform).Methods("POST")
	r.HandleFunc("/sessions/{id}/chat", h.Chat).Methods("POST")
	r.HandleFunc("/sessions/{id}/export", h.Export).Methods("GET")
	r.HandleFunc("/audit", h.GetAudit).Methods("GET")
	return r
}

func createTestSession(t *testing.T, router *mux.Router, text string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"text": text, "delimiter": ","})
	req := httptest.NewRequest("POST", "/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.ID
}

func TestCreateSessionAndGetTable(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)

	id := createTestSession(t, router, "Name,Salary\nAlice,50000\nBob,45000")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/table", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get table: status %d", rec.Code)
	}

	var resp struct {
		Columns []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"columns"`
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Columns) != 2 || resp.Columns[1].Kind != "number" {
		t.Errorf("columns = %v", resp.Columns)
	}
	if len(resp.Records) != 2 || resp.Records[0]["Name"] != "Alice" {
		t.Errorf("records = %v", resp.Records)
	}
}

func TestCreateSession_MissingText(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)

	req := httptest.NewRequest("POST", "/sessions", strings.NewReader(`{"text": "  "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadDocument(t *testing.T) {
	h, auditStore := newTestHandler()
	router := testRouter(h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "employees.txt")
	fw.Write([]byte("Name,Salary\nAlice,50000"))
	mw.Close()

	req := httptest.NewRequest("POST", "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User", "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp sessionSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Rows != 1 || resp.Columns != 2 {
		t.Errorf("summary = %+v", resp)
	}

	entries, _ := auditStore.List(context.Background(), audit.Filter{User: "alice"})
	if len(entries) != 1 || !strings.Contains(entries[0].Action, "Data Access") {
		t.Errorf("audit entries = %v", entries)
	}
}

func TestGetQuality(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name,Salary\nAlice,50000\nBob,45000")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/quality", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var scores quality.Scores
	if err := json.Unmarshal(rec.Body.Bytes(), &scores); err != nil {
		t.Fatal(err)
	}
	if scores.Completeness != 100 {
		t.Errorf("completeness = %v, want 100", scores.Completeness)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/quality?report=1", nil))
	if !strings.Contains(rec.Body.String(), "overall_score") {
		t.Errorf("report body = %s", rec.Body.String())
	}
}

func TestGetAnomalies(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name,Salary\nAlice,50000\nBob,45000\nCarol,200000")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/anomalies", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Statistical Outlier") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMaskAndSensitive(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Email\njohn@x.com\nmary@y.org")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/sensitive", nil))
	if !strings.Contains(rec.Body.String(), `"type":"email"`) {
		t.Errorf("sensitive body = %s", rec.Body.String())
	}

	body := `{"column": "Email", "method": "Partial Mask"}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions/"+id+"/mask", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("mask: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/table", nil))
	if !strings.Contains(rec.Body.String(), "jo**@x.com") {
		t.Errorf("table after mask = %s", rec.Body.String())
	}

	// Unknown method is rejected.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions/"+id+"/mask", strings.NewReader(`{"column":"Email","method":"Nope"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad method status = %d", rec.Code)
	}
}

func TestTransformDedupe(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name\nAlice\nAlice\nBob")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions/"+id+"/transform", strings.NewReader(`{"op":"dedupe"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Removed int `json:"removed"`
		Rows    int `json:"rows"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Removed != 1 || resp.Rows != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTransformUnknownOp(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name\nAlice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions/"+id+"/transform", strings.NewReader(`{"op":"explode"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResetRestoresTable(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name\nAlice\nAlice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions/"+id+"/transform", strings.NewReader(`{"op":"dedupe"}`)))
	if rec.Code != http.StatusOK {
		t.Fatal("dedupe failed")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions/"+id+"/reset", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id, nil))
	var resp sessionSummary
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Rows != 2 {
		t.Errorf("rows after reset = %d, want 2", resp.Rows)
	}
}

func TestChat(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name,Salary\nAlice,50000\nBob,45000")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions/"+id+"/chat", strings.NewReader(`{"query":"what is the total salary?"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Sum of Salary: 95000.00") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestExportCSVAndUnknownFormat(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name,Salary\nAlice,50000")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/export?format=csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %s", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "Name,Salary\n") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/export?format=xml", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d", rec.Code)
	}
}

func TestAuditEndpoint(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name\nAlice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/export?format=json", nil))
	if rec.Code != http.StatusOK {
		t.Fatal("export failed")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/audit?action=export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Data Export") {
		t.Errorf("audit body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/audit?view=summary", nil))
	if !strings.Contains(rec.Body.String(), "total_events") {
		t.Errorf("summary body = %s", rec.Body.String())
	}
}

// Mutating and reading handlers may hit the same session at once; the
// per-session lock must keep readers off a table mid-rewrite. Run with -race.
func TestConcurrentMaskAndRead(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Email,Salary\njohn@x.com,50000\nmary@y.org,45000")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("POST", "/sessions/"+id+"/mask",
				strings.NewReader(`{"column":"Email","method":"Partial Mask"}`)))
			if rec.Code != http.StatusOK {
				t.Errorf("mask: status %d", rec.Code)
			}
		}()
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/table", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("table: status %d", rec.Code)
			}
		}()
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/quality", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("quality: status %d", rec.Code)
			}
		}()
	}
	wg.Wait()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id+"/table", nil))
	if !strings.Contains(rec.Body.String(), "jo**@x.com") {
		t.Errorf("table after concurrent masking = %s", rec.Body.String())
	}
}

func TestSessionNotFound(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/nope/table", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	h, _ := newTestHandler()
	router := testRouter(h)
	id := createTestSession(t, router, "Name\nAlice")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/sessions/"+id, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", rec.Code)
	}
}
