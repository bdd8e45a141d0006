package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/serisow/datalens/audit"
	"github.com/serisow/datalens/schema"
	"github.com/serisow/datalens/session"
	"github.com/serisow/datalens/tabular"
)

// sessionSummary is the JSON shape returned whenever a session is created or
// inspected.
type sessionSummary struct {
	ID         string       `json:"id"`
	SourceName string       `json:"source_name"`
	MediaType  string       `json:"media_type"`
	Rows       int          `json:"rows"`
	Columns    int          `json:"columns"`
	Schema     *schema.Hint `json:"schema"`
	MaskedCols []string     `json:"masked_columns,omitempty"`
}

func summarize(sess *session.Session) sessionSummary {
	hint := sess.Hint
	return sessionSummary{
		ID:         sess.ID,
		SourceName: sess.SourceName,
		MediaType:  sess.MediaType,
		Rows:       sess.Table.NumRows(),
		Columns:    sess.Table.NumCols(),
		Schema:     &hint,
		MaskedCols: sess.MaskedCols,
	}
}

// UploadDocument accepts a multipart upload, extracts its text, learns the
// schema, parses a table, and opens a session around the result.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.deps.Config.MaxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart request or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing 'file' field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mediaTypeFromName(header.Filename)
	}

	text, err := h.deps.Extractor.Extract(data, mediaType)
	if err != nil {
		h.logger.Error("Extraction failed",
			slog.String("filename", header.Filename),
			slog.String("media_type", mediaType),
			slog.String("error", err.Error()))
		writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	sess := h.openSession(header.Filename, mediaType, text, "")

	h.recordAudit(r.Context(), audit.DataAccess(requestUser(r), sess.ID, header.Filename, "upload"))
	writeJSON(w, http.StatusCreated, summarize(sess))
}

// CreateSession opens a session directly from pasted text.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text      string `json:"text"`
		Delimiter string `json:"delimiter"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeJSONError(w, http.StatusBadRequest, "'text' is required")
		return
	}

	name := body.Name
	if name == "" {
		name = "pasted-text"
	}

	sess := h.openSession(name, "text/plain", body.Text, body.Delimiter)

	h.recordAudit(r.Context(), audit.DataAccess(requestUser(r), sess.ID, name, "create"))
	writeJSON(w, http.StatusCreated, summarize(sess))
}

func (h *Handler) openSession(name, mediaType, text, delimiter string) *session.Session {
	hint := h.deps.Learner.LearnSchema(text)

	var table *tabular.Table
	if delimiter != "" {
		table = h.deps.Builder.ParseTable(text, tabular.Options{Delimiter: delimiter})
	} else {
		table = h.deps.Builder.SmartParse(text)
	}

	return h.deps.Sessions.Create(name, mediaType, text, *hint, table)
}

func mediaTypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".html", ".htm":
		return "text/html"
	default:
		return "text/plain"
	}
}
