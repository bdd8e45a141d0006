package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/serisow/datalens/audit"
	"github.com/serisow/datalens/transform"
)

// transformRequest is a tagged union over the supported operations.
type transformRequest struct {
	Op string `json:"op"`

	// op == "mappings"
	Mappings []transform.Mapping `json:"mappings,omitempty"`

	// op == "missing"
	Strategy transform.MissingStrategy `json:"strategy,omitempty"`
	Constant string                    `json:"constant,omitempty"`

	// op == "dates" and "extract"
	Column string `json:"column,omitempty"`
	Layout string `json:"layout,omitempty"`

	// op == "extract"
	Pattern   string `json:"pattern,omitempty"`
	NewColumn string `json:"new_column,omitempty"`
}

// Transform applies one mutation operation to the session's working table.
func (h *Handler) Transform(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var req transformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := requestUser(r)
	tr := h.deps.Transformer

	sess.Lock()
	defer sess.Unlock()

	switch req.Op {
	case "mappings":
		mapped, err := tr.ApplyMappings(sess.Table, req.Mappings)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess.Table = mapped
		h.recordAudit(r.Context(), audit.DataModification(user, sess.ID, sess.SourceName, "column mapping", mapped.NumRows()))
		writeJSON(w, http.StatusOK, map[string]any{"columns": mapped.ColumnNames()})

	case "missing":
		affected := tr.HandleMissing(sess.Table, req.Strategy, req.Constant)
		h.recordAudit(r.Context(), audit.DataModification(user, sess.ID, sess.SourceName,
			fmt.Sprintf("missing values (%s)", req.Strategy), affected))
		writeJSON(w, http.StatusOK, map[string]any{"affected": affected, "rows": sess.Table.NumRows()})

	case "dedupe":
		removed := tr.RemoveDuplicates(sess.Table)
		h.recordAudit(r.Context(), audit.DataModification(user, sess.ID, sess.SourceName, "dedupe", removed))
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "rows": sess.Table.NumRows()})

	case "dates":
		failed, err := tr.CoerceDates(sess.Table, req.Column, req.Layout)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.recordAudit(r.Context(), audit.DataModification(user, sess.ID, sess.SourceName, "date parsing", sess.Table.NumRows()))
		writeJSON(w, http.StatusOK, map[string]any{"column": req.Column, "failed": failed})

	case "extract":
		if err := tr.ExtractPattern(sess.Table, req.Column, req.Pattern, req.NewColumn); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.recordAudit(r.Context(), audit.DataModification(user, sess.ID, sess.SourceName, "text extraction", sess.Table.NumRows()))
		writeJSON(w, http.StatusOK, map[string]any{"new_column": req.NewColumn})

	default:
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown transform op: %q", req.Op))
	}
}
