package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/serisow/datalens/audit"
	"github.com/serisow/datalens/masking"
	"github.com/serisow/datalens/session"
)

var validMethods = map[masking.Method]bool{
	masking.MethodPartial:  true,
	masking.MethodFull:     true,
	masking.MethodHash:     true,
	masking.MethodTokenize: true,
}

// MaskColumn applies one masking method to one column in place.
func (h *Handler) MaskColumn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var body struct {
		Column string         `json:"column"`
		Method masking.Method `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validMethods[body.Method] {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown masking method: %s", body.Method))
		return
	}

	sess.Lock()
	applied := h.deps.Masker.ApplyMasking(sess.Table, body.Column, body.Method)
	if applied {
		markMasked(sess, body.Column)
	}
	sess.Unlock()
	if !applied {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown column: %s", body.Column))
		return
	}

	h.recordAudit(r.Context(), audit.SecurityEvent(requestUser(r), sess.ID, "masking",
		fmt.Sprintf("Column: %s, Method: %s", body.Column, body.Method)))
	writeJSON(w, http.StatusOK, map[string]any{
		"masked_column": body.Column,
		"method":        body.Method,
	})
}

// Anonymize detects sensitive columns and masks each with the method its
// type calls for.
func (h *Handler) Anonymize(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	sess.Lock()
	applied := h.deps.Masker.AnonymizeTable(sess.Table)
	for _, a := range applied {
		markMasked(sess, a.Column)
	}
	sess.Unlock()

	h.recordAudit(r.Context(), audit.SecurityEvent(requestUser(r), sess.ID, "anonymization",
		fmt.Sprintf("Columns masked: %d", len(applied))))
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

func markMasked(sess *session.Session, column string) {
	for _, c := range sess.MaskedCols {
		if c == column {
			return
		}
	}
	sess.MaskedCols = append(sess.MaskedCols, column)
}

func formatDetected(detected []masking.SensitiveColumn) string {
	if len(detected) == 0 {
		return "No sensitive columns detected"
	}
	names := make([]string, len(detected))
	for i, d := range detected {
		names[i] = fmt.Sprintf("%s (%s)", d.Column, d.Type)
	}
	return "Detected: " + strings.Join(names, ", ")
}
