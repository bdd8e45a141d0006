package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/serisow/datalens/audit"
)

// GetSession returns session metadata and the learned schema hint.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	sess.RLock()
	summary := summarize(sess)
	sess.RUnlock()
	writeJSON(w, http.StatusOK, summary)
}

// GetTable returns the working table: column names, kinds, and records.
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	type columnInfo struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	sess.RLock()
	columns := make([]columnInfo, 0, sess.Table.NumCols())
	for _, c := range sess.Table.Columns {
		columns = append(columns, columnInfo{Name: c.Name, Kind: c.Kind.String()})
	}
	records := sess.Table.Records()
	sess.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"columns": columns,
		"records": records,
	})
}

// ResetSession restores the working table to the original parse result.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.deps.Sessions.Reset(id) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	h.recordAudit(r.Context(), audit.DataModification(requestUser(r), id, "session", "reset", 0))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// DeleteSession drops a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.deps.Sessions.Delete(id) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	h.recordAudit(r.Context(), audit.DataAccess(requestUser(r), id, "session", "delete"))
	w.WriteHeader(http.StatusNoContent)
}
