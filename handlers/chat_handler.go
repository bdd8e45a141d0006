package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/serisow/datalens/audit"
)

// Chat answers a natural-language question about the session's table.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "'query' is required")
		return
	}

	sess.RLock()
	resp := h.deps.Assistant.Answer(body.Query, sess.Table)
	suggestions := h.deps.Assistant.SuggestedQuestions(sess.Table)
	sess.RUnlock()

	h.recordAudit(r.Context(), audit.DataAccess(requestUser(r), sess.ID, sess.SourceName, "chat query"))
	writeJSON(w, http.StatusOK, map[string]any{
		"response":    resp,
		"suggestions": suggestions,
	})
}
