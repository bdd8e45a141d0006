package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/serisow/datalens/audit"
)

// Export renders the working table in the requested format and streams it
// back with a download filename.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	renderer, err := h.deps.Registry.Get(format)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess.RLock()
	data, err := renderer.Render(sess.Table)
	rows := sess.Table.NumRows()
	sess.RUnlock()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render failed: %v", err))
		return
	}

	h.recordAudit(r.Context(), audit.DataExport(requestUser(r), sess.ID, format, rows))

	w.Header().Set("Content-Type", renderer.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "export."+renderer.FileExtension()))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
