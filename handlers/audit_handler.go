package handlers

import (
	"net/http"
	"strconv"

	"github.com/serisow/datalens/audit"
)

// GetAudit lists recent audit entries, optionally filtered by user and
// action substring. ?view=summary, ?view=compliance and ?view=suspicious
// return aggregates instead of the raw trail.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		User:           q.Get("user"),
		ActionContains: q.Get("action"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	entries, err := h.deps.Audit.List(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to read audit trail")
		return
	}

	switch q.Get("view") {
	case "summary":
		writeJSON(w, http.StatusOK, audit.Summarize(entries))
	case "compliance":
		writeJSON(w, http.StatusOK, audit.Compliance(entries))
	case "suspicious":
		writeJSON(w, http.StatusOK, map[string]any{"findings": audit.Suspicious(entries)})
	case "csv":
		data, err := audit.ExportCSV(entries)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to export audit trail")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit_log.csv"`)
		w.Write(data)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}
