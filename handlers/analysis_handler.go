package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/serisow/datalens/alerts"
	"github.com/serisow/datalens/anomaly"
	"github.com/serisow/datalens/audit"
)

// GetQuality returns the quality scores; ?report=1 adds the prioritized
// recommendations.
func (h *Handler) GetQuality(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	user := requestUser(r)
	if r.URL.Query().Get("report") == "1" {
		sess.RLock()
		report := h.deps.Checker.GenerateReport(sess.Table)
		sess.RUnlock()
		h.recordAudit(r.Context(), audit.DataAccess(user, sess.ID, sess.SourceName, "quality report"))
		writeJSON(w, http.StatusOK, report)
		return
	}

	sess.RLock()
	scores := h.deps.Checker.CalculateScores(sess.Table)
	sess.RUnlock()
	h.recordAudit(r.Context(), audit.DataAccess(user, sess.ID, sess.SourceName, "quality scores"))
	writeJSON(w, http.StatusOK, scores)
}

// GetAnomalies runs detection and returns findings plus a severity summary.
// High-severity findings fan out to the configured alert channels in the
// background.
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	sess.RLock()
	findings := h.deps.Detector.Detect(sess.Table)
	sess.RUnlock()

	if len(h.deps.Notifiers) > 0 {
		source := sess.SourceName
		go alerts.NotifyFindings(context.Background(), h.logger, h.deps.Notifiers, source, findings)
	}

	h.recordAudit(r.Context(), audit.DataAccess(requestUser(r), sess.ID, sess.SourceName, "anomaly detection"))
	writeJSON(w, http.StatusOK, map[string]any{
		"findings": findings,
		"summary":  anomaly.Summarize(findings),
	})
}

// GetSensitive reports columns that look like they hold PII.
func (h *Handler) GetSensitive(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	sess.RLock()
	detected := h.deps.Masker.DetectSensitiveColumns(sess.Table)
	sess.RUnlock()

	h.recordAudit(r.Context(), audit.SecurityEvent(requestUser(r), sess.ID, "pii scan",
		formatDetected(detected)))
	writeJSON(w, http.StatusOK, map[string]any{"sensitive_columns": detected})
}
