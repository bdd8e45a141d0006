// Package handlers exposes the analysis pipeline over HTTP. Handlers
// orchestrate the core packages and write the audit trail; the core packages
// never touch HTTP or audit concerns themselves.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/serisow/datalens/alerts"
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

// Deps bundles everything the handlers call into.
type Deps struct {
	Config      config.Config
	Sessions    *session.Store
	Extractor   *extraction.Extractor
	Builder     *tabular.Builder
	Learner     *schema.Learner
	Checker     *quality.Checker
	Detector    *anomaly.Detector
	Masker      *masking.Masker
	Transformer *transform.Transformer
	Assistant   *chat.Assistant
	Registry    *report.Registry
	Audit       audit.Store
	Notifiers   []alerts.Notifier
}

type Handler struct {
	logger *slog.Logger
	deps   Deps
}

func New(logger *slog.Logger, deps Deps) *Handler {
	return &Handler{logger: logger, deps: deps}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestUser attributes audit entries. There is no auth layer; callers
// identify themselves through a header.
func requestUser(r *http.Request) string {
	if user := r.Header.Get("X-User"); user != "" {
		return user
	}
	return "anonymous"
}

// recordAudit appends an entry and only logs on failure, so a broken audit
// backend never fails the user's request.
func (h *Handler) recordAudit(ctx context.Context, e audit.Entry) {
	if err := h.deps.Audit.Append(ctx, e); err != nil {
		h.logger.Error("Failed to write audit entry",
			slog.String("action", e.Action),
			slog.String("error", err.Error()))
	}
}

// loadSession resolves the path id or writes a 404.
func (h *Handler) loadSession(w http.ResponseWriter, id string) (*session.Session, bool) {
	sess, ok := h.deps.Sessions.Get(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}
