package handler

import (
	"log/slog"
	"net/http"

	"github.com/forecastlab/forecastd/internal/domain"
)

// AuditHandler serves the append-only audit log of batch operations.
type AuditHandler struct {
	store  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(store domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "audit")),
	}
}

// List returns audit entries, newest first.
// GET /api/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "listing audit entries failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
