package handler

import (
	"log/slog"
	"net/http"

	"github.com/forecastlab/forecastd/internal/service"
)

// BacktestHandler serves calendar-driven backtest seeding.
type BacktestHandler struct {
	svc    *service.Backtest
	logger *slog.Logger
}

// NewBacktestHandler creates a BacktestHandler.
func NewBacktestHandler(svc *service.Backtest, logger *slog.Logger) *BacktestHandler {
	return &BacktestHandler{
		svc:    svc,
		logger: logger.With(slog.String("handler", "backtest")),
	}
}

// Seed accepts either raw ICS text or pre-parsed events and seeds forecasts
// per event.
// POST /api/backtest/seed
func (h *BacktestHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var params service.BacktestParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if params.CalendarText == "" && len(params.Events) == 0 {
		writeError(w, http.StatusBadRequest, "calendarText or events is required")
		return
	}

	result, err := h.svc.Seed(r.Context(), params)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "backtest seed failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "backtest seeding failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
