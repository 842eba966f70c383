package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/metrics"
	"github.com/forecastlab/forecastd/internal/service"
)

// MetricsHandler serves calibration and reliability reports.
type MetricsHandler struct {
	svc    *service.Metrics
	logger *slog.Logger
}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler(svc *service.Metrics, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{
		svc:    svc,
		logger: logger.With(slog.String("handler", "metrics")),
	}
}

// Get computes the metrics report. The format query parameter selects the
// rendering: json (default), csv, or chart (transposed calibration arrays).
// GET /api/metrics
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.MetricsParams{
		Bins:        queryInt(r, "bins", 0),
		Topic:       q.Get("topic"),
		MinPerBin:   queryInt(r, "minPerBin", 0),
		GroupTopics: q.Get("groupTopics") == "true",
		Slice:       q.Get("slice"),
		DateField:   q.Get("dateField"),
		MinPerSlice: queryInt(r, "minPerSlice", 0),
		Limit:       queryInt(r, "limit", 0),
	}

	report, err := h.svc.Compute(r.Context(), params)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			writeError(w, http.StatusNotFound, "no resolved forecasts to compute metrics from")
			return
		}
		h.logger.ErrorContext(r.Context(), "metrics failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "metrics computation failed")
		return
	}

	switch q.Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, report)
	case "chart":
		writeJSON(w, http.StatusOK, metrics.ToChart(report))
	case "csv":
		out, err := metrics.ToCSV(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "csv rendering failed")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(out))
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+q.Get("format"))
	}
}
