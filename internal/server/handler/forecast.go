package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/service"
)

// ForecastHandler serves the forecast lifecycle endpoints: seeding,
// on-demand resolution, and listing.
type ForecastHandler struct {
	seeder   *service.Seeder
	resolver *service.Resolver
	store    domain.ForecastStore
	logger   *slog.Logger
}

// NewForecastHandler creates a ForecastHandler.
func NewForecastHandler(seeder *service.Seeder, resolver *service.Resolver, store domain.ForecastStore, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{
		seeder:   seeder,
		resolver: resolver,
		store:    store,
		logger:   logger.With(slog.String("handler", "forecast")),
	}
}

// Seed asks the judge for new forecasting questions on a topic.
// POST /api/forecasts/seed
func (h *ForecastHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var params service.SeedParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if params.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	result, err := h.seeder.Seed(r.Context(), params)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "seed failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "seeding failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Resolve triggers an on-demand resolution batch.
// POST /api/forecasts/resolve
func (h *ForecastHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var params service.ResolveParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.resolver.ResolveDue(r.Context(), params)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "resolve failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "resolution failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// forecastView is the wire shape of a forecast.
type forecastView struct {
	ID                 string             `json:"id"`
	Topic              string             `json:"topic"`
	Question           string             `json:"question"`
	ResolutionCriteria string             `json:"resolutionCriteria,omitempty"`
	HorizonTS          time.Time          `json:"horizonTs"`
	Probability        float64            `json:"probability"`
	Rationale          string             `json:"rationale,omitempty"`
	MethodologyTags    []string           `json:"methodologyTags,omitempty"`
	Sources            []domain.SourceRef `json:"sources,omitempty"`
	Status             string             `json:"status"`
	Outcome            string             `json:"outcome"`
	Judge              *domain.Verdict    `json:"judge,omitempty"`
	ResolvedAt         *time.Time         `json:"resolvedAt,omitempty"`
	BrierScore         *float64           `json:"brierScore,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// List returns forecasts filtered by status, topic, and limit.
// GET /api/forecasts
func (h *ForecastHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ForecastFilter{
		Topic: r.URL.Query().Get("topic"),
		Limit: queryInt(r, "limit", 100),
	}
	switch status := r.URL.Query().Get("status"); status {
	case "":
	case string(domain.ForecastStatusOpen), string(domain.ForecastStatusResolved):
		filter.Status = domain.ForecastStatus(status)
	default:
		writeError(w, http.StatusBadRequest, "unknown status "+status)
		return
	}

	forecasts, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "listing forecasts failed")
		return
	}

	views := make([]forecastView, 0, len(forecasts))
	for _, f := range forecasts {
		views = append(views, forecastView{
			ID:                 f.ID,
			Topic:              f.Topic,
			Question:           f.Question,
			ResolutionCriteria: f.ResolutionCriteria,
			HorizonTS:          f.HorizonTS,
			Probability:        f.Probability,
			Rationale:          f.Rationale,
			MethodologyTags:    f.MethodologyTags,
			Sources:            f.Sources,
			Status:             string(f.Status),
			Outcome:            string(f.Outcome),
			Judge:              f.Judge,
			ResolvedAt:         f.ResolvedAt,
			BrierScore:         f.BrierScore,
			Notes:              f.Notes,
			CreatedAt:          f.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"forecasts": views})
}
