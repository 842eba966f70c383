package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
)

const archivePrefix = "archive/forecasts/"

var archiveMonthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ArchiveHandler serves the cold-storage archive of old resolved forecasts.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		logger: logger.With(slog.String("handler", "archive")),
	}
}

type archiveObjectView struct {
	Month        string `json:"month"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified,omitempty"`
}

// List returns the monthly archive objects currently in cold storage.
// GET /api/archive
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.blobs.List(r.Context(), archivePrefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "archive list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "listing archive failed")
		return
	}

	views := make([]archiveObjectView, 0, len(infos))
	for _, info := range infos {
		v := archiveObjectView{
			Month: monthFromArchivePath(info.Path),
			Path:  info.Path,
			Size:  info.Size,
		}
		if !info.LastModified.IsZero() {
			v.LastModified = info.LastModified.UTC().Format(time.RFC3339)
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": views})
}

// Get streams one monthly JSONL archive object.
// GET /api/archive/{month}
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")
	if !archiveMonthRe.MatchString(month) {
		writeError(w, http.StatusBadRequest, "month must look like 2024-06")
		return
	}

	path := fmt.Sprintf("%s%s.jsonl", archivePrefix, month)
	body, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no archive for that month")
			return
		}
		h.logger.ErrorContext(r.Context(), "archive get failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "reading archive failed")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// monthFromArchivePath extracts "2024-06" from "archive/forecasts/2024-06.jsonl".
func monthFromArchivePath(path string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, archivePrefix), ".jsonl")
}
