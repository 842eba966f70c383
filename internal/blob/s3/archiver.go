package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
)

// ForecastArchiveStore is the narrow read surface the archiver needs from the
// forecast store.
type ForecastArchiveStore interface {
	// ListResolvedBefore returns resolved forecasts settled strictly before
	// the cutoff.
	ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Forecast, error)
}

// ArchiveImpl implements domain.Archiver: it queries old resolved forecasts,
// serializes them to JSONL, and uploads the batch to object storage.
//
// Deletion from the primary store is intentionally not performed here; that
// is a separate step run after the archive has been verified.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	forecasts ForecastArchiveStore
	audit     domain.AuditStore
}

// NewArchiver creates an ArchiveImpl. audit may be nil.
func NewArchiver(writer domain.BlobWriter, forecasts ForecastArchiveStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		forecasts: forecasts,
		audit:     audit,
	}
}

// archivedForecast is the stable JSONL schema for cold storage. It flattens
// the domain object so archives stay readable without this codebase.
type archivedForecast struct {
	ID                 string             `json:"id"`
	Topic              string             `json:"topic"`
	Question           string             `json:"question"`
	ResolutionCriteria string             `json:"resolutionCriteria,omitempty"`
	HorizonTS          time.Time          `json:"horizonTs"`
	Probability        float64            `json:"probability"`
	Rationale          string             `json:"rationale,omitempty"`
	MethodologyTags    []string           `json:"methodologyTags,omitempty"`
	Sources            []domain.SourceRef `json:"sources,omitempty"`
	Outcome            domain.Outcome     `json:"outcome"`
	Judge              *domain.Verdict    `json:"judge,omitempty"`
	ResolvedAt         *time.Time         `json:"resolvedAt,omitempty"`
	BrierScore         *float64           `json:"brierScore,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// ArchiveResolved uploads every resolved forecast settled before the cutoff
// as one JSONL object at archive/forecasts/YYYY-MM.jsonl and records the run
// in the audit log. Returns the number of archived rows.
func (a *ArchiveImpl) ArchiveResolved(ctx context.Context, before time.Time) (int64, error) {
	forecasts, err := a.forecasts.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(forecasts) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(forecasts)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	count := int64(len(forecasts))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.forecasts", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}
	return count, nil
}

// marshalJSONL renders one JSON object per line.
func marshalJSONL(forecasts []domain.Forecast) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, f := range forecasts {
		row := archivedForecast{
			ID:                 f.ID,
			Topic:              f.Topic,
			Question:           f.Question,
			ResolutionCriteria: f.ResolutionCriteria,
			HorizonTS:          f.HorizonTS,
			Probability:        f.Probability,
			Rationale:          f.Rationale,
			MethodologyTags:    f.MethodologyTags,
			Sources:            f.Sources,
			Outcome:            f.Outcome,
			Judge:              f.Judge,
			ResolvedAt:         f.ResolvedAt,
			BrierScore:         f.BrierScore,
			Notes:              f.Notes,
			CreatedAt:          f.CreatedAt,
		}
		if err := enc.Encode(row); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// archivePath keys archives by the cutoff month.
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/forecasts/%s.jsonl", before.UTC().Format("2006-01"))
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
