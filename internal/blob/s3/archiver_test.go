package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/forecastd/internal/domain"
)

type memWriter struct {
	path        string
	contentType string
	data        []byte
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	w.path = path
	w.contentType = contentType
	b, err := io.ReadAll(data)
	w.data = b
	return err
}

type memArchiveStore struct {
	forecasts []domain.Forecast
}

func (s *memArchiveStore) ListResolvedBefore(_ context.Context, _ time.Time) ([]domain.Forecast, error) {
	return s.forecasts, nil
}

func TestArchiveResolvedWritesJSONL(t *testing.T) {
	resolvedAt := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	brier := 0.09
	store := &memArchiveStore{forecasts: []domain.Forecast{
		{
			ID:          "f-1",
			Topic:       "space",
			Question:    "Q1",
			Probability: 0.7,
			Outcome:     domain.OutcomeYes,
			ResolvedAt:  &resolvedAt,
			BrierScore:  &brier,
		},
		{ID: "f-2", Topic: "macro", Question: "Q2", Probability: 0.2, Outcome: domain.OutcomeNo},
	}}
	writer := &memWriter{}
	archiver := NewArchiver(writer, store, nil)

	count, err := archiver.ArchiveResolved(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.Equal(t, "archive/forecasts/2024-06.jsonl", writer.path)
	assert.Equal(t, "application/x-ndjson", writer.contentType)

	lines := strings.Split(strings.TrimSpace(string(writer.data)), "\n")
	require.Len(t, lines, 2)

	var first archivedForecast
	require.NoError(t, json.NewDecoder(bytes.NewReader([]byte(lines[0]))).Decode(&first))
	assert.Equal(t, "f-1", first.ID)
	assert.Equal(t, domain.OutcomeYes, first.Outcome)
	require.NotNil(t, first.BrierScore)
	assert.InDelta(t, 0.09, *first.BrierScore, 1e-9)
}

func TestArchiveResolvedEmptySkipsUpload(t *testing.T) {
	writer := &memWriter{}
	archiver := NewArchiver(writer, &memArchiveStore{}, nil)

	count, err := archiver.ArchiveResolved(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.path, "nothing to archive means no object written")
}
