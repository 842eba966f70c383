package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forecastlab/forecastd/internal/domain"
)

// ForecastStore implements domain.ForecastStore using PostgreSQL.
type ForecastStore struct {
	pool *pgxpool.Pool
}

// NewForecastStore creates a new ForecastStore backed by the given connection
// pool.
func NewForecastStore(pool *pgxpool.Pool) *ForecastStore {
	return &ForecastStore{pool: pool}
}

const forecastCols = `id, topic, question, resolution_criteria, horizon_ts,
	probability, rationale, methodology_tags, sources,
	status, outcome, judge, resolved_at, brier_score, notes,
	created_at, updated_at`

// Insert stores a new open forecast draft and returns the store-assigned id.
// The probability is clamped into [0,1] before it reaches the database.
func (s *ForecastStore) Insert(ctx context.Context, f domain.Forecast) (string, error) {
	tags := f.MethodologyTags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("postgres: marshal tags: %w", err)
	}

	sources := f.Sources
	if sources == nil {
		sources = []domain.SourceRef{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return "", fmt.Errorf("postgres: marshal sources: %w", err)
	}

	const query = `
		INSERT INTO forecasts (
			topic, question, resolution_criteria, horizon_ts,
			probability, rationale, methodology_tags, sources, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id string
	err = s.pool.QueryRow(ctx, query,
		f.Topic, f.Question, f.ResolutionCriteria, f.HorizonTS,
		domain.Clamp01(f.Probability), f.Rationale, tagsJSON, sourcesJSON, f.Notes,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("postgres: insert forecast: %w", err)
	}
	return id, nil
}

// List returns forecasts matching the filter, newest first.
func (s *ForecastStore) List(ctx context.Context, filter domain.ForecastFilter) ([]domain.Forecast, error) {
	query := `SELECT ` + forecastCols + ` FROM forecasts WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Topic != "" {
		query += fmt.Sprintf(" AND topic = $%d", argIdx)
		args = append(args, filter.Topic)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	return s.queryForecasts(ctx, query, args...)
}

// ListDue returns open forecasts whose horizon is at or before now, ordered by
// horizon ascending and capped at limit.
func (s *ForecastStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Forecast, error) {
	const query = `SELECT ` + forecastCols + `
		FROM forecasts
		WHERE status = 'open' AND horizon_ts <= $1
		ORDER BY horizon_ts ASC
		LIMIT $2`

	return s.queryForecasts(ctx, query, now, limit)
}

// ListResolvedBefore returns resolved forecasts whose resolution time is
// strictly before the cutoff. Used by the cold-storage archiver.
func (s *ForecastStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Forecast, error) {
	const query = `SELECT ` + forecastCols + `
		FROM forecasts
		WHERE status = 'resolved' AND resolved_at < $1
		ORDER BY resolved_at ASC`

	return s.queryForecasts(ctx, query, before)
}

// Resolve applies a resolution to an open forecast. The UPDATE is conditional
// on status='open', which makes the open -> resolved transition one-way and
// closes the window where two resolver runs pick up the same due row.
func (s *ForecastStore) Resolve(ctx context.Context, id string, res domain.Resolution) error {
	var judgeJSON []byte
	if res.Judge != nil {
		var err error
		judgeJSON, err = json.Marshal(res.Judge)
		if err != nil {
			return fmt.Errorf("postgres: marshal verdict: %w", err)
		}
	}

	const query = `
		UPDATE forecasts SET
			status      = 'resolved',
			outcome     = $2,
			judge       = $3,
			resolved_at = $4,
			brier_score = $5,
			notes       = CASE WHEN $6 = '' THEN notes ELSE $6 END,
			updated_at  = NOW()
		WHERE id = $1 AND status = 'open'`

	tag, err := s.pool.Exec(ctx, query,
		id, string(res.Outcome), judgeJSON, res.ResolvedAt, res.BrierScore, res.Notes,
	)
	if err != nil {
		return fmt.Errorf("postgres: resolve forecast %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row does not exist or it was already resolved. Probe to
		// report the right error.
		var exists bool
		if probeErr := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM forecasts WHERE id = $1)", id,
		).Scan(&exists); probeErr == nil && !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyResolved
	}
	return nil
}

func (s *ForecastStore) queryForecasts(ctx context.Context, query string, args ...any) ([]domain.Forecast, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query forecasts: %w", err)
	}
	defer rows.Close()

	var forecasts []domain.Forecast
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan forecast: %w", err)
		}
		forecasts = append(forecasts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: forecast rows: %w", err)
	}
	return forecasts, nil
}

func scanForecast(row pgx.Row) (domain.Forecast, error) {
	var (
		f         domain.Forecast
		status    string
		outcome   *string
		tagsJSON  []byte
		srcJSON   []byte
		judgeJSON []byte
	)

	err := row.Scan(
		&f.ID, &f.Topic, &f.Question, &f.ResolutionCriteria, &f.HorizonTS,
		&f.Probability, &f.Rationale, &tagsJSON, &srcJSON,
		&status, &outcome, &judgeJSON, &f.ResolvedAt, &f.BrierScore, &f.Notes,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Forecast{}, domain.ErrNotFound
		}
		return domain.Forecast{}, err
	}

	f.Status = domain.ForecastStatus(status)
	if outcome != nil {
		f.Outcome = domain.Outcome(*outcome)
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &f.MethodologyTags); err != nil {
			return domain.Forecast{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(srcJSON) > 0 {
		if err := json.Unmarshal(srcJSON, &f.Sources); err != nil {
			return domain.Forecast{}, fmt.Errorf("unmarshal sources: %w", err)
		}
	}
	if len(judgeJSON) > 0 {
		var v domain.Verdict
		if err := json.Unmarshal(judgeJSON, &v); err != nil {
			return domain.Forecast{}, fmt.Errorf("unmarshal verdict: %w", err)
		}
		f.Judge = &v
	}

	return f, nil
}

// Compile-time interface check.
var _ domain.ForecastStore = (*ForecastStore)(nil)
