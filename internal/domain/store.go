package domain

import (
	"context"
	"time"
)

// ForecastFilter narrows List queries. Zero values mean "no filter".
type ForecastFilter struct {
	Status ForecastStatus
	Topic  string
	Limit  int
}

// Resolution is the write payload applied when a forecast settles. The store
// sets status=resolved atomically together with these fields.
type Resolution struct {
	Outcome    Outcome
	Judge      *Verdict
	ResolvedAt time.Time
	BrierScore *float64
	Notes      string
}

// ForecastStore persists forecasts. It is the sole writer of persisted state;
// services only construct field values and hand them over.
type ForecastStore interface {
	// Insert stores a new open forecast draft and returns the store-assigned id.
	Insert(ctx context.Context, f Forecast) (string, error)

	// List returns forecasts matching the filter, newest first.
	List(ctx context.Context, filter ForecastFilter) ([]Forecast, error)

	// ListDue returns open forecasts whose horizon has passed, ordered by
	// horizon ascending and capped at limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Forecast, error)

	// Resolve applies a resolution to an open forecast. It must be atomic and
	// conditional on status=open; resolving an already-resolved forecast
	// returns ErrAlreadyResolved.
	Resolve(ctx context.Context, id string, res Resolution) error
}

// ListOpts provides pagination and filtering for audit queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of batch operations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
