package domain

import (
	"context"
	"time"
)

// EvidenceItem is one ranked text excerpt with provenance, as returned by the
// evidence gatherer.
type EvidenceItem struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// EvidenceCache stores gathered evidence keyed by normalized query, so that
// repeated resolutions of similar questions do not hammer the search backend.
// It is an explicit injected dependency with TTL-based eviction; misses
// return ErrNotFound.
type EvidenceCache interface {
	Get(ctx context.Context, query string) ([]EvidenceItem, error)
	Set(ctx context.Context, query string, items []EvidenceItem) error
}

// LockManager provides distributed locking, used to keep scheduled and manual
// resolution runs from overlapping.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of service events (seeded, resolved,
// operator alerts) to live consumers such as the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
