package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forecastlab/forecastd/internal/domain"
)

// EvidenceCache implements domain.EvidenceCache using Redis string values with
// JSON-serialized evidence lists and TTL-based eviction.
//
// Key schema:
//
//	evidence:{sha256(normalized query)} - JSON array of evidence items
type EvidenceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewEvidenceCache creates an EvidenceCache backed by the given Client. A
// non-positive ttl falls back to 30 minutes.
func NewEvidenceCache(c *Client, ttl time.Duration) *EvidenceCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &EvidenceCache{rdb: c.Underlying(), ttl: ttl}
}

func evidenceKey(query string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(norm))
	return "evidence:" + hex.EncodeToString(sum[:])
}

// Get retrieves cached evidence for the query. It returns domain.ErrNotFound
// on a cache miss.
func (ec *EvidenceCache) Get(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	data, err := ec.rdb.Get(ctx, evidenceKey(query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get evidence: %w", err)
	}

	var items []domain.EvidenceItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("redis: unmarshal evidence: %w", err)
	}
	return items, nil
}

// Set stores evidence for the query with the configured TTL.
func (ec *EvidenceCache) Set(ctx context.Context, query string, items []domain.EvidenceItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("redis: marshal evidence: %w", err)
	}

	if err := ec.rdb.Set(ctx, evidenceKey(query), data, ec.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set evidence: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EvidenceCache = (*EvidenceCache)(nil)
