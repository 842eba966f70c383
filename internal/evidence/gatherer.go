// Package evidence gathers ranked text excerpts for a forecast question from
// a web-search backend. Gathering is strictly best-effort: every failure path
// degrades to an empty result so callers never abort a batch over evidence.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forecastlab/forecastd/internal/domain"
)

// SearchOpts tunes a single gathering run.
type SearchOpts struct {
	// MaxResults caps the number of excerpts returned. Zero means the
	// gatherer's configured default.
	MaxResults int
	// FetchPages enriches top hits by downloading the page and extracting a
	// text snippet, using a bounded worker pool.
	FetchPages bool
}

// Gatherer retrieves ranked evidence excerpts for a question.
type Gatherer interface {
	Search(ctx context.Context, question string, opts SearchOpts) ([]domain.EvidenceItem, error)
}

// Config holds the HTTP gatherer parameters.
type Config struct {
	// SearchURL is a SearxNG-compatible JSON search endpoint.
	SearchURL  string
	MaxResults int
	FetchLimit int
	Timeout    time.Duration
}

// HTTPGatherer implements Gatherer against a SearxNG-compatible search API,
// with an optional Redis-backed cache in front of the network.
type HTTPGatherer struct {
	searchURL  string
	maxResults int
	fetchLimit int
	client     *http.Client
	cache      domain.EvidenceCache
	logger     *slog.Logger
}

// NewHTTPGatherer creates an HTTPGatherer. cache may be nil, in which case
// every search hits the backend.
func NewHTTPGatherer(cfg Config, cache domain.EvidenceCache, logger *slog.Logger) *HTTPGatherer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 8
	}
	fetchLimit := cfg.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = 4
	}
	return &HTTPGatherer{
		searchURL:  cfg.SearchURL,
		maxResults: maxResults,
		fetchLimit: fetchLimit,
		client:     &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger.With(slog.String("component", "evidence")),
	}
}

// searchResponse mirrors the SearxNG JSON result shape.
type searchResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search queries the backend for the question and returns ranked excerpts.
// Cache hits short-circuit the network entirely.
func (g *HTTPGatherer) Search(ctx context.Context, question string, opts SearchOpts) ([]domain.EvidenceItem, error) {
	if g.searchURL == "" {
		return nil, nil
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = g.maxResults
	}

	if g.cache != nil {
		if items, err := g.cache.Get(ctx, question); err == nil {
			if len(items) > limit {
				items = items[:limit]
			}
			return items, nil
		}
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json",
		strings.TrimSuffix(g.searchURL, "/"), url.QueryEscape(question))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("evidence: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evidence: search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("evidence: search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("evidence: decode search response: %w", err)
	}

	items := make([]domain.EvidenceItem, 0, limit)
	for _, r := range parsed.Results {
		if r.URL == "" && r.Title == "" {
			continue
		}
		items = append(items, domain.EvidenceItem{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
		})
		if len(items) >= limit {
			break
		}
	}

	if opts.FetchPages {
		g.enrich(ctx, items)
	}

	if g.cache != nil && len(items) > 0 {
		if err := g.cache.Set(ctx, question, items); err != nil {
			g.logger.WarnContext(ctx, "evidence cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return items, nil
}

// maxPageBytes bounds how much of a fetched page is read.
const maxPageBytes = 256 << 10

// enrich downloads the top hits and replaces thin snippets with text extracted
// from the page body. Fetches run in a bounded worker pool; individual fetch
// failures leave the original snippet in place.
func (g *HTTPGatherer) enrich(ctx context.Context, items []domain.EvidenceItem) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.fetchLimit)

	for i := range items {
		if items[i].URL == "" || len(items[i].Snippet) > 400 {
			continue
		}
		eg.Go(func() error {
			text, err := g.fetchPageText(ctx, items[i].URL)
			if err != nil {
				g.logger.DebugContext(ctx, "page fetch failed",
					slog.String("url", items[i].URL),
					slog.String("error", err.Error()),
				)
				return nil // best-effort
			}
			if len(text) > len(items[i].Snippet) {
				items[i].Snippet = text
			}
			return nil
		})
	}

	_ = eg.Wait()
}

var (
	tagPattern    = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	spacesPattern = regexp.MustCompile(`\s+`)
)

// fetchPageText downloads a page and strips markup down to plain text,
// truncated to a snippet-sized excerpt.
func (g *HTTPGatherer) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "forecastd/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	text := tagPattern.ReplaceAllString(string(body), " ")
	text = spacesPattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if len(text) > 1200 {
		text = text[:1200]
	}
	return text, nil
}

// Compile-time interface check.
var _ Gatherer = (*HTTPGatherer)(nil)
