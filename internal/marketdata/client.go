// Package marketdata fetches price series from an unreliable, rate-limited
// upstream provider and normalizes them into uniform PriceSeries values.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wachawo/trading-bot/internal/model"
	"github.com/wachawo/trading-bot/internal/ratelimit"
)

// FetchError reports a fetch failure for a single asset after all retries
// were exhausted. The scheduler skips just that asset for the tick.
type FetchError struct {
	Asset model.Asset
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Asset.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client wraps a Provider with the shared rate limiter and bounded
// exponential-backoff retries. Every outbound request, including retries,
// consumes one slot from the shared budget.
type Client struct {
	provider    Provider
	limiter     *ratelimit.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

// NewClient creates a Client. maxAttempts is the total number of tries
// per request (minimum 1); backoff after attempt i is baseBackoff << i.
func NewClient(provider Provider, limiter *ratelimit.Limiter, maxAttempts int) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		provider:    provider,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		baseBackoff: time.Second,
	}
}

// FetchHistory fetches the last `days` daily closes for one asset and
// normalizes them into a PriceSeries sorted ascending by timestamp with
// duplicate timestamps collapsed.
func (c *Client) FetchHistory(ctx context.Context, asset model.Asset, days int) (model.PriceSeries, error) {
	var points []model.PricePoint
	err := c.withRetry(ctx, asset.Symbol, func() error {
		var ferr error
		points, ferr = c.provider.HistoricalPrices(ctx, asset, days)
		return ferr
	})
	if err != nil {
		return model.PriceSeries{}, &FetchError{Asset: asset, Err: err}
	}
	return model.PriceSeries{
		Asset:     asset,
		Points:    Normalize(points),
		FetchedAt: time.Now(),
	}, nil
}

// FetchCurrent fetches the latest price for all assets in one batched
// provider call, keyed by asset ID.
func (c *Client) FetchCurrent(ctx context.Context, assets []model.Asset) (map[string]float64, error) {
	var prices map[string]float64
	label := fmt.Sprintf("batch(%d assets)", len(assets))
	err := c.withRetry(ctx, label, func() error {
		var ferr error
		prices, ferr = c.provider.CurrentPrices(ctx, assets)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch current prices: %w", err)
	}
	return prices, nil
}

// withRetry acquires a rate-limit slot before every attempt and retries
// with exponential backoff up to the configured ceiling.
func (c *Client) withRetry(ctx context.Context, label string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff << uint(attempt-1)
			log.Warn().
				Str("target", label).
				Int("attempt", attempt+1).
				Int("max", c.maxAttempts).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("fetch failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", c.maxAttempts, lastErr)
}

// Normalize sorts points ascending by timestamp and drops duplicate
// timestamps, keeping the last observation for each.
func Normalize(points []model.PricePoint) []model.PricePoint {
	if len(points) == 0 {
		return nil
	}
	sorted := make([]model.PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:0]
	for _, p := range sorted {
		if len(out) > 0 && out[len(out)-1].Time.Equal(p.Time) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
