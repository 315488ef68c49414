package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wachawo/trading-bot/internal/model"
	"github.com/wachawo/trading-bot/internal/ratelimit"
)

func testLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.New(100, time.Minute)
	require.NoError(t, err)
	return l
}

var btc = model.Asset{ID: "bitcoin", Symbol: "BTC"}

// flakyProvider fails the first failures calls to HistoricalPrices.
type flakyProvider struct {
	MockProvider
	failures int
	calls    int
}

func (f *flakyProvider) HistoricalPrices(ctx context.Context, asset model.Asset, days int) ([]model.PricePoint, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("upstream 502")
	}
	return f.MockProvider.HistoricalPrices(ctx, asset, days)
}

func TestFetchHistory_RetriesTransientFailures(t *testing.T) {
	p := &flakyProvider{failures: 2}
	p.Prices = map[string]float64{"bitcoin": 50000}

	c := NewClient(p, testLimiter(t), 3)
	c.baseBackoff = time.Millisecond

	series, err := c.FetchHistory(context.Background(), btc, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 30, series.Len())
}

func TestFetchHistory_ReturnsTypedErrorAfterExhaustion(t *testing.T) {
	p := &flakyProvider{failures: 10}
	c := NewClient(p, testLimiter(t), 2)
	c.baseBackoff = time.Millisecond

	_, err := c.FetchHistory(context.Background(), btc, 30)
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe, "exhausted retries must surface as FetchError")
	assert.Equal(t, "bitcoin", fe.Asset.ID)
	assert.Equal(t, 2, p.calls)
}

func TestFetchHistory_EveryAttemptConsumesRateBudget(t *testing.T) {
	p := &flakyProvider{failures: 2}
	limiter := testLimiter(t)
	c := NewClient(p, limiter, 3)
	c.baseBackoff = time.Millisecond

	_, err := c.FetchHistory(context.Background(), btc, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, limiter.InFlight(), "retries must burn slots like first attempts")
}

func TestFetchCurrent_Batches(t *testing.T) {
	p := &MockProvider{Prices: map[string]float64{"bitcoin": 50000, "ethereum": 3000}}
	c := NewClient(p, testLimiter(t), 1)

	assets := []model.Asset{btc, {ID: "ethereum", Symbol: "ETH"}}
	prices, err := c.FetchCurrent(context.Background(), assets)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, prices["bitcoin"])
	assert.Equal(t, 3000.0, prices["ethereum"])
}

func TestNormalize_SortsAndDeduplicates(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 0, 1)
	t3 := t1.AddDate(0, 0, 2)

	points := []model.PricePoint{
		{Time: t3, Close: 103},
		{Time: t1, Close: 101},
		{Time: t2, Close: 102},
		{Time: t2, Close: 102.5}, // later observation for the same timestamp wins
	}

	out := Normalize(points)
	require.Len(t, out, 3)
	assert.Equal(t, t1, out[0].Time)
	assert.Equal(t, t2, out[1].Time)
	assert.Equal(t, t3, out[2].Time)
	assert.Equal(t, 102.5, out[1].Close)
}

func TestNormalize_Empty(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize([]model.PricePoint{}))
}
