package marketdata

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/wachawo/trading-bot/internal/model"
)

// Provider fetches raw price data from one upstream market data API.
// Implementations normalize their payloads into PricePoints; ordering and
// deduplication are handled by the Client.
type Provider interface {
	// HistoricalPrices returns daily closes for the last `days` days.
	HistoricalPrices(ctx context.Context, asset model.Asset, days int) ([]model.PricePoint, error)
	// CurrentPrices returns the latest USD price for every asset in one
	// batched call, keyed by asset ID. Assets missing from the result
	// simply had no quote.
	CurrentPrices(ctx context.Context, assets []model.Asset) (map[string]float64, error)
	Name() string
}

// newHTTPClient builds an HTTP client with a hard timeout and optional
// proxy, shared by all provider implementations.
func newHTTPClient(timeout time.Duration, proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	Prices  map[string]float64             // current price per asset ID
	History map[string][]model.PricePoint  // historical points per asset ID
	Errs    map[string]error               // per-asset fetch error injection
	Calls   int                            // number of HistoricalPrices calls served
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) HistoricalPrices(_ context.Context, asset model.Asset, days int) ([]model.PricePoint, error) {
	m.Calls++
	if err := m.Errs[asset.ID]; err != nil {
		return nil, err
	}
	if pts, ok := m.History[asset.ID]; ok {
		return pts, nil
	}
	return generateMockPoints(m.Prices[asset.ID], days), nil
}

func (m *MockProvider) CurrentPrices(_ context.Context, assets []model.Asset) (map[string]float64, error) {
	out := make(map[string]float64, len(assets))
	for _, a := range assets {
		if p, ok := m.Prices[a.ID]; ok {
			out[a.ID] = p
		}
	}
	return out, nil
}

func generateMockPoints(basePrice float64, count int) []model.PricePoint {
	if basePrice == 0 {
		basePrice = 100
	}
	pts := make([]model.PricePoint, count)
	for i := 0; i < count; i++ {
		pts[i] = model.PricePoint{
			Time:  time.Now().AddDate(0, 0, -(count - i)).Truncate(24 * time.Hour),
			Close: basePrice * (1 + float64(i-count/2)*0.001),
		}
	}
	return pts
}
