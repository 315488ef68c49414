package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wachawo/trading-bot/internal/model"
)

const defaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoProvider implements Provider using the CoinGecko public API.
// Historical closes come from /coins/{id}/market_chart; current prices
// are batched through /simple/price so one tick costs a single quote call
// regardless of how many assets are tracked.
type CoinGeckoProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewCoinGeckoProvider creates a provider with optional proxy support.
// An empty baseURL selects the public endpoint.
func NewCoinGeckoProvider(baseURL, apiKey, proxyURL string, timeout time.Duration) *CoinGeckoProvider {
	if baseURL == "" {
		baseURL = defaultCoinGeckoBaseURL
	}
	return &CoinGeckoProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(timeout, proxyURL),
	}
}

func (p *CoinGeckoProvider) Name() string { return "coingecko" }

// marketChart is the market_chart response shape: prices as
// [unix_ms, price] pairs.
type marketChart struct {
	Prices [][2]float64 `json:"prices"`
}

func (p *CoinGeckoProvider) HistoricalPrices(ctx context.Context, asset model.Asset, days int) ([]model.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d&interval=daily",
		p.BaseURL, url.PathEscape(asset.ID), days)

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("coingecko decode chart: %w", err)
	}
	if len(chart.Prices) == 0 {
		return nil, fmt.Errorf("coingecko: no prices returned for %s", asset.ID)
	}

	points := make([]model.PricePoint, 0, len(chart.Prices))
	for _, pair := range chart.Prices {
		ms := int64(pair[0])
		points = append(points, model.PricePoint{
			Time:  time.Unix(ms/1000, 0).UTC(),
			Close: pair[1],
		})
	}
	return points, nil
}

func (p *CoinGeckoProvider) CurrentPrices(ctx context.Context, assets []model.Asset) (map[string]float64, error) {
	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		p.BaseURL, url.QueryEscape(strings.Join(ids, ",")))

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var quotes map[string]map[string]float64
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("coingecko decode quotes: %w", err)
	}

	prices := make(map[string]float64, len(quotes))
	for id, q := range quotes {
		if usd, ok := q["usd"]; ok {
			prices[id] = usd
		}
	}
	return prices, nil
}

func (p *CoinGeckoProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", p.APIKey)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coingecko read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
