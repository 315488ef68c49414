package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wachawo/trading-bot/internal/model"
)

const defaultApexBaseURL = "https://omni.apex.exchange/api"

// ApexProvider implements Provider using the Apex Omni public v3 API, the
// perpetuals venue the bot will eventually trade on. Klines and tickers
// carry prices as strings; they are parsed through decimal.Decimal so no
// precision is lost before the float conversion at the series boundary.
type ApexProvider struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // asset symbol -> Apex contract symbol
}

// NewApexProvider creates a provider with optional proxy support. Assets
// map to USDT-quoted contracts unless overridden in SymbolMap.
func NewApexProvider(baseURL, proxyURL string, timeout time.Duration) *ApexProvider {
	if baseURL == "" {
		baseURL = defaultApexBaseURL
	}
	return &ApexProvider{
		BaseURL:   baseURL,
		Client:    newHTTPClient(timeout, proxyURL),
		SymbolMap: map[string]string{},
	}
}

func (p *ApexProvider) Name() string { return "apex" }

func (p *ApexProvider) contractSymbol(asset model.Asset) string {
	if mapped, ok := p.SymbolMap[asset.Symbol]; ok {
		return mapped
	}
	return asset.Symbol + "USDT"
}

// apexKline is one candle from /v3/klines. Start time is unix
// milliseconds, prices are decimal strings.
type apexKline struct {
	Start int64  `json:"t"`
	Close string `json:"c"`
}

type apexKlinesResponse struct {
	Data map[string][]apexKline `json:"data"`
}

func (p *ApexProvider) HistoricalPrices(ctx context.Context, asset model.Asset, days int) ([]model.PricePoint, error) {
	symbol := p.contractSymbol(asset)
	endpoint := fmt.Sprintf("%s/v3/klines?symbol=%s&interval=D&limit=%d",
		p.BaseURL, url.QueryEscape(symbol), days)

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var result apexKlinesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("apex decode klines: %w", err)
	}
	klines := result.Data[symbol]
	if len(klines) == 0 {
		return nil, fmt.Errorf("apex: no klines returned for %s", symbol)
	}

	points := make([]model.PricePoint, 0, len(klines))
	for _, k := range klines {
		c, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, fmt.Errorf("apex: bad close %q for %s: %w", k.Close, symbol, err)
		}
		points = append(points, model.PricePoint{
			Time:  time.Unix(k.Start/1000, 0).UTC(),
			Close: c.InexactFloat64(),
		})
	}
	return points, nil
}

type apexTickerResponse struct {
	Data []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

// CurrentPrices issues one ticker call per asset; Apex has no batched
// quote endpoint. Each call still burns a rate-limit slot upstream.
func (p *ApexProvider) CurrentPrices(ctx context.Context, assets []model.Asset) (map[string]float64, error) {
	prices := make(map[string]float64, len(assets))
	for _, asset := range assets {
		symbol := p.contractSymbol(asset)
		endpoint := fmt.Sprintf("%s/v3/ticker?symbol=%s", p.BaseURL, url.QueryEscape(symbol))

		body, err := p.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		var result apexTickerResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("apex decode ticker: %w", err)
		}
		if len(result.Data) == 0 {
			continue
		}
		last, err := decimal.NewFromString(result.Data[0].LastPrice)
		if err != nil {
			return nil, fmt.Errorf("apex: bad last price %q for %s: %w", result.Data[0].LastPrice, symbol, err)
		}
		prices[asset.ID] = last.InexactFloat64()
	}
	return prices, nil
}

func (p *ApexProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apex fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apex read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("apex: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
