package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wachawo/trading-bot/internal/model"
)

func TestCoinGecko_HistoricalPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		assert.Equal(t, "test-key", r.Header.Get("x-cg-demo-api-key"))
		w.Write([]byte(`{"prices":[[1735689600000,93500.12],[1735776000000,94100.55]]}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "test-key", "", 5*time.Second)
	points, err := p.HistoricalPrices(context.Background(), btc, 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, time.Unix(1735689600, 0).UTC(), points[0].Time)
	assert.Equal(t, 93500.12, points[0].Close)
	assert.Equal(t, 94100.55, points[1].Close)
}

func TestCoinGecko_CurrentPricesBatchesIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"bitcoin":{"usd":93500.12},"ethereum":{"usd":3300.4}}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "", "", 5*time.Second)
	assets := []model.Asset{btc, {ID: "ethereum", Symbol: "ETH"}}
	prices, err := p.CurrentPrices(context.Background(), assets)
	require.NoError(t, err)
	assert.Equal(t, 93500.12, prices["bitcoin"])
	assert.Equal(t, 3300.4, prices["ethereum"])
}

func TestCoinGecko_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error_code":429}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "", "", 5*time.Second)
	_, err := p.HistoricalPrices(context.Background(), btc, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCoinGecko_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "", "", 5*time.Second)
	_, err := p.HistoricalPrices(context.Background(), btc, 30)
	require.Error(t, err)
}

func TestCoinGecko_EmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[]}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "", "", 5*time.Second)
	_, err := p.HistoricalPrices(context.Background(), btc, 30)
	require.Error(t, err, "an empty series is a provider failure, not a silent zero")
}

func TestApex_HistoricalPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"data":{"BTCUSDT":[{"t":1735689600000,"c":"93500.12"},{"t":1735776000000,"c":"94100.55"}]}}`))
	}))
	defer srv.Close()

	p := NewApexProvider(srv.URL, "", 5*time.Second)
	points, err := p.HistoricalPrices(context.Background(), btc, 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 93500.12, points[0].Close)
	assert.Equal(t, time.Unix(1735776000, 0).UTC(), points[1].Time)
}

func TestApex_CurrentPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/ticker", r.URL.Path)
		w.Write([]byte(`{"data":[{"symbol":"BTCUSDT","lastPrice":"93777.01"}]}`))
	}))
	defer srv.Close()

	p := NewApexProvider(srv.URL, "", 5*time.Second)
	prices, err := p.CurrentPrices(context.Background(), []model.Asset{btc})
	require.NoError(t, err)
	assert.Equal(t, 93777.01, prices["bitcoin"])
}

func TestApex_BadDecimalPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"BTCUSDT":[{"t":1735689600000,"c":"not-a-number"}]}}`))
	}))
	defer srv.Close()

	p := NewApexProvider(srv.URL, "", 5*time.Second)
	_, err := p.HistoricalPrices(context.Background(), btc, 30)
	require.Error(t, err)
}

func TestApex_SymbolMapOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XBT-PERP", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"data":{"XBT-PERP":[{"t":1735689600000,"c":"93500.12"}]}}`))
	}))
	defer srv.Close()

	p := NewApexProvider(srv.URL, "", 5*time.Second)
	p.SymbolMap["BTC"] = "XBT-PERP"
	points, err := p.HistoricalPrices(context.Background(), btc, 30)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}
