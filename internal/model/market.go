package model

import "time"

// Asset is a tracked trading symbol. The ID is the market data provider's
// internal identifier (e.g. "bitcoin" for CoinGecko), the Symbol is the
// display ticker (e.g. "BTC").
type Asset struct {
	ID     string `yaml:"id" json:"id"`
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name"`
}

// PricePoint is a single (timestamp, close) observation.
type PricePoint struct {
	Time  time.Time
	Close float64
}

// PriceSeries holds chronological close prices for one asset.
// Points are sorted ascending by timestamp with no duplicate timestamps.
type PriceSeries struct {
	Asset     Asset
	Points    []PricePoint
	FetchedAt time.Time
}

// Closes returns the close prices in chronological order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Len returns the number of points in the series.
func (s PriceSeries) Len() int { return len(s.Points) }

// RSIReading is the result of one RSI computation over a price series.
type RSIReading struct {
	Asset  Asset
	Time   time.Time // timestamp of the newest close in the series
	Value  float64   // always within [0, 100]
	Window int
}
