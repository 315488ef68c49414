// Package store persists price history and alert state. The price table
// lets each tick fetch only the days missing since the previous refresh
// instead of re-downloading the full lookback; alert-state persistence
// keeps the bot from re-alerting right after a restart.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/wachawo/trading-bot/internal/model"
)

// Store is the persistence boundary used by the scheduler.
type Store interface {
	// UpsertPrices inserts points for an asset, ignoring timestamps that
	// are already stored. Returns the number of new points.
	UpsertPrices(asset model.Asset, points []model.PricePoint) (int, error)
	// LatestTimestamp returns the newest stored timestamp for an asset,
	// or the zero time when no history exists.
	LatestTimestamp(assetID string) (time.Time, error)
	// Prices returns all stored points for an asset ascending by time.
	Prices(assetID string) ([]model.PricePoint, error)
	SaveAlertState(st model.AlertState) error
	LoadAlertStates() (map[string]model.AlertState, error)
	Close() error
}

// MemoryStore keeps everything in process memory. Used when no database
// path is configured, and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	prices map[string]map[int64]float64 // assetID -> unix seconds -> close
	states map[string]model.AlertState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices: make(map[string]map[int64]float64),
		states: make(map[string]model.AlertState),
	}
}

func (m *MemoryStore) UpsertPrices(asset model.Asset, points []model.PricePoint) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTime, ok := m.prices[asset.ID]
	if !ok {
		byTime = make(map[int64]float64)
		m.prices[asset.ID] = byTime
	}
	inserted := 0
	for _, p := range points {
		ts := p.Time.Unix()
		if _, exists := byTime[ts]; !exists {
			byTime[ts] = p.Close
			inserted++
		}
	}
	return inserted, nil
}

func (m *MemoryStore) LatestTimestamp(assetID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest int64
	for ts := range m.prices[assetID] {
		if ts > latest {
			latest = ts
		}
	}
	if latest == 0 {
		return time.Time{}, nil
	}
	return time.Unix(latest, 0).UTC(), nil
}

func (m *MemoryStore) Prices(assetID string) ([]model.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTime := m.prices[assetID]
	points := make([]model.PricePoint, 0, len(byTime))
	for ts, c := range byTime {
		points = append(points, model.PricePoint{Time: time.Unix(ts, 0).UTC(), Close: c})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

func (m *MemoryStore) SaveAlertState(st model.AlertState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.AssetID] = st
	return nil
}

func (m *MemoryStore) LoadAlertStates() (map[string]model.AlertState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.AlertState, len(m.states))
	for id, st := range m.states {
		out[id] = st
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
