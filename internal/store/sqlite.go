package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/wachawo/trading-bot/internal/model"
)

// SQLiteStore persists price history and alert state to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so reads (operator commands, dashboards) don't block the
	// scheduler's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS prices (
			asset_id  TEXT NOT NULL,
			symbol    TEXT,
			timestamp INTEGER NOT NULL,
			close     REAL NOT NULL,
			PRIMARY KEY (asset_id, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_asset_ts ON prices(asset_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS alert_states (
			asset_id      TEXT PRIMARY KEY,
			state         TEXT NOT NULL,
			last_rsi      REAL,
			last_alert_at INTEGER,
			updated_at    INTEGER
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) UpsertPrices(asset model.Asset, points []model.PricePoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO prices (asset_id, symbol, timestamp, close) VALUES (?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range points {
		res, err := stmt.Exec(asset.ID, asset.Symbol, p.Time.Unix(), p.Close)
		if err != nil {
			return inserted, fmt.Errorf("insert price: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) LatestTimestamp(assetID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ts sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(timestamp) FROM prices WHERE asset_id = ?`, assetID).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest timestamp: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

func (s *SQLiteStore) Prices(assetID string) ([]model.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT timestamp, close FROM prices WHERE asset_id = ? ORDER BY timestamp ASC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var ts int64
		var c float64
		if err := rows.Scan(&ts, &c); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		points = append(points, model.PricePoint{Time: time.Unix(ts, 0).UTC(), Close: c})
	}
	return points, rows.Err()
}

func (s *SQLiteStore) SaveAlertState(st model.AlertState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO alert_states (asset_id, state, last_rsi, last_alert_at, updated_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(asset_id) DO UPDATE SET
			state = excluded.state,
			last_rsi = excluded.last_rsi,
			last_alert_at = excluded.last_alert_at,
			updated_at = excluded.updated_at`,
		st.AssetID, string(st.State), st.LastRSI, st.LastAlertAt.Unix(), st.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadAlertStates() (map[string]model.AlertState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT asset_id, state, last_rsi, last_alert_at, updated_at FROM alert_states`)
	if err != nil {
		return nil, fmt.Errorf("query alert states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]model.AlertState)
	for rows.Next() {
		var st model.AlertState
		var stateStr string
		var alertAt, updatedAt int64
		if err := rows.Scan(&st.AssetID, &stateStr, &st.LastRSI, &alertAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan alert state: %w", err)
		}
		st.State = model.State(stateStr)
		if alertAt > 0 {
			st.LastAlertAt = time.Unix(alertAt, 0).UTC()
		}
		if updatedAt > 0 {
			st.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		}
		states[st.AssetID] = st
	}
	return states, rows.Err()
}

func (s *SQLiteStore) Close() error {
	log.Info().Msg("closing sqlite store")
	return s.db.Close()
}
