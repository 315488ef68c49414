package model

import "time"

// Signal classifies a market condition detected by the evaluator.
type Signal string

const (
	SignalNone     Signal = "NONE"
	SignalOversold Signal = "OVERSOLD"
	SignalNeutral  Signal = "NEUTRAL"
)

// State is the per-asset position of the alert hysteresis machine.
type State string

const (
	StateNeutral         State = "NEUTRAL"
	StateOversoldAlerted State = "OVERSOLD_ALERTED"
)

// AlertState is the per-asset alert memory. It is owned by the scheduler's
// state map and mutated only through evaluator transitions, never shared
// across assets.
type AlertState struct {
	AssetID     string    `json:"asset_id"`
	State       State     `json:"state"`
	LastRSI     float64   `json:"last_rsi"`
	LastAlertAt time.Time `json:"last_alert_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAlertState returns the initial state for a newly seen asset.
func NewAlertState(assetID string) AlertState {
	return AlertState{AssetID: assetID, State: StateNeutral}
}

// Alert is an immutable event record handed from the evaluator to the
// dispatcher. It is never mutated after creation.
type Alert struct {
	Asset       Asset
	Signal      Signal
	RSI         float64
	GeneratedAt time.Time
}
