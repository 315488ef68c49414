// Package evaluator decides whether an RSI reading is alert-worthy.
//
// The per-asset state machine is the core anti-spam mechanism: an asset
// alerts once on entering oversold territory and cannot alert again until
// its RSI has recovered above the reset threshold. The gap between the two
// thresholds is the hysteresis band that prevents flapping near the
// boundary.
package evaluator

import (
	"fmt"

	"github.com/wachawo/trading-bot/internal/model"
)

// Decision is the evaluator's verdict for one reading. The type is open
// for extension: future order-placing decisions (open/close position)
// slot in without changing the transition function's shape.
type Decision string

const (
	DecisionNone     Decision = "NONE"
	DecisionAlert    Decision = "ALERT"
	DecisionSuppress Decision = "SUPPRESS"
)

// Thresholds configures the hysteresis band.
type Thresholds struct {
	Oversold float64 // alert when RSI <= Oversold
	Reset    float64 // re-arm when RSI >= Reset; must be > Oversold
}

// Validate rejects threshold pairs that would break the hysteresis
// invariant.
func (t Thresholds) Validate() error {
	if t.Oversold <= 0 || t.Oversold >= 100 {
		return fmt.Errorf("evaluator: oversold threshold must be within (0, 100), got %.2f", t.Oversold)
	}
	if t.Reset <= 0 || t.Reset >= 100 {
		return fmt.Errorf("evaluator: reset threshold must be within (0, 100), got %.2f", t.Reset)
	}
	if t.Reset <= t.Oversold {
		return fmt.Errorf("evaluator: reset threshold %.2f must be greater than oversold threshold %.2f",
			t.Reset, t.Oversold)
	}
	return nil
}

// Evaluate applies one RSI reading to an asset's alert state and returns
// the decision plus the updated state. Pure: the result depends only on
// (reading, state, thresholds), so replaying the same reading against the
// same state is safe and yields the identical outcome.
//
// Transitions:
//
//	NEUTRAL          --rsi <= oversold--> OVERSOLD_ALERTED  (ALERT)
//	OVERSOLD_ALERTED --rsi <  reset---->  OVERSOLD_ALERTED  (SUPPRESS)
//	OVERSOLD_ALERTED --rsi >= reset---->  NEUTRAL           (NONE, re-armed)
//	NEUTRAL          --otherwise------->  NEUTRAL           (NONE)
func Evaluate(reading model.RSIReading, state model.AlertState, th Thresholds) (Decision, model.AlertState) {
	next := state
	next.AssetID = reading.Asset.ID
	next.LastRSI = reading.Value
	next.UpdatedAt = reading.Time

	switch state.State {
	case model.StateOversoldAlerted:
		if reading.Value >= th.Reset {
			next.State = model.StateNeutral
			return DecisionNone, next
		}
		next.State = model.StateOversoldAlerted
		return DecisionSuppress, next
	default: // StateNeutral, including the zero value for a fresh asset
		if reading.Value <= th.Oversold {
			next.State = model.StateOversoldAlerted
			next.LastAlertAt = reading.Time
			return DecisionAlert, next
		}
		next.State = model.StateNeutral
		return DecisionNone, next
	}
}
