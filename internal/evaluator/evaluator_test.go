package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wachawo/trading-bot/internal/model"
)

var testThresholds = Thresholds{Oversold: 30, Reset: 40}

func reading(rsi float64) model.RSIReading {
	return model.RSIReading{
		Asset:  model.Asset{ID: "bitcoin", Symbol: "BTC"},
		Time:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Value:  rsi,
		Window: 14,
	}
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		th      Thresholds
		wantErr bool
	}{
		{"valid pair", Thresholds{Oversold: 30, Reset: 40}, false},
		{"narrow band", Thresholds{Oversold: 29, Reset: 30}, false},
		{"equal thresholds", Thresholds{Oversold: 30, Reset: 30}, true},
		{"inverted", Thresholds{Oversold: 40, Reset: 30}, true},
		{"zero oversold", Thresholds{Oversold: 0, Reset: 40}, true},
		{"reset out of range", Thresholds{Oversold: 30, Reset: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluate_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		from      model.State
		rsi       float64
		decision  Decision
		to        model.State
	}{
		{"neutral stays neutral", model.StateNeutral, 55, DecisionNone, model.StateNeutral},
		{"neutral dips to oversold", model.StateNeutral, 30, DecisionAlert, model.StateOversoldAlerted},
		{"neutral deep oversold", model.StateNeutral, 5, DecisionAlert, model.StateOversoldAlerted},
		{"alerted stays below reset", model.StateOversoldAlerted, 35, DecisionSuppress, model.StateOversoldAlerted},
		{"alerted still oversold", model.StateOversoldAlerted, 20, DecisionSuppress, model.StateOversoldAlerted},
		{"alerted just under reset", model.StateOversoldAlerted, 39.99, DecisionSuppress, model.StateOversoldAlerted},
		{"alerted recovers at reset", model.StateOversoldAlerted, 40, DecisionNone, model.StateNeutral},
		{"alerted recovers above reset", model.StateOversoldAlerted, 70, DecisionNone, model.StateNeutral},
		{"neutral above oversold boundary", model.StateNeutral, 30.01, DecisionNone, model.StateNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := model.AlertState{AssetID: "bitcoin", State: tt.from}
			decision, next := Evaluate(reading(tt.rsi), state, testThresholds)
			assert.Equal(t, tt.decision, decision)
			assert.Equal(t, tt.to, next.State)
			assert.Equal(t, tt.rsi, next.LastRSI)
		})
	}
}

func TestEvaluate_FreshAssetStartsNeutral(t *testing.T) {
	decision, next := Evaluate(reading(28), model.NewAlertState("bitcoin"), testThresholds)
	assert.Equal(t, DecisionAlert, decision)
	assert.Equal(t, model.StateOversoldAlerted, next.State)
	assert.Equal(t, reading(28).Time, next.LastAlertAt)
}

// A dip only re-alerts after the RSI has crossed back above the reset
// threshold. Readings between the two thresholds neither alert nor
// re-arm.
func TestEvaluate_Hysteresis(t *testing.T) {
	run := func(th Thresholds, rsis []float64) int {
		state := model.NewAlertState("bitcoin")
		alerts := 0
		for _, v := range rsis {
			var decision Decision
			decision, state = Evaluate(reading(v), state, th)
			if decision == DecisionAlert {
				alerts++
			}
		}
		return alerts
	}

	// 32 and 38 stay inside the (30, 40) band: the 25 must NOT re-alert.
	assert.Equal(t, 1, run(testThresholds, []float64{35, 28, 32, 38, 25}))

	// With a genuine recovery (>= 40) between the dips, both alert.
	assert.Equal(t, 2, run(testThresholds, []float64{35, 28, 32, 45, 25}))

	// A tighter band that the rebound does cross re-arms the asset, so
	// the same sequence alerts at 28 and again at 25.
	assert.Equal(t, 2, run(Thresholds{Oversold: 30, Reset: 32}, []float64{35, 28, 32, 38, 25}))

	// Flapping around the oversold line with no recovery: one alert.
	assert.Equal(t, 1, run(testThresholds, []float64{31, 29, 31, 29, 31, 29}))
}

func TestEvaluate_Idempotent(t *testing.T) {
	state := model.AlertState{AssetID: "bitcoin", State: model.StateNeutral}
	r := reading(22)

	d1, s1 := Evaluate(r, state, testThresholds)
	d2, s2 := Evaluate(r, state, testThresholds)
	require.Equal(t, d1, d2, "same inputs must give the same decision")
	require.Equal(t, s1, s2, "same inputs must give the same state")
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	state := model.AlertState{AssetID: "bitcoin", State: model.StateNeutral, LastRSI: 55}
	before := state
	_, _ = Evaluate(reading(22), state, testThresholds)
	assert.Equal(t, before, state)
}
