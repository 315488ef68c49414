// Package indicator provides pure technical indicator computations over
// price series. No I/O, no shared state.
package indicator

import (
	"errors"
	"fmt"

	"github.com/wachawo/trading-bot/internal/model"
)

// ErrInsufficientData is returned when a series is too short for the
// requested lookback window. Callers skip the asset until enough history
// has accumulated.
var ErrInsufficientData = errors.New("insufficient data")

// RSI computes the Wilder-smoothed Relative Strength Index over the given
// window. Requires at least window+1 closes (window deltas). The initial
// average gain/loss is a simple mean over the first window deltas; every
// later delta is folded in with Wilder's smoothing.
//
// Edge conventions: a series with gains and no losses reads 100; a
// perfectly flat series reads 50 (neutral).
func RSI(series model.PriceSeries, window int) (model.RSIReading, error) {
	if window < 1 {
		return model.RSIReading{}, fmt.Errorf("rsi: window must be >= 1, got %d", window)
	}
	closes := series.Closes()
	if len(closes) < window+1 {
		return model.RSIReading{}, fmt.Errorf("rsi %s: %w: have %d closes, need %d",
			series.Asset.Symbol, ErrInsufficientData, len(closes), window+1)
	}

	var avgGain, avgLoss float64
	for i := 1; i <= window; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(window)
	avgLoss /= float64(window)

	for i := window + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(window-1) + gain) / float64(window)
		avgLoss = (avgLoss*float64(window-1) + loss) / float64(window)
	}

	var value float64
	switch {
	case avgGain == 0 && avgLoss == 0:
		value = 50.0 // flat series, neutral by convention
	case avgLoss == 0:
		value = 100.0
	default:
		rs := avgGain / avgLoss
		value = 100.0 - 100.0/(1.0+rs)
	}

	return model.RSIReading{
		Asset:  series.Asset,
		Time:   series.Points[len(series.Points)-1].Time,
		Value:  value,
		Window: window,
	}, nil
}
