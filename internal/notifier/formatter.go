package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wachawo/trading-bot/internal/model"
)

// FormatStatus renders the per-asset alert states for the /status command.
func FormatStatus(states map[string]model.AlertState, assets []model.Asset) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>Alert state</b> | %s\n\n", time.Now().UTC().Format("2006-01-02 15:04")))
	for _, a := range assets {
		st, ok := states[a.ID]
		if !ok {
			b.WriteString(fmt.Sprintf("%s: no data yet\n", a.Symbol))
			continue
		}
		line := fmt.Sprintf("%s: %s | RSI %.2f", a.Symbol, st.State, st.LastRSI)
		if !st.LastAlertAt.IsZero() {
			line += fmt.Sprintf(" | last alert %s", st.LastAlertAt.UTC().Format("2006-01-02 15:04"))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// FormatReadings renders the latest RSI readings for the /rsi command.
func FormatReadings(readings []model.RSIReading) string {
	if len(readings) == 0 {
		return "No RSI readings available yet."
	}
	sorted := make([]model.RSIReading, len(readings))
	copy(sorted, readings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	var b strings.Builder
	b.WriteString("📈 <b>RSI readings</b>\n\n")
	for _, r := range sorted {
		b.WriteString(fmt.Sprintf("%s: RSI(%d) = %.2f\n", r.Asset.Symbol, r.Window, r.Value))
	}
	return b.String()
}

// FormatAssets renders the tracked asset list for the /assets command.
func FormatAssets(assets []model.Asset) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Tracking %d assets:\n", len(assets)))
	for _, a := range assets {
		b.WriteString(fmt.Sprintf("• %s (%s)\n", a.Symbol, a.ID))
	}
	return b.String()
}
